package cmd

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/profile-fusion/internal/sources"
)

var addCmd = &cobra.Command{
	Use:   "add <profile-id>",
	Short: "Extract one source and merge it into the profile",
	Long: "Extract one source and merge it into the profile. The profile is created on first use.\n" +
		"Exactly one of --cv, --linkedin or --github must be given.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := sourceRequestFromFlags(cmd)
		if err != nil {
			return err
		}

		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		rt.logger.Info("adding source",
			zap.String("profile_id", args[0]),
			zap.String("platform", req.Platform().String()),
		)

		unified, err := rt.service.AddSource(cmd.Context(), args[0], req)
		if err != nil {
			return err
		}

		return printJSON(cmd.OutOrStdout(), unified)
	},
}

func init() {
	rootCmd.AddCommand(addCmd)

	addCmd.Flags().String("cv", "", "path to a resume (.pdf, .docx, .txt or .md)")
	addCmd.Flags().String("linkedin", "", "public LinkedIn profile url")
	addCmd.Flags().String("github", "", "GitHub profile url")
	addCmd.MarkFlagsMutuallyExclusive("cv", "linkedin", "github")
	addCmd.MarkFlagsOneRequired("cv", "linkedin", "github")
}

func sourceRequestFromFlags(cmd *cobra.Command) (sources.Request, error) {
	flag := func(name string) string {
		value, _ := cmd.Flags().GetString(name)
		return strings.TrimSpace(value)
	}

	switch {
	case flag("cv") != "":
		return sources.CVRequest{Path: flag("cv")}, nil
	case flag("linkedin") != "":
		return sources.LinkedInRequest{URL: flag("linkedin")}, nil
	case flag("github") != "":
		return sources.GitHubRequest{URL: flag("github")}, nil
	default:
		return nil, errors.New("one of --cv, --linkedin or --github is required")
	}
}
