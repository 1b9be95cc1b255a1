package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var createCmd = &cobra.Command{
	Use:   "create [profile-id]",
	Short: "Create an empty profile; a random id is used when none is given",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		var id string
		if len(args) > 0 {
			id = args[0]
		}

		p, err := rt.service.Create(cmd.Context(), id)
		if err != nil {
			return err
		}

		rt.logger.Info("profile is ready", zap.String("profile_id", p.ID))
		fmt.Fprintln(cmd.OutOrStdout(), p.ID)
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <profile-id>",
	Short: "Print the unified profile as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		p, err := rt.service.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		return printJSON(cmd.OutOrStdout(), p)
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		summaries, err := rt.service.List(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSOURCES\tUPDATED")
		for _, s := range summaries {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", s.ID, s.Name, s.Sources, s.UpdatedAt.Format(time.RFC3339))
		}
		return w.Flush()
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <profile-id>",
	Short: "Delete a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := rt.service.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}

		rt.logger.Info("profile deleted", zap.String("profile_id", args[0]))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(createCmd, showCmd, listCmd, deleteCmd)
}

func printJSON(w io.Writer, v any) error {
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(pretty))
	return err
}
