package cmd

import (
	"errors"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/profile-fusion/internal/profile"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"
)

var errAborted = errors.New("aborted by user")

var savePrompt = promptui.Select{
	Label: "Save the enhanced profile?",
	Items: []string{PromptYes, PromptNo},
}

var enhanceCmd = &cobra.Command{
	Use:   "enhance <profile-id>",
	Short: "Polish the unified profile with the language model",
	Long: "Polish the unified profile with the language model and print the result.\n" +
		"With --save the result replaces the stored summary, skills and descriptions.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		enhanced, err := rt.service.Enhance(cmd.Context(), args[0], false)

		var enhErr *profile.EnhancementError
		if errors.As(err, &enhErr) {
			rt.logger.Warn("enhancement failed, printing the unified profile instead",
				zap.Error(err),
				zap.Bool("retryable", profile.IsRetryable(err)),
			)
			if printErr := printJSON(cmd.OutOrStdout(), enhErr.Profile); printErr != nil {
				return printErr
			}
			return err
		}
		if err != nil {
			return err
		}

		if err := printJSON(cmd.OutOrStdout(), enhanced); err != nil {
			return err
		}

		save, _ := cmd.Flags().GetBool("save")
		if !save {
			return nil
		}

		autoApprove, _ := cmd.Flags().GetBool("auto-approve")
		if !autoApprove {
			_, action, err := savePrompt.Run()
			if err != nil {
				return err
			}
			if action != PromptYes {
				rt.logger.Info("exiting", zap.String("reason", "enhanced profile was not saved"))
				return errAborted
			}
		}

		if err := rt.service.SaveEnhanced(cmd.Context(), enhanced); err != nil {
			return err
		}

		rt.logger.Info("enhanced profile saved", zap.String("profile_id", enhanced.ID))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(enhanceCmd)

	enhanceCmd.Flags().Bool("save", false, "store the enhanced fields in the profile")
	enhanceCmd.Flags().BoolP("auto-approve", "y", false, "do not ask for confirmation before saving")
}
