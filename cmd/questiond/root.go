package main

import (
	"group_question_service/internal/infra/config"
	"group_question_service/internal/infra/logger"

	"github.com/spf13/cobra"
)

var cfg *config.AppConfig

var rootCmd = &cobra.Command{
	Use:   "questiond",
	Short: "Group question service",
	Long: `questiond sends weekly questions to groups by email, collects the
replies and sends every group a digest of its answers.

Example usage:
  questiond serve              # HTTP API, scheduler and admin bot
  questiond run-jobs           # run the scheduled jobs once and exit
  questiond sign-token 42      # print the reply address of question record 42`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		logger.Init(cfg)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, runJobsCmd, signTokenCmd)
}
