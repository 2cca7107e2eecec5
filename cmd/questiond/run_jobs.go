package main

import (
	"context"
	"time"

	"group_question_service/internal/infra/telegram"

	"github.com/spf13/cobra"
)

var runJobsTimeout time.Duration

var runJobsCmd = &cobra.Command{
	Use:   "run-jobs",
	Short: "Run weekly scheduling, the cycle lifecycle and digests once",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), runJobsTimeout)
		defer cancel()

		svc, err := buildServices(ctx, cfg, telegram.NoopNotifier{})
		if err != nil {
			return err
		}
		defer svc.Close()
		return svc.scheduler.RunOnce(ctx)
	},
}

func init() {
	runJobsCmd.Flags().DurationVar(&runJobsTimeout, "timeout", 10*time.Minute, "overall time limit")
}
