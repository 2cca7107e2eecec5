package main

import (
	"fmt"
	"strconv"

	"group_question_service/internal/app"
	"group_question_service/internal/infra/token"

	"github.com/spf13/cobra"
)

var signTokenCmd = &cobra.Command{
	Use:   "sign-token <question-record-id>",
	Short: "Print the signed reply address of a question record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		recordID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("question record id must be a number: %w", err)
		}
		signer, err := token.NewSigner(cfg.ReplyTokenSecret)
		if err != nil {
			return err
		}
		tok, err := signer.Sign(recordID)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		fmt.Fprintln(cmd.OutOrStdout(), app.ReplyAddress(tok, cfg.ReplyDomain))
		return nil
	},
}
