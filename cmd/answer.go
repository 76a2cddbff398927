package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/warpcall/internal/call"
	"github.com/BioHazard786/warpcall/internal/ui"
)

var (
	answerFlags   clientFlags
	answerReject  bool
	answerReply   string
	answerTimeout time.Duration
)

var answerCmd = &cobra.Command{
	Use:   "answer",
	Short: "Wait for a call and answer or reject it",
	Long: `Print this peer's id and wait for someone to call it. The call is
answered and the caller's greeting printed, or declined with --reject.

Examples:
  warpcall answer
  warpcall answer --reject
  warpcall answer --reply "hi from the other side" --timeout 5m`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cc, err := answerFlags.connect(cmd.Context())
		if err != nil {
			return err
		}
		defer cc.Close()

		fmt.Println(ui.IdentityView(cc.Handler.Roster.Me(), cc.Config.ServerURL))
		fmt.Println()

		ctx := cmd.Context()
		if answerTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, answerTimeout)
			defer cancel()
		}

		stopSpinner := ui.RunWaitingSpinner("Waiting for a call...")
		result, err := call.Answer(ctx, cc.Signal(), cc.Config, call.AnswerOptions{
			Reject: answerReject,
			Reply:  answerReply,
		}, nil)
		stopSpinner()
		if err != nil {
			return err
		}

		fmt.Println(ui.CallSummaryView(ui.CallSummary{
			Peer:     result.Peer,
			Rejected: result.Rejected,
			Text:     result.Text,
		}))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(answerCmd)

	answerFlags.register(answerCmd, true)
	answerCmd.Flags().BoolVar(&answerReject, "reject", false, "decline the incoming call")
	answerCmd.Flags().StringVar(&answerReply, "reply", "hello back", "reply sent to the caller's greeting")
	answerCmd.Flags().DurationVar(&answerTimeout, "timeout", 0, "stop waiting after this long (default no limit)")
}
