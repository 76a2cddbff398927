package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/warpcall/internal/call"
	"github.com/BioHazard786/warpcall/internal/client"
	"github.com/BioHazard786/warpcall/internal/signaling"
	"github.com/BioHazard786/warpcall/internal/ui"
)

var (
	callFlags   clientFlags
	callMessage string
	callTimeout time.Duration
)

var callCmd = &cobra.Command{
	Use:   "call <peer-id>",
	Short: "Call a peer and exchange a greeting",
	Long: `Offer a WebRTC call to another peer. Once the callee answers, a data
channel opens, the greeting is sent and the callee's reply is printed.

Examples:
  warpcall call 3f2b9c1e-7d4a-4c55-9a39-2d6f1b7e8a10
  warpcall call <peer-id> --message "are you there?" --timeout 1m`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		to := signaling.PeerID(args[0])

		cc, err := callFlags.connect(cmd.Context())
		if err != nil {
			return err
		}
		defer cc.Close()

		if to == cc.Handler.Roster.Me() {
			return client.NewPeerError("call", to, errors.New("cannot call yourself"))
		}
		if !cc.Handler.Roster.Contains(to) {
			ui.PrintWarning(fmt.Sprintf("%s is not in the online list, calling anyway", to))
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), callTimeout)
		defer cancel()

		stopSpinner := ui.RunWaitingSpinner(fmt.Sprintf("Calling %s...", to))
		result, err := call.Dial(ctx, cc.Signal(), cc.Config, to, callMessage, nil)
		stopSpinner()
		if err != nil {
			return err
		}

		fmt.Println(ui.CallSummaryView(ui.CallSummary{
			Peer:     result.Peer,
			Outgoing: true,
			Text:     result.Text,
			RTT:      result.RTT,
		}))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(callCmd)

	callFlags.register(callCmd, true)
	callCmd.Flags().StringVarP(&callMessage, "message", "m", "hello", "greeting sent once the call connects")
	callCmd.Flags().DurationVar(&callTimeout, "timeout", 30*time.Second, "give up if the call has not completed by then")
}
