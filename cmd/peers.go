package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/warpcall/internal/ui"
)

var (
	peersFlags  clientFlags
	peersFormat string
)

var peersCmd = &cobra.Command{
	Use:     "peers",
	Aliases: []string{"ls"},
	Short:   "List the peers currently online",
	Long: `Connect to the signaling server, print the id it assigns and the peers
already online, then disconnect.

Examples:
  warpcall peers
  warpcall peers --server wss://relay.example/ws --format csv`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := ui.ParseFormat(peersFormat)
		if err != nil {
			return err
		}

		cc, err := peersFlags.connect(cmd.Context())
		if err != nil {
			return err
		}
		defer cc.Close()

		me := cc.Handler.Roster.Me()
		peers := ui.NewPeerTable(cc.Handler.Roster.Peers())

		if format != ui.FormatTable {
			fmt.Println(peers.Render(format))
			return nil
		}

		fmt.Println(ui.IdentityView(me, cc.Config.ServerURL))
		fmt.Println()
		fmt.Println(peers.View())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(peersCmd)

	peersFlags.register(peersCmd, false)
	peersCmd.Flags().StringVarP(&peersFormat, "format", "f", string(ui.FormatTable), "output format: table, markdown, csv or plain")
}
