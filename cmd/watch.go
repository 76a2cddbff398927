package cmd

import (
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/BioHazard786/warpcall/internal/client"
	"github.com/BioHazard786/warpcall/internal/ui"
)

var watchFlags clientFlags

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"w"},
	Short:   "Watch peers join and leave",
	Long: `Stay connected to the signaling server and show the online peers as
they join and leave. Press q to quit.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cc, err := watchFlags.connect(cmd.Context())
		if err != nil {
			return err
		}
		defer cc.Close()

		model := ui.NewWatchModel(cc.Config.ServerURL, cc.Handler.Presence, cc.Handler.Done)
		p := tea.NewProgram(model, tea.WithContext(cmd.Context()))
		if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return fmt.Errorf("watch view: %w", err)
		}

		if model.Disconnected() {
			return client.NewError("watch", client.ErrConnectionClosed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchFlags.register(watchCmd, false)
}
