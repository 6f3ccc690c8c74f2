package cli

import (
	"fmt"

	tea "charm.land/bubbletea/v2"
	"github.com/spf13/cobra"

	"github.com/plushhaven/chatkit/internal/chat"
	"github.com/plushhaven/chatkit/internal/identity"
	"github.com/plushhaven/chatkit/internal/ui"
)

// consoleCmd runs the operator console.
var consoleCmd = &cobra.Command{
	Use:   "chatkit-console",
	Short: "Plush Haven operator console",
	Long: `Chatkit-console is the terminal console for Plush Haven support
operators. It lists customer conversations and moves a single realtime
subscription between them as the operator switches rooms.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := bootstrap()
		if err != nil {
			return err
		}
		defer func() { _ = rt.cleanup() }()

		if rt.self.Role != identity.RoleOperator {
			return fmt.Errorf("credential has role %q, operator required", rt.self.Role)
		}

		// The console's channel lifetime is the console session itself.
		if err := rt.conn.Acquire(); err != nil {
			return fmt.Errorf("connect realtime channel: %w", err)
		}
		defer rt.conn.Release()

		rt.log.Info("operator console starting",
			"version", Version,
			"actor_id", rt.self.ActorID,
			"server_url", rt.cfg.ServerURL,
		)

		cons := chat.NewConsole(chat.ConsoleDeps{
			SelfID:    rt.self.ActorID,
			Lister:    rt.client,
			History:   rt.client,
			Submitter: rt.client,
			Rooms:     rt.conn,
			Logger:    rt.log,
		})
		defer func() { _ = cons.Close() }()

		model := ui.NewConsole(cons, rt.conn.Events(), rt.log)
		final, err := tea.NewProgram(model).Run()
		if err != nil {
			return fmt.Errorf("run console: %w", err)
		}
		if m, ok := final.(ui.ConsoleModel); ok {
			return m.Err()
		}
		return nil
	},
}

// ExecuteConsole runs the operator console CLI.
func ExecuteConsole() error {
	return consoleCmd.Execute()
}

func init() {
	addClientFlags(consoleCmd)
}
