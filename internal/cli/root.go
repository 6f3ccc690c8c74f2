package cli

import (
	"fmt"

	tea "charm.land/bubbletea/v2"
	"github.com/spf13/cobra"

	"github.com/plushhaven/chatkit/internal/chat"
	"github.com/plushhaven/chatkit/internal/ui"
)

// rootCmd runs the customer chat widget.
var rootCmd = &cobra.Command{
	Use:   "chatkit",
	Short: "Plush Haven support chat",
	Long: `Chatkit is the terminal chat widget for the Plush Haven storefront.

It opens your support conversation, sends messages optimistically, and
reconciles them against the realtime channel as the server confirms them.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := bootstrap()
		if err != nil {
			return err
		}
		defer func() { _ = rt.cleanup() }()

		// The widget keeps the channel for the whole process: acquire
		// here, release when the program exits.
		if err := rt.conn.Acquire(); err != nil {
			return fmt.Errorf("connect realtime channel: %w", err)
		}
		defer rt.conn.Release()

		rt.log.Info("chat widget starting",
			"version", Version,
			"actor_id", rt.self.ActorID,
			"server_url", rt.cfg.ServerURL,
		)

		sess := chat.NewSession(chat.SessionDeps{
			SelfID:    rt.self.ActorID,
			Resolver:  rt.client,
			History:   rt.client,
			Submitter: rt.client,
			Rooms:     rt.conn,
			Logger:    rt.log,
		})
		defer func() { _ = sess.Close() }()

		model := ui.NewWidget(sess, rt.conn.Events())
		final, err := tea.NewProgram(model).Run()
		if err != nil {
			return fmt.Errorf("run widget: %w", err)
		}
		if m, ok := final.(ui.WidgetModel); ok {
			return m.Err()
		}
		return nil
	},
}

// Execute runs the customer widget CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	addClientFlags(rootCmd)
}

func addClientFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&flagServer, "server", "", "storefront API base URL")
	cmd.PersistentFlags().StringVar(&flagToken, "token", "", "session credential")
	cmd.PersistentFlags().StringVar(&flagTokenFile, "token-file", "", "file holding the session credential")
	cmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level (debug, info, warn, error)")
}
