package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tgolabs/chatkit/internal/store"
)

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect and manage the cached visitor session",
	}

	cmd.AddCommand(newSessionInfoCmd())
	cmd.AddCommand(newSessionRegisterCmd())
	cmd.AddCommand(newSessionResetCmd())

	return cmd
}

func newSessionInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the cached visitor session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.close()

			sess := store.NewVisitorStore(a.db).Get(a.cfg.APIBase, a.cfg.PlatformAPIKey)
			if sess == nil {
				fmt.Println("no cached session; run `chatkit session register`")
				return nil
			}

			fmt.Printf("visitor:  %s\n", sess.VisitorID)
			fmt.Printf("uid:      %s\n", sess.UID())
			fmt.Printf("channel:  %s (type %d)\n", sess.ChannelID, sess.ChannelType)
			fmt.Printf("project:  %s\n", sess.ProjectID)
			fmt.Printf("token:    %v\n", sess.IMToken != "")
			if !sess.ExpiresAt.IsZero() {
				fmt.Printf("expires:  %s\n", sess.ExpiresAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
}

func newSessionRegisterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Register the visitor (or confirm the cached session)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := a.engine.Init(ctx); err != nil {
				return err
			}
			fmt.Println("session ready")
			return nil
		},
	}
}

func newSessionResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Drop the cached session so the next run registers fresh",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.close()

			if err := store.NewVisitorStore(a.db).Delete(a.cfg.APIBase, a.cfg.PlatformAPIKey); err != nil {
				return err
			}
			fmt.Println("session cleared")
			return nil
		},
	}
}
