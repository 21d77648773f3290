package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/tgolabs/chatkit/internal/store"
	"github.com/tgolabs/chatkit/internal/transport"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration and platform reachability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.close()

			fmt.Printf("config:   %s\n", paths.Config)
			fmt.Printf("api base: %s\n", a.cfg.APIBase)

			sess := store.NewVisitorStore(a.db).Get(a.cfg.APIBase, a.cfg.PlatformAPIKey)
			if sess == nil {
				fmt.Println("session:  not registered")
				return nil
			}
			fmt.Printf("session:  %s\n", sess.VisitorID)

			// Reachability: resolve the transport endpoint for this visitor.
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			route, err := a.client.Route(ctx, sess.UID())
			if err != nil {
				fmt.Printf("route:    unavailable (%v)\n", err)
				return nil
			}
			addr, err := transport.ResolveWSAddr(route, a.cfg.Transport.PreferSecure)
			if err != nil {
				fmt.Printf("route:    %v\n", err)
				return nil
			}
			fmt.Printf("route:    %s\n", addr)
			return nil
		},
	}
}
