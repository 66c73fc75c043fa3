package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"scent-memory-network/internal/application/queries"
	"scent-memory-network/internal/clock"
	"scent-memory-network/internal/memories"
	"scent-memory-network/internal/notify"
	"scent-memory-network/internal/view"
)

func inspectCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect FILE",
		Short: "Build the network from a JSON memory list (- reads stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			svc, err := opts.service(memories.NewStaticSource(nil), opts.logger())
			if err != nil {
				return err
			}
			result, err := svc.Inspect(cmd.Context(), &queries.InspectQuery{Body: body, Legend: opts.legend})
			if err != nil {
				return err
			}
			return opts.render(cmd.OutOrStdout(), result)
		},
	}
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func fetchCmd(opts *options) *cobra.Command {
	var (
		api     string
		token   string
		user    string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Build the network from the memories API",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := opts.logger()
			client, err := memories.NewClient(memories.ClientConfig{BaseURL: api, Timeout: timeout}, nil, logger)
			if err != nil {
				return err
			}
			svc, err := opts.service(client, logger)
			if err != nil {
				return err
			}
			result, err := svc.GetNetwork(cmd.Context(), &queries.GetNetworkQuery{UserID: user, Token: token, Legend: opts.legend})
			if err != nil {
				return err
			}
			return opts.render(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVar(&api, "api", envOr("MEMORIES_API_URL", "http://localhost:8000"), "memories API base URL")
	cmd.Flags().StringVar(&token, "token", os.Getenv("MEMNET_TOKEN"), "bearer token")
	cmd.Flags().StringVar(&user, "user", "", "user the token belongs to")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")
	return cmd
}

func watchCmd(opts *options) *cobra.Command {
	var (
		ws    string
		user  string
		delay time.Duration
		api   string
		token string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow memory processing notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			endpoint, err := notify.EndpointFor(ws, user)
			if err != nil {
				return err
			}
			logger := opts.logger()

			var svc *queries.NetworkQueryService
			if api != "" {
				client, err := memories.NewClient(memories.ClientConfig{BaseURL: api}, nil, logger)
				if err != nil {
					return err
				}
				if svc, err = opts.service(client, logger); err != nil {
					return err
				}
			}

			w := &watcher{
				out:   cmd.OutOrStdout(),
				theme: view.DefaultTheme(),
				svc:   svc,
				user:  user,
				token: token,
			}
			client := notify.NewClient(notify.Config{URL: endpoint, ReconnectDelay: delay}, notify.WebsocketDialer{}, clock.Real{}, logger)
			client.OnStateChange(w.stateChanged)
			client.OnEvent(func(e notify.Event) { w.event(cmd.Context(), e) })

			subtle.Fprintf(w.out, "Watching %s\n", endpoint)
			if err := client.Run(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&ws, "ws", envOr("NOTIFY_WS_URL", "ws://localhost:8000"), "notification service base URL")
	cmd.Flags().StringVar(&user, "user", "", "user whose notifications to follow")
	cmd.Flags().DurationVar(&delay, "delay", notify.DefaultReconnectDelay, "reconnect delay")
	cmd.Flags().StringVar(&api, "api", "", "memories API to refetch from after each event")
	cmd.Flags().StringVar(&token, "token", os.Getenv("MEMNET_TOKEN"), "bearer token for --api")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// watcher prints notification activity.
type watcher struct {
	out   io.Writer
	theme *view.Theme
	svc   *queries.NetworkQueryService
	user  string
	token string
}

func (w *watcher) stateChanged(from, to notify.Status) {
	switch to.State {
	case notify.StateConnected:
		good.Fprintln(w.out, "● connected")
	case notify.StateReconnecting:
		warn.Fprintf(w.out, "● reconnecting (attempt %d)\n", to.Attempt)
	default:
		subtle.Fprintln(w.out, "● disconnected")
	}
}

func (w *watcher) event(ctx context.Context, e notify.Event) {
	if e.Event == notify.EventMemoryFailed {
		bad.Fprintf(w.out, "%s %s\n", w.theme.Toasts.MemoryFailed, subtle.Sprint(e.MemoryID))
	} else {
		good.Fprintf(w.out, "%s %s\n", w.theme.Toasts.MemoryProcessed, subtle.Sprint(e.MemoryID))
	}

	if w.svc == nil {
		return
	}
	result, err := w.svc.GetNetwork(ctx, &queries.GetNetworkQuery{UserID: w.user, Token: w.token})
	if err != nil {
		bad.Fprintf(w.out, "  refresh failed: %v\n", err)
		return
	}
	fmt.Fprintf(w.out, "  %s: %d nodes, %d connections\n", result.State, result.Stats.NodeCount, result.Stats.EdgeCount)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
