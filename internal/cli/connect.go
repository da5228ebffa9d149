package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/starcore/internal/action"
	"github.com/roach88/starcore/internal/client"
	"github.com/roach88/starcore/internal/config"
	"github.com/roach88/starcore/internal/engine"
	"github.com/roach88/starcore/internal/schema"
	"github.com/roach88/starcore/internal/wire"
)

// ConnectOptions holds flags for the connect command. Flags left unset fall
// back to the STARCORE_* environment.
type ConnectOptions struct {
	*RootOptions
	URL        string
	ClientType string
	MaxBackoff time.Duration
	SchemasDir string
	Open       []string
	Ping       string
}

// NewConnectCommand creates the connect command.
func NewConnectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConnectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Join a hub as a participant",
		Long: `Join a hub, replicate its containers and log every update
and server command until interrupted. The connection is re-established
with exponential backoff when it drops. Containers declared in the hub's
--schemas directory are replicated when the same directory is given here.

Environment:
  STARCORE_URL, STARCORE_CLIENT_TYPE, STARCORE_MAX_BACKOFF, STARCORE_SCHEMAS

Examples:
  starcore connect --url ws://localhost:8080/hub
  starcore connect --client-type mobile --open TestProtocol --ping hello`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadClient()
			if err != nil {
				return WrapExitError(ExitCommandError, "load configuration", err)
			}
			opts.overlay(cmd, &cfg)
			return runConnect(cmd, opts, cfg)
		},
	}

	cmd.Flags().StringVar(&opts.URL, "url", "", "hub websocket URL (default ws://localhost:8080/hub)")
	cmd.Flags().StringVar(&opts.ClientType, "client-type", "", "announced client type: browser, desktop or mobile (default desktop)")
	cmd.Flags().DurationVar(&opts.MaxBackoff, "max-backoff", 0, "upper bound of the reconnect delay (default 30s)")
	cmd.Flags().StringVar(&opts.SchemasDir, "schemas", "", "directory of CUE container declarations shared with the hub")
	cmd.Flags().StringSliceVar(&opts.Open, "open", nil, "open an instance of this module once synchronised (repeatable)")
	cmd.Flags().StringVar(&opts.Ping, "ping", "", "send a ping with this message once synchronised")

	return cmd
}

func (o *ConnectOptions) overlay(cmd *cobra.Command, cfg *config.Client) {
	flags := cmd.Flags()
	if flags.Changed("url") {
		cfg.URL = o.URL
	}
	if flags.Changed("client-type") {
		cfg.ClientType = o.ClientType
	}
	if flags.Changed("max-backoff") {
		cfg.MaxBackoff = o.MaxBackoff
	}
	if flags.Changed("schemas") {
		cfg.SchemasDir = o.SchemasDir
	}
}

func runConnect(cmd *cobra.Command, opts *ConnectOptions, cfg config.Client) error {
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	ct, err := wire.ParseClientType(cfg.ClientType)
	if err != nil {
		return WrapExitError(ExitCommandError, "client type", err)
	}
	reg, err := loadSchemas(cfg.SchemasDir)
	if err != nil {
		return err
	}
	c, err := client.New(cfg.URL,
		client.WithClientType(ct),
		client.WithSchemas(reg),
		client.WithLogger(logger),
		client.WithBackoff(500*time.Millisecond, cfg.MaxBackoff),
	)
	if err != nil {
		return WrapExitError(ExitCommandError, "create client", err)
	}

	// Requests go out once, after the first snapshot of the shared container.
	var once sync.Once
	c.OnUpdated(func(u engine.Updated) {
		logger.Info("updated", "container", u.Container, "kind", u.Action.Kind())
		if u.Container != schema.ReplicatedContainer || u.Action.Kind() != action.KindPost {
			return
		}
		// Handlers run with the client lock held; commands take it too.
		once.Do(func() { go sendRequests(c, opts, logger) })
	})
	c.OnCommand(func(command wire.Command) {
		switch command.Name {
		case wire.CmdNotification:
			logger.Info("notification", "title", command.Title, "body", command.Body)
		case wire.CmdPong:
			logger.Info("pong", "message", command.Message)
		}
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "connect", err)
	}
	return nil
}

func sendRequests(c *client.Client, opts *ConnectOptions, logger *slog.Logger) {
	for _, module := range opts.Open {
		if err := c.Open(module); err != nil {
			logger.Warn("open failed", "module", module, "error", err)
		}
	}
	if opts.Ping != "" {
		if err := c.Ping(opts.Ping); err != nil {
			logger.Warn("ping failed", "error", err)
		}
	}
}
