package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/starcore/internal/compiler"
	"github.com/roach88/starcore/internal/config"
	"github.com/roach88/starcore/internal/hub"
	"github.com/roach88/starcore/internal/instance"
	"github.com/roach88/starcore/internal/ir"
	"github.com/roach88/starcore/internal/metrics"
	"github.com/roach88/starcore/internal/schema"
	"github.com/roach88/starcore/internal/store"
)

const shutdownTimeout = 10 * time.Second

// ServeOptions holds flags for the serve command. Flags left unset fall
// back to the STARCORE_* environment.
type ServeOptions struct {
	*RootOptions
	Addr               string
	DBPath             string
	SchemasDir         string
	CheckpointInterval time.Duration
	Modules            []string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the replication hub",
		Long: `Run the hub: websocket participants at /hub, liveness at /,
Prometheus metrics at /metrics.

Shared containers are the built-in ReplicatedContainer plus every
container declared in --schemas. With --db they are restored on start
and checkpointed on an interval and at shutdown.

Modules are declared as Name or Name:system / Name:protocol.

Environment:
  STARCORE_ADDR, STARCORE_DB, STARCORE_SCHEMAS,
  STARCORE_CHECKPOINT_INTERVAL, STARCORE_MODULES`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadServer()
			if err != nil {
				return WrapExitError(ExitCommandError, "load configuration", err)
			}
			opts.overlay(cmd, &cfg)
			return runServe(cmd, opts.RootOptions, cfg)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default :8080)")
	cmd.Flags().StringVar(&opts.DBPath, "db", "", "checkpoint database path")
	cmd.Flags().StringVar(&opts.SchemasDir, "schemas", "", "directory of CUE container schemas")
	cmd.Flags().DurationVar(&opts.CheckpointInterval, "checkpoint-interval", 0, "checkpoint interval, 0 disables periodic checkpoints (default 30s)")
	cmd.Flags().StringSliceVar(&opts.Modules, "module", nil, "declare a module (repeatable)")

	return cmd
}

// overlay copies the flags set on the command line into cfg.
func (o *ServeOptions) overlay(cmd *cobra.Command, cfg *config.Server) {
	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Addr = o.Addr
	}
	if flags.Changed("db") {
		cfg.DBPath = o.DBPath
	}
	if flags.Changed("schemas") {
		cfg.SchemasDir = o.SchemasDir
	}
	if flags.Changed("checkpoint-interval") {
		cfg.CheckpointInterval = o.CheckpointInterval
	}
	if flags.Changed("module") {
		cfg.Modules = o.Modules
	}
}

func runServe(cmd *cobra.Command, opts *RootOptions, cfg config.Server) error {
	logger := newLogger(opts, cmd.ErrOrStderr())

	modules, err := parseModules(cfg.Modules)
	if err != nil {
		return WrapExitError(ExitCommandError, "parse modules", err)
	}

	reg, err := loadSchemas(cfg.SchemasDir)
	if err != nil {
		return err
	}

	hubOpts := []hub.Option{
		hub.WithSchemas(reg),
		hub.WithModules(modules...),
		hub.WithLogger(logger),
	}
	if cfg.DBPath != "" {
		st, err := store.Open(cfg.DBPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "open database", err)
		}
		defer st.Close()
		hubOpts = append(hubOpts, hub.WithStore(st, cfg.CheckpointInterval))
	}

	h, err := hub.New(hubOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "create hub", err)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h.Handler(metrics.NewRegistry()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, h, srv, logger)
}

// serve runs the hub loop and the HTTP server until ctx is cancelled or
// either of them fails, then stops both.
func serve(ctx context.Context, h *hub.Hub, srv *http.Server, logger *slog.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := h.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("hub: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return WrapExitError(ExitFailure, "serve", err)
	}
	logger.Info("stopped")
	return nil
}

// loadSchemas returns the built-in registry extended with the containers
// declared in dir. An empty dir yields the built-ins only.
func loadSchemas(dir string) (*schema.Registry, error) {
	reg := schema.Builtin()
	if dir == "" {
		return reg, nil
	}

	result, errs := compiler.LoadDir(dir, compiler.LoadModeFailFast)
	if len(errs) > 0 {
		return nil, WrapExitError(ExitCommandError, "load schemas", errs[0])
	}
	if err := compiler.Register(reg, result.Schemas); err != nil {
		return nil, WrapExitError(ExitCommandError, "register schemas", err)
	}
	return reg, nil
}

// parseModules reads module declarations of the form Name[:system|protocol].
// The type defaults to protocol.
func parseModules(specs []string) ([]ir.ModuleData, error) {
	mods := make([]ir.ModuleData, 0, len(specs))
	seen := make(map[string]bool, len(specs))
	for _, s := range specs {
		name, typ, hasType := strings.Cut(strings.TrimSpace(s), ":")
		if name == "" {
			return nil, fmt.Errorf("module %q: name is required", s)
		}
		if seen[name] {
			return nil, fmt.Errorf("module %q declared twice", name)
		}
		seen[name] = true

		moduleType := ir.ModuleProtocol
		if hasType {
			switch ir.ModuleType(typ) {
			case ir.ModuleSystem, ir.ModuleProtocol:
				moduleType = ir.ModuleType(typ)
			default:
				return nil, fmt.Errorf("module %q: unknown type %q (want system or protocol)", name, typ)
			}
		}
		mods = append(mods, instance.Declare(name, moduleType))
	}
	return mods, nil
}
