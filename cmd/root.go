package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vedsharma/analyze-request/internal/binder"
	"github.com/vedsharma/analyze-request/internal/config"
	"github.com/vedsharma/analyze-request/internal/format"
	"github.com/vedsharma/analyze-request/internal/helpers"
	apihttp "github.com/vedsharma/analyze-request/internal/http"
	"github.com/vedsharma/analyze-request/internal/storage"
)

// errSilent makes the process exit non-zero after output was already printed
var errSilent = errors.New("silent")

// app holds state shared by every command of one invocation
type app struct {
	v          *viper.Viper
	configFile string
	cfg        *config.Config
	logger     *slog.Logger
}

// New returns the root command
func New() *cobra.Command {
	a := &app{v: viper.New(), logger: helpers.NewNoopLogger()}

	cmd := &cobra.Command{
		Use:   "analyze-request",
		Short: "Send HTTP requests and keep the ones worth keeping",
		Long: `analyze-request sends HTTP requests, shows the responses and saves
requests together with their last response.

Examples:
  analyze-request get https://api.example.com/users --save users
  analyze-request post https://api.example.com/users -d '{"name": "John"}'
  analyze-request saved list
  analyze-request saved run <id>
  analyze-request serve --port 5173`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&a.configFile, "config", "c", "", "path to the configuration file (default ~/.analyze-request/config.yaml)")
	flags.String("data-dir", "", "directory holding saved requests (default ~/.analyze-request)")
	flags.String("storage", "", "storage backend: json or sqlite (default json)")
	flags.CountP("verbosity", "V", "increase log verbosity (repeatable)")

	for key, flag := range map[string]string{
		"data_dir":      "data-dir",
		"storage":       "storage",
		"log.verbosity": "verbosity",
	} {
		if err := a.v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	cmd.AddCommand(requestCommands(a)...)
	cmd.AddCommand(
		cmdSaved(a),
		cmdServe(a),
		cmdConfig(a),
	)

	return cmd
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := New().ExecuteContext(ctx)
	stop()

	if err != nil {
		if !errors.Is(err, errSilent) {
			format.PrintError(os.Stderr, err.Error())
		}
		os.Exit(1)
	}
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.v, a.configFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	opts := &slog.HandlerOptions{
		Level: slog.LevelWarn - slog.Level(cfg.Log.Verbosity*4),
	}
	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(cmd.ErrOrStderr(), opts)
	} else {
		handler = slog.NewTextHandler(cmd.ErrOrStderr(), opts)
	}
	a.logger = slog.New(handler)

	return nil
}

// openStore opens the configured medium. The returned func releases it.
func (a *app) openStore() (*storage.Store, func(), error) {
	var (
		medium storage.Medium
		closer = func() {}
	)

	switch a.cfg.Storage {
	case config.StorageSQLite:
		db, err := storage.NewSQLiteMedium(a.cfg.DataDir, storage.GenerationKeys(a.cfg.App), a.logger.With("component", "sqlite"))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open storage: %w", err)
		}
		medium = db
		closer = func() {
			if err := db.Close(); err != nil {
				a.logger.Warn("failed to close database", slog.Any("error", err))
			}
		}
	default:
		files, err := storage.NewFileMedium(a.cfg.DataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open storage: %w", err)
		}
		medium = files
	}

	store := storage.NewStore(medium,
		storage.WithApp(a.cfg.App),
		storage.WithLogger(a.logger.With("component", "storage")),
	)
	return store, closer, nil
}

// executor picks the local client or a proxy server
func (a *app) executor(proxy string) binder.Executor {
	if proxy == "" {
		proxy = a.cfg.Proxy
	}
	if proxy != "" {
		return apihttp.NewRemoteExecutor(proxy, a.logger.With("component", "remote"))
	}
	return apihttp.NewClient(a.logger.With("component", "http"))
}

// notice prints recoverable binder errors and reports whether err was one
func notice(cmd *cobra.Command, err error) bool {
	if binder.IsStale(err) {
		format.PrintWarning(cmd.ErrOrStderr(), err.Error())
		return true
	}
	return false
}
