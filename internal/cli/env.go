package cli

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/shopcart/internal/api"
	"github.com/roach88/shopcart/internal/cart"
	"github.com/roach88/shopcart/internal/config"
)

// configEnv names the variable consulted when --config is not given.
const configEnv = config.EnvPrefix + "CONFIG"

// env is the per-invocation wiring: config, logger, backend client and,
// once openCart is called, the persisted cart and selection.
type env struct {
	cfg    config.Config
	out    *OutputFormatter
	logger *slog.Logger
	client *api.Client

	stores    *config.Stores
	cart      *cart.Store
	selection *cart.Selection
}

// newEnv loads and validates the config, then builds the logger and the
// backend client. Errors are reported on the command's output.
func newEnv(cmd *cobra.Command, opts *RootOptions) (*env, error) {
	out := newFormatter(cmd, opts)

	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, out.CommandFail(ErrCodeConfig, "failed to load config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, out.CommandFail(ErrCodeConfig, "invalid config", err)
	}

	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)
	client := api.New(cfg.BaseURL,
		api.WithTimeout(cfg.RequestTimeout),
		api.WithLogger(logger),
	)

	return &env{cfg: cfg, out: out, logger: logger, client: client}, nil
}

// openCart opens the configured storage and the cart and selection on top
// of it. With --verbose every cart change is logged with the new badge count.
func (e *env) openCart(cmd *cobra.Command) error {
	stores, err := e.cfg.Storage.Open(cmd.Context(), e.logger)
	if err != nil {
		return e.out.CommandFail(ErrCodeStorage, "failed to open cart storage", err)
	}
	e.stores = stores

	e.cart = cart.NewStore(stores.Cart,
		cart.WithKey(e.cfg.Storage.CartKey),
		cart.WithLogger(e.logger),
	)
	e.selection = cart.NewSelection(stores.Selection,
		cart.WithSelectionKey(e.cfg.Storage.SelectionKey),
		cart.WithSelectionLogger(e.logger),
	)

	if e.out.Verbose {
		e.cart.Subscribe(badgeObserver(e.logger))
	}
	return nil
}

// Close releases the storage, if it was opened.
func (e *env) Close() {
	if e.stores == nil {
		return
	}
	if err := e.stores.Close(); err != nil {
		e.logger.Error("error closing cart storage", "error", err)
	}
}

// badgeObserver logs the cart badge after every change.
func badgeObserver(logger *slog.Logger) cart.Observer {
	return func(c cart.Cart) {
		logger.Info("cart updated",
			"badge", c.TotalQuantity(),
			"lines", len(c),
			"total", c.TotalPrice().String(),
		)
	}
}

// loadConfig resolves the config file from --config or $SHOPCART_CONFIG,
// loads it with environment overrides and applies flag overrides last.
func loadConfig(opts *RootOptions) (config.Config, error) {
	path := opts.ConfigPath
	if path == "" {
		path = os.Getenv(configEnv)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}

	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	return cfg, nil
}

func newFormatter(cmd *cobra.Command, opts *RootOptions) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// newLogger returns a text logger on w at Info, or Debug when verbose.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	}))
}
