package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/shopcart/internal/config"
)

// ValidationResult holds config validation results.
type ValidationResult struct {
	Valid  bool                     `json:"valid"`
	Path   string                   `json:"path,omitempty"`
	Errors []config.ValidationError `json:"errors,omitempty"`
}

// NewConfigCommand creates the config command group.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a config file",
		Long: `Validate a config file against the config schema.

Without a file, validates the file named by --config or $SHOPCART_CONFIG,
or the built-in defaults. Environment overrides are applied first.`,
		Args: usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := *rootOpts
			if len(args) == 1 {
				opts.ConfigPath = args[0]
			}
			return runConfigValidate(&opts, cmd)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(rootOpts, cmd)
		},
	})

	return cmd
}

func runConfigValidate(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts)

	path := opts.ConfigPath
	if path == "" {
		path = os.Getenv(configEnv)
	}
	formatter.VerboseLog("Validating %s", describePath(path))

	cfg, err := loadConfig(opts)
	if err != nil {
		return formatter.CommandFail(ErrCodeConfig, "failed to load config", err)
	}

	if err := cfg.Validate(); err != nil {
		var verrs config.ValidationErrors
		if !errors.As(err, &verrs) {
			return formatter.CommandFail(ErrCodeConfig, "failed to validate config", err)
		}
		return outputValidationErrors(formatter, path, verrs)
	}

	if formatter.JSON() {
		return formatter.Success(ValidationResult{Valid: true, Path: path})
	}
	fmt.Fprintf(formatter.Writer, "✓ %s is valid\n", describePath(path))
	return nil
}

// outputValidationErrors outputs every schema violation.
func outputValidationErrors(formatter *OutputFormatter, path string, errs config.ValidationErrors) error {
	if formatter.JSON() {
		response := CLIResponse{
			Status: "error",
			Data: ValidationResult{
				Valid:  false,
				Path:   path,
				Errors: errs,
			},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1 (test/validation failure)
		return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("validation failed with %d error(s)", len(errs)), Reported: true}
	}

	// Text format
	fmt.Fprintf(formatter.Writer, "✗ %s is invalid\n", describePath(path))
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		fmt.Fprintf(formatter.Writer, "  %s %s: %s\n", err.Code, err.Field, err.Message)
	}

	// Validation failures = exit code 1 (test/validation failure)
	return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("validation failed with %d error(s)", len(errs)), Reported: true}
}

func runConfigShow(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts)

	cfg, err := loadConfig(opts)
	if err != nil {
		return formatter.CommandFail(ErrCodeConfig, "failed to load config", err)
	}

	if formatter.JSON() {
		return formatter.Success(configView(cfg))
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return formatter.CommandFail(ErrCodeGeneric, "failed to encode config", err)
	}
	_, err = formatter.Writer.Write(data)
	return err
}

// configView renders durations as strings for JSON output.
func configView(cfg config.Config) map[string]any {
	return map[string]any{
		"base_url":           cfg.BaseURL,
		"request_timeout":    cfg.RequestTimeout.String(),
		"contract":           cfg.Contract,
		"provider":           cfg.Provider,
		"idempotency_header": cfg.IdempotencyHeader,
		"storage": map[string]any{
			"driver":        cfg.Storage.Driver,
			"path":          cfg.Storage.Path,
			"redis_addr":    cfg.Storage.RedisAddr,
			"redis_prefix":  cfg.Storage.RedisPrefix,
			"cart_key":      cfg.Storage.CartKey,
			"selection_key": cfg.Storage.SelectionKey,
			"selection_ttl": cfg.Storage.SelectionTTL.String(),
		},
	}
}

func describePath(path string) string {
	if path == "" {
		return "default config"
	}
	return path
}
