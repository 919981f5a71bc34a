// Package cli implements the dmi command line: offline extraction, training,
// prediction and evaluation over corpus files, plus corpus and schema
// maintenance.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"

	"github.com/turtacn/DataMention-Intelligence/internal/bootstrap"
	"github.com/turtacn/DataMention-Intelligence/internal/config"
	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DataMention-Intelligence/pkg/errors"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// cliContextKey is the context key for CLIContext.
type cliContextKey struct{}

// RootOptions holds global CLI flags.
type RootOptions struct {
	ConfigPath   string
	LogLevel     string
	OutputFormat string
	Verbose      bool
	Timeout      time.Duration
}

// CLIContext carries initialized dependencies through the command tree.
type CLIContext struct {
	Config       *config.Config
	Logger       logging.Logger
	OutputFormat string
	Verbose      bool
	Timeout      time.Duration

	services ServiceFactory
}

// ServiceFactory builds the application services a command runs against.
// The returned func releases them.
type ServiceFactory func(ctx context.Context, cfg *config.Config, logger logging.Logger) (*bootstrap.Services, func(), error)

// DefaultServiceFactory connects the backends enabled in cfg.
func DefaultServiceFactory(ctx context.Context, cfg *config.Config, logger logging.Logger) (*bootstrap.Services, func(), error) {
	infra, err := bootstrap.NewInfrastructure(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	svc, err := bootstrap.NewServices(ctx, cfg, infra, logger, bootstrap.WithSource("cli"))
	if err != nil {
		infra.Close()
		return nil, nil, err
	}
	return svc, infra.Close, nil
}

// NewRootCommand creates the root command. A nil factory uses
// DefaultServiceFactory.
func NewRootCommand(factory ServiceFactory) *cobra.Command {
	if factory == nil {
		factory = DefaultServiceFactory
	}
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "dmi",
		Short: "DataMention-Intelligence CLI: find the datasets a publication uses",
		Long: "dmi extracts dataset-mention snippets from publications with a lexicon,\n" +
			"learns a co-occurrence model from an annotated corpus, ranks candidate\n" +
			"datasets for new publications and evaluates the rankings.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return persistentPreRun(cmd, opts, factory)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (default: ./dmi.yaml, ~/.dmi/config.yaml, /etc/dmi/config.yaml)")
	pf.StringVar(&opts.LogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.StringVarP(&opts.OutputFormat, "output", "o", "text", "output format (text, json, table)")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "enable verbose output")
	pf.DurationVar(&opts.Timeout, "timeout", 0, "overall operation timeout (0 disables it)")

	cmd.AddCommand(
		newExtractCmd(),
		newTrainCmd(),
		newPredictCmd(),
		newEvaluateCmd(),
		newCorpusCmd(),
		newModelCmd(),
		newMigrateCmd(),
		newVersionCmd(),
	)
	return cmd
}

// persistentPreRun loads config and logger, then stores the CLIContext.
func persistentPreRun(cmd *cobra.Command, opts *RootOptions, factory ServiceFactory) error {
	switch strings.ToLower(opts.OutputFormat) {
	case "text", "json", "table":
	default:
		return errors.NewInvalidInput(fmt.Sprintf("unknown output format %q", opts.OutputFormat))
	}

	cfg, err := initConfig(cmd, opts)
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}
	logger, err := initLogger(opts)
	if err != nil {
		return fmt.Errorf("logger initialization failed: %w", err)
	}

	cliCtx := &CLIContext{
		Config:       cfg,
		Logger:       logger,
		OutputFormat: strings.ToLower(opts.OutputFormat),
		Verbose:      opts.Verbose,
		Timeout:      opts.Timeout,
		services:     factory,
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, cliContextKey{}, cliCtx))
	return nil
}

// configSearchPaths lists the default config locations in priority order.
func configSearchPaths() []string {
	paths := []string{"./dmi.yaml"}
	if home, err := homedir.Dir(); err == nil {
		paths = append(paths, filepath.Join(home, ".dmi", "config.yaml"))
	}
	return append(paths, "/etc/dmi/config.yaml")
}

// initConfig loads configuration with priority: flags > env > file > defaults.
func initConfig(cmd *cobra.Command, opts *RootOptions) (*config.Config, error) {
	if opts.ConfigPath != "" {
		path, err := homedir.Expand(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
		return config.Load(path)
	}
	for _, p := range configSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return config.Load(p)
		}
	}
	if opts.Verbose {
		fmt.Fprintln(cmd.ErrOrStderr(), "Warning: no config file found, using defaults and DMI_* environment")
	}
	return config.LoadFromEnv()
}

// initLogger creates a console logger on stderr so stdout carries results only.
func initLogger(opts *RootOptions) (logging.Logger, error) {
	level := strings.ToLower(opts.LogLevel)
	switch level {
	case "debug", "info", "warn", "error":
	default:
		level = "info"
	}
	if opts.Verbose {
		level = "debug"
	}
	return logging.NewLogger(logging.LogConfig{
		Level:            level,
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
}

// GetCLIContext extracts CLIContext from a cobra command's context.
func GetCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	ctx := cmd.Context()
	if ctx == nil {
		return nil, errors.NewInvalidInput("command context is nil")
	}
	cliCtx, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok || cliCtx == nil {
		return nil, errors.NewInvalidInput("CLIContext not found in command context")
	}
	return cliCtx, nil
}

// operationContext applies the --timeout flag to the command context.
func (c *CLIContext) operationContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	if c.Timeout > 0 {
		return context.WithTimeout(cmd.Context(), c.Timeout)
	}
	return context.WithCancel(cmd.Context())
}

// Services builds the application services for one command run.
func (c *CLIContext) Services(ctx context.Context) (*bootstrap.Services, func(), error) {
	return c.services(ctx, c.Config, c.Logger)
}

// Execute is the main entry point for the CLI application.
func Execute() error {
	rootCmd := NewRootCommand(nil)
	if err := rootCmd.Execute(); err != nil {
		PrintError(rootCmd, err)
		return err
	}
	return nil
}

// tableProvider is implemented by results that render as a table.
type tableProvider interface {
	TableHeaders() []string
	TableRows() [][]string
}

// PrintResult outputs data in the format specified by CLIContext.
func PrintResult(cmd *cobra.Command, data any) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return printJSON(cmd, data)
	}
	switch cliCtx.OutputFormat {
	case "json":
		return printJSON(cmd, data)
	case "table":
		return printTable(cmd, data)
	default:
		return printText(cmd, data)
	}
}

func printJSON(cmd *cobra.Command, data any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func printText(cmd *cobra.Command, data any) error {
	switch v := data.(type) {
	case string:
		fmt.Fprintln(cmd.OutOrStdout(), v)
	case fmt.Stringer:
		fmt.Fprintln(cmd.OutOrStdout(), v.String())
	case tableProvider:
		fmt.Fprint(cmd.OutOrStdout(), FormatTable(v.TableHeaders(), v.TableRows()))
	default:
		fmt.Fprintf(cmd.OutOrStdout(), "%+v\n", v)
	}
	return nil
}

// printTable falls back to text for data without a table form.
func printTable(cmd *cobra.Command, data any) error {
	if tp, ok := data.(tableProvider); ok {
		fmt.Fprint(cmd.OutOrStdout(), FormatTable(tp.TableHeaders(), tp.TableRows()))
		return nil
	}
	return printText(cmd, data)
}

// PrintError writes a formatted error message to stderr.
func PrintError(cmd *cobra.Command, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", err.Error())
}

// PrintSuccess writes a formatted success message to stdout.
func PrintSuccess(cmd *cobra.Command, msg string) {
	fmt.Fprintf(cmd.OutOrStdout(), "OK: %s\n", msg)
}

// FormatTable renders headers and rows as an aligned ASCII table.
func FormatTable(headers []string, rows [][]string) string {
	if len(headers) == 0 {
		return ""
	}

	colWidths := make([]int, len(headers))
	for i, h := range headers {
		colWidths[i] = len(h)
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(colWidths); i++ {
			if len(row[i]) > colWidths[i] {
				colWidths[i] = len(row[i])
			}
		}
	}

	var sb strings.Builder
	writeRow := func(cells []string) {
		for i := range headers {
			if i > 0 {
				sb.WriteString("  ")
			}
			val := ""
			if i < len(cells) {
				val = cells[i]
			}
			if i == len(headers)-1 {
				sb.WriteString(val)
			} else {
				sb.WriteString(padRight(val, colWidths[i]))
			}
		}
		sb.WriteString("\n")
	}

	writeRow(headers)
	sep := make([]string, len(colWidths))
	for i, w := range colWidths {
		sep[i] = strings.Repeat("-", w)
	}
	writeRow(sep)
	for _, row := range rows {
		writeRow(row)
	}
	return sb.String()
}

// padRight pads s with spaces to the given width.
func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
