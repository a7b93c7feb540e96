package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aluiziolira/go-scrape-kym/config"
	"github.com/aluiziolira/go-scrape-kym/dispatch"
	"github.com/aluiziolira/go-scrape-kym/export"
	"github.com/aluiziolira/go-scrape-kym/models"
	"github.com/aluiziolira/go-scrape-kym/scraper"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, nil)
	stop()
	os.Exit(code)
}

// cli carries flag values and the process exit code for one invocation.
type cli struct {
	stdout    io.Writer
	stderr    io.Writer
	transport http.RoundTripper

	cfgFile      string
	timeout      int
	userAgent    string
	maxRetries   int
	verbose      bool
	metricsFile  string
	exportFile   string
	exportFormat string

	exitCode int
}

// run executes the command line and returns the process exit code. A non-nil transport
// replaces the network round tripper.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, transport http.RoundTripper) int {
	c := &cli{stdout: stdout, stderr: stderr, transport: transport}
	root := c.rootCmd()
	if args == nil {
		args = []string{}
	}
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return c.exitCode
}

func (c *cli) rootCmd() *cobra.Command {
	defaults := config.DefaultConfig()
	cmd := &cobra.Command{
		Use:   "kym <operation> [json-arguments]",
		Short: "Know Your Meme scraper for agent tool calls",
		Long: `kym runs one scraper operation and prints the result envelope as JSON.

Operations:
  list_newest  {"limit": 5}
  get_detail   {"url": "https://knowyourmeme.com/memes/doge"}

Run "kym tools" for the tool definitions.`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          c.runOperation,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&c.cfgFile, "config", "c", "", "config file path (default ./kym.yaml or ~/.kym/kym.yaml)")
	flags.IntVar(&c.timeout, "timeout", int(defaults.Timeout/time.Second), "request timeout in seconds")
	flags.StringVar(&c.userAgent, "user-agent", defaults.UserAgent, "User-Agent header")
	flags.IntVar(&c.maxRetries, "max-retries", defaults.MaxRetries, "retries for timeouts, connection errors and 5xx")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")
	flags.StringVar(&c.metricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit")
	flags.StringVar(&c.exportFile, "export", "", "also write list_newest entries to this file")
	flags.StringVar(&c.exportFormat, "export-format", defaults.ExportFormat, "export format: csv, json, or dual")

	cmd.AddCommand(c.toolsCmd())
	return cmd
}

func (c *cli) toolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "Print the operations as function-calling tool definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.printJSON(dispatch.ToolDefinitions())
		},
	}
}

func (c *cli) runOperation(cmd *cobra.Command, args []string) error {
	op := args[0]

	var opArgs map[string]any
	if len(args) == 2 {
		dec := json.NewDecoder(strings.NewReader(args[1]))
		dec.UseNumber()
		if err := dec.Decode(&opArgs); err != nil {
			return c.finish(dispatch.Fail(fmt.Errorf("invalid arguments: %w", err)))
		}
		if dec.More() {
			return c.finish(dispatch.Fail(fmt.Errorf("invalid arguments: trailing data after JSON object")))
		}
	}

	cfg, err := c.loadConfig(cmd)
	if err != nil {
		return c.finish(dispatch.Fail(err))
	}

	logger := newLogger(c.stderr, cfg.Verbose)
	metrics := scraper.NewMetrics()
	s, err := scraper.NewScraper(cfg, scraper.WithLogger(logger), scraper.WithMetrics(metrics))
	if err != nil {
		return c.finish(dispatch.Fail(err))
	}
	if c.transport != nil {
		s.SetTransport(c.transport)
	}

	d := dispatch.New(s, dispatch.WithLogger(logger), dispatch.WithMetrics(metrics))
	logger.Debug("running operation", slog.String("operation", op), slog.String("base_url", s.BaseURL()))
	env := d.Dispatch(cmd.Context(), op, opArgs)

	if entries, ok := env.Data.([]models.Entry); ok && cfg.ExportFile != "" {
		if err := writeExport(cfg.ExportFormat, cfg.ExportFile, entries); err != nil {
			logger.Error("export failed", slog.String("path", cfg.ExportFile), slog.Any("error", err))
			c.exitCode = 1
		} else {
			logger.Info("exported entries", slog.String("path", cfg.ExportFile), slog.Int("entries", len(entries)))
		}
	}

	if cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			logger.Error("write metrics file", slog.String("path", cfg.MetricsFile), slog.Any("error", err))
		}
	}

	return c.finish(env)
}

// loadConfig layers flags that were set explicitly over config.Load.
func (c *cli) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(c.cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("timeout") {
		cfg.Timeout = time.Duration(c.timeout) * time.Second
	}
	if flags.Changed("user-agent") {
		cfg.UserAgent = c.userAgent
	}
	if flags.Changed("max-retries") {
		cfg.MaxRetries = c.maxRetries
	}
	cfg.Verbose = c.verbose
	cfg.MetricsFile = c.metricsFile
	cfg.ExportFile = c.exportFile
	cfg.ExportFormat = strings.ToLower(c.exportFormat)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *cli) finish(env dispatch.Envelope) error {
	if !env.Success {
		c.exitCode = 1
	}
	return c.printJSON(env)
}

func (c *cli) printJSON(v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err := c.stdout.Write(buf.Bytes())
	return err
}

func writeExport(format, path string, entries []models.Entry) error {
	w, err := export.NewWriter(format, path)
	if err != nil {
		return err
	}
	if err := w.Write(entries); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// newLogger writes to w, which is stderr outside tests, because stdout carries the envelope.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if f, ok := w.(*os.File); ok && isTerminal(f) {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
