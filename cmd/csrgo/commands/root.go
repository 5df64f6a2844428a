// Package commands implements the csrgo command line.
package commands

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/natefinch/lumberjack"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/hupe1980/csrgo"
)

// Version is overwritten at build time with -ldflags.
var Version = "dev"

const envPrefix = "CSRGO"

// app is the state shared by all commands of one invocation.
type app struct {
	v        *viper.Viper
	logger   *csrgo.Logger
	tracer   trace.TracerProvider
	shutdown []func() error
}

// NewRootCmd builds the command tree. Every call returns an independent
// tree with its own configuration.
func NewRootCmd() *cobra.Command {
	a := &app{v: viper.New(), logger: csrgo.NoopLogger(), tracer: noop.NewTracerProvider()}

	root := &cobra.Command{
		Use:           "csrgo",
		Short:         "In-memory CSR graph import and estimation",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.close()
		},
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "YAML config file")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("log-format", "text", "log format (text, json)")
	pf.String("log-file", "", "write logs to a rotating file instead of stderr")
	pf.Int("log-max-size", 100, "log file size in megabytes before rotation")
	pf.Int("log-max-age", 7, "days to keep rotated log files")
	pf.String("trace-exporter", "none", "span exporter (none, stdout, otlp)")
	pf.String("otlp-endpoint", "", "OTLP/HTTP endpoint URL")
	_ = a.v.BindPFlags(pf)

	root.AddCommand(
		newEstimateCmd(a),
		newImportCmd(a),
		newGenerateCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	if err := a.v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	a.v.AutomaticEnv()

	if path := a.v.GetString("config"); path != "" {
		a.v.SetConfigFile(path)
		a.v.SetConfigType("yaml")
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	}

	logger, closer, err := a.newLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.logger = logger
	if closer != nil {
		a.shutdown = append(a.shutdown, closer.Close)
	}

	tp, stop, err := initTracing(cmd.Context(), a.v.GetString("trace-exporter"), a.v.GetString("otlp-endpoint"), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.tracer = tp
	if stop != nil {
		a.shutdown = append(a.shutdown, stop)
	}
	return nil
}

func (a *app) close() error {
	var errs []error
	for i := len(a.shutdown) - 1; i >= 0; i-- {
		errs = append(errs, a.shutdown[i]())
	}
	a.shutdown = nil
	return errors.Join(errs...)
}

func (a *app) newLogger(stderr io.Writer) (*csrgo.Logger, io.Closer, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(a.v.GetString("log-level"))); err != nil {
		return nil, nil, fmt.Errorf("log level: %w", err)
	}

	w := stderr
	var closer io.Closer
	if file := a.v.GetString("log-file"); file != "" {
		lj := &lumberjack.Logger{
			Filename: file,
			MaxSize:  a.v.GetInt("log-max-size"), // megabytes
			MaxAge:   a.v.GetInt("log-max-age"),  // days
		}
		w, closer = lj, lj
	}

	switch format := a.v.GetString("log-format"); format {
	case "text":
		return csrgo.NewTextLoggerTo(w, level), closer, nil
	case "json":
		return csrgo.NewJSONLoggerTo(w, level), closer, nil
	default:
		if closer != nil {
			_ = closer.Close()
		}
		return nil, nil, fmt.Errorf("unknown log format %q", format)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "csrgo %s\n", Version)
		},
	}
}
