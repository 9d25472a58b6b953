// Package commands implements the CLI commands for ncictl.
package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nfcgo/ncicore/internal/audit"
	"github.com/nfcgo/ncicore/internal/logger"
	"github.com/nfcgo/ncicore/internal/metrics"
	"github.com/nfcgo/ncicore/internal/tracing"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
)

// session holds per-invocation state resolved in PersistentPreRunE and
// released in PersistentPostRunE.
var session struct {
	ID string

	// Ctx carries the session's logger.LogContext; *Ctx logging calls and
	// tracing spans hang off it.
	Ctx context.Context

	auditLog        *audit.Log
	tracingShutdown func(context.Context) error
	profileShutdown func() error
}

var rootCmd = &cobra.Command{
	Use:   "ncictl",
	Short: "NCI controller - drive an NFCC over a serial link",
	Long: `ncictl drives an NFC controller (NFCC) attached over a serial bridge
through the NCI control plane: bootstrap, RF discovery, target activation,
and raw data exchange on the static RF connection.

Use "ncictl [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfig(cmd); err != nil {
			return err
		}

		if err := logger.Init(logger.Config{
			Level:  viper.GetString("log.level"),
			Format: viper.GetString("log.format"),
			Output: "stderr",
		}); err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}

		session.ID = uuid.NewString()
		session.Ctx = logger.WithContext(cmd.Context(), logger.NewLogContext(session.ID))
		logger.DebugCtx(session.Ctx, "session started", "version", Version)

		shutdown, err := tracing.Init(cmd.Context(), tracing.Config{
			Enabled:        viper.GetBool("tracing.enabled"),
			ServiceName:    "ncictl",
			ServiceVersion: Version,
			Endpoint:       viper.GetString("tracing.endpoint"),
			Insecure:       true,
			SampleRate:     1.0,
		})
		if err != nil {
			return fmt.Errorf("initializing tracing: %w", err)
		}
		session.tracingShutdown = shutdown

		if endpoint := viper.GetString("profile.endpoint"); endpoint != "" {
			stop, err := tracing.InitProfiling(tracing.ProfilingConfig{
				Enabled:        true,
				ServiceName:    "ncictl",
				ServiceVersion: Version,
				Endpoint:       endpoint,
			})
			if err != nil {
				return fmt.Errorf("initializing profiling: %w", err)
			}
			session.profileShutdown = stop
		}

		if viper.GetString("metrics.addr") != "" {
			metrics.InitRegistry()
		}

		if path := viper.GetString("audit.path"); path != "" {
			log, err := audit.Open(audit.Options{Path: path})
			if err != nil {
				return err
			}
			session.auditLog = log
		}

		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		var firstErr error
		if session.auditLog != nil {
			if err := session.auditLog.Close(); err != nil {
				firstErr = err
			}
		}
		if session.tracingShutdown != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := session.tracingShutdown(ctx); err != nil && firstErr == nil {
				firstErr = err
			}
			cancel()
		}
		if session.profileShutdown != nil {
			if err := session.profileShutdown(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	},
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		rootCmd.PrintErrf("Error: %v\n", err)
	}
	return err
}

// initConfig layers defaults, an optional config file, NCICTL_* environment
// variables, and flags, in ascending precedence.
func initConfig(cmd *cobra.Command) error {
	viper.SetDefault("port", "")
	viper.SetDefault("baud", 115200)
	viper.SetDefault("log.level", "INFO")
	viper.SetDefault("log.format", "text")
	viper.SetDefault("metrics.addr", "")
	viper.SetDefault("audit.path", "")
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.endpoint", "localhost:4317")
	viper.SetDefault("profile.endpoint", "")

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("ncictl")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.config/ncictl")
	}

	viper.SetEnvPrefix("NCICTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("reading config: %w", err)
		}
	}

	bind := func(key, flag string) {
		if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
			viper.Set(key, f.Value.String())
		}
	}
	bind("port", "port")
	bind("baud", "baud")
	bind("log.level", "log-level")
	bind("log.format", "log-format")
	bind("metrics.addr", "metrics-addr")
	bind("audit.path", "audit-db")
	bind("tracing.enabled", "trace")
	bind("tracing.endpoint", "trace-endpoint")
	bind("profile.endpoint", "profile")

	return nil
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file path (default: ./ncictl.yaml, ~/.config/ncictl/ncictl.yaml)")
	rootCmd.PersistentFlags().StringP("port", "p", "", "Serial port of the NFCC (e.g. /dev/ttyUSB0); prompted for if omitted")
	rootCmd.PersistentFlags().Int("baud", 115200, "Serial baud rate")
	rootCmd.PersistentFlags().String("log-level", "INFO", "Log level (DEBUG|INFO|WARN|ERROR)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format (text|json)")
	rootCmd.PersistentFlags().String("metrics-addr", "", "Listen address for Prometheus metrics (empty disables)")
	rootCmd.PersistentFlags().String("audit-db", "", "Path to the audit event database (empty disables)")
	rootCmd.PersistentFlags().Bool("trace", false, "Enable OTLP trace export")
	rootCmd.PersistentFlags().String("trace-endpoint", "localhost:4317", "OTLP/gRPC collector endpoint")
	rootCmd.PersistentFlags().String("profile", "", "Pyroscope server URL for continuous profiling (empty disables)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(restartCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(sendDataCmd)
	rootCmd.AddCommand(serveMetricsCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("ncictl %s (%s)\n", Version, Commit)
	},
}
