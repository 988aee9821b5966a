// File: cmd/root.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/renderwait/internal/config"
	"github.com/xkilldash9x/renderwait/internal/observability"
)

type contextKey string

const configKey contextKey = "config"

// envFile is loaded into the process environment, if present, before
// configuration is read. Variables already set win.
var envFile = ".env"

// NewRootCommand builds a fresh command tree. Each call returns independent
// flag state, which keeps tests isolated.
func NewRootCommand() *cobra.Command {
	var cfgFile string
	v := viper.New()

	root := &cobra.Command{
		Use:           "renderwait",
		Short:         "Render and wait synchronization for browser page objects.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadEnvFile(envFile); err != nil {
				return err
			}
			config.SetDefaults(v)
			if err := initializeConfig(cmd, v, cfgFile); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "renderwait"})
				return fmt.Errorf("failed to load or validate config: %w", err)
			}

			observability.InitializeLogger(cfg.Logger())
			observability.GetLogger().Debug("Starting renderwait", zap.String("version", Version))

			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}
	root.SetVersionTemplate(`{{printf "%s version %s\n" .Name .Version}}`)

	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./renderwait.yaml)")
	root.PersistentFlags().String("driver", "", "browser driver: webdriver, cdp or playwright")
	root.PersistentFlags().Bool("headless", true, "run the browser without a window")
	root.PersistentFlags().Int("wait-millis", 0, "default wait timeout in milliseconds")
	root.PersistentFlags().Int("poll-millis", 0, "poll interval in milliseconds")

	root.AddCommand(newProbeCmd())
	root.AddCommand(newRenderCmd())
	root.AddCommand(newReportCmd())
	return root
}

// Execute runs the command tree with ctx, which should be cancelled on
// SIGINT/SIGTERM.
func Execute(ctx context.Context) error {
	root := NewRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		logger := observability.GetLogger()
		if errors.Is(err, context.Canceled) {
			logger.Info("Interrupted.")
		} else {
			logger.Error("Command execution failed", zap.Error(err))
		}
		observability.Sync()
		return err
	}
	observability.Sync()
	return nil
}

// loadEnvFile reads KEY=VALUE pairs from path without overriding the
// environment. A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// initializeConfig reads the config file and RENDERWAIT_* environment
// variables into v, and lets explicitly set flags override both.
func initializeConfig(cmd *cobra.Command, v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("renderwait")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("RENDERWAIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	flags := map[string]string{
		"driver":      "driver.kind",
		"headless":    "driver.headless",
		"wait-millis": "wait.default_wait_millis",
		"poll-millis": "wait.poll_interval_millis",
	}
	for flag, key := range flags {
		f := cmd.Flags().Lookup(flag)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return err
		}
	}
	return nil
}

// getConfigFromContext returns the configuration stored by the root
// command's pre-run hook.
func getConfigFromContext(ctx context.Context) (config.Interface, error) {
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, fmt.Errorf("configuration not found in context")
	}
	return cfg, nil
}
