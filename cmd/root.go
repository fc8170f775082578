// File: cmd/root.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/flight-agent-cli/internal/config"
	"github.com/xkilldash9x/flight-agent-cli/internal/observability"
)

const envPrefix = "FLIGHTAGENT"

// app is the state shared by the commands of one root command instance.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
}

// NewRootCommand builds a fresh command tree with its own viper instance.
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:     "flightagent",
		Short:   "flightagent finds, picks and books flights with a language model.",
		Version: Version,
		// Usage errors print usage; runtime errors are logged by Execute.
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.initializeConfig(); err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "flightagent"})
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}
			observability.InitializeLogger(a.cfg.Logger())
			observability.GetLogger().Debug("Starting flightagent", zap.String("version", Version))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s version %s\n" .Name .Version}}`)

	rootCmd.AddCommand(newBookCmd(a))
	rootCmd.AddCommand(newExtractCmd(a))
	rootCmd.AddCommand(newPurchasesCmd(a))
	return rootCmd
}

// Execute runs the command tree with a signal-aware context.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCommand()
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			observability.GetLogger().Info("Command cancelled")
		} else {
			observability.GetLogger().Error("Command execution failed", zap.Error(err))
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
	}
	observability.Sync()
	return err
}

// initializeConfig reads the config file and environment into a.cfg.
func (a *app) initializeConfig() error {
	config.SetDefaults(a.v)

	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		a.v.AddConfigPath(".")
		a.v.SetConfigName("config")
		a.v.SetConfigType("yaml")
	}

	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return a.reload()
}

// reload unmarshals the config again so flags bound after startup take effect.
func (a *app) reload() error {
	cfg, err := config.NewConfigFromViper(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

// bindSourceFlags binds the shared --source-file and --source-url flags.
func (a *app) bindSourceFlags(cmd *cobra.Command) error {
	if err := a.v.BindPFlag("source.file", cmd.Flags().Lookup("source-file")); err != nil {
		return err
	}
	return a.v.BindPFlag("source.url", cmd.Flags().Lookup("source-url"))
}

func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().String("source-file", "", "Read the flight listing from this file. (Overrides config/env)")
	cmd.Flags().String("source-url", "", "Fetch the flight listing from this URL. (Overrides config/env)")
	cmd.MarkFlagsMutuallyExclusive("source-file", "source-url")
}
