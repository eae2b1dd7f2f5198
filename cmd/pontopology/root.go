package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"pontopology/internal/config"
	"pontopology/internal/observability"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

type rootOptions struct {
	cfgFile string
	v       *viper.Viper
	cfg     *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{v: viper.New()}
	cmd := &cobra.Command{
		Use:           "pontopology",
		Short:         "PON topology snapshots from the OLT/ODP/ONU inventory.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "pontopology"})
				return err
			}
			opts.cfg = cfg
			observability.InitializeLogger(cfg.Logger)
			observability.GetLogger().Debug("configuration loaded",
				zap.String("version", Version),
				zap.String("config", opts.v.ConfigFileUsed()),
				zap.String("source", cfg.Source.Kind))
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.cfgFile, "config", "c", "", "config file (default is ./pontopology.yaml)")
	cmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	cmd.AddCommand(
		newServeCmd(opts),
		newSnapshotCmd(opts),
		newTableCmd(opts),
		newDashboardCmd(opts),
		newTokenCmd(opts),
		newWorkdirCmd(opts),
	)
	return cmd
}

// load reads defaults, the config file (optional unless named with --config)
// and PONTOPO_* environment overrides.
func (o *rootOptions) load() (*config.Config, error) {
	config.SetDefaults(o.v)
	if o.cfgFile != "" {
		o.v.SetConfigFile(o.cfgFile)
	} else {
		o.v.AddConfigPath(".")
		o.v.SetConfigName("pontopology")
		o.v.SetConfigType("yaml")
	}
	config.Bind(o.v)

	if err := o.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return config.NewConfigFromViper(o.v)
}
