package cli

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sluicehq/sluice/internal/archive"
	"github.com/sluicehq/sluice/internal/engine"
	"github.com/sluicehq/sluice/internal/httpapi"
	"github.com/sluicehq/sluice/internal/mirror"
	"github.com/sluicehq/sluice/internal/plugin"
	"github.com/sluicehq/sluice/internal/registry"
	"github.com/sluicehq/sluice/internal/schema"
	"github.com/sluicehq/sluice/internal/service"
	"github.com/sluicehq/sluice/internal/watcher"
)

// ServeConfig is the resolved configuration for the serve command.
// Precedence: flags > SLUICE_* environment variables > config file.
type ServeConfig struct {
	Addr        string `mapstructure:"addr"`
	Validators  string `mapstructure:"validators"`
	Archive     string `mapstructure:"archive"`
	MirrorURL   string `mapstructure:"mirror_url"`
	MirrorMatch string `mapstructure:"mirror_match"`
	Watch       bool   `mapstructure:"watch"`
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the payload validation service",
		Long: `Run the HTTP service: sticky session/flow routing, schema validation,
and verdict recording. Schemas and plugins are read from the validators
directory and hot-reload on change.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadServeConfig(cmd, configFile)
			if err != nil {
				return WrapExitError(ExitCommandError, "loading config", err)
			}
			return runServe(rootOpts, cfg)
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "config file (yaml)")
	cmd.Flags().String("addr", ":8080", "listen address")
	cmd.Flags().String("validators", "validators", "validators root directory")
	cmd.Flags().String("archive", "", "sqlite archive path (empty disables archiving)")
	cmd.Flags().String("mirror-url", "", "base URL to mirror ingest traffic to")
	cmd.Flags().String("mirror-match", "", "regex selecting request paths to mirror")
	cmd.Flags().Bool("watch", true, "watch the validators directory for changes")

	return cmd
}

// loadServeConfig merges flags, environment, and an optional config file.
func loadServeConfig(cmd *cobra.Command, configFile string) (*ServeConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("SLUICE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	for flagName, key := range map[string]string{
		"addr":         "addr",
		"validators":   "validators",
		"archive":      "archive",
		"mirror-url":   "mirror_url",
		"mirror-match": "mirror_match",
		"watch":        "watch",
	} {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flagName)); err != nil {
			return nil, err
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg ServeConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func runServe(opts *RootOptions, cfg *ServeConfig) error {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	schemas := schema.NewStore(cfg.Validators)
	plugins := plugin.NewLoader(cfg.Validators)
	eng := engine.New(schemas, plugins, log)
	reg := registry.New()

	var svcOpts []service.Option
	if cfg.Archive != "" {
		sink, err := archive.Open(cfg.Archive)
		if err != nil {
			return WrapExitError(ExitCommandError, "opening archive", err)
		}
		defer sink.Close()
		svcOpts = append(svcOpts, service.WithSink(sink))
		log.Info("archiving verdicts", "path", cfg.Archive)
	}
	svc := service.New(reg, eng, log, svcOpts...)

	var srvOpts []httpapi.Option
	if cfg.MirrorURL != "" {
		m, err := mirror.New(cfg.MirrorURL, cfg.MirrorMatch, log)
		if err != nil {
			return WrapExitError(ExitCommandError, "configuring mirror", err)
		}
		srvOpts = append(srvOpts, httpapi.WithMirror(m))
		log.Info("mirroring ingest traffic", "target", cfg.MirrorURL)
	}

	if cfg.Watch {
		w, err := watcher.New(cfg.Validators, schemas, plugins, log)
		if err != nil {
			log.Warn("validators watch disabled", "error", err)
		} else {
			defer w.Close()
		}
	}

	handler := httpapi.New(svc, log, srvOpts...).Handler()
	log.Info("listening", "addr", cfg.Addr, "validators", cfg.Validators)
	if err := http.ListenAndServe(cfg.Addr, handler); err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("serving on %s", cfg.Addr), err)
	}
	return nil
}
