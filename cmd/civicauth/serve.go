package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/dropDatabas3/civicauth/internal/app"
	"github.com/dropDatabas3/civicauth/internal/config"
	"github.com/dropDatabas3/civicauth/internal/observability/logger"
	"github.com/spf13/cobra"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Levanta el server HTTP y el scheduler de rotación",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			path = os.Getenv("CONFIG_PATH")
		}
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		logger.Init(logger.Config{
			Env:         cfg.App.Env,
			Level:       cfg.Log.Level,
			ServiceName: cfg.App.Name,
			Version:     cfg.App.Version,
		})
		defer func() { _ = logger.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx = logger.ToContext(ctx, logger.L())

		a, err := app.New(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		logger.L().Info("civicauth starting",
			logger.String("addr", cfg.Server.Addr),
			logger.String("env", cfg.App.Env),
			logger.String("storage", cfg.Storage.Driver),
			logger.Bool("rotation", cfg.Rotation.Enabled),
		)
		return a.Run(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "", "ruta a config.yaml (default $CONFIG_PATH; vacío = defaults + env)")
	rootCmd.AddCommand(serveCmd)
}
