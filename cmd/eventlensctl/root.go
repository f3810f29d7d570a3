package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/your-org/eventlens/internal/config"
	"github.com/your-org/eventlens/internal/observability"
	"github.com/your-org/eventlens/internal/storage"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "eventlensctl",
	Short: "Operator tool for the EventLens photo service",
	Long: `eventlensctl talks directly to the EventLens database, object store and
recognition service. It applies migrations, seeds events and users, and
uploads folders of event photos through the same pipeline as the API.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "path to config file")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	observability.SetupLogger(cfg.Logging.Level, "text")
	return cfg, nil
}

func openStore(ctx context.Context, cfg *config.Config) (*storage.PostgresStore, error) {
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach postgres: %w", err)
	}
	return db, nil
}

func mustGetString(cmd *cobra.Command, name string) string {
	v, err := cmd.Flags().GetString(name)
	if err != nil {
		panic(err)
	}
	return v
}

func mustGetBool(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		panic(err)
	}
	return v
}
