// Package combat parses combat service flags and launches the authority.
package combat

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/louisbranch/skirmish/internal/combat/app"
	"github.com/louisbranch/skirmish/internal/combat/dataapi"
	"github.com/louisbranch/skirmish/internal/combat/session"
	entrypoint "github.com/louisbranch/skirmish/internal/platform/cmd"
)

// Config holds combat command configuration.
type Config struct {
	Port            int      `env:"SKIRMISH_COMBAT_PORT" envDefault:"8080"`
	DataDir         string   `env:"SKIRMISH_DATA_DIR" envDefault:"data/combat"`
	DataAPIURL      string   `env:"DATA_API_URL"`
	DataAPIKey      string   `env:"DATA_API_KEY"`
	AllowedOrigins  []string `env:"ALLOWED_ORIGINS" envSeparator:","`
	AssetBucketName string   `env:"ASSET_BUCKET_NAME"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The combat HTTP server port")
	fs.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "Directory holding per-session combat databases")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the combat authority service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceCombat, func(ctx context.Context) error {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}

		registry := session.NewRegistry(cfg.DataDir, dataapi.New(cfg.DataAPIURL, cfg.DataAPIKey))
		go registry.Run(ctx)

		server := app.NewServer(registry, cfg.AllowedOrigins)
		return app.ListenAndServe(ctx, fmt.Sprintf(":%d", cfg.Port), server.Handler())
	})
}
