// migrate applies the embedded schema: go run ./cmd/migrate -direction up|down|reset
package main

import (
	"flag"

	"github.com/rs/zerolog/log"

	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/config"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/db/migrate"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/logging"
)

func main() {
	raw := flag.String("direction", "up", "up, down (one step) or reset (all)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	logging.Setup(cfg.LogLevel, cfg.Env)

	direction, err := migrate.ParseDirection(*raw)
	if err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}
	res, err := migrate.Run(cfg.DatabaseURL, direction)
	if err != nil {
		log.Fatal().Err(err).Str("direction", string(direction)).Msg("migrate failed")
	}
	ev := log.Info().Str("direction", string(direction)).Uint("from", res.From).Uint("to", res.To)
	if !res.Changed {
		ev.Msg("schema already at target version")
		return
	}
	ev.Msg("schema migrated")
}
