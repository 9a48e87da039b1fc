// seed upserts the default plan catalog. Idempotent; run after migrate.
package main

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/config"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/db"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/logging"
	plandomain "github.com/MatanSaban/GhostPostWebsite-sub000/internal/plan/domain"
	planrepo "github.com/MatanSaban/GhostPostWebsite-sub000/internal/plan/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	logging.Setup(cfg.LogLevel, cfg.Env)
	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("DATABASE_URL is not set; create a .env or set DATABASE_URL")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := db.Open(ctx, cfg.DatabaseURL, db.Pool{MaxOpenConns: 2})
	if err != nil {
		log.Fatal().Err(err).Msg("db")
	}
	defer conn.Close()

	plans := planrepo.NewPostgresRepository(conn)
	now := time.Now().UTC()
	err = db.WithTx(ctx, conn, nil, func(ctx context.Context, tx db.DBTX) error {
		repo := planrepo.NewPostgresRepository(tx)
		for _, p := range plandomain.DefaultPlans() {
			p.CreatedAt = now
			if err := repo.Upsert(ctx, &p); err != nil {
				return err
			}
			log.Info().Str("plan", p.ID).Msg("seed: plan upserted")
		}
		return nil
	})
	if err != nil {
		log.Fatal().Err(err).Msg("seed")
	}

	active, err := plans.ListActive(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("seed: list plans")
	}
	log.Info().Int("active_plans", len(active)).Msg("seed: done")
}
