package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	_ "go.uber.org/automaxprocs"

	"github.com/Mattia055/Hotelier2.0/internal/config"
	"github.com/Mattia055/Hotelier2.0/internal/logging"
	"github.com/Mattia055/Hotelier2.0/internal/metrics"
	"github.com/Mattia055/Hotelier2.0/internal/notify"
	"github.com/Mattia055/Hotelier2.0/internal/ranking"
	"github.com/Mattia055/Hotelier2.0/internal/server"
	"github.com/Mattia055/Hotelier2.0/internal/store"
)

func main() {
	debug := flag.Bool("debug", false, "force debug logging")
	flag.Parse()

	bootstrapLog := logging.New("info", "json")
	cfg, err := config.Load(&bootstrapLog)
	if err != nil {
		bootstrapLog.Fatal().Err(err).Msg("configuration failed")
	}
	if *debug {
		cfg.LogLevel = "debug"
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	cfg.LogConfig(log)

	st, err := loadStore(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("loading tables failed")
	}

	notifier, err := notify.NewMulticast(cfg.MulticastAddr, log)
	if err != nil {
		log.Fatal().Err(err).Msg("multicast notifier failed")
	}
	engine := ranking.NewEngine(st, notifier, ranking.Config{
		TimeDecay:     cfg.TimeDecay,
		ExpMultiplier: cfg.ExpMultiplier,
		ExpIncrement:  cfg.ExpIncrement,
	}, log)

	if cfg.ForceRevsInit {
		// Fold the replayed reviews before serving, then drop them from
		// the dump queue so the log does not grow duplicates.
		engine.RunPass(time.Now())
		st.DrainDump()
		log.Info().Msg("ratings rebuilt from review log")
	}

	srv, err := server.New(cfg, st, log)
	if err != nil {
		log.Fatal().Err(err).Msg("server setup failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv.Start(ctx)
	go metrics.Serve(ctx, cfg.MetricsAddr, log)

	sched := ranking.NewScheduler(log, 10*time.Second)
	sched.Start(ctx)
	if err := sched.Schedule("ranking-pass", cfg.RankInitDelay, cfg.RankInterval, func(context.Context) error {
		engine.RunPass(time.Now())
		return nil
	}); err != nil {
		log.Fatal().Err(err).Msg("scheduling ranking pass failed")
	}
	if err := sched.Schedule("persistence", cfg.SaveInitDelay, cfg.SaveInterval, func(context.Context) error {
		return saveTables(st, cfg, log)
	}); err != nil {
		log.Fatal().Err(err).Msg("scheduling persistence failed")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("shutting down")

	// Stop taking requests first, let running jobs finish, then fold and
	// persist whatever is still in memory.
	srv.Stop()
	sched.Stop(context.Background())
	engine.RunPass(time.Now())
	if err := saveTables(st, cfg, log); err != nil {
		log.Error().Err(err).Msg("final save failed")
	}
	if err := notifier.Close(); err != nil {
		log.Error().Err(err).Msg("closing notifier failed")
	}
	log.Info().Msg("shutdown complete")
}

func loadStore(cfg *config.Config, log zerolog.Logger) (*store.Store, error) {
	hotels, err := store.LoadHotels(cfg.HotelsFile)
	if err != nil {
		return nil, err
	}
	st := store.New(hotels, cfg.MaxDump, log)

	users, err := store.LoadUsers(cfg.UsersFile)
	if err != nil {
		return nil, err
	}
	st.SeedUsers(users)

	if cfg.ForceRevsInit {
		reviews, err := store.LoadReviews(cfg.ReviewsFile)
		if err != nil {
			return nil, err
		}
		st.ResetAggregates()
		replayed := st.ReplayReviews(reviews)
		log.Info().Int("reviews", replayed).Msg("review log replayed into pending queues")
	}

	log.Info().
		Int("cities", len(st.CityNames())).
		Int("users", st.UserCount()).
		Msg("tables loaded")
	return st, nil
}

func saveTables(st *store.Store, cfg *config.Config, log zerolog.Logger) error {
	if err := st.SaveHotels(cfg.HotelsFile); err != nil {
		metrics.SaveError("hotels")
		return err
	}
	if err := st.SaveUsers(cfg.UsersFile); err != nil {
		metrics.SaveError("users")
		return err
	}
	n, err := st.DumpReviews(cfg.ReviewsFile)
	if err != nil {
		metrics.SaveError("reviews")
		return err
	}
	if n > 0 {
		metrics.ReviewsDumped(n)
		log.Debug().Int("reviews", n).Msg("review log appended")
	}
	return nil
}
