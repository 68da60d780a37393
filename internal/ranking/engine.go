// Package ranking folds pending reviews into hotel aggregates on a
// schedule and announces leadership changes per city.
package ranking

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/Mattia055/Hotelier2.0/internal/metrics"
	"github.com/Mattia055/Hotelier2.0/internal/notify"
	"github.com/Mattia055/Hotelier2.0/internal/store"
)

// Config carries the aggregation parameters.
type Config struct {
	// TimeDecay is the per-day exponential decay of a review's weight.
	TimeDecay float64
	// ExpMultiplier scales the weight penalty for low reviewer experience.
	ExpMultiplier float64
	// ExpIncrement is the experience granted per aggregated review.
	ExpIncrement int
}

// Engine runs ranking passes over the store. A pass detaches each hotel's
// pending reviews, folds them into the aggregate score, re-sorts every city
// and publishes a notification when a city's top hotel changes.
//
// Passes are serialized by the scheduler; the engine itself is not safe for
// concurrent RunPass calls.
type Engine struct {
	store    *store.Store
	notifier notify.Notifier
	cfg      Config
	log      zerolog.Logger

	topByCity map[string]int // hotel id last announced as leader
}

// NewEngine builds an engine over the given store.
func NewEngine(st *store.Store, notifier notify.Notifier, cfg Config, log zerolog.Logger) *Engine {
	return &Engine{
		store:     st,
		notifier:  notifier,
		cfg:       cfg,
		log:       log.With().Str("component", "ranking").Logger(),
		topByCity: make(map[string]int),
	}
}

// RunPass processes every city once and returns how many reviews were
// folded. now anchors the freshness decay so a pass is deterministic.
func (e *Engine) RunPass(now time.Time) int {
	start := time.Now()
	folded := 0
	for _, city := range e.store.CityNames() {
		folded += e.rankCity(city, now)
	}
	elapsed := time.Since(start)
	metrics.RankingPassCompleted(elapsed, folded)
	e.log.Debug().
		Int("reviews_folded", folded).
		Dur("elapsed", elapsed).
		Msg("ranking pass completed")
	return folded
}

func (e *Engine) rankCity(city string, now time.Time) int {
	folded := 0
	var leaderID int
	var leaderName string
	var leaderRank float64
	hasLeader := false

	e.store.UpdateCity(city, func(hotels []*store.Hotel) {
		for _, h := range hotels {
			// Detach first so reviews arriving mid-pass wait for the
			// next one.
			for _, rv := range h.DetachPending() {
				e.fold(h, rv, now)
				folded++
				if u, ok := e.store.GetUser(rv.Username); ok {
					u.AddExperience(e.cfg.ExpIncrement)
				}
				e.store.EnqueueDump(rv)
			}
		}

		sort.SliceStable(hotels, func(i, j int) bool {
			if hotels[i].Rank != hotels[j].Rank {
				return hotels[i].Rank > hotels[j].Rank
			}
			return hotels[i].Name < hotels[j].Name
		})
		// Dense positions: hotels with equal rank share one.
		pos := 0
		prev := math.Inf(1)
		for _, h := range hotels {
			if h.Rank != prev {
				pos++
				prev = h.Rank
			}
			h.RankPosition = pos
		}

		if len(hotels) > 0 {
			leaderID = hotels[0].ID
			leaderName = hotels[0].Name
			leaderRank = hotels[0].Rank
			hasLeader = true
		}
	})

	if hasLeader && e.topByCity[city] != leaderID {
		e.topByCity[city] = leaderID
		msg := fmt.Sprintf("New top hotel in %s: %s (%.2f)", city, leaderName, leaderRank)
		if err := e.notifier.Notify(city, msg); err != nil {
			e.log.Error().Err(err).Str("city", city).Msg("notification failed")
		} else {
			metrics.NotificationSent()
		}
	}
	return folded
}

// weight computes how much one review counts: fresh reviews weigh near 1,
// nudged up slightly with reviewer experience, and stale reviews decay
// towards 0.
func (e *Engine) weight(rv store.Review, now time.Time) float64 {
	days := now.Sub(rv.Added).Hours() / 24
	if days < 0 {
		days = 0
	}
	freshness := math.Exp(-e.cfg.TimeDecay * days)
	seniority := math.Exp(-e.cfg.ExpMultiplier * (1 - float64(rv.Experience)) / store.MaxExperience)
	return freshness * seniority
}

// fold blends one review into the hotel's aggregate. Each field moves to
// (w*review + current) / (w + 1); the overall rank follows as the mean of
// the five fields. Caller holds the city write lock.
func (e *Engine) fold(h *store.Hotel, rv store.Review, now time.Time) {
	w := e.weight(rv, now)
	h.Rating.SetGlobal((w*rv.Score.Global + h.Rating.Global) / (w + 1))
	h.Rating.SetPosition((w*rv.Score.Position + h.Rating.Position) / (w + 1))
	h.Rating.SetCleaning((w*rv.Score.Cleaning + h.Rating.Cleaning) / (w + 1))
	h.Rating.SetService((w*rv.Score.Service + h.Rating.Service) / (w + 1))
	h.Rating.SetPrice((w*rv.Score.Price + h.Rating.Price) / (w + 1))
	h.Rank = math.Round(h.Rating.Mean()*100) / 100
}
