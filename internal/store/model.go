// Package store holds the in-memory directory state: the hotel tables
// grouped by city, the user accounts, the set of logged-in users, and the
// queue of reviews waiting to be persisted. It also owns JSON persistence
// of all three tables.
package store

import (
	"sync"
	"time"

	"github.com/Mattia055/Hotelier2.0/internal/protocol"
)

// Experience bounds and badge tiers. A user's badge is derived from the
// experience accumulated through aggregated reviews.
const (
	InitExperience = 100
	MaxExperience  = 10000
)

type badgeTier struct {
	min  int
	name string
}

// Ordered from highest threshold so the first match wins.
var badgeTiers = []badgeTier{
	{10000, "Super Contributor"},
	{5000, "Expert Contributor"},
	{2000, "Contributor"},
	{500, "Expert Reviewer"},
	{0, "Reviewer"},
}

// BadgeFor maps an experience value to its badge name.
func BadgeFor(exp int) string {
	for _, t := range badgeTiers {
		if exp >= t.min {
			return t.name
		}
	}
	return badgeTiers[len(badgeTiers)-1].name
}

// User is a registered account. Experience and badge change over time as
// the ranking pass folds in the user's reviews; they are guarded by mu so
// handlers can read them while a pass is running.
type User struct {
	mu          sync.Mutex
	Username    string `json:"username"`
	Fingerprint string `json:"fingerprint"`
	Salt        string `json:"salt"`
	Experience  int    `json:"experience"`
	Badge       string `json:"badge"`
}

// NewUser creates an account with the starting experience and badge.
func NewUser(username, fingerprint, salt string) *User {
	return &User{
		Username:    username,
		Fingerprint: fingerprint,
		Salt:        salt,
		Experience:  InitExperience,
		Badge:       BadgeFor(InitExperience),
	}
}

// CurrentBadge returns the badge name.
func (u *User) CurrentBadge() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.Badge
}

// CurrentExperience returns the experience value.
func (u *User) CurrentExperience() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.Experience
}

// AddExperience raises experience by delta, clamped at MaxExperience, and
// refreshes the badge.
func (u *User) AddExperience(delta int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.Experience += delta
	if u.Experience > MaxExperience {
		u.Experience = MaxExperience
	}
	u.Badge = BadgeFor(u.Experience)
}

// snapshot returns a lock-free copy safe to marshal.
func (u *User) snapshot() User {
	u.mu.Lock()
	defer u.mu.Unlock()
	return User{
		Username:    u.Username,
		Fingerprint: u.Fingerprint,
		Salt:        u.Salt,
		Experience:  u.Experience,
		Badge:       u.Badge,
	}
}

// Review is one submitted rating, queued on its hotel until the next
// ranking pass folds it into the aggregate.
type Review struct {
	HotelID    int            `json:"hotel_id"`
	Username   string         `json:"username"`
	Experience int            `json:"experience"`
	Added      time.Time      `json:"added"`
	Score      protocol.Score `json:"score"`
}

// Hotel is one directory entry. The aggregate fields (Rating, Rank,
// RankPosition) are written only by the ranking pass while the city's
// write lock is held; handlers read them under the city's read lock.
// The pending review queue has its own lock because reviews arrive from
// handler goroutines at any time.
type Hotel struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	City        string   `json:"city"`
	Phone       string   `json:"phone"`
	Services    []string `json:"services"`

	Rank         float64        `json:"rank"`
	Rating       protocol.Score `json:"rating"`
	RankPosition int            `json:"rank_position"`

	pendingMu sync.Mutex
	pending   []Review
}

// AppendReview queues a review for the next ranking pass.
func (h *Hotel) AppendReview(rv Review) {
	h.pendingMu.Lock()
	h.pending = append(h.pending, rv)
	h.pendingMu.Unlock()
}

// DetachPending removes and returns the queued reviews. The ranking pass
// detaches first so reviews arriving mid-pass land in the next one.
func (h *Hotel) DetachPending() []Review {
	h.pendingMu.Lock()
	defer h.pendingMu.Unlock()
	detached := h.pending
	h.pending = nil
	return detached
}

// PendingCount reports how many reviews are queued.
func (h *Hotel) PendingCount() int {
	h.pendingMu.Lock()
	defer h.pendingMu.Unlock()
	return len(h.pending)
}

// snapshot returns a value copy safe to marshal after the city lock is
// released. The pending queue stays behind; reviews are persisted through
// the dump queue, not the hotel table. Caller holds at least the owning
// city's read lock.
func (h *Hotel) snapshot() Hotel {
	services := make([]string, len(h.Services))
	copy(services, h.Services)
	return Hotel{
		ID:           h.ID,
		Name:         h.Name,
		Description:  h.Description,
		City:         h.City,
		Phone:        h.Phone,
		Services:     services,
		Rank:         h.Rank,
		Rating:       h.Rating,
		RankPosition: h.RankPosition,
	}
}

// View builds the client-facing projection. Callers must hold at least the
// owning city's read lock.
func (h *Hotel) View() protocol.HotelView {
	services := make([]string, len(h.Services))
	copy(services, h.Services)
	return protocol.HotelView{
		Name:         h.Name,
		Description:  h.Description,
		City:         h.City,
		Phone:        h.Phone,
		Services:     services,
		Rank:         h.Rank,
		Rating:       h.Rating,
		RankPosition: h.RankPosition,
	}
}
