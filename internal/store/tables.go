package store

import (
	"math"
	"sort"
	"strings"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/rs/zerolog"

	"github.com/Mattia055/Hotelier2.0/internal/protocol"
	"github.com/Mattia055/Hotelier2.0/internal/syncmap"
)

// City groups the hotels of one city under a single read/write lock. The
// ranking pass takes the write lock while folding reviews and re-sorting;
// search handlers take the read lock.
type City struct {
	Name string // display form; table keys are case-folded

	mu     sync.RWMutex
	hotels []*Hotel // kept sorted by rank position
	byName map[string]*Hotel
}

// Lookups are case-insensitive: "rome" and "Rome" name the same city.
func foldKey(s string) string {
	return strings.ToLower(s)
}

// Store is the shared state of the whole service.
type Store struct {
	users  *syncmap.Map[string, *User]
	cities map[string]*City // keys fixed after load
	byID   map[int]*Hotel
	logged mapset.Set[string]
	log    zerolog.Logger

	dumpMu sync.Mutex
	dump   []Review
}

// New builds a store over the given hotels. The city set is derived from
// the hotels and never changes afterwards; dumpCapacity sizes the initial
// allocation of the persistence queue, which grows past it rather than
// lose consumed reviews.
func New(hotels []*Hotel, dumpCapacity int, log zerolog.Logger) *Store {
	s := &Store{
		users:  syncmap.New[string, *User](),
		cities: make(map[string]*City),
		byID:   make(map[int]*Hotel),
		logged: mapset.NewSet[string](),
		dump:   make([]Review, 0, dumpCapacity),
		log:    log.With().Str("component", "store").Logger(),
	}
	for _, h := range hotels {
		key := foldKey(h.City)
		c, ok := s.cities[key]
		if !ok {
			c = &City{Name: h.City, byName: make(map[string]*Hotel)}
			s.cities[key] = c
		}
		c.hotels = append(c.hotels, h)
		c.byName[foldKey(h.Name)] = h
		s.byID[h.ID] = h
	}
	// Deterministic initial order: ranked hotels first, ties by name
	// sharing a dense position, same as a ranking pass assigns.
	for _, c := range s.cities {
		sort.Slice(c.hotels, func(i, j int) bool {
			a, b := c.hotels[i], c.hotels[j]
			if a.Rank != b.Rank {
				return a.Rank > b.Rank
			}
			return a.Name < b.Name
		})
		pos := 0
		prev := math.Inf(1)
		for _, h := range c.hotels {
			if h.Rank != prev {
				pos++
				prev = h.Rank
			}
			h.RankPosition = pos
		}
	}
	return s
}

// --- users ---

// AddUser inserts the account only when the username is free and reports
// whether the insert happened. Concurrent registrations of the same name
// resolve to exactly one winner.
func (s *Store) AddUser(u *User) bool {
	return s.users.PutIfAbsent(u.Username, u)
}

// GetUser looks up an account by username.
func (s *Store) GetUser(username string) (*User, bool) {
	return s.users.Get(username)
}

// UserCount returns the number of registered accounts.
func (s *Store) UserCount() int {
	return s.users.Len()
}

// --- login set ---

// Login marks the user as logged in. It returns false when the user is
// already logged in elsewhere; the add is atomic, so two racing logins for
// the same account resolve to exactly one winner.
func (s *Store) Login(username string) bool {
	return s.logged.Add(username)
}

// Logout clears the user's logged-in mark and reports whether it was set.
func (s *Store) Logout(username string) bool {
	if !s.logged.Contains(username) {
		return false
	}
	s.logged.Remove(username)
	return true
}

// IsLogged reports whether the user currently holds a session.
func (s *Store) IsLogged(username string) bool {
	return s.logged.Contains(username)
}

// --- hotels ---

// HasCity reports whether the city exists in the directory.
func (s *Store) HasCity(city string) bool {
	_, ok := s.cities[foldKey(city)]
	return ok
}

// FindHotel returns the projection of the named hotel, distinguishing an
// unknown city from an unknown hotel.
func (s *Store) FindHotel(city, name string) (protocol.HotelView, protocol.ErrCode) {
	c, ok := s.cities[foldKey(city)]
	if !ok {
		return protocol.HotelView{}, protocol.ErrNoSuchCity
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.byName[foldKey(name)]
	if !ok {
		return protocol.HotelView{}, protocol.ErrNoSuchHotel
	}
	return h.View(), protocol.ErrNone
}

// HotelByName returns the hotel entry itself, for handlers that need its
// identity (review submission) rather than a snapshot.
func (s *Store) HotelByName(city, name string) (*Hotel, protocol.ErrCode) {
	c, ok := s.cities[foldKey(city)]
	if !ok {
		return nil, protocol.ErrNoSuchCity
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.byName[foldKey(name)]
	if !ok {
		return nil, protocol.ErrNoSuchHotel
	}
	return h, protocol.ErrNone
}

// HotelByID resolves a hotel by its numeric id.
func (s *Store) HotelByID(id int) (*Hotel, bool) {
	h, ok := s.byID[id]
	return h, ok
}

// CitySnapshot returns the city's hotels in rank order as client
// projections, taken atomically under the city's read lock.
func (s *Store) CitySnapshot(city string) ([]protocol.HotelView, bool) {
	c, ok := s.cities[foldKey(city)]
	if !ok {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	views := make([]protocol.HotelView, len(c.hotels))
	for i, h := range c.hotels {
		views[i] = h.View()
	}
	return views, true
}

// CityNames lists the directory's cities in display form.
func (s *Store) CityNames() []string {
	names := make([]string, 0, len(s.cities))
	for _, c := range s.cities {
		names = append(names, c.Name)
	}
	sort.Strings(names)
	return names
}

// UpdateCity runs fn with the city's write lock held and the hotel slice
// exposed for in-place mutation and re-sorting. Used by the ranking pass.
func (s *Store) UpdateCity(city string, fn func(hotels []*Hotel)) bool {
	c, ok := s.cities[foldKey(city)]
	if !ok {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.hotels)
	return true
}

// --- review dump queue ---

// EnqueueDump hands a folded review to the persistence queue. The queue is
// unbounded: a consumed review already moved its hotel's aggregate, so it
// must reach the durable log no matter how far behind the save job is.
func (s *Store) EnqueueDump(rv Review) {
	s.dumpMu.Lock()
	s.dump = append(s.dump, rv)
	s.dumpMu.Unlock()
}

// DrainDump empties the persistence queue.
func (s *Store) DrainDump() []Review {
	s.dumpMu.Lock()
	defer s.dumpMu.Unlock()
	out := s.dump
	s.dump = nil
	return out
}

// DumpDepth reports how many reviews await persistence.
func (s *Store) DumpDepth() int {
	s.dumpMu.Lock()
	defer s.dumpMu.Unlock()
	return len(s.dump)
}
