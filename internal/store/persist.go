package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/Mattia055/Hotelier2.0/internal/protocol"
)

// Persistence is whole-table JSON snapshots. Writes go through a temp file
// in the destination directory followed by a rename, so a crash mid-save
// never leaves a truncated table on disk.

func writeJSONAtomic(path string, v any) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("store: creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		tmp.Close()
		return fmt.Errorf("store: encoding %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("store: replacing %s: %w", path, err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("store: decoding %s: %w", path, err)
	}
	return nil
}

// LoadHotels reads the hotel table. The file is required; a directory
// without hotels has nothing to serve.
func LoadHotels(path string) ([]*Hotel, error) {
	var hotels []*Hotel
	if err := readJSON(path, &hotels); err != nil {
		return nil, fmt.Errorf("store: loading hotels: %w", err)
	}
	return hotels, nil
}

// LoadUsers reads the user table. A missing file is an empty table: the
// service may be starting for the first time.
func LoadUsers(path string) ([]*User, error) {
	var users []*User
	if err := readJSON(path, &users); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: loading users: %w", err)
	}
	return users, nil
}

// LoadReviews reads the persisted review log. Missing file means no
// reviews have been dumped yet.
func LoadReviews(path string) ([]Review, error) {
	var reviews []Review
	if err := readJSON(path, &reviews); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: loading reviews: %w", err)
	}
	return reviews, nil
}

// SeedUsers installs previously persisted accounts.
func (s *Store) SeedUsers(users []*User) {
	for _, u := range users {
		s.users.Put(u.Username, u)
	}
}

// ResetAggregates zeroes every hotel's folded state so a review replay can
// rebuild ratings from scratch instead of folding on top of persisted ones.
func (s *Store) ResetAggregates() {
	for _, c := range s.cities {
		c.mu.Lock()
		for _, h := range c.hotels {
			h.Rating = protocol.Score{}
			h.Rank = 0
			h.RankPosition = 0
		}
		c.mu.Unlock()
	}
}

// ReplayReviews re-queues persisted reviews onto their hotels so the next
// ranking pass rebuilds aggregates from scratch. Used when the hotel table
// was re-initialized and carries no folded state.
func (s *Store) ReplayReviews(reviews []Review) int {
	replayed := 0
	for _, rv := range reviews {
		h, ok := s.byID[rv.HotelID]
		if !ok {
			s.log.Warn().Int("hotel_id", rv.HotelID).Msg("persisted review references unknown hotel, skipping")
			continue
		}
		h.AppendReview(rv)
		replayed++
	}
	return replayed
}

// SaveHotels snapshots every city's hotels to disk. Value copies are taken
// under each city's read lock so marshalling does not race with a ranking
// pass rewriting the aggregates.
func (s *Store) SaveHotels(path string) error {
	keys := make([]string, 0, len(s.cities))
	for key := range s.cities {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var all []Hotel
	for _, key := range keys {
		c := s.cities[key]
		c.mu.RLock()
		for _, h := range c.hotels {
			all = append(all, h.snapshot())
		}
		c.mu.RUnlock()
	}
	return writeJSONAtomic(path, all)
}

// SaveUsers snapshots the user table to disk.
func (s *Store) SaveUsers(path string) error {
	snapshots := make([]User, 0, s.users.Len())
	s.users.Range(func(_ string, u *User) bool {
		snapshots = append(snapshots, u.snapshot())
		return true
	})
	return writeJSONAtomic(path, snapshots)
}

// DumpReviews appends the drained persistence queue to the review log on
// disk. Reviews already in the file are preserved; the merged log replaces
// the file atomically. Returns how many new entries were written.
func (s *Store) DumpReviews(path string) (int, error) {
	fresh := s.DrainDump()
	if len(fresh) == 0 {
		return 0, nil
	}
	existing, err := LoadReviews(path)
	if err != nil {
		// Do not lose the drained batch; put it back for the next run.
		for _, rv := range fresh {
			s.EnqueueDump(rv)
		}
		return 0, err
	}
	merged := append(existing, fresh...)
	if err := writeJSONAtomic(path, merged); err != nil {
		for _, rv := range fresh {
			s.EnqueueDump(rv)
		}
		return 0, err
	}
	return len(fresh), nil
}
