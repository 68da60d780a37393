package store

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mattia055/Hotelier2.0/internal/protocol"
)

func testHotels() []*Hotel {
	return []*Hotel{
		{ID: 1, Name: "Hotel Aurora", City: "Rome", Phone: "+39 06 111", Rank: 4.5},
		{ID: 2, Name: "Hotel Bella", City: "Rome", Phone: "+39 06 222", Rank: 3.2},
		{ID: 3, Name: "Hotel Canale", City: "Venice", Phone: "+39 041 333"},
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(testHotels(), 16, zerolog.Nop())
}

func TestBadgeTiers(t *testing.T) {
	cases := []struct {
		exp  int
		want string
	}{
		{0, "Reviewer"},
		{100, "Reviewer"},
		{499, "Reviewer"},
		{500, "Expert Reviewer"},
		{2000, "Contributor"},
		{4999, "Contributor"},
		{5000, "Expert Contributor"},
		{9999, "Expert Contributor"},
		{10000, "Super Contributor"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, BadgeFor(tc.exp), "exp=%d", tc.exp)
	}
}

func TestUserExperienceClamp(t *testing.T) {
	u := NewUser("alice", "fp", "salt")
	assert.Equal(t, InitExperience, u.CurrentExperience())
	assert.Equal(t, "Reviewer", u.CurrentBadge())

	u.AddExperience(MaxExperience * 2)
	assert.Equal(t, MaxExperience, u.CurrentExperience())
	assert.Equal(t, "Super Contributor", u.CurrentBadge())
}

func TestAddUserRace(t *testing.T) {
	s := newTestStore(t)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.AddUser(NewUser("bob", "fp", "salt")) {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestLoginSingleSession(t *testing.T) {
	s := newTestStore(t)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Login("alice") {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
	assert.True(t, s.IsLogged("alice"))

	assert.True(t, s.Logout("alice"))
	assert.False(t, s.Logout("alice"))
	assert.False(t, s.IsLogged("alice"))
}

func TestFindHotelDistinguishesErrors(t *testing.T) {
	s := newTestStore(t)

	v, code := s.FindHotel("Rome", "Hotel Aurora")
	assert.Equal(t, protocol.ErrNone, code)
	assert.Equal(t, "Hotel Aurora", v.Name)

	_, code = s.FindHotel("Atlantis", "Hotel Aurora")
	assert.Equal(t, protocol.ErrNoSuchCity, code)

	_, code = s.FindHotel("Rome", "Hotel Nessuno")
	assert.Equal(t, protocol.ErrNoSuchHotel, code)
}

func TestLookupsAreCaseInsensitive(t *testing.T) {
	s := newTestStore(t)

	assert.True(t, s.HasCity("ROME"))

	v, code := s.FindHotel("rome", "hotel aurora")
	assert.Equal(t, protocol.ErrNone, code)
	assert.Equal(t, "Hotel Aurora", v.Name)

	h, code := s.HotelByName("RoMe", "HOTEL AURORA")
	assert.Equal(t, protocol.ErrNone, code)
	assert.Equal(t, 1, h.ID)

	_, ok := s.CitySnapshot("rome")
	assert.True(t, ok)
}

func TestCitySnapshotOrderedByRank(t *testing.T) {
	s := newTestStore(t)

	views, ok := s.CitySnapshot("Rome")
	require.True(t, ok)
	require.Len(t, views, 2)
	assert.Equal(t, "Hotel Aurora", views[0].Name)
	assert.Equal(t, 1, views[0].RankPosition)
	assert.Equal(t, "Hotel Bella", views[1].Name)
	assert.Equal(t, 2, views[1].RankPosition)

	_, ok = s.CitySnapshot("Atlantis")
	assert.False(t, ok)
}

func TestPendingDetach(t *testing.T) {
	s := newTestStore(t)
	h, _ := s.HotelByID(1)

	h.AppendReview(Review{HotelID: 1, Username: "alice", Added: time.Now()})
	h.AppendReview(Review{HotelID: 1, Username: "bob", Added: time.Now()})
	assert.Equal(t, 2, h.PendingCount())

	detached := h.DetachPending()
	assert.Len(t, detached, 2)
	assert.Zero(t, h.PendingCount())
	assert.Empty(t, h.DetachPending())
}

func TestDumpQueueGrowsPastInitialCapacity(t *testing.T) {
	s := New(testHotels(), 2, zerolog.Nop())

	// Consumed reviews already moved an aggregate; none may be dropped.
	for id := 1; id <= 5; id++ {
		s.EnqueueDump(Review{HotelID: id})
	}
	assert.Equal(t, 5, s.DumpDepth())

	drained := s.DrainDump()
	assert.Len(t, drained, 5)
	assert.Zero(t, s.DumpDepth())
}

func TestPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	hotelsPath := filepath.Join(dir, "hotels.json")
	usersPath := filepath.Join(dir, "users.json")
	reviewsPath := filepath.Join(dir, "reviews.json")

	s := newTestStore(t)
	require.True(t, s.AddUser(NewUser("alice", "fp", "salt")))
	s.EnqueueDump(Review{HotelID: 1, Username: "alice", Added: time.Now().UTC()})

	require.NoError(t, s.SaveHotels(hotelsPath))
	require.NoError(t, s.SaveUsers(usersPath))
	n, err := s.DumpReviews(reviewsPath)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	hotels, err := LoadHotels(hotelsPath)
	require.NoError(t, err)
	assert.Len(t, hotels, 3)

	users, err := LoadUsers(usersPath)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "alice", users[0].Username)

	reviews, err := LoadReviews(reviewsPath)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, 1, reviews[0].HotelID)

	// A second dump appends instead of overwriting.
	s.EnqueueDump(Review{HotelID: 2, Username: "alice", Added: time.Now().UTC()})
	_, err = s.DumpReviews(reviewsPath)
	require.NoError(t, err)
	reviews, err = LoadReviews(reviewsPath)
	require.NoError(t, err)
	assert.Len(t, reviews, 2)
}

func TestLoadMissingFiles(t *testing.T) {
	dir := t.TempDir()

	users, err := LoadUsers(filepath.Join(dir, "absent.json"))
	require.NoError(t, err)
	assert.Nil(t, users)

	reviews, err := LoadReviews(filepath.Join(dir, "absent.json"))
	require.NoError(t, err)
	assert.Nil(t, reviews)

	_, err = LoadHotels(filepath.Join(dir, "absent.json"))
	assert.Error(t, err, "hotels file is required")
}

func TestReplayReviewsSkipsUnknownHotels(t *testing.T) {
	s := newTestStore(t)

	n := s.ReplayReviews([]Review{
		{HotelID: 1, Username: "alice"},
		{HotelID: 99, Username: "ghost"},
	})
	assert.Equal(t, 1, n)

	h, _ := s.HotelByID(1)
	assert.Equal(t, 1, h.PendingCount())
}

func TestSaveHotelsAtomicReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hotels.json")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))

	s := newTestStore(t)
	require.NoError(t, s.SaveHotels(path))

	hotels, err := LoadHotels(path)
	require.NoError(t, err)
	assert.Len(t, hotels, 3)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestSaveHotelsConcurrentWithRankingUpdates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hotels.json")
	s := newTestStore(t)

	// Saving must copy under the city lock; marshalling live entries would
	// race with a pass rewriting the aggregates.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			s.UpdateCity("Rome", func(hotels []*Hotel) {
				for _, h := range hotels {
					h.Rank += 0.01
					h.Rating.SetGlobal(h.Rank)
					h.RankPosition++
				}
			})
		}
	}()
	for i := 0; i < 20; i++ {
		require.NoError(t, s.SaveHotels(path))
	}
	<-done

	hotels, err := LoadHotels(path)
	require.NoError(t, err)
	assert.Len(t, hotels, 3)
}

func TestInitialPositionsDenseOnTies(t *testing.T) {
	s := New([]*Hotel{
		{ID: 1, Name: "Alpha", City: "Rome", Rank: 4},
		{ID: 2, Name: "Beta", City: "Rome", Rank: 4},
		{ID: 3, Name: "Gamma", City: "Rome", Rank: 2},
	}, 16, zerolog.Nop())

	views, ok := s.CitySnapshot("Rome")
	require.True(t, ok)
	require.Len(t, views, 3)
	assert.Equal(t, 1, views[0].RankPosition)
	assert.Equal(t, 1, views[1].RankPosition)
	assert.Equal(t, 2, views[2].RankPosition)
}
