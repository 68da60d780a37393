// Package session tracks per-connection protocol state. Multi-step
// operations (register, login, review, paginated search) park their
// intermediate data here between client messages.
//
// The state is a tagged union: exactly one step can be in flight, and each
// step carries only the data it needs. While a step is parked, the next
// incoming request is its continuation; illegal continuations are
// unrepresentable rather than runtime-checked.
package session

import "github.com/Mattia055/Hotelier2.0/internal/protocol"

// Kind discriminates the in-flight step.
type Kind int

const (
	Idle Kind = iota
	AwaitingRegisterPassword
	AwaitingLoginPassword
	AwaitingLogoutPassword
	AwaitingReviewScore
	PaginatingSearch
)

// Cursor is the parked state of a paginated city search.
type Cursor struct {
	Hotels []protocol.HotelView
	Pos    int
}

// Session is the per-connection protocol state. Username is set once the
// connection authenticates and survives step transitions until logout or
// disconnect.
type Session struct {
	Username string

	kind     Kind
	register pendingRegister
	login    string // username awaiting fingerprint
	logout   string
	review   int // hotel id awaiting score
	cursor   Cursor
}

type pendingRegister struct {
	username string
	salt     string
}

// Kind returns the step currently in flight.
func (s *Session) Kind() Kind { return s.kind }

// LoggedIn reports whether the connection has authenticated.
func (s *Session) LoggedIn() bool { return s.Username != "" }

// Flush abandons any in-flight step, keeping the authenticated identity.
func (s *Session) Flush() {
	s.kind = Idle
	s.register = pendingRegister{}
	s.login = ""
	s.logout = ""
	s.review = 0
	s.cursor = Cursor{}
}

// Reset drops both the in-flight step and the authenticated identity.
// Called on logout and when the connection goes away.
func (s *Session) Reset() {
	s.Flush()
	s.Username = ""
}

// BeginRegister parks a provisional account awaiting its fingerprint.
func (s *Session) BeginRegister(username, salt string) {
	s.Flush()
	s.kind = AwaitingRegisterPassword
	s.register = pendingRegister{username: username, salt: salt}
}

// TakeRegister consumes the parked registration.
func (s *Session) TakeRegister() (username, salt string) {
	username, salt = s.register.username, s.register.salt
	s.Flush()
	return username, salt
}

// BeginLogin parks the username awaiting its fingerprint.
func (s *Session) BeginLogin(username string) {
	s.Flush()
	s.kind = AwaitingLoginPassword
	s.login = username
}

// TakeLogin consumes the parked login.
func (s *Session) TakeLogin() string {
	username := s.login
	s.Flush()
	return username
}

// BeginExtLogout parks the username awaiting password confirmation for a
// remote logout.
func (s *Session) BeginExtLogout(username string) {
	s.Flush()
	s.kind = AwaitingLogoutPassword
	s.logout = username
}

// TakeExtLogout consumes the parked remote logout.
func (s *Session) TakeExtLogout() string {
	username := s.logout
	s.Flush()
	return username
}

// BeginReview parks the target hotel awaiting its score.
func (s *Session) BeginReview(hotelID int) {
	s.Flush()
	s.kind = AwaitingReviewScore
	s.review = hotelID
}

// TakeReview consumes the parked review target.
func (s *Session) TakeReview() int {
	id := s.review
	s.Flush()
	return id
}

// BeginSearch parks a snapshot of search results for pagination.
func (s *Session) BeginSearch(hotels []protocol.HotelView) {
	s.Flush()
	s.kind = PaginatingSearch
	s.cursor = Cursor{Hotels: hotels}
}

// SearchCursor exposes the parked cursor for advancing. Returns nil when no
// search is paginating.
func (s *Session) SearchCursor() *Cursor {
	if s.kind != PaginatingSearch {
		return nil
	}
	return &s.cursor
}
