package server

import (
	"regexp"

	"github.com/rs/zerolog"

	"github.com/Mattia055/Hotelier2.0/internal/metrics"
	"github.com/Mattia055/Hotelier2.0/internal/protocol"
	"github.com/Mattia055/Hotelier2.0/internal/session"
	"github.com/Mattia055/Hotelier2.0/internal/store"
)

// DispatcherConfig carries the request handling knobs.
type DispatcherConfig struct {
	// UsernamePattern validates usernames at registration.
	UsernamePattern *regexp.Regexp
	// SaltBytes is the raw length of generated password salts.
	SaltBytes int
	// BatchSize is the page size of SEARCH_ALL results.
	BatchSize int
}

// Dispatcher routes one request against one connection's session state and
// produces the response. It holds no per-connection state itself, so a
// single dispatcher serves every connection concurrently.
type Dispatcher struct {
	store *store.Store
	cfg   DispatcherConfig
	log   zerolog.Logger
}

// NewDispatcher builds a dispatcher over the shared store.
func NewDispatcher(st *store.Store, cfg DispatcherConfig, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		store: st,
		cfg:   cfg,
		log:   log.With().Str("component", "dispatcher").Logger(),
	}
}

// Handle processes req for the connection owning s.
//
// Multi-step operations park their state in the session. A non-idle session
// interprets the incoming request as the second step of the parked
// operation no matter which method the client claims; a payload that does
// not fit the expected step fails and clears the session.
func (d *Dispatcher) Handle(req protocol.Request, s *session.Session) protocol.Response {
	resp := d.handle(req, s)
	metrics.RequestHandled(string(req.Method), string(resp.Status))
	return resp
}

func (d *Dispatcher) handle(req protocol.Request, s *session.Session) protocol.Response {
	switch s.Kind() {
	case session.AwaitingRegisterPassword:
		return d.finishRegister(req, s)
	case session.AwaitingLoginPassword:
		return d.finishLogin(req, s)
	case session.AwaitingLogoutPassword:
		return d.finishExtLogout(req, s)
	case session.AwaitingReviewScore:
		return d.finishReview(req, s)
	case session.PaginatingSearch:
		return d.continueSearchAll(s)
	}

	switch req.Method {
	case protocol.MethodRegister:
		return d.beginRegister(req, s)
	case protocol.MethodLogin:
		return d.beginLogin(req, s)
	case protocol.MethodLogout:
		return d.logout(s)
	case protocol.MethodExtLogout:
		return d.beginExtLogout(req, s)
	case protocol.MethodIsLogged:
		return d.isLogged(s)
	case protocol.MethodSearchHotel:
		return d.searchHotel(req)
	case protocol.MethodPeekHotel:
		return d.peekHotel(req)
	case protocol.MethodSearchAll:
		return d.beginSearchAll(req, s)
	case protocol.MethodReview:
		return d.beginReview(req, s)
	case protocol.MethodShowBadge:
		return d.showBadge(s)
	default:
		return protocol.Fail(protocol.ErrInvalidRequest)
	}
}
