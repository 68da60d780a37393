package server

import (
	"github.com/Mattia055/Hotelier2.0/internal/hash"
	"github.com/Mattia055/Hotelier2.0/internal/protocol"
	"github.com/Mattia055/Hotelier2.0/internal/session"
	"github.com/Mattia055/Hotelier2.0/internal/store"
)

// Registration and login are salted challenge exchanges: the first message
// names the account, the server answers AWAIT_INPUT carrying a salt, and
// the second message carries the hex SHA-256 fingerprint of password+salt.
// The cleartext password never crosses the wire.

func (d *Dispatcher) beginRegister(req protocol.Request, s *session.Session) protocol.Response {
	username, err := req.DataString()
	if err != nil || !d.cfg.UsernamePattern.MatchString(username) {
		return protocol.Fail(protocol.ErrInvalidRequest)
	}
	if _, exists := d.store.GetUser(username); exists {
		return protocol.Fail(protocol.ErrUserExists)
	}

	salt, saltErr := hash.GenerateSalt(d.cfg.SaltBytes)
	if saltErr != nil {
		d.log.Error().Err(saltErr).Msg("salt generation failed")
		return protocol.Fail(protocol.ErrServer)
	}
	s.BeginRegister(username, salt)
	return protocol.Await(salt)
}

func (d *Dispatcher) finishRegister(req protocol.Request, s *session.Session) protocol.Response {
	username, salt := s.TakeRegister()

	fingerprint, err := req.DataString()
	if err != nil || len(fingerprint) != hash.FingerprintLen {
		return protocol.Fail(protocol.ErrInvalidRequest)
	}

	// The existence check in step one is only advisory; the insert is the
	// authority, so two racing registrations resolve to one winner.
	if !d.store.AddUser(store.NewUser(username, fingerprint, salt)) {
		return protocol.Fail(protocol.ErrUserExists)
	}
	d.log.Info().Str("username", username).Msg("user registered")
	return protocol.OK(nil)
}

func (d *Dispatcher) beginLogin(req protocol.Request, s *session.Session) protocol.Response {
	if s.LoggedIn() {
		return protocol.Fail(protocol.ErrAlreadyLogged)
	}
	username, err := req.DataString()
	if err != nil {
		return protocol.Fail(protocol.ErrInvalidRequest)
	}
	u, ok := d.store.GetUser(username)
	if !ok {
		return protocol.Fail(protocol.ErrNoSuchUser)
	}
	if d.store.IsLogged(username) {
		return protocol.Fail(protocol.ErrAlreadyLogged)
	}
	s.BeginLogin(username)
	return protocol.Await(u.Salt)
}

func (d *Dispatcher) finishLogin(req protocol.Request, s *session.Session) protocol.Response {
	username := s.TakeLogin()

	fingerprint, err := req.DataString()
	if err != nil {
		return protocol.Fail(protocol.ErrInvalidRequest)
	}
	u, ok := d.store.GetUser(username)
	if !ok {
		return protocol.Fail(protocol.ErrNoSuchUser)
	}
	if fingerprint != u.Fingerprint {
		return protocol.Fail(protocol.ErrBadPassword)
	}

	// The logged set is the authority on single sessions; a concurrent
	// login between our check and here loses the race.
	if !d.store.Login(username) {
		return protocol.Fail(protocol.ErrAlreadyLogged)
	}
	s.Username = username
	d.log.Info().Str("username", username).Msg("user logged in")
	return protocol.OK(nil)
}

func (d *Dispatcher) logout(s *session.Session) protocol.Response {
	if !s.LoggedIn() {
		return protocol.Fail(protocol.ErrNotLogged)
	}
	d.store.Logout(s.Username)
	d.log.Info().Str("username", s.Username).Msg("user logged out")
	s.Reset()
	return protocol.OK(nil)
}

// EXT_LOGOUT evicts a session held elsewhere: a user locked out of their
// account (crashed client, stolen session) proves the password and the
// server clears the logged-in mark.

func (d *Dispatcher) beginExtLogout(req protocol.Request, s *session.Session) protocol.Response {
	username, err := req.DataString()
	if err != nil {
		return protocol.Fail(protocol.ErrInvalidRequest)
	}
	u, ok := d.store.GetUser(username)
	if !ok {
		return protocol.Fail(protocol.ErrNoSuchUser)
	}
	s.BeginExtLogout(username)
	return protocol.Await(u.Salt)
}

func (d *Dispatcher) finishExtLogout(req protocol.Request, s *session.Session) protocol.Response {
	username := s.TakeExtLogout()

	fingerprint, err := req.DataString()
	if err != nil {
		return protocol.Fail(protocol.ErrInvalidRequest)
	}
	u, ok := d.store.GetUser(username)
	if !ok {
		return protocol.Fail(protocol.ErrNoSuchUser)
	}
	if fingerprint != u.Fingerprint {
		return protocol.Fail(protocol.ErrBadPassword)
	}

	d.store.Logout(username)
	if s.Username == username {
		s.Reset()
	}
	d.log.Info().Str("username", username).Msg("session evicted via external logout")
	return protocol.OK(nil)
}

func (d *Dispatcher) isLogged(s *session.Session) protocol.Response {
	if !s.LoggedIn() {
		return protocol.Fail(protocol.ErrNotLogged)
	}
	return protocol.OK(s.Username)
}

func (d *Dispatcher) showBadge(s *session.Session) protocol.Response {
	if !s.LoggedIn() {
		return protocol.Fail(protocol.ErrNotLogged)
	}
	u, ok := d.store.GetUser(s.Username)
	if !ok {
		return protocol.Fail(protocol.ErrServer)
	}
	return protocol.OK(u.CurrentBadge())
}
