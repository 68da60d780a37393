package server

import (
	"time"

	"github.com/Mattia055/Hotelier2.0/internal/protocol"
	"github.com/Mattia055/Hotelier2.0/internal/session"
	"github.com/Mattia055/Hotelier2.0/internal/store"
)

// A review is a two-step exchange: the first message names the hotel, the
// second carries the five scores. The review lands on the hotel's pending
// queue and only affects rating and rank when the next pass folds it.

func (d *Dispatcher) beginReview(req protocol.Request, s *session.Session) protocol.Response {
	if !s.LoggedIn() {
		return protocol.Fail(protocol.ErrMustLogin)
	}
	pair, err := req.DataPair()
	if err != nil {
		return protocol.Fail(protocol.ErrInvalidRequest)
	}
	h, code := d.store.HotelByName(pair[0], pair[1])
	if code != protocol.ErrNone {
		return protocol.Fail(code)
	}
	s.BeginReview(h.ID)
	return protocol.Await(nil)
}

func (d *Dispatcher) finishReview(req protocol.Request, s *session.Session) protocol.Response {
	// Take first: a malformed or out-of-range score ends the exchange, the
	// client starts over from the hotel name.
	hotelID := s.TakeReview()

	sc, err := req.DataScore()
	if err != nil {
		return protocol.Fail(protocol.ErrInvalidRequest)
	}
	if code := sc.Validate(); code != protocol.ErrNone {
		return protocol.Fail(code)
	}

	h, ok := d.store.HotelByID(hotelID)
	if !ok {
		return protocol.Fail(protocol.ErrServer)
	}
	u, ok := d.store.GetUser(s.Username)
	if !ok {
		return protocol.Fail(protocol.ErrServer)
	}

	sc.SetGlobal(sc.Global)
	sc.SetPosition(sc.Position)
	sc.SetCleaning(sc.Cleaning)
	sc.SetService(sc.Service)
	sc.SetPrice(sc.Price)

	h.AppendReview(store.Review{
		HotelID:    hotelID,
		Username:   s.Username,
		Experience: u.CurrentExperience(),
		Added:      time.Now().UTC(),
		Score:      sc,
	})
	d.log.Debug().
		Str("username", s.Username).
		Int("hotel_id", hotelID).
		Msg("review queued")
	return protocol.OK(nil)
}
