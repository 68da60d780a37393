package server

import (
	"github.com/Mattia055/Hotelier2.0/internal/protocol"
	"github.com/Mattia055/Hotelier2.0/internal/session"
)

// Lookups are open to anonymous clients; only review submission and badge
// display require an authenticated session.

func (d *Dispatcher) searchHotel(req protocol.Request) protocol.Response {
	pair, err := req.DataPair()
	if err != nil {
		return protocol.Fail(protocol.ErrInvalidRequest)
	}
	view, code := d.store.FindHotel(pair[0], pair[1])
	if code != protocol.ErrNone {
		return protocol.Fail(code)
	}
	return protocol.OK(view)
}

// peekHotel answers whether the hotel is in the directory without
// disclosing its record.
func (d *Dispatcher) peekHotel(req protocol.Request) protocol.Response {
	pair, err := req.DataPair()
	if err != nil {
		return protocol.Fail(protocol.ErrInvalidRequest)
	}
	if _, code := d.store.FindHotel(pair[0], pair[1]); code != protocol.ErrNone {
		return protocol.Fail(code)
	}
	return protocol.OK(nil)
}

// SEARCH_ALL returns a city's hotels in rank order, paginated. The first
// request snapshots the city so the client pages through a consistent view
// even while ranking passes reorder the live table.

func (d *Dispatcher) beginSearchAll(req protocol.Request, s *session.Session) protocol.Response {
	city, err := req.DataString()
	if err != nil {
		return protocol.Fail(protocol.ErrInvalidRequest)
	}
	views, ok := d.store.CitySnapshot(city)
	if !ok {
		return protocol.Fail(protocol.ErrNoSuchCity)
	}
	if len(views) <= d.cfg.BatchSize {
		return protocol.OK(views)
	}
	s.BeginSearch(views)
	return d.continueSearchAll(s)
}

func (d *Dispatcher) continueSearchAll(s *session.Session) protocol.Response {
	cur := s.SearchCursor()
	if cur == nil {
		// Continuation without a parked search; the session state got out
		// of sync with the client.
		return protocol.Fail(protocol.ErrBadSession)
	}

	end := cur.Pos + d.cfg.BatchSize
	if end >= len(cur.Hotels) {
		page := cur.Hotels[cur.Pos:]
		s.Flush()
		return protocol.OK(page)
	}
	page := cur.Hotels[cur.Pos:end]
	cur.Pos = end
	return protocol.Await(page)
}
