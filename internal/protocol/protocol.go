// Package protocol defines the wire types exchanged between the Hotelier
// server and its clients: a request/response pair serialized as JSON and
// framed by the transport layer (see internal/frame).
//
// Every request carries a method name and a polymorphic data field whose
// shape depends on the method and on the step of the exchange: a plain
// string (usernames, cities, password fingerprints), a [2]string pair
// (city + hotel name), or a Score object. The data field is kept as raw
// JSON until a handler knows which shape to expect.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Method identifies a client operation.
type Method string

const (
	MethodRegister    Method = "REGISTER"
	MethodLogin       Method = "LOGIN"
	MethodLogout      Method = "LOGOUT"
	MethodExtLogout   Method = "EXT_LOGOUT"
	MethodSearchHotel Method = "SEARCH_HOTEL"
	MethodPeekHotel   Method = "PEEK_HOTEL"
	MethodSearchAll   Method = "SEARCH_ALL"
	MethodReview      Method = "REVIEW"
	MethodShowBadge   Method = "SHOW_BADGE"
	MethodIsLogged    Method = "IS_LOGGED"
)

// Status is the coarse outcome of a request.
type Status string

const (
	StatusReady      Status = "READY"
	StatusSuccess    Status = "SUCCESS"
	StatusFailure    Status = "FAILURE"
	StatusAwaitInput Status = "AWAIT_INPUT"
)

// ErrCode is the specific error carried by a FAILURE response. Codes are
// part of the wire contract; the mnemonic is a human-readable hint only.
type ErrCode string

const (
	ErrNone           ErrCode = "NO_ERR"
	ErrNoSuchUser     ErrCode = "NO_SUCH_USER"
	ErrBadPassword    ErrCode = "BAD_PASSWD"
	ErrUserExists     ErrCode = "USER_EXISTS"
	ErrMustLogin      ErrCode = "MUST_LOGIN"
	ErrNoSuchCity     ErrCode = "NO_SUCH_CITY"
	ErrNoSuchHotel    ErrCode = "NO_SUCH_HOTEL"
	ErrInvalidRequest ErrCode = "INVALID_REQUEST"
	ErrAlreadyLogged  ErrCode = "ALREADY_LOGGED"
	ErrNotLogged      ErrCode = "NOT_LOGGED"
	ErrBadSession     ErrCode = "BAD_SESSION"
	ErrScoreGlobal    ErrCode = "SCORE_GLOBAL"
	ErrScorePosition  ErrCode = "SCORE_POSITION"
	ErrScoreCleaning  ErrCode = "SCORE_CLEANING"
	ErrScorePrice     ErrCode = "SCORE_PRICE"
	ErrScoreService   ErrCode = "SCORE_SERVICE"
	ErrServer         ErrCode = "SERVER_ERROR"
)

var mnemonics = map[ErrCode]string{
	ErrNone:           "no error occurred",
	ErrNoSuchUser:     "the user you are trying to access does not exist",
	ErrBadPassword:    "the password you entered is incorrect",
	ErrUserExists:     "a user with this username already exists",
	ErrMustLogin:      "you need to log in to perform this action",
	ErrNoSuchCity:     "the specified city could not be found",
	ErrNoSuchHotel:    "the specified hotel could not be found",
	ErrInvalidRequest: "the provided request does not meet the required format or constraints",
	ErrAlreadyLogged:  "user has already logged in from another device",
	ErrNotLogged:      "user is not logged in",
	ErrBadSession:     "the session is not valid or has expired",
	ErrScoreGlobal:    fmt.Sprintf("the global score needs to be between %v and %v", ScoreMin, ScoreMax),
	ErrScorePosition:  fmt.Sprintf("the position score needs to be between %v and %v", ScoreMin, ScoreMax),
	ErrScoreCleaning:  fmt.Sprintf("the cleaning score needs to be between %v and %v", ScoreMin, ScoreMax),
	ErrScorePrice:     fmt.Sprintf("the price score needs to be between %v and %v", ScoreMin, ScoreMax),
	ErrScoreService:   fmt.Sprintf("the service score needs to be between %v and %v", ScoreMin, ScoreMax),
	ErrServer:         "an error occurred on the server; your request could not be processed",
}

// Mnemonic returns the human-readable description of the error code.
func (e ErrCode) Mnemonic() string {
	if m, ok := mnemonics[e]; ok {
		return m
	}
	return string(e)
}

// Request is an incoming client message. Data is decoded lazily because its
// shape depends on the method and on the protocol step.
type Request struct {
	Method Method          `json:"method"`
	Data   json.RawMessage `json:"data"`
}

// ErrDataShape reports that a request's data field does not have the shape
// the current protocol step expects.
var ErrDataShape = errors.New("protocol: unexpected request data shape")

// DataString decodes the data field as a single string.
func (r Request) DataString() (string, error) {
	var s string
	if len(r.Data) == 0 || json.Unmarshal(r.Data, &s) != nil {
		return "", ErrDataShape
	}
	return s, nil
}

// DataPair decodes the data field as a two-element string array
// (city, hotel name).
func (r Request) DataPair() ([2]string, error) {
	var pair [2]string
	if len(r.Data) == 0 {
		return pair, ErrDataShape
	}
	var elems []string
	if json.Unmarshal(r.Data, &elems) != nil || len(elems) != 2 {
		return pair, ErrDataShape
	}
	pair[0], pair[1] = elems[0], elems[1]
	return pair, nil
}

// DataScore decodes the data field as a Score object.
func (r Request) DataScore() (Score, error) {
	var sc Score
	if len(r.Data) == 0 || json.Unmarshal(r.Data, &sc) != nil {
		return sc, ErrDataShape
	}
	return sc, nil
}

// Response is the server's reply to a single request.
type Response struct {
	Status  Status  `json:"status"`
	Error   ErrCode `json:"error"`
	Payload any     `json:"payload"`
}

// OK builds a SUCCESS response with an optional payload.
func OK(payload any) Response {
	return Response{Status: StatusSuccess, Error: ErrNone, Payload: payload}
}

// Await builds an AWAIT_INPUT response: the operation needs one more client
// step before it can complete.
func Await(payload any) Response {
	return Response{Status: StatusAwaitInput, Error: ErrNone, Payload: payload}
}

// Fail builds a FAILURE response carrying the given error code.
func Fail(code ErrCode) Response {
	return Response{Status: StatusFailure, Error: code}
}

// HotelView is the public projection of a hotel sent to clients. It omits
// server-internal fields (numeric id, pending review queue).
type HotelView struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	City         string   `json:"city"`
	Phone        string   `json:"phone"`
	Services     []string `json:"services"`
	Rank         float64  `json:"rank"`
	Rating       Score    `json:"rating"`
	RankPosition int      `json:"rank_position"`
}
