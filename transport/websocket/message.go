package websocket

import (
	"encoding/json"
	"errors"
)

// Client actions.
const (
	ActionHello      = "hello"
	ActionBotStart   = "bot:start"
	ActionMove       = "move"
	ActionJump       = "jump"
	ActionRoomCreate = "room:create"
	ActionRoomJoin   = "room:join"
	ActionRoomLeave  = "room:leave"
	ActionReset      = "reset"
)

// Server push types.
const (
	TypeSession = "session"
	TypeRoom    = "room"
	TypeError   = "error"
)

var errNoHello = errors.New("say hello first")

// Message - the JSON envelope in both directions.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type HelloPayload struct {
	Token string `json:"token,omitempty"`
}

type MovePayload struct {
	Position int `json:"position"`
}

type JumpPayload struct {
	Index int `json:"index"`
}

type RoomJoinPayload struct {
	RoomID string `json:"room_id"`
}

type SessionPayload struct {
	State      string   `json:"state"`
	Board      []string `json:"board"`
	Turn       string   `json:"turn"`
	HistoryLen int      `json:"history_len"`
	Mark       string   `json:"mark,omitempty"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
