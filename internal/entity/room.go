package entity

import (
	"errors"
	"fmt"
)

const (
	StatusWaiting  = "waiting"
	StatusPlaying  = "playing"
	StatusFinished = "finished"
)

var (
	ErrPositionTaken = errors.New("position is already taken")
	ErrBadSequence   = errors.New("move sequence is not gapless")
)

// Move - one committed cell claim inside a room. Sequence numbers start at 0
// and are gapless within a room's move list.
type Move struct {
	Position int    `json:"position"`
	Mark     string `json:"mark"`
	Sequence int    `json:"sequence"`
}

// Room - the shared document representing one online match. It is owned
// jointly by the two clients that hold its code; whichever client holds the
// current turn is the only legal writer of Moves.
type Room struct {
	ID      string     `json:"id"`
	PlayerX *PlayerRef `json:"player_x"`
	PlayerO *PlayerRef `json:"player_o,omitempty"`
	Status  string     `json:"status"`
	Turn    string     `json:"turn"`
	Moves   []Move     `json:"moves"`
	Winner  string     `json:"winner,omitempty"`
}

// NewRoom - a fresh waiting room hosted by playerX, X to move.
func NewRoom(id string, host PlayerRef) *Room {
	return &Room{
		ID:      id,
		PlayerX: &host,
		Status:  StatusWaiting,
		Turn:    PlayerX,
		Moves:   []Move{},
	}
}

func (that *Room) IsWaiting() bool {
	return that.Status == StatusWaiting
}

func (that *Room) IsPlaying() bool {
	return that.Status == StatusPlaying
}

func (that *Room) IsFinished() bool {
	return that.Status == StatusFinished
}

// NextSequence - the sequence number the next appended move must carry.
func (that *Room) NextSequence() int {
	return len(that.Moves)
}

// Board - replays the move list into a board.
func (that *Room) Board() Board {
	board := NewBoard()
	for _, move := range that.Moves {
		board[move.Position] = move.Mark
	}

	return board
}

// AppendMove - appends a move after validating position uniqueness and
// sequence gaplessness. Turn ownership is validated by the synchronizer.
func (that *Room) AppendMove(move Move) error {
	if move.Sequence != that.NextSequence() {
		return fmt.Errorf("%w: got %d, want %d", ErrBadSequence, move.Sequence, that.NextSequence())
	}

	for _, existing := range that.Moves {
		if existing.Position == move.Position {
			return fmt.Errorf("%w: position %d", ErrPositionTaken, move.Position)
		}
	}

	that.Moves = append(that.Moves, move)

	return nil
}

// PlayerByMark - the player holding the given mark, nil if that seat is empty.
func (that *Room) PlayerByMark(mark string) *PlayerRef {
	if mark == PlayerX {
		return that.PlayerX
	}

	return that.PlayerO
}
