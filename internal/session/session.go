package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/clickwinreign/tictactoe-backend/internal/apperror"
	"github.com/clickwinreign/tictactoe-backend/internal/bot"
	"github.com/clickwinreign/tictactoe-backend/internal/entity"
)

const (
	StateModeSelect  = "mode_select"
	StateBotPlaying  = "bot_playing"
	StateOnlineLobby = "online_lobby"
	StateFinished    = "finished"
)

var (
	ErrBadState        = errors.New("operation not allowed in current state")
	ErrBadHistoryIndex = errors.New("history index out of range")
)

// Reporter - persists the outcome of one finished game. The session
// guarantees at most one call per game; the reporter does not deduplicate.
type Reporter interface {
	Report(ctx context.Context, playerX, playerO entity.PlayerRef, winnerID string)
}

// RoomClient - the session's narrow view of the room synchronizer. The call
// only requests the move; the committed result comes back through ApplyRoom.
type RoomClient interface {
	SubmitMove(ctx context.Context, roomID, mark string, position int) error
}

// Session - one client's local view of the current match. History keeps every
// board the game has passed through, index 0 being the empty board; cursor
// points at the board currently shown. Submitting a move from a non-tip
// cursor discards everything after it.
type Session struct {
	logger   *slog.Logger
	reporter Reporter

	// thinkDelay paces the bot reply; any non-negative value is fine.
	thinkDelay time.Duration

	state   string
	history []entity.Board
	cursor  int

	reported bool

	human entity.PlayerRef

	rooms  RoomClient
	roomID string
	mark   string
	room   *entity.Room
}

func New(logger *slog.Logger, reporter Reporter, thinkDelay time.Duration) *Session {
	return &Session{
		logger:     logger.With("component", "session"),
		reporter:   reporter,
		thinkDelay: thinkDelay,
		state:      StateModeSelect,
		history:    []entity.Board{entity.NewBoard()},
	}
}

func (that *Session) State() string { return that.state }

// Board - the board at the cursor.
func (that *Session) Board() entity.Board {
	return that.history[that.cursor]
}

// HistoryLen - number of boards recorded so far, including the empty one.
func (that *Session) HistoryLen() int { return len(that.history) }

// TurnMark - whose mark the next submitted move carries. X moves on even
// cursors, starting with the empty board.
func (that *Session) TurnMark() string {
	if that.cursor%2 == 0 {
		return entity.PlayerX
	}
	return entity.PlayerO
}

// StartBotGame - leaves mode select for a local game against the bot. The
// human plays X.
func (that *Session) StartBotGame(human entity.PlayerRef) error {
	if that.state != StateModeSelect {
		return fmt.Errorf("%w: %s", ErrBadState, that.state)
	}

	that.human = human
	that.state = StateBotPlaying

	return nil
}

// StartOnlineGame - leaves mode select for an online game played through the
// given room under the given mark.
func (that *Session) StartOnlineGame(rooms RoomClient, roomID, mark string) error {
	if that.state != StateModeSelect {
		return fmt.Errorf("%w: %s", ErrBadState, that.state)
	}

	that.rooms = rooms
	that.roomID = roomID
	that.mark = mark
	that.state = StateOnlineLobby

	return nil
}

// SubmitMove - plays a cell for whoever holds the turn at the cursor. In bot
// mode the bot's reply is applied through the same path after the thinking
// delay. In online mode the move is forwarded to the room and takes effect
// locally only when the committed room document comes back via ApplyRoom.
func (that *Session) SubmitMove(ctx context.Context, position int) error {
	switch that.state {
	case StateBotPlaying:
		return that.submitBotModeMove(ctx, position)
	case StateOnlineLobby:
		return that.submitOnlineMove(ctx, position)
	case StateFinished:
		return apperror.ErrGameFinished
	default:
		return fmt.Errorf("%w: %s", ErrBadState, that.state)
	}
}

func (that *Session) submitBotModeMove(ctx context.Context, position int) error {
	if that.TurnMark() != entity.PlayerX {
		return apperror.ErrNotYourTurn
	}

	if err := that.applyMove(position, entity.PlayerX); err != nil {
		return err
	}

	if that.checkTerminal(ctx) {
		return nil
	}

	if that.thinkDelay > 0 {
		time.Sleep(that.thinkDelay)
	}

	cell, err := bot.ChooseMove(that.Board())
	if err != nil {
		return fmt.Errorf("bot failed to choose a move: %w", err)
	}

	if err = that.applyMove(cell, entity.PlayerO); err != nil {
		return fmt.Errorf("bot failed to make turn: %w", err)
	}

	that.checkTerminal(ctx)

	return nil
}

func (that *Session) submitOnlineMove(ctx context.Context, position int) error {
	if that.mark != that.TurnMark() {
		return apperror.ErrNotYourTurn
	}

	if !entity.IsLegalMove(that.Board(), position) {
		return fmt.Errorf("%w: position %d", apperror.ErrIllegalMove, position)
	}

	if err := that.rooms.SubmitMove(ctx, that.roomID, that.mark, position); err != nil {
		return fmt.Errorf("failed to submit online move: %w", err)
	}

	return nil
}

// applyMove - truncate-on-write: everything after the cursor is discarded,
// then the new board is appended and the cursor moves to the new tip.
func (that *Session) applyMove(position int, mark string) error {
	board := that.Board()
	if !entity.IsLegalMove(board, position) {
		return fmt.Errorf("%w: position %d", apperror.ErrIllegalMove, position)
	}

	board[position] = mark

	that.history = append(that.history[:that.cursor+1], board)
	that.cursor = len(that.history) - 1

	return nil
}

// checkTerminal - transitions to Finished and reports the result exactly
// once. Safe to call again on an already finished session.
func (that *Session) checkTerminal(ctx context.Context) bool {
	board := that.Board()

	winner, _, won := entity.WinnerOf(board)
	if !won && !entity.IsDraw(board) {
		return false
	}

	that.state = StateFinished

	if that.reported {
		return true
	}
	that.reported = true

	var winnerID string
	botRef := entity.NewBotRef()
	switch winner {
	case entity.PlayerX:
		winnerID = that.human.ID
	case entity.PlayerO:
		winnerID = botRef.ID
	}

	that.reporter.Report(ctx, that.human, botRef, winnerID)

	return true
}

// JumpTo - moves the cursor to any recorded board without touching history.
func (that *Session) JumpTo(index int) error {
	if index < 0 || index >= len(that.history) {
		return fmt.Errorf("%w: %d", ErrBadHistoryIndex, index)
	}

	that.cursor = index

	return nil
}

// ApplyRoom - replaces local history with the committed room document. Every
// snapshot is a full-state replace, never a diff. Snapshots older than the
// one already applied are ignored.
func (that *Session) ApplyRoom(room *entity.Room) {
	if that.state != StateOnlineLobby && that.state != StateFinished {
		return
	}

	if that.isStaleSnapshot(room) {
		return
	}

	that.room = room

	history := make([]entity.Board, 0, len(room.Moves)+1)
	board := entity.NewBoard()
	history = append(history, board)
	for _, move := range room.Moves {
		board[move.Position] = move.Mark
		history = append(history, board)
	}

	that.history = history
	that.cursor = len(history) - 1

	if room.IsFinished() {
		// The committing side's synchronizer already reported the result.
		that.state = StateFinished
	}
}

// isStaleSnapshot - pub/sub delivery can race the subscription's resync
// read, so a snapshot older than the applied one may arrive after it. Move
// counts are gapless and finished is terminal, so older means fewer moves or
// a rewind out of finished.
func (that *Session) isStaleSnapshot(room *entity.Room) bool {
	if that.room == nil {
		return false
	}

	if len(room.Moves) < len(that.room.Moves) {
		return true
	}

	return that.room.IsFinished() && !room.IsFinished()
}

// Room - the last committed room document seen, nil before the first push.
func (that *Session) Room() *entity.Room { return that.room }

// Reset - back to mode select with a fresh board.
func (that *Session) Reset() {
	that.state = StateModeSelect
	that.history = []entity.Board{entity.NewBoard()}
	that.cursor = 0
	that.reported = false
	that.rooms = nil
	that.roomID = ""
	that.mark = ""
	that.room = nil
}
