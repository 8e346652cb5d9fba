package room

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/clickwinreign/tictactoe-backend/internal/apperror"
	"github.com/clickwinreign/tictactoe-backend/internal/entity"
	"github.com/clickwinreign/tictactoe-backend/internal/pkg"
	"github.com/clickwinreign/tictactoe-backend/internal/repository"
)

// createAttempts bounds retries on room-code collisions.
const createAttempts = 5

// updateRetries bounds retries of join and leave updates that lose a write
// race. Moves never retry, a lost race there means the turn moved on.
const updateRetries = 3

// Reporter - persists the outcome of one finished online game.
type Reporter interface {
	Report(ctx context.Context, playerX, playerO entity.PlayerRef, winnerID string)
}

// Synchronizer - keeps a shared room document the single source of truth for
// an online match. All writes go through the repository's atomic update, so
// turn ownership is re-validated against the stored document at commit time,
// never trusted from the caller's stale view.
type Synchronizer struct {
	logger   *slog.Logger
	rooms    repository.RoomRepository
	reporter Reporter

	// retention - how long a finished room stays readable before deletion.
	retention time.Duration
}

func NewSynchronizer(logger *slog.Logger, rooms repository.RoomRepository, reporter Reporter, retention time.Duration) *Synchronizer {
	return &Synchronizer{
		logger:    logger.With("component", "room"),
		rooms:     rooms,
		reporter:  reporter,
		retention: retention,
	}
}

// CreateRoom - allocates a fresh code and writes a waiting room with the
// host seated as X.
func (that *Synchronizer) CreateRoom(ctx context.Context, host entity.PlayerRef) (*entity.Room, error) {
	for attempt := 0; attempt < createAttempts; attempt++ {
		code, err := pkg.GenerateRoomCode()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", apperror.ErrRoomCreateFailed, err)
		}

		newRoom := entity.NewRoom(code, host)

		err = that.rooms.Create(ctx, newRoom)
		if errors.Is(err, repository.ErrRoomExists) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", apperror.ErrRoomCreateFailed, err)
		}

		that.logger.Info("room created", "room", code, "host", host.ID)

		return newRoom, nil
	}

	return nil, fmt.Errorf("%w: code space exhausted", apperror.ErrRoomCreateFailed)
}

// JoinRoom - seats the guest as O and starts the game. A lost write race is
// retried; the precondition is re-checked against the fresh document each
// attempt.
func (that *Synchronizer) JoinRoom(ctx context.Context, roomID string, guest entity.PlayerRef) (*entity.Room, error) {
	updated, err := that.retryOnConflict(ctx, roomID, func(room *entity.Room) error {
		if !room.IsWaiting() {
			return fmt.Errorf("%w: status %s", apperror.ErrRoomNotJoinable, room.Status)
		}

		if room.PlayerX != nil && room.PlayerX.ID == guest.ID {
			return apperror.ErrSelfJoin
		}

		room.PlayerO = &guest
		room.Status = entity.StatusPlaying

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to join room: %w", err)
	}

	that.logger.Info("room joined", "room", roomID, "guest", guest.ID)

	return updated, nil
}

// Subscribe - ordered full-state snapshots of the room, latest known state
// first. The only channel through which a client learns the opponent's
// moves.
func (that *Synchronizer) Subscribe(ctx context.Context, roomID string) (<-chan *entity.Room, func(), error) {
	updates, cancel, err := that.rooms.Subscribe(ctx, roomID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to subscribe to room: %w", err)
	}

	return updates, cancel, nil
}

// SubmitMove - commits one move as a single atomic update: turn ownership is
// re-checked against the stored document, the move is appended with the next
// sequence, the turn flips, and a terminal board finishes the room in the
// same commit. A caller whose turn already advanced remotely gets
// ErrStaleTurn and should wait for the next subscription push instead of
// retrying.
func (that *Synchronizer) SubmitMove(ctx context.Context, roomID, mark string, position int) error {
	updated, err := that.rooms.AtomicUpdate(ctx, roomID, func(room *entity.Room) error {
		if room.IsFinished() {
			return apperror.ErrGameFinished
		}
		if !room.IsPlaying() {
			return fmt.Errorf("%w: status %s", apperror.ErrRoomNotJoinable, room.Status)
		}

		if room.Turn != mark {
			return apperror.ErrStaleTurn
		}

		board := room.Board()
		if !entity.IsLegalMove(board, position) {
			return fmt.Errorf("%w: position %d", apperror.ErrIllegalMove, position)
		}

		move := entity.Move{Position: position, Mark: mark, Sequence: room.NextSequence()}
		if err := room.AppendMove(move); err != nil {
			return fmt.Errorf("%w: %w", apperror.ErrIllegalMove, err)
		}

		board[position] = mark

		switch winner, _, won := entity.WinnerOf(board); {
		case won:
			room.Winner = winner
			room.Status = entity.StatusFinished
			room.Turn = ""
		case entity.IsDraw(board):
			room.Status = entity.StatusFinished
			room.Turn = ""
		default:
			room.Turn = entity.ToggleMark(mark)
		}

		return nil
	})
	if errors.Is(err, apperror.ErrUpdateConflict) {
		// the opponent's commit landed first, the caller's view of the turn
		// is stale
		return fmt.Errorf("failed to submit move: %w", apperror.ErrStaleTurn)
	}
	if err != nil {
		return fmt.Errorf("failed to submit move: %w", err)
	}

	if updated.IsFinished() {
		// only the client whose commit finished the game gets here, so the
		// result is reported exactly once
		that.finishRoom(ctx, updated)
	}

	return nil
}

// LeaveRoom - a mid-game leave awards the opponent the win; leaving a room
// nobody ever joined just deletes it.
func (that *Synchronizer) LeaveRoom(ctx context.Context, roomID, leaverMark string) error {
	current, err := that.rooms.GetByID(ctx, roomID)
	if err != nil {
		return fmt.Errorf("failed to get room by id: %w", err)
	}

	if current.PlayerO == nil {
		if err = that.rooms.DeleteByID(ctx, roomID); err != nil {
			return fmt.Errorf("failed to delete room: %w", err)
		}

		that.logger.Info("empty room deleted", "room", roomID)

		return nil
	}

	if current.IsFinished() {
		return nil
	}

	updated, err := that.retryOnConflict(ctx, roomID, func(room *entity.Room) error {
		if room.IsFinished() {
			return apperror.ErrGameFinished
		}

		room.Winner = entity.ToggleMark(leaverMark)
		room.Status = entity.StatusFinished
		room.Turn = ""

		return nil
	})
	if errors.Is(err, apperror.ErrGameFinished) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to leave room: %w", err)
	}

	that.logger.Info("room left mid-game", "room", roomID, "leaver", leaverMark, "winner", updated.Winner)

	that.finishRoom(ctx, updated)

	return nil
}

// retryOnConflict - re-runs the update when the optimistic transaction loses
// a write race. mutate sees the freshly read document on every attempt.
func (that *Synchronizer) retryOnConflict(ctx context.Context, roomID string, mutate func(room *entity.Room) error) (*entity.Room, error) {
	var updated *entity.Room
	var err error

	for attempt := 0; attempt < updateRetries; attempt++ {
		updated, err = that.rooms.AtomicUpdate(ctx, roomID, mutate)
		if !errors.Is(err, apperror.ErrUpdateConflict) {
			break
		}
	}

	return updated, err
}

func (that *Synchronizer) finishRoom(ctx context.Context, finished *entity.Room) {
	var playerX, playerO entity.PlayerRef
	if finished.PlayerX != nil {
		playerX = *finished.PlayerX
	}
	if finished.PlayerO != nil {
		playerO = *finished.PlayerO
	}

	var winnerID string
	if winner := finished.PlayerByMark(finished.Winner); finished.Winner != "" && winner != nil {
		winnerID = winner.ID
	}

	that.reporter.Report(ctx, playerX, playerO, winnerID)

	if err := that.rooms.ExpireAfter(ctx, finished.ID, that.retention); err != nil {
		that.logger.Error("failed to schedule room deletion", "room", finished.ID, "error", err)
	}
}
