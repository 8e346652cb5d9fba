package room

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clickwinreign/tictactoe-backend/internal/apperror"
	"github.com/clickwinreign/tictactoe-backend/internal/entity"
	"github.com/clickwinreign/tictactoe-backend/internal/repository"
)

type recordingReporter struct {
	calls    int
	playerX  entity.PlayerRef
	playerO  entity.PlayerRef
	winnerID string
}

func (that *recordingReporter) Report(_ context.Context, playerX, playerO entity.PlayerRef, winnerID string) {
	that.calls++
	that.playerX = playerX
	that.playerO = playerO
	that.winnerID = winnerID
}

func newTestSynchronizer(t *testing.T) (*Synchronizer, repository.RoomRepository, *recordingReporter) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	rooms := repository.NewRoomRepository(client)
	reporter := &recordingReporter{}

	return NewSynchronizer(logger, rooms, reporter, time.Minute), rooms, reporter
}

var (
	host  = entity.PlayerRef{ID: "p1", DisplayName: "alice", Connected: true}
	guest = entity.PlayerRef{ID: "p2", DisplayName: "bob", Connected: true}
)

// conflictingRoomRepo fails the next n atomic updates with a write conflict.
type conflictingRoomRepo struct {
	repository.RoomRepository
	conflicts int
}

func (that *conflictingRoomRepo) AtomicUpdate(ctx context.Context, id string, mutate func(room *entity.Room) error) (*entity.Room, error) {
	if that.conflicts > 0 {
		that.conflicts--
		return nil, apperror.ErrUpdateConflict
	}

	return that.RoomRepository.AtomicUpdate(ctx, id, mutate)
}

func newConflictingSynchronizer(t *testing.T) (*Synchronizer, *conflictingRoomRepo) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	flaky := &conflictingRoomRepo{RoomRepository: repository.NewRoomRepository(client)}

	return NewSynchronizer(logger, flaky, &recordingReporter{}, time.Minute), flaky
}

func TestSynchronizer_WriteConflicts(t *testing.T) {
	t.Run("JoinRoom retries through transient write conflicts", func(t *testing.T) {
		sync, flaky := newConflictingSynchronizer(t)
		ctx := context.Background()

		created, err := sync.CreateRoom(ctx, host)
		require.NoError(t, err)

		// When: the first two join attempts lose the write race
		flaky.conflicts = 2
		joined, err := sync.JoinRoom(ctx, created.ID, guest)

		// Then: the join still lands
		require.NoError(t, err)
		assert.True(t, joined.IsPlaying())
		assert.Equal(t, guest.ID, joined.PlayerO.ID)
	})

	t.Run("SubmitMove reports a lost race as a stale turn without retrying", func(t *testing.T) {
		sync, flaky := newConflictingSynchronizer(t)
		ctx := context.Background()

		created, err := sync.CreateRoom(ctx, host)
		require.NoError(t, err)
		_, err = sync.JoinRoom(ctx, created.ID, guest)
		require.NoError(t, err)

		// When: the move's commit loses the write race
		flaky.conflicts = 1
		err = sync.SubmitMove(ctx, created.ID, entity.PlayerX, 4)

		// Then: the caller resyncs instead of retrying; nothing was written
		assert.ErrorIs(t, err, apperror.ErrStaleTurn)
		assert.Zero(t, flaky.conflicts)

		stored, getErr := flaky.GetByID(ctx, created.ID)
		require.NoError(t, getErr)
		assert.Empty(t, stored.Moves)
	})
}

func TestSynchronizer_CreateRoom(t *testing.T) {
	t.Run("Creates a waiting room hosted as X", func(t *testing.T) {
		sync, rooms, _ := newTestSynchronizer(t)
		ctx := context.Background()

		created, err := sync.CreateRoom(ctx, host)

		require.NoError(t, err)
		assert.Len(t, created.ID, 6)
		assert.True(t, created.IsWaiting())
		assert.Equal(t, entity.PlayerX, created.Turn)
		assert.Equal(t, host.ID, created.PlayerX.ID)
		assert.Nil(t, created.PlayerO)

		stored, err := rooms.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, stored.ID)
	})
}

func TestSynchronizer_JoinRoom(t *testing.T) {
	t.Run("Seats the guest as O and starts playing", func(t *testing.T) {
		sync, _, _ := newTestSynchronizer(t)
		ctx := context.Background()

		created, err := sync.CreateRoom(ctx, host)
		require.NoError(t, err)

		joined, err := sync.JoinRoom(ctx, created.ID, guest)

		require.NoError(t, err)
		assert.True(t, joined.IsPlaying())
		assert.Equal(t, guest.ID, joined.PlayerO.ID)
	})

	t.Run("Rejects joining an unknown room", func(t *testing.T) {
		sync, _, _ := newTestSynchronizer(t)

		_, err := sync.JoinRoom(context.Background(), "NOSUCH", guest)

		assert.ErrorIs(t, err, apperror.ErrRoomNotFound)
	})

	t.Run("Rejects joining a room already playing", func(t *testing.T) {
		sync, _, _ := newTestSynchronizer(t)
		ctx := context.Background()

		created, err := sync.CreateRoom(ctx, host)
		require.NoError(t, err)
		_, err = sync.JoinRoom(ctx, created.ID, guest)
		require.NoError(t, err)

		_, err = sync.JoinRoom(ctx, created.ID, entity.PlayerRef{ID: "p3"})

		assert.ErrorIs(t, err, apperror.ErrRoomNotJoinable)
	})

	t.Run("Rejects the host joining their own room", func(t *testing.T) {
		sync, _, _ := newTestSynchronizer(t)
		ctx := context.Background()

		created, err := sync.CreateRoom(ctx, host)
		require.NoError(t, err)

		_, err = sync.JoinRoom(ctx, created.ID, host)

		assert.ErrorIs(t, err, apperror.ErrSelfJoin)
	})
}

func TestSynchronizer_SubmitMove(t *testing.T) {
	startGame := func(t *testing.T, sync *Synchronizer) string {
		t.Helper()
		ctx := context.Background()

		created, err := sync.CreateRoom(ctx, host)
		require.NoError(t, err)
		_, err = sync.JoinRoom(ctx, created.ID, guest)
		require.NoError(t, err)

		return created.ID
	}

	t.Run("Appends the move, flips the turn, bumps the sequence", func(t *testing.T) {
		sync, rooms, _ := newTestSynchronizer(t)
		ctx := context.Background()
		roomID := startGame(t, sync)

		require.NoError(t, sync.SubmitMove(ctx, roomID, entity.PlayerX, 4))

		stored, err := rooms.GetByID(ctx, roomID)
		require.NoError(t, err)
		require.Len(t, stored.Moves, 1)
		assert.Equal(t, entity.Move{Position: 4, Mark: entity.PlayerX, Sequence: 0}, stored.Moves[0])
		assert.Equal(t, entity.PlayerO, stored.Turn)
	})

	t.Run("Rejects a move out of turn with ErrStaleTurn and changes nothing", func(t *testing.T) {
		// Given: a fresh game, X to move; both clients believe it is their view
		sync, rooms, _ := newTestSynchronizer(t)
		ctx := context.Background()
		roomID := startGame(t, sync)

		// When: the first submission lands, then the second client submits
		// before its subscription delivered the first update
		require.NoError(t, sync.SubmitMove(ctx, roomID, entity.PlayerX, 0))
		err := sync.SubmitMove(ctx, roomID, entity.PlayerX, 4)

		// Then: the late submission is stale and the document is unchanged
		assert.ErrorIs(t, err, apperror.ErrStaleTurn)

		stored, getErr := rooms.GetByID(ctx, roomID)
		require.NoError(t, getErr)
		require.Len(t, stored.Moves, 1)
		assert.Equal(t, entity.PlayerO, stored.Turn)
	})

	t.Run("Rejects an occupied cell", func(t *testing.T) {
		sync, _, _ := newTestSynchronizer(t)
		ctx := context.Background()
		roomID := startGame(t, sync)

		require.NoError(t, sync.SubmitMove(ctx, roomID, entity.PlayerX, 4))

		err := sync.SubmitMove(ctx, roomID, entity.PlayerO, 4)

		assert.ErrorIs(t, err, apperror.ErrIllegalMove)
	})

	t.Run("A winning move finishes the room and reports once", func(t *testing.T) {
		sync, rooms, reporter := newTestSynchronizer(t)
		ctx := context.Background()
		roomID := startGame(t, sync)

		// X takes the top row while O wanders
		require.NoError(t, sync.SubmitMove(ctx, roomID, entity.PlayerX, 0))
		require.NoError(t, sync.SubmitMove(ctx, roomID, entity.PlayerO, 3))
		require.NoError(t, sync.SubmitMove(ctx, roomID, entity.PlayerX, 1))
		require.NoError(t, sync.SubmitMove(ctx, roomID, entity.PlayerO, 4))
		require.NoError(t, sync.SubmitMove(ctx, roomID, entity.PlayerX, 2))

		stored, err := rooms.GetByID(ctx, roomID)
		require.NoError(t, err)
		assert.True(t, stored.IsFinished())
		assert.Equal(t, entity.PlayerX, stored.Winner)

		assert.Equal(t, 1, reporter.calls)
		assert.Equal(t, host.ID, reporter.winnerID)
		assert.Equal(t, guest.ID, reporter.playerO.ID)
	})

	t.Run("Rejects moves into a finished room", func(t *testing.T) {
		sync, _, _ := newTestSynchronizer(t)
		ctx := context.Background()
		roomID := startGame(t, sync)

		for _, move := range []struct {
			mark string
			cell int
		}{
			{entity.PlayerX, 0}, {entity.PlayerO, 3},
			{entity.PlayerX, 1}, {entity.PlayerO, 4},
			{entity.PlayerX, 2},
		} {
			require.NoError(t, sync.SubmitMove(ctx, roomID, move.mark, move.cell))
		}

		err := sync.SubmitMove(ctx, roomID, entity.PlayerO, 5)

		assert.ErrorIs(t, err, apperror.ErrGameFinished)
	})
}

func TestSynchronizer_Subscribe(t *testing.T) {
	t.Run("A second client sees the first client's committed move", func(t *testing.T) {
		sync, _, _ := newTestSynchronizer(t)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		created, err := sync.CreateRoom(ctx, host)
		require.NoError(t, err)
		_, err = sync.JoinRoom(ctx, created.ID, guest)
		require.NoError(t, err)

		updates, stop, err := sync.Subscribe(ctx, created.ID)
		require.NoError(t, err)
		defer stop()

		// the resync snapshot comes first
		snapshot := <-updates
		assert.True(t, snapshot.IsPlaying())

		require.NoError(t, sync.SubmitMove(ctx, created.ID, entity.PlayerX, 8))

		select {
		case pushed := <-updates:
			require.Len(t, pushed.Moves, 1)
			assert.Equal(t, 8, pushed.Moves[0].Position)
			assert.Equal(t, entity.PlayerO, pushed.Turn)
		case <-time.After(3 * time.Second):
			t.Fatal("timed out waiting for room push")
		}
	})
}

func TestSynchronizer_LeaveRoom(t *testing.T) {
	t.Run("Leaving mid-game awards the opponent the win", func(t *testing.T) {
		sync, rooms, reporter := newTestSynchronizer(t)
		ctx := context.Background()

		created, err := sync.CreateRoom(ctx, host)
		require.NoError(t, err)
		_, err = sync.JoinRoom(ctx, created.ID, guest)
		require.NoError(t, err)

		// When: X walks away
		require.NoError(t, sync.LeaveRoom(ctx, created.ID, entity.PlayerX))

		// Then: O wins, the result is reported, the room is finished
		stored, err := rooms.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.True(t, stored.IsFinished())
		assert.Equal(t, entity.PlayerO, stored.Winner)

		assert.Equal(t, 1, reporter.calls)
		assert.Equal(t, guest.ID, reporter.winnerID)
	})

	t.Run("Leaving a room nobody joined deletes it", func(t *testing.T) {
		sync, rooms, reporter := newTestSynchronizer(t)
		ctx := context.Background()

		created, err := sync.CreateRoom(ctx, host)
		require.NoError(t, err)

		require.NoError(t, sync.LeaveRoom(ctx, created.ID, entity.PlayerX))

		_, err = rooms.GetByID(ctx, created.ID)
		assert.ErrorIs(t, err, apperror.ErrRoomNotFound)
		assert.Equal(t, 0, reporter.calls)
	})

	t.Run("Leaving an already finished room reports nothing extra", func(t *testing.T) {
		sync, _, reporter := newTestSynchronizer(t)
		ctx := context.Background()

		created, err := sync.CreateRoom(ctx, host)
		require.NoError(t, err)
		_, err = sync.JoinRoom(ctx, created.ID, guest)
		require.NoError(t, err)

		require.NoError(t, sync.LeaveRoom(ctx, created.ID, entity.PlayerX))
		require.Equal(t, 1, reporter.calls)

		require.NoError(t, sync.LeaveRoom(ctx, created.ID, entity.PlayerO))

		assert.Equal(t, 1, reporter.calls)
	})
}
