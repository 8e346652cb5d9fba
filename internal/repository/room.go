package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clickwinreign/tictactoe-backend/internal/apperror"
	"github.com/clickwinreign/tictactoe-backend/internal/entity"
)

var ErrRoomExists = errors.New("room already exists")

// roomTTL ages out rooms abandoned by clients that never call leave.
const roomTTL = 24 * time.Hour

type RoomRepository interface {
	Create(ctx context.Context, room *entity.Room) error
	GetByID(ctx context.Context, id string) (*entity.Room, error)
	AtomicUpdate(ctx context.Context, id string, mutate func(room *entity.Room) error) (*entity.Room, error)
	DeleteByID(ctx context.Context, id string) error
	ExpireAfter(ctx context.Context, id string, after time.Duration) error
	Subscribe(ctx context.Context, id string) (<-chan *entity.Room, func(), error)
}

type dbRoom struct {
	client *redis.Client
}

func NewRoomRepository(client *redis.Client) RoomRepository {
	return &dbRoom{
		client: client,
	}
}

func roomKey(id string) string     { return "room:" + id }
func roomChannel(id string) string { return "room:" + id + ":events" }

func (that *dbRoom) Create(ctx context.Context, room *entity.Room) error {
	roomJSON, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("could not marshal room: %w", err)
	}

	created, err := that.client.SetNX(ctx, roomKey(room.ID), roomJSON, roomTTL).Result()
	if err != nil {
		return fmt.Errorf("failed to set room: %w", err)
	}

	if !created {
		return fmt.Errorf("%w: id %s", ErrRoomExists, room.ID)
	}

	that.publish(ctx, room.ID, roomJSON)

	return nil
}

func (that *dbRoom) GetByID(ctx context.Context, id string) (*entity.Room, error) {
	response, err := that.client.Get(ctx, roomKey(id)).Result()

	if errors.Is(err, redis.Nil) {
		return nil, apperror.ErrRoomNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get room by id: %w", err)
	}

	var room entity.Room
	if err = json.Unmarshal([]byte(response), &room); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room: %w", err)
	}

	return &room, nil
}

// AtomicUpdate - optimistic read-modify-write of one room document. The
// document is re-read under WATCH, mutate re-validates its preconditions on
// the fresh copy, and the write commits only if no concurrent write landed
// in between. A lost race surfaces as ErrUpdateConflict and leaves the room
// untouched; callers decide whether to retry.
func (that *dbRoom) AtomicUpdate(ctx context.Context, id string, mutate func(room *entity.Room) error) (*entity.Room, error) {
	key := roomKey(id)

	var updated *entity.Room
	var payload []byte

	txf := func(tx *redis.Tx) error {
		response, err := tx.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return apperror.ErrRoomNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get room by id: %w", err)
		}

		var room entity.Room
		if err = json.Unmarshal([]byte(response), &room); err != nil {
			return fmt.Errorf("failed to unmarshal room: %w", err)
		}

		if err = mutate(&room); err != nil {
			return err
		}

		payload, err = json.Marshal(&room)
		if err != nil {
			return fmt.Errorf("could not marshal room: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, roomTTL)
			return nil
		})
		if err != nil {
			return err
		}

		updated = &room

		return nil
	}

	err := that.client.Watch(ctx, txf, key)
	if errors.Is(err, redis.TxFailedErr) {
		return nil, apperror.ErrUpdateConflict
	}
	if err != nil {
		return nil, err
	}

	that.publish(ctx, id, payload)

	return updated, nil
}

func (that *dbRoom) DeleteByID(ctx context.Context, id string) error {
	if err := that.client.Del(ctx, roomKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete room by id: %w", err)
	}

	return nil
}

// ExpireAfter - schedules the room document for deletion. Garbage
// collection, not correctness-critical.
func (that *dbRoom) ExpireAfter(ctx context.Context, id string, after time.Duration) error {
	if err := that.client.Expire(ctx, roomKey(id), after).Err(); err != nil {
		return fmt.Errorf("failed to expire room: %w", err)
	}

	return nil
}

// Subscribe - delivers full room snapshots in commit order. The latest known
// state is delivered first so a resubscribing client resynchronizes without
// waiting for the next remote write.
func (that *dbRoom) Subscribe(ctx context.Context, id string) (<-chan *entity.Room, func(), error) {
	sub := that.client.Subscribe(ctx, roomChannel(id))

	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("failed to subscribe to room: %w", err)
	}

	out := make(chan *entity.Room, 8)

	current, err := that.GetByID(ctx, id)
	if err != nil {
		_ = sub.Close()
		return nil, nil, err
	}
	out <- current

	lastMoves := len(current.Moves)
	lastFinished := current.Status == entity.StatusFinished

	go func() {
		defer close(out)

		for msg := range sub.Channel() {
			var room entity.Room
			if err := json.Unmarshal([]byte(msg.Payload), &room); err != nil {
				continue
			}

			// a publish queued before the resync read is already reflected
			// in the delivered state; drop anything older
			if len(room.Moves) < lastMoves || (lastFinished && room.Status != entity.StatusFinished) {
				continue
			}
			lastMoves = len(room.Moves)
			lastFinished = room.Status == entity.StatusFinished

			select {
			case out <- &room:
			case <-ctx.Done():
				return
			}
		}
	}()

	cancel := func() { _ = sub.Close() }

	return out, cancel, nil
}

func (that *dbRoom) publish(ctx context.Context, id string, payload []byte) {
	// subscribers that miss a publish recover from the stored document
	_ = that.client.Publish(ctx, roomChannel(id), payload).Err()
}
