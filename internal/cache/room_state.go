// internal/cache/room_state.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/m-ostrander/pokerhub/internal/models"
)

// Key layout. Room snapshots are JSON blobs; session pointers are plain
// room-id strings.
const (
	roomKeyPrefix     = "room:"
	userRoomKeyPrefix = "user_room:"
)

func roomKey(roomID uuid.UUID) string {
	return roomKeyPrefix + roomID.String()
}

func userRoomKey(userID uuid.UUID) string {
	return userRoomKeyPrefix + userID.String()
}

// Store is the Redis-backed room snapshot store and user session index.
// There is no compare-and-swap anywhere: reads and writes are independent
// round trips and snapshot writes are last-writer-wins.
type Store struct {
	rdb *redis.Client
}

// NewStore wraps an already-connected Redis client.
func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// GetRoomState fetches and decodes the snapshot for roomID. A missing key
// returns (nil, nil). A payload that fails to decode is an infrastructure
// failure, never "room absent".
func (s *Store) GetRoomState(ctx context.Context, roomID uuid.UUID) (*models.RoomState, error) {
	raw, err := s.rdb.Get(ctx, roomKey(roomID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to GET room state %s: %w", roomID, err)
	}

	var st models.RoomState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return nil, fmt.Errorf("corrupt room state payload for %s: %w", roomID, err)
	}
	return &st, nil
}

// SetRoomState serializes and writes the snapshot, refreshing the TTL.
func (s *Store) SetRoomState(ctx context.Context, st *models.RoomState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal room state %s: %w", st.ID, err)
	}
	if err := s.rdb.Set(ctx, roomKey(st.ID), data, StateTTL).Err(); err != nil {
		return fmt.Errorf("failed to SET room state %s: %w", st.ID, err)
	}
	return nil
}

// DeleteRoomState removes the snapshot. Deleting an absent key is not an error.
func (s *Store) DeleteRoomState(ctx context.Context, roomID uuid.UUID) error {
	if err := s.rdb.Del(ctx, roomKey(roomID)).Err(); err != nil {
		return fmt.Errorf("failed to DEL room state %s: %w", roomID, err)
	}
	return nil
}

// RoomStateExists checks key presence without loading the payload. Used by
// the orphan sweep, which must stay cheap across many keys.
func (s *Store) RoomStateExists(ctx context.Context, roomID uuid.UUID) (bool, error) {
	n, err := s.rdb.Exists(ctx, roomKey(roomID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check room state %s: %w", roomID, err)
	}
	return n > 0, nil
}

// GetUserRoom resolves the session pointer for userID. Returns uuid.Nil when
// the user has no current room. A value that is not a room id is an
// infrastructure failure.
func (s *Store) GetUserRoom(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	raw, err := s.rdb.Get(ctx, userRoomKey(userID)).Result()
	if err == redis.Nil {
		return uuid.Nil, nil
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to GET session pointer for %s: %w", userID, err)
	}
	roomID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("corrupt session pointer for %s (%q): %w", userID, raw, err)
	}
	return roomID, nil
}

// SetUserRoom points userID at roomID, refreshing the TTL.
func (s *Store) SetUserRoom(ctx context.Context, userID, roomID uuid.UUID) error {
	if err := s.rdb.Set(ctx, userRoomKey(userID), roomID.String(), StateTTL).Err(); err != nil {
		return fmt.Errorf("failed to SET session pointer for %s: %w", userID, err)
	}
	return nil
}

// ClearUserRoom drops the session pointer for userID.
func (s *Store) ClearUserRoom(ctx context.Context, userID uuid.UUID) error {
	if err := s.rdb.Del(ctx, userRoomKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to DEL session pointer for %s: %w", userID, err)
	}
	return nil
}

// SessionKeys SCANs all session-pointer keys. Only used by the orphan sweep.
func (s *Store) SessionKeys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.rdb.Scan(ctx, 0, userRoomKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan session pointers: %w", err)
	}
	return keys, nil
}

// PointerAt loads and parses the session pointer stored under a raw key as
// returned by SessionKeys. The key may have expired between SCAN and GET;
// that surfaces as an error the sweep tolerates per key.
func (s *Store) PointerAt(ctx context.Context, key string) (models.SessionPointer, error) {
	userIDStr := strings.TrimPrefix(key, userRoomKeyPrefix)
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return models.SessionPointer{}, fmt.Errorf("malformed session key %q: %w", key, err)
	}
	raw, err := s.rdb.Get(ctx, key).Result()
	if err != nil {
		return models.SessionPointer{}, fmt.Errorf("failed to GET %q: %w", key, err)
	}
	roomID, err := uuid.Parse(raw)
	if err != nil {
		return models.SessionPointer{}, fmt.Errorf("corrupt session pointer at %q (%q): %w", key, raw, err)
	}
	return models.SessionPointer{UserID: userID, RoomID: roomID}, nil
}
