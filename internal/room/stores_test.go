// internal/room/stores_test.go
package room

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/m-ostrander/pokerhub/internal/models"
	"github.com/m-ostrander/pokerhub/internal/session"
)

// memStore is an in-memory StateStore + SessionIndex. Snapshots are
// round-tripped through JSON on every access so tests see the same
// value-copy semantics the Redis store has.
type memStore struct {
	mu       sync.Mutex
	states   map[uuid.UUID]string
	pointers map[uuid.UUID]uuid.UUID

	failGetState map[uuid.UUID]error
	failExists   map[uuid.UUID]error
	failClear    map[uuid.UUID]error
}

func newMemStore() *memStore {
	return &memStore{
		states:       make(map[uuid.UUID]string),
		pointers:     make(map[uuid.UUID]uuid.UUID),
		failGetState: make(map[uuid.UUID]error),
		failExists:   make(map[uuid.UUID]error),
		failClear:    make(map[uuid.UUID]error),
	}
}

func (m *memStore) GetRoomState(_ context.Context, roomID uuid.UUID) (*models.RoomState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failGetState[roomID]; err != nil {
		return nil, err
	}
	raw, ok := m.states[roomID]
	if !ok {
		return nil, nil
	}
	var st models.RoomState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (m *memStore) SetRoomState(_ context.Context, st *models.RoomState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[st.ID] = string(data)
	return nil
}

func (m *memStore) DeleteRoomState(_ context.Context, roomID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, roomID)
	return nil
}

func (m *memStore) RoomStateExists(_ context.Context, roomID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failExists[roomID]; err != nil {
		return false, err
	}
	_, ok := m.states[roomID]
	return ok, nil
}

func (m *memStore) GetUserRoom(_ context.Context, userID uuid.UUID) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pointers[userID], nil
}

func (m *memStore) SetUserRoom(_ context.Context, userID, roomID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pointers[userID] = roomID
	return nil
}

func (m *memStore) ClearUserRoom(_ context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failClear[userID]; err != nil {
		return err
	}
	delete(m.pointers, userID)
	return nil
}

func (m *memStore) SessionKeys(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.pointers))
	for userID := range m.pointers {
		keys = append(keys, "user_room:"+userID.String())
	}
	return keys, nil
}

func (m *memStore) PointerAt(_ context.Context, key string) (models.SessionPointer, error) {
	userID, err := uuid.Parse(strings.TrimPrefix(key, "user_room:"))
	if err != nil {
		return models.SessionPointer{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	roomID, ok := m.pointers[userID]
	if !ok {
		return models.SessionPointer{}, fmt.Errorf("key %q expired", key)
	}
	return models.SessionPointer{UserID: userID, RoomID: roomID}, nil
}

// memCatalog is an in-memory Catalog preserving insertion order so the
// quick-start scan order is deterministic in tests.
type memCatalog struct {
	mu    sync.Mutex
	rooms map[uuid.UUID]*models.RoomRecord
	order []uuid.UUID
}

func newMemCatalog() *memCatalog {
	return &memCatalog{rooms: make(map[uuid.UUID]*models.RoomRecord)}
}

func (c *memCatalog) CreateRoom(_ context.Context, rec *models.RoomRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *rec
	c.rooms[rec.ID] = &cp
	c.order = append(c.order, rec.ID)
	return nil
}

func (c *memCatalog) GetRoom(_ context.Context, roomID uuid.UUID) (*models.RoomRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.rooms[roomID]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (c *memCatalog) FindJoinableRooms(_ context.Context, limit int) ([]models.RoomRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var recs []models.RoomRecord
	for _, id := range c.order {
		rec, ok := c.rooms[id]
		if !ok {
			continue
		}
		if rec.Status != models.RoomStatusWaiting || rec.Password != nil {
			continue
		}
		recs = append(recs, *rec)
		if len(recs) >= limit {
			break
		}
	}
	return recs, nil
}

func (c *memCatalog) UpdateRoomOwner(_ context.Context, roomID, ownerID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.rooms[roomID]
	if !ok {
		return fmt.Errorf("room %s not found", roomID)
	}
	rec.OwnerID = ownerID
	return nil
}

func (c *memCatalog) UpdateRoomStatus(_ context.Context, roomID uuid.UUID, status string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.rooms[roomID]
	if !ok {
		return fmt.Errorf("room %s not found", roomID)
	}
	rec.Status = status
	return nil
}

func (c *memCatalog) DeleteRoom(_ context.Context, roomID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rooms, roomID)
	return nil
}

// testEnv bundles a Service over in-memory stores.
type testEnv struct {
	svc      *Service
	auditor  *Auditor
	store    *memStore
	catalog  *memCatalog
	registry *session.Registry
}

func newTestEnv() *testEnv {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	store := newMemStore()
	catalog := newMemCatalog()
	registry := session.NewRegistry()

	compare := func(password, encodedHash string) (bool, error) {
		return "hash:"+password == encodedHash, nil
	}
	hash := func(password string) (string, error) {
		return "hash:" + password, nil
	}

	return &testEnv{
		svc:      NewService(store, store, catalog, registry, logger, compare, hash),
		auditor:  NewAuditor(store, store, logger),
		store:    store,
		catalog:  catalog,
		registry: registry,
	}
}

func newTestSession(username string) *session.Session {
	return session.New(uuid.New(), username)
}

// drainEvents empties a session's Out channel for assertions.
func drainEvents(sess *session.Session) []any {
	var events []any
	for {
		select {
		case ev := <-sess.Out:
			events = append(events, ev)
		default:
			return events
		}
	}
}

// seedRoom creates a catalog record and returns it.
func (e *testEnv) seedRoom(owner uuid.UUID, limit int, password *string) *models.RoomRecord {
	rec := &models.RoomRecord{
		ID:          uuid.New(),
		OwnerID:     owner,
		PlayerLimit: limit,
		Password:    password,
		BigBlind:    models.DefaultBigBlind,
		SmallBlind:  models.DefaultSmallBlind,
		Status:      models.RoomStatusWaiting,
	}
	_ = e.catalog.CreateRoom(context.Background(), rec)
	return rec
}
