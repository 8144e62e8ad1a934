// internal/room/service.go
package room

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/m-ostrander/pokerhub/internal/models"
	"github.com/m-ostrander/pokerhub/internal/session"
)

// quickStartCandidates caps how many waiting rooms one quick-start scans.
const quickStartCandidates = 10

// Service implements the room lifecycle: join, leave, quick start, create
// and reconnect. It coordinates the snapshot store, the session index and
// the durable catalog without transactions; every write can race a
// concurrent handler and later reads self-heal what drifts.
type Service struct {
	States   StateStore
	Index    SessionIndex
	Catalog  Catalog
	Channels *session.Registry
	Resolver *Resolver
	Log      *logrus.Logger

	Compare PasswordCompare
	Hash    PasswordHash
}

// NewService wires a Service and its Resolver from shared collaborators.
func NewService(states StateStore, index SessionIndex, catalog Catalog, channels *session.Registry, log *logrus.Logger, compare PasswordCompare, hash PasswordHash) *Service {
	return &Service{
		States:   states,
		Index:    index,
		Catalog:  catalog,
		Channels: channels,
		Resolver: &Resolver{
			States:   states,
			Index:    index,
			Catalog:  catalog,
			Channels: channels,
			Log:      log,
		},
		Log:     log,
		Compare: compare,
		Hash:    hash,
	}
}

// JoinResult is the successful outcome of Join.
type JoinResult struct {
	State *models.RoomState
	// Rejoined is true when the user was already seated but disconnected
	// and the join flipped them back to connected.
	Rejoined bool
}

// Join seats a user in an existing room. Flow: conflict check, catalog
// lookup, password verification, load-or-init snapshot, then either a
// reconnect flip, a capacity rejection, or a fresh seat at the end of the
// player list.
func (s *Service) Join(ctx context.Context, sess *session.Session, roomID uuid.UUID, password string) (*JoinResult, error) {
	if roomID == uuid.Nil {
		return nil, &ValidationError{Reason: "roomId is required"}
	}

	if _, err := s.Resolver.CheckAndHandleRoomConflict(ctx, sess, roomID); err != nil {
		return nil, err
	}

	rec, err := s.Catalog.GetRoom(ctx, roomID)
	if err != nil {
		return nil, infraErr("join: fetch room record", err)
	}
	if rec == nil {
		return nil, &NotFoundError{Code: CodeRoomNotFound, Message: "room not found"}
	}

	if rec.Password != nil {
		if password == "" {
			return nil, &ConflictError{Code: CodePasswordWrong, Message: "room requires a password"}
		}
		ok, err := s.Compare(password, *rec.Password)
		if err != nil {
			return nil, infraErr("join: compare password", err)
		}
		if !ok {
			return nil, &ConflictError{Code: CodePasswordWrong, Message: "incorrect password"}
		}
	}

	st, err := s.loadOrInitState(ctx, rec)
	if err != nil {
		return nil, err
	}

	if p := st.FindPlayer(sess.UserID); p != nil {
		if p.IsConnected {
			return nil, &ConflictError{Code: CodeAlreadyInRoom, Message: "already in room"}
		}
		// Seated but disconnected: treat the join as a reconnect.
		p.IsConnected = true
		st.UpdatedAt = time.Now()
		if err := s.States.SetRoomState(ctx, st); err != nil {
			return nil, infraErr("join: persist rejoined state", err)
		}
		s.Channels.Bind(roomID, sess)
		if err := s.Index.SetUserRoom(ctx, sess.UserID, roomID); err != nil {
			return nil, infraErr("join: set session pointer", err)
		}
		s.Channels.Broadcast(roomID, playerJoined(*p))
		s.Log.WithFields(logrus.Fields{"user": sess.UserID, "room": roomID}).Info("User rejoined room")
		return &JoinResult{State: st, Rejoined: true}, nil
	}

	if st.IsFull() {
		return nil, &ConflictError{Code: CodeRoomFull, Message: "room is full"}
	}

	player := models.NewPlayer(sess.UserID, sess.Username, len(st.Players), sess.UserID == rec.OwnerID)
	st.Players = append(st.Players, player)
	st.CurrentPlayerCount = len(st.Players)
	st.UpdatedAt = time.Now()

	if err := s.States.SetRoomState(ctx, st); err != nil {
		return nil, infraErr("join: persist room state", err)
	}
	s.Channels.Bind(roomID, sess)
	if err := s.Index.SetUserRoom(ctx, sess.UserID, roomID); err != nil {
		return nil, infraErr("join: set session pointer", err)
	}
	s.Channels.Broadcast(roomID, playerJoined(player))
	s.Log.WithFields(logrus.Fields{"user": sess.UserID, "room": roomID, "players": st.CurrentPlayerCount}).
		Info("User joined room")
	return &JoinResult{State: st}, nil
}

// LeaveResult is the successful outcome of Leave.
type LeaveResult struct {
	RoomDeleted bool
}

// Leave removes the user from a room. The last occupant's departure deletes
// both the snapshot and the catalog record, with no broadcast (no audience
// remains). An owner's departure promotes the player now at position 0.
func (s *Service) Leave(ctx context.Context, sess *session.Session, roomID uuid.UUID) (*LeaveResult, error) {
	if roomID == uuid.Nil {
		return nil, &ValidationError{Reason: "roomId is required"}
	}

	st, err := s.States.GetRoomState(ctx, roomID)
	if err != nil {
		return nil, infraErr("leave: load room state", err)
	}
	if st == nil {
		return nil, &NotFoundError{Code: CodeRoomNotFound, Message: "room not found"}
	}

	removed, found := st.RemovePlayer(sess.UserID)
	if !found {
		return nil, &NotFoundError{Code: CodeUserNotInRoom, Message: "you are not in this room"}
	}

	s.Channels.Unbind(roomID, sess.UserID)
	if err := s.Index.ClearUserRoom(ctx, sess.UserID); err != nil {
		return nil, infraErr("leave: clear session pointer", err)
	}

	if len(st.Players) == 0 {
		if err := s.States.DeleteRoomState(ctx, roomID); err != nil {
			return nil, infraErr("leave: delete room state", err)
		}
		if err := s.Catalog.DeleteRoom(ctx, roomID); err != nil {
			return nil, infraErr("leave: delete room record", err)
		}
		s.Log.WithFields(logrus.Fields{"user": sess.UserID, "room": roomID}).
			Info("Last occupant left, room deleted")
		return &LeaveResult{RoomDeleted: true}, nil
	}

	if removed.IsOwner {
		if err := s.Resolver.promoteOwner(ctx, st); err != nil {
			return nil, err
		}
	}
	st.UpdatedAt = time.Now()
	if err := s.States.SetRoomState(ctx, st); err != nil {
		return nil, infraErr("leave: persist room state", err)
	}
	s.Channels.Broadcast(roomID, playerLeft(removed, st.CurrentPlayerCount))
	s.Log.WithFields(logrus.Fields{"user": sess.UserID, "room": roomID, "players": st.CurrentPlayerCount}).
		Info("User left room")
	return &LeaveResult{}, nil
}

// QuickStartResult is the successful outcome of QuickStart.
type QuickStartResult struct {
	RoomID  uuid.UUID
	State   *models.RoomState
	Created bool
}

// QuickStart seats the user in the first open room, scanning up to ten
// WAITING password-free candidates in catalog order (oldest first). A seat
// where the user is already present but disconnected counts as a reconnect
// target. With no eligible candidate a fresh room is created with defaults
// and the caller as sole owner.
func (s *Service) QuickStart(ctx context.Context, sess *session.Session) (*QuickStartResult, error) {
	if _, err := s.Resolver.CheckAndHandleRoomConflict(ctx, sess, uuid.Nil); err != nil {
		return nil, err
	}

	recs, err := s.Catalog.FindJoinableRooms(ctx, quickStartCandidates)
	if err != nil {
		return nil, infraErr("quick start: query candidates", err)
	}

	for i := range recs {
		rec := &recs[i]
		st, err := s.loadOrInitState(ctx, rec)
		if err != nil {
			return nil, err
		}

		if p := st.FindPlayer(sess.UserID); p != nil {
			if p.IsConnected {
				continue
			}
			p.IsConnected = true
			return s.finishQuickStart(ctx, sess, st, false)
		}
		if st.IsFull() {
			continue
		}

		player := models.NewPlayer(sess.UserID, sess.Username, len(st.Players), sess.UserID == rec.OwnerID)
		st.Players = append(st.Players, player)
		st.CurrentPlayerCount = len(st.Players)
		return s.finishQuickStart(ctx, sess, st, false)
	}

	// Nothing joinable: create a room with defaults, caller as sole owner.
	now := time.Now()
	rec := &models.RoomRecord{
		ID:          uuid.New(),
		OwnerID:     sess.UserID,
		PlayerLimit: models.DefaultMaxPlayers,
		BigBlind:    models.DefaultBigBlind,
		SmallBlind:  models.DefaultSmallBlind,
		Status:      models.RoomStatusWaiting,
		CreatedAt:   now,
	}
	if err := s.Catalog.CreateRoom(ctx, rec); err != nil {
		return nil, infraErr("quick start: create room record", err)
	}
	st := newStateFromRecord(rec)
	st.Players = []models.Player{models.NewPlayer(sess.UserID, sess.Username, 0, true)}
	st.CurrentPlayerCount = 1
	s.Log.WithFields(logrus.Fields{"user": sess.UserID, "room": rec.ID}).
		Info("Quick start created a new room")
	return s.finishQuickStart(ctx, sess, st, true)
}

// finishQuickStart persists the chosen snapshot, binds the connection, sets
// the pointer and broadcasts when an existing room was joined.
func (s *Service) finishQuickStart(ctx context.Context, sess *session.Session, st *models.RoomState, created bool) (*QuickStartResult, error) {
	st.UpdatedAt = time.Now()
	if err := s.States.SetRoomState(ctx, st); err != nil {
		return nil, infraErr("quick start: persist room state", err)
	}
	s.Channels.Bind(st.ID, sess)
	if err := s.Index.SetUserRoom(ctx, sess.UserID, st.ID); err != nil {
		return nil, infraErr("quick start: set session pointer", err)
	}
	if !created {
		if p := st.FindPlayer(sess.UserID); p != nil {
			s.Channels.Broadcast(st.ID, playerJoined(*p))
		}
		s.Log.WithFields(logrus.Fields{"user": sess.UserID, "room": st.ID}).
			Info("Quick start joined an existing room")
	}
	return &QuickStartResult{RoomID: st.ID, State: st, Created: created}, nil
}

// CreateParams are the optional knobs for explicit room creation. Zero
// values fall back to defaults.
type CreateParams struct {
	MaxPlayers int
	BigBlind   int
	SmallBlind int
	Password   string
}

// Create makes a room on the caller's behalf and seats them as sole owner.
func (s *Service) Create(ctx context.Context, sess *session.Session, params CreateParams) (*QuickStartResult, error) {
	if params.MaxPlayers == 0 {
		params.MaxPlayers = models.DefaultMaxPlayers
	}
	if params.BigBlind == 0 {
		params.BigBlind = models.DefaultBigBlind
	}
	if params.SmallBlind == 0 {
		params.SmallBlind = models.DefaultSmallBlind
	}
	if params.MaxPlayers < 2 || params.MaxPlayers > 10 {
		return nil, &ValidationError{Reason: "maxPlayers must be between 2 and 10"}
	}
	if params.SmallBlind <= 0 || params.BigBlind <= params.SmallBlind {
		return nil, &ValidationError{Reason: "bigBlind must be greater than smallBlind, both positive"}
	}

	if _, err := s.Resolver.CheckAndHandleRoomConflict(ctx, sess, uuid.Nil); err != nil {
		return nil, err
	}

	rec := &models.RoomRecord{
		ID:          uuid.New(),
		OwnerID:     sess.UserID,
		PlayerLimit: params.MaxPlayers,
		BigBlind:    params.BigBlind,
		SmallBlind:  params.SmallBlind,
		Status:      models.RoomStatusWaiting,
		CreatedAt:   time.Now(),
	}
	if params.Password != "" {
		hash, err := s.Hash(params.Password)
		if err != nil {
			return nil, infraErr("create: hash password", err)
		}
		rec.Password = &hash
	}
	if err := s.Catalog.CreateRoom(ctx, rec); err != nil {
		return nil, infraErr("create: insert room record", err)
	}

	st := newStateFromRecord(rec)
	st.Players = []models.Player{models.NewPlayer(sess.UserID, sess.Username, 0, true)}
	st.CurrentPlayerCount = 1
	st.UpdatedAt = time.Now()
	if err := s.States.SetRoomState(ctx, st); err != nil {
		return nil, infraErr("create: persist room state", err)
	}
	s.Channels.Bind(st.ID, sess)
	if err := s.Index.SetUserRoom(ctx, sess.UserID, st.ID); err != nil {
		return nil, infraErr("create: set session pointer", err)
	}
	s.Log.WithFields(logrus.Fields{"user": sess.UserID, "room": st.ID}).Info("User created room")
	return &QuickStartResult{RoomID: st.ID, State: st, Created: true}, nil
}

// ReconnectResult is the successful outcome of Reconnect. A Nil RoomID with
// a nil State means the user had nothing to rejoin, which is a valid result.
type ReconnectResult struct {
	RoomID uuid.UUID
	State  *models.RoomState
}

// Reconnect restores a dropped connection into its room. When roomID is Nil
// it is resolved from the session pointer; an absent pointer is success with
// an empty result. The caller must already be seated in the room.
func (s *Service) Reconnect(ctx context.Context, sess *session.Session, roomID uuid.UUID) (*ReconnectResult, error) {
	if roomID == uuid.Nil {
		pointed, err := s.Index.GetUserRoom(ctx, sess.UserID)
		if err != nil {
			return nil, infraErr("reconnect: resolve session pointer", err)
		}
		if pointed == uuid.Nil {
			return &ReconnectResult{}, nil
		}
		roomID = pointed
	}

	st, err := s.States.GetRoomState(ctx, roomID)
	if err != nil {
		return nil, infraErr("reconnect: load room state", err)
	}
	if st == nil {
		return nil, &NotFoundError{Code: CodeRoomNotFound, Message: "room not found"}
	}

	p := st.FindPlayer(sess.UserID)
	if p == nil {
		return nil, &AuthzError{Code: CodeAccessDenied, Message: "you are not a member of this room"}
	}

	p.IsConnected = true
	st.UpdatedAt = time.Now()
	if err := s.States.SetRoomState(ctx, st); err != nil {
		return nil, infraErr("reconnect: persist room state", err)
	}
	s.Channels.Bind(roomID, sess)
	if err := s.Index.SetUserRoom(ctx, sess.UserID, roomID); err != nil {
		return nil, infraErr("reconnect: refresh session pointer", err)
	}
	s.Channels.Broadcast(roomID, playerJoined(*p))
	s.Log.WithFields(logrus.Fields{"user": sess.UserID, "room": roomID}).Info("User reconnected to room")
	return &ReconnectResult{RoomID: roomID, State: st}, nil
}

// MarkDisconnected flips the user's seat to disconnected, best effort. The
// player stays in the room: disconnect and leave are distinct operations.
func (s *Service) MarkDisconnected(ctx context.Context, userID uuid.UUID) {
	roomID, err := s.Index.GetUserRoom(ctx, userID)
	if err != nil || roomID == uuid.Nil {
		return
	}
	st, err := s.States.GetRoomState(ctx, roomID)
	if err != nil || st == nil {
		return
	}
	p := st.FindPlayer(userID)
	if p == nil || !p.IsConnected {
		return
	}
	p.IsConnected = false
	st.UpdatedAt = time.Now()
	if err := s.States.SetRoomState(ctx, st); err != nil {
		s.Log.WithFields(logrus.Fields{"user": userID, "room": roomID, "error": err}).
			Warn("Failed to persist disconnect flag")
	}
}

// loadOrInitState returns the cached snapshot for a room, lazily building a
// fresh empty one from the catalog record when no cache entry exists.
func (s *Service) loadOrInitState(ctx context.Context, rec *models.RoomRecord) (*models.RoomState, error) {
	st, err := s.States.GetRoomState(ctx, rec.ID)
	if err != nil {
		return nil, infraErr("load room state", err)
	}
	if st != nil {
		return st, nil
	}
	return newStateFromRecord(rec), nil
}

// newStateFromRecord builds an empty snapshot mirroring the durable record.
func newStateFromRecord(rec *models.RoomRecord) *models.RoomState {
	now := time.Now()
	return &models.RoomState{
		ID:          rec.ID,
		OwnerID:     rec.OwnerID,
		Status:      rec.Status,
		MaxPlayers:  rec.PlayerLimit,
		HasPassword: rec.Password != nil,
		BigBlind:    rec.BigBlind,
		SmallBlind:  rec.SmallBlind,
		Players:     []models.Player{},
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   now,
	}
}
