// internal/database/room.go
package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/m-ostrander/pokerhub/internal/models"
)

// Catalog is the durable rooms store, the system of record for room
// existence and ownership. Live seating lives in the cache, not here.
//
// Backing table:
//
//	CREATE TABLE rooms (
//	    id           UUID PRIMARY KEY,
//	    owner_id     UUID NOT NULL,
//	    player_limit INT NOT NULL,
//	    password     TEXT,
//	    big_blind    INT NOT NULL,
//	    small_blind  INT NOT NULL,
//	    status       TEXT NOT NULL,
//	    created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type Catalog struct {
	pool *pgxpool.Pool
}

// NewCatalog wraps an already-connected pgx pool.
func NewCatalog(pool *pgxpool.Pool) *Catalog {
	return &Catalog{pool: pool}
}

// CreateRoom inserts a new room row.
func (c *Catalog) CreateRoom(ctx context.Context, rec *models.RoomRecord) error {
	q := `
	INSERT INTO rooms (id, owner_id, player_limit, password, big_blind, small_blind, status, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	err := pgx.BeginTxFunc(ctx, c.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q,
			rec.ID,
			rec.OwnerID,
			rec.PlayerLimit,
			rec.Password,
			rec.BigBlind,
			rec.SmallBlind,
			rec.Status,
			rec.CreatedAt,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to insert room %s: %w", rec.ID, err)
	}
	return nil
}

// GetRoom fetches a room row by ID. Returns (nil, nil) when absent.
func (c *Catalog) GetRoom(ctx context.Context, roomID uuid.UUID) (*models.RoomRecord, error) {
	var rec models.RoomRecord
	q := `
	SELECT id, owner_id, player_limit, password, big_blind, small_blind, status, created_at
	FROM rooms
	WHERE id = $1
	`
	err := c.pool.QueryRow(ctx, q, roomID).Scan(
		&rec.ID,
		&rec.OwnerID,
		&rec.PlayerLimit,
		&rec.Password,
		&rec.BigBlind,
		&rec.SmallBlind,
		&rec.Status,
		&rec.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch room %s: %w", roomID, err)
	}
	return &rec, nil
}

// FindJoinableRooms returns up to limit WAITING rooms without a password.
// Ordering is pinned to creation time (then id) so the quick-start first-fit
// scan is deterministic: the oldest open room wins.
func (c *Catalog) FindJoinableRooms(ctx context.Context, limit int) ([]models.RoomRecord, error) {
	q := `
	SELECT id, owner_id, player_limit, password, big_blind, small_blind, status, created_at
	FROM rooms
	WHERE status = $1 AND password IS NULL
	ORDER BY created_at ASC, id ASC
	LIMIT $2
	`
	rows, err := c.pool.Query(ctx, q, models.RoomStatusWaiting, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query joinable rooms: %w", err)
	}
	defer rows.Close()

	var recs []models.RoomRecord
	for rows.Next() {
		var rec models.RoomRecord
		err := rows.Scan(
			&rec.ID,
			&rec.OwnerID,
			&rec.PlayerLimit,
			&rec.Password,
			&rec.BigBlind,
			&rec.SmallBlind,
			&rec.Status,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan room row: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed reading joinable rooms: %w", err)
	}
	return recs, nil
}

// UpdateRoomOwner persists an ownership transfer.
func (c *Catalog) UpdateRoomOwner(ctx context.Context, roomID, ownerID uuid.UUID) error {
	_, err := c.pool.Exec(ctx, `UPDATE rooms SET owner_id = $2 WHERE id = $1`, roomID, ownerID)
	if err != nil {
		return fmt.Errorf("failed to update owner of room %s: %w", roomID, err)
	}
	return nil
}

// UpdateRoomStatus persists a status change (WAITING/PLAYING/ENDED).
func (c *Catalog) UpdateRoomStatus(ctx context.Context, roomID uuid.UUID, status string) error {
	_, err := c.pool.Exec(ctx, `UPDATE rooms SET status = $2 WHERE id = $1`, roomID, status)
	if err != nil {
		return fmt.Errorf("failed to update status of room %s: %w", roomID, err)
	}
	return nil
}

// DeleteRoom removes a room row. Called when the last occupant leaves.
func (c *Catalog) DeleteRoom(ctx context.Context, roomID uuid.UUID) error {
	err := pgx.BeginTxFunc(ctx, c.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `DELETE FROM rooms WHERE id = $1`, roomID)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete room %s: %w", roomID, err)
	}
	return nil
}
