package room

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/sqlc-dev/pqtype"

	"github.com/mcdev12/planning-poker/go/internal/models"
	"github.com/mcdev12/planning-poker/go/internal/sqlutil"
)

// Schema creates the rooms table. Applied by the migrate tool.
const Schema = `
CREATE TABLE IF NOT EXISTS rooms (
    id           TEXT PRIMARY KEY,
    name         TEXT        NOT NULL,
    participants TEXT[]      NOT NULL DEFAULT '{}',
    votes        JSONB       NOT NULL DEFAULT '{}'::jsonb,
    revealed     BOOLEAN     NOT NULL DEFAULT FALSE,
    current_task TEXT,
    messages     JSONB,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS rooms_updated_at_idx ON rooms (updated_at);
`

const selectRoom = `
SELECT id, name, participants, votes, revealed, current_task, messages, created_at, updated_at
FROM rooms
WHERE id = $1`

// PostgresStore persists rooms in Postgres so several gateways can serve
// the same rooms.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type row interface {
	Scan(dest ...any) error
}

func scanRoom(r row) (*Room, error) {
	var (
		room         Room
		participants []string
		votes        []byte
		currentTask  sql.NullString
		messages     pqtype.NullRawMessage
	)
	err := r.Scan(
		&room.ID,
		&room.State.Name,
		pq.Array(&participants),
		&votes,
		&room.State.Revealed,
		&currentTask,
		&messages,
		&room.CreatedAt,
		&room.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan room: %w", err)
	}

	room.State.Participants = participants
	if room.State.Participants == nil {
		room.State.Participants = []string{}
	}
	room.State.Votes = map[string]models.CardValue{}
	if len(votes) > 0 {
		if err := json.Unmarshal(votes, &room.State.Votes); err != nil {
			return nil, fmt.Errorf("failed to decode votes: %w", err)
		}
	}
	room.State.CurrentTask = sqlutil.FromSqlStringPtr(currentTask)
	if err := sqlutil.FromNullRawMessage(messages, &room.State.Messages); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}
	return &room, nil
}

type roomColumns struct {
	votes    []byte
	task     sql.NullString
	messages pqtype.NullRawMessage
}

func encodeRoom(room *Room) (roomColumns, error) {
	votes := room.State.Votes
	if votes == nil {
		votes = map[string]models.CardValue{}
	}
	voteData, err := json.Marshal(votes)
	if err != nil {
		return roomColumns{}, fmt.Errorf("failed to encode votes: %w", err)
	}
	messages, err := sqlutil.ToNullRawMessage(room.State.Messages)
	if err != nil {
		return roomColumns{}, fmt.Errorf("failed to encode messages: %w", err)
	}
	return roomColumns{
		votes:    voteData,
		task:     sqlutil.ToSqlString(room.State.CurrentTask),
		messages: messages,
	}, nil
}

func (s *PostgresStore) Create(ctx context.Context, room *Room) error {
	cols, err := encodeRoom(room)
	if err != nil {
		return err
	}
	participants := room.State.Participants
	if participants == nil {
		participants = []string{}
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO rooms (id, name, participants, votes, revealed, current_task, messages, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		room.ID,
		room.State.Name,
		pq.Array(participants),
		cols.votes,
		room.State.Revealed,
		cols.task,
		cols.messages,
		room.CreatedAt,
		room.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert room: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Room, error) {
	return scanRoom(s.db.QueryRowContext(ctx, selectRoom, id))
}

// Update locks the row for the duration of fn.
func (s *PostgresStore) Update(ctx context.Context, id string, fn func(room *Room) error) (*Room, error) {
	var updated *Room
	err := sqlutil.Run(ctx, s.db, func(tx *sql.Tx) error {
		room, err := scanRoom(tx.QueryRowContext(ctx, selectRoom+" FOR UPDATE", id))
		if err != nil {
			return err
		}
		if err := fn(room); err != nil {
			return err
		}
		if room.UpdatedAt.IsZero() {
			room.UpdatedAt = time.Now().UTC()
		}

		cols, err := encodeRoom(room)
		if err != nil {
			return err
		}
		participants := room.State.Participants
		if participants == nil {
			participants = []string{}
		}
		_, err = tx.ExecContext(ctx, `
UPDATE rooms
SET name = $2, participants = $3, votes = $4, revealed = $5, current_task = $6, messages = $7, updated_at = $8
WHERE id = $1`,
			room.ID,
			room.State.Name,
			pq.Array(participants),
			cols.votes,
			room.State.Revealed,
			cols.task,
			cols.messages,
			room.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to update room: %w", err)
		}
		updated = room
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rooms WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}
	if n == 0 {
		return ErrRoomNotFound
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
