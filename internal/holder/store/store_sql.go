package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"healthwallet/internal/holder/models"
	"healthwallet/internal/platform/database"
)

// Dialect captures the differences between the SQL backends.
type Dialect struct {
	Name   string
	Schema string
	// numbered placeholders ($1, $2) instead of ?
	numbered bool
}

var (
	SQLite = Dialect{Name: "sqlite", Schema: sqliteSchema}

	Postgres = Dialect{Name: "postgres", Schema: postgresSchema, numbered: true}
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS event_groups (
    seq                 INTEGER PRIMARY KEY AUTOINCREMENT,
    id                  TEXT NOT NULL UNIQUE,
    type                TEXT NOT NULL,
    provider_identifier TEXT NOT NULL,
    max_issued_at       INTEGER NOT NULL,
    expiry_date         INTEGER,
    json_data           BLOB NOT NULL,
    is_draft            BOOLEAN NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_event_groups_type_provider ON event_groups(type, provider_identifier);

CREATE TABLE IF NOT EXISTS green_cards (
    seq        INTEGER PRIMARY KEY AUTOINCREMENT,
    id         TEXT NOT NULL UNIQUE,
    kind       TEXT NOT NULL,
    origins    TEXT NOT NULL,
    credential TEXT NOT NULL
);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS event_groups (
    seq                 BIGSERIAL PRIMARY KEY,
    id                  UUID NOT NULL UNIQUE,
    type                TEXT NOT NULL,
    provider_identifier TEXT NOT NULL,
    max_issued_at       BIGINT NOT NULL,
    expiry_date         BIGINT,
    json_data           BYTEA NOT NULL,
    is_draft            BOOLEAN NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_event_groups_type_provider ON event_groups(type, provider_identifier);

CREATE TABLE IF NOT EXISTS green_cards (
    seq        BIGSERIAL PRIMARY KEY,
    id         UUID NOT NULL UNIQUE,
    kind       TEXT NOT NULL,
    origins    TEXT NOT NULL,
    credential TEXT NOT NULL
);
`

// rebind rewrites ? placeholders for dialects that number them.
func (d Dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SQLStore persists the wallet through database/sql. Times are stored as unix nanoseconds.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQL applies the dialect's schema to db and returns a store over it.
func NewSQL(ctx context.Context, db *sql.DB, dialect Dialect) (*SQLStore, error) {
	for _, stmt := range strings.Split(dialect.Schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("apply %s schema: %w", dialect.Name, err)
		}
	}
	return &SQLStore{db: db, dialect: dialect}, nil
}

// Open builds a store over pool, choosing the dialect from the pool's driver.
func Open(ctx context.Context, pool *database.Pool) (*SQLStore, error) {
	switch pool.Driver() {
	case database.DriverSQLite:
		return NewSQL(ctx, pool.DB(), SQLite)
	case database.DriverPostgres:
		return NewSQL(ctx, pool.DB(), Postgres)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", pool.Driver())
	}
}

func (s *SQLStore) exec(ctx context.Context, q execer, query string, args ...any) (int, error) {
	res, err := q.ExecContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return 0, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(rows), nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLStore) StoreEventGroup(ctx context.Context, group models.EventGroup) (models.EventGroup, error) {
	if group.ID == uuid.Nil {
		group.ID = uuid.New()
	}
	_, err := s.exec(ctx, s.db, `
		INSERT INTO event_groups (id, type, provider_identifier, max_issued_at, expiry_date, json_data, is_draft)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		group.ID.String(), string(group.Type), group.ProviderIdentifier,
		group.MaxIssuedAt.UnixNano(), nullNanos(group.ExpiryDate), group.JSONData, group.IsDraft,
	)
	if err != nil {
		return models.EventGroup{}, fmt.Errorf("insert event group: %w", err)
	}
	return group, nil
}

func (s *SQLStore) ListEventGroups(ctx context.Context) ([]models.EventGroup, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, provider_identifier, max_issued_at, expiry_date, json_data, is_draft
		FROM event_groups ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list event groups: %w", err)
	}
	defer rows.Close()

	var groups []models.EventGroup
	for rows.Next() {
		g, err := scanEventGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event group: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event groups: %w", err)
	}
	return groups, nil
}

func scanEventGroup(rows *sql.Rows) (models.EventGroup, error) {
	var (
		g        models.EventGroup
		id, mode string
		maxIssue int64
		expiry   sql.NullInt64
	)
	if err := rows.Scan(&id, &mode, &g.ProviderIdentifier, &maxIssue, &expiry, &g.JSONData, &g.IsDraft); err != nil {
		return g, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return g, err
	}
	g.ID = parsed
	g.Type = models.EventMode(mode)
	g.MaxIssuedAt = time.Unix(0, maxIssue).UTC()
	if expiry.Valid {
		t := time.Unix(0, expiry.Int64).UTC()
		g.ExpiryDate = &t
	}
	return g, nil
}

func (s *SQLStore) RemoveExistingEventGroups(ctx context.Context, filter EventGroupFilter) (int, error) {
	query := `DELETE FROM event_groups WHERE 1 = 1`
	var args []any
	if filter.Mode != "" {
		query += ` AND type = ?`
		args = append(args, string(filter.Mode))
	}
	if filter.ProviderIdentifier != "" {
		query += ` AND LOWER(provider_identifier) = LOWER(?)`
		args = append(args, filter.ProviderIdentifier)
	}
	n, err := s.exec(ctx, s.db, query, args...)
	if err != nil {
		return 0, fmt.Errorf("remove event groups: %w", err)
	}
	return n, nil
}

func (s *SQLStore) RemoveEventGroup(ctx context.Context, id uuid.UUID) error {
	n, err := s.exec(ctx, s.db, `DELETE FROM event_groups WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("remove event group: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) FinalizeEventGroup(ctx context.Context, id uuid.UUID, expiry *time.Time) error {
	n, err := s.exec(ctx, s.db,
		`UPDATE event_groups SET is_draft = ?, expiry_date = ? WHERE id = ?`,
		false, nullNanos(expiry), id.String())
	if err != nil {
		return fmt.Errorf("finalize event group: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) RemoveExpiredEventGroups(ctx context.Context, now time.Time) (int, error) {
	n, err := s.exec(ctx, s.db,
		`DELETE FROM event_groups WHERE expiry_date IS NOT NULL AND expiry_date < ?`, now.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("remove expired event groups: %w", err)
	}
	return n, nil
}

// StoreGreenCards replaces the wallet's green cards with cards in one transaction.
func (s *SQLStore) StoreGreenCards(ctx context.Context, cards []models.GreenCard) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin store green cards tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // rollback after commit is no-op; error already captured
	}()

	if _, err := s.exec(ctx, tx, `DELETE FROM green_cards`); err != nil {
		return fmt.Errorf("clear green cards: %w", err)
	}
	for _, card := range cards {
		if card.ID == uuid.Nil {
			card.ID = uuid.New()
		}
		origins, err := json.Marshal(card.Origins)
		if err != nil {
			return fmt.Errorf("marshal origins: %w", err)
		}
		if _, err := s.exec(ctx, tx,
			`INSERT INTO green_cards (id, kind, origins, credential) VALUES (?, ?, ?, ?)`,
			card.ID.String(), string(card.Kind), string(origins), card.Credential); err != nil {
			return fmt.Errorf("insert green card: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit green cards: %w", err)
	}
	return nil
}

func (s *SQLStore) ListGreenCards(ctx context.Context) ([]models.GreenCard, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, kind, origins, credential FROM green_cards ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list green cards: %w", err)
	}
	defer rows.Close()

	var cards []models.GreenCard
	for rows.Next() {
		var (
			card          models.GreenCard
			id, kind, raw string
		)
		if err := rows.Scan(&id, &kind, &raw, &card.Credential); err != nil {
			return nil, fmt.Errorf("scan green card: %w", err)
		}
		if card.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse green card id: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &card.Origins); err != nil {
			return nil, fmt.Errorf("decode origins: %w", err)
		}
		card.Kind = models.GreenCardKind(kind)
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate green cards: %w", err)
	}
	return cards, nil
}

// RemoveExpiredGreenCards drops every card whose origins have all expired at now. Origins
// are stored as JSON, so expiry is decided in Go.
func (s *SQLStore) RemoveExpiredGreenCards(ctx context.Context, now time.Time) ([]models.GreenCard, error) {
	cards, err := s.ListGreenCards(ctx)
	if err != nil {
		return nil, err
	}
	var removed []models.GreenCard
	for _, card := range cards {
		if !card.ExpiredAt(now) {
			continue
		}
		if _, err := s.exec(ctx, s.db, `DELETE FROM green_cards WHERE id = ?`, card.ID.String()); err != nil {
			return removed, fmt.Errorf("remove green card: %w", err)
		}
		removed = append(removed, card)
	}
	return removed, nil
}

func nullNanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

// IsNotFound reports whether err means the entity is absent.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
