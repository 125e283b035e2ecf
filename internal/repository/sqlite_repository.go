package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

const sqliteTimeLayout = "2006-01-02T15:04:05.000Z07:00"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS tickets (
    id            TEXT PRIMARY KEY,
    title         TEXT NOT NULL,
    description   TEXT NOT NULL,
    contact_name  TEXT NOT NULL DEFAULT '',
    contact_email TEXT NOT NULL DEFAULT '',
    contact_phone TEXT,
    status        TEXT NOT NULL CHECK (status IN ('pending', 'accepted', 'resolved', 'rejected')),
    position      INTEGER,
    created_at    TEXT NOT NULL,
    updated_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tickets_status_position ON tickets (status, position);
`

// SQLiteTicketRepository persists tickets in an embedded SQLite database.
type SQLiteTicketRepository struct {
	db *sql.DB
}

// NewSQLiteTicketRepository creates the tickets table when it does not exist.
func NewSQLiteTicketRepository(ctx context.Context, db *sql.DB) (*SQLiteTicketRepository, error) {
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return &SQLiteTicketRepository{db: db}, nil
}

func (r *SQLiteTicketRepository) Create(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error) {
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO tickets (id, title, description, contact_name, contact_email, contact_phone,
                             status, position, created_at, updated_at)
        VALUES (?,?,?,?,?,?,?,?,?,?)`,
		ticket.ID,
		ticket.Title,
		ticket.Description,
		ticket.Contact.Name,
		ticket.Contact.Email,
		nullString(ticket.Contact.Phone),
		string(ticket.Status),
		nullInt64(ticket.Position),
		formatSQLiteTime(ticket.CreatedAt),
		formatSQLiteTime(ticket.UpdatedAt),
	)
	if err != nil {
		return nil, err
	}
	return ticket.Clone(), nil
}

func (r *SQLiteTicketRepository) FindByID(ctx context.Context, id string) (*domain.Ticket, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id=?`, id)
	ticket, err := scanSQLiteTicket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return ticket, err
}

func (r *SQLiteTicketRepository) FindAll(ctx context.Context) ([]domain.Ticket, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+ticketColumns+` FROM tickets ORDER BY created_at ASC, rowid ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Ticket{}
	for rows.Next() {
		ticket, err := scanSQLiteTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func (r *SQLiteTicketRepository) Update(ctx context.Context, id string, patch TicketPatch) (*domain.Ticket, error) {
	sets, args := patchAssignments(patch, func(int) string { return "?" }, func(t time.Time) any { return formatSQLiteTime(t) })
	if len(sets) == 0 {
		ticket, err := r.FindByID(ctx, id)
		return matchingTicket(patch, ticket, err)
	}
	args = append(args, id)
	where := "id=?"
	if patch.IfStatus != nil {
		args = append(args, string(*patch.IfStatus))
		where += " AND status=?"
	}
	res, err := r.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE tickets SET %s WHERE %s`, strings.Join(sets, ", "), where), args...)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, nil
	}
	return r.FindByID(ctx, id)
}

// UpdatePositions writes the batch inside one transaction.
func (r *SQLiteTicketRepository) UpdatePositions(ctx context.Context, assignments []domain.PositionAssignment, touchedAt *time.Time) (int, error) {
	if len(assignments) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() //nolint:errcheck

	updated := 0
	for _, a := range assignments {
		query, args := positionUpdate(a, touchedAt,
			func(int) string { return "?" },
			func(t time.Time) any { return formatSQLiteTime(t) })
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		updated += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return updated, nil
}

func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseSQLiteTime(raw string) (time.Time, error) {
	t, err := time.Parse(sqliteTimeLayout, raw)
	if err != nil {
		t, err = time.Parse(time.RFC3339Nano, raw)
	}
	return t.UTC(), err
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteTicket(row rowScanner) (*domain.Ticket, error) {
	var (
		rec       domain.TicketRecord
		phone     sql.NullString
		position  sql.NullInt64
		createdAt string
		updatedAt string
	)
	if err := row.Scan(
		&rec.ID,
		&rec.Title,
		&rec.Description,
		&rec.Contact.Name,
		&rec.Contact.Email,
		&phone,
		&rec.Status,
		&position,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}
	if phone.Valid {
		rec.Contact.Phone = &phone.String
	}
	if position.Valid {
		rec.Position = &position.Int64
	}
	var err error
	if rec.CreatedAt, err = parseSQLiteTime(createdAt); err != nil {
		return nil, fmt.Errorf("decode created_at: %w", err)
	}
	if rec.UpdatedAt, err = parseSQLiteTime(updatedAt); err != nil {
		return nil, fmt.Errorf("decode updated_at: %w", err)
	}
	return domain.Reconstruct(rec), nil
}
