package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

const ticketColumns = `id, title, description, contact_name, contact_email, contact_phone,
               status, position, created_at, updated_at`

// PostgresTicketRepository persists tickets through a pgx pool.
type PostgresTicketRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresTicketRepository instantiates repository.
func NewPostgresTicketRepository(pool *pgxpool.Pool) *PostgresTicketRepository {
	return &PostgresTicketRepository{pool: pool}
}

func (r *PostgresTicketRepository) Create(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error) {
	const query = `
        INSERT INTO tickets (id, title, description, contact_name, contact_email, contact_phone,
                             status, position, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING ` + ticketColumns
	return scanTicket(r.pool.QueryRow(ctx, query,
		ticket.ID,
		ticket.Title,
		ticket.Description,
		ticket.Contact.Name,
		ticket.Contact.Email,
		ticket.Contact.Phone,
		string(ticket.Status),
		ticket.Position,
		ticket.CreatedAt,
		ticket.UpdatedAt,
	))
}

func (r *PostgresTicketRepository) FindByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return ticket, err
}

func (r *PostgresTicketRepository) FindAll(ctx context.Context) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Ticket{}
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func (r *PostgresTicketRepository) Update(ctx context.Context, id string, patch TicketPatch) (*domain.Ticket, error) {
	sets, args := patchAssignments(patch,
		func(n int) string { return fmt.Sprintf("$%d", n) },
		func(t time.Time) any { return t })
	if len(sets) == 0 {
		ticket, err := r.FindByID(ctx, id)
		return matchingTicket(patch, ticket, err)
	}
	args = append(args, id)
	where := fmt.Sprintf("id=$%d", len(args))
	if patch.IfStatus != nil {
		args = append(args, string(*patch.IfStatus))
		where += fmt.Sprintf(" AND status=$%d", len(args))
	}
	query := fmt.Sprintf(`UPDATE tickets SET %s WHERE %s RETURNING %s`,
		strings.Join(sets, ", "), where, ticketColumns)

	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return ticket, err
}

// UpdatePositions writes the batch inside one transaction.
func (r *PostgresTicketRepository) UpdatePositions(ctx context.Context, assignments []domain.PositionAssignment, touchedAt *time.Time) (int, error) {
	if len(assignments) == 0 {
		return 0, nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	batch := &pgx.Batch{}
	for _, a := range assignments {
		query, args := positionUpdate(a, touchedAt,
			func(n int) string { return fmt.Sprintf("$%d", n) },
			func(t time.Time) any { return t })
		batch.Queue(query, args...)
	}

	results := tx.SendBatch(ctx, batch)
	updated := 0
	for range assignments {
		cmd, err := results.Exec()
		if err != nil {
			results.Close()
			return 0, err
		}
		updated += int(cmd.RowsAffected())
	}
	if err := results.Close(); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return updated, nil
}

// positionUpdate builds the single-row position write shared by the SQL
// backends. A set Status turns it into a compare-and-set on the column.
func positionUpdate(a domain.PositionAssignment, touchedAt *time.Time, placeholder func(int) string, encodeTime func(time.Time) any) (string, []any) {
	args := []any{a.Position}
	sets := "position=" + placeholder(1)
	if touchedAt != nil {
		args = append(args, encodeTime(*touchedAt))
		sets += ", updated_at=" + placeholder(len(args))
	}
	args = append(args, a.TicketID)
	where := "id=" + placeholder(len(args))
	if a.Status != "" {
		args = append(args, string(a.Status))
		where += " AND status=" + placeholder(len(args))
	}
	return fmt.Sprintf("UPDATE tickets SET %s WHERE %s", sets, where), args
}

// matchingTicket drops a found ticket that fails the patch condition.
func matchingTicket(patch TicketPatch, ticket *domain.Ticket, err error) (*domain.Ticket, error) {
	if err != nil || ticket == nil || !patch.Matches(ticket) {
		return nil, err
	}
	return ticket, nil
}

// patchAssignments builds the SET clauses shared by the SQL backends.
func patchAssignments(patch TicketPatch, placeholder func(int) string, encodeTime func(time.Time) any) ([]string, []any) {
	sets := []string{}
	args := []any{}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s=%s", column, placeholder(len(args))))
	}

	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.Contact != nil {
		add("contact_name", patch.Contact.Name)
		add("contact_email", patch.Contact.Email)
		add("contact_phone", patch.Contact.Phone)
	}
	if patch.Status != nil {
		add("status", string(*patch.Status))
	}
	if patch.Position != nil {
		add("position", *patch.Position)
	}
	if patch.UpdatedAt != nil {
		add("updated_at", encodeTime(*patch.UpdatedAt))
	}
	return sets, args
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		rec   domain.TicketRecord
		phone *string
	)
	if err := row.Scan(
		&rec.ID,
		&rec.Title,
		&rec.Description,
		&rec.Contact.Name,
		&rec.Contact.Email,
		&phone,
		&rec.Status,
		&rec.Position,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return nil, err
	}
	rec.Contact.Phone = phone
	return domain.Reconstruct(rec), nil
}
