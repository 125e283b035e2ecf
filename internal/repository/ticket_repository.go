package repository

import (
	"context"
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// TicketPatch is a merge patch: nil fields are left untouched.
type TicketPatch struct {
	Title       *string
	Description *string
	Contact     *domain.Contact
	Status      *domain.TicketStatus
	Position    *int64
	UpdatedAt   *time.Time
	// IfStatus makes the update conditional: it only applies while the stored
	// status still equals *IfStatus, otherwise Update reports (nil, nil).
	IfStatus *domain.TicketStatus
}

// Matches reports whether t satisfies the patch condition.
func (p TicketPatch) Matches(t *domain.Ticket) bool {
	return p.IfStatus == nil || t.Status == *p.IfStatus
}

func assignmentMatches(a domain.PositionAssignment, t *domain.Ticket) bool {
	return a.Status == "" || t.Status == a.Status
}

// Apply merges the patch into t.
func (p TicketPatch) Apply(t *domain.Ticket) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Contact != nil {
		c := *p.Contact
		if c.Phone != nil {
			phone := *c.Phone
			c.Phone = &phone
		}
		t.Contact = c
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Position != nil {
		pos := *p.Position
		t.Position = &pos
	}
	if p.UpdatedAt != nil {
		t.UpdatedAt = *p.UpdatedAt
	}
}

// TicketRepository is the storage port used by the ticket engines. Lookups
// of unknown ids return (nil, nil).
type TicketRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Ticket, error)
	FindAll(ctx context.Context) ([]domain.Ticket, error)
	Create(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error)
	Update(ctx context.Context, id string, patch TicketPatch) (*domain.Ticket, error)
}

// PositionBatchUpdater is implemented by backends that can write many
// positions as one unit. Unknown ids, and tickets no longer in the
// assignment's Status, are skipped; the count of written rows is returned.
// A nil touchedAt leaves updatedAt alone.
type PositionBatchUpdater interface {
	UpdatePositions(ctx context.Context, assignments []domain.PositionAssignment, touchedAt *time.Time) (int, error)
}
