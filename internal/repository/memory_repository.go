package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// MemoryTicketRepository keeps tickets in process memory. Data is lost on restart.
type MemoryTicketRepository struct {
	mu      sync.RWMutex
	order   []string
	tickets map[string]*domain.Ticket
}

// NewMemoryTicketRepository returns an empty store.
func NewMemoryTicketRepository() *MemoryTicketRepository {
	return &MemoryTicketRepository{tickets: make(map[string]*domain.Ticket)}
}

func (r *MemoryTicketRepository) FindByID(ctx context.Context, id string) (*domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tickets[id].Clone(), nil
}

func (r *MemoryTicketRepository) FindAll(ctx context.Context) ([]domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Ticket, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.tickets[id].Clone())
	}
	return out, nil
}

func (r *MemoryTicketRepository) Create(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tickets[ticket.ID]; exists {
		return nil, fmt.Errorf("ticket %s already exists", ticket.ID)
	}
	r.tickets[ticket.ID] = ticket.Clone()
	r.order = append(r.order, ticket.ID)
	return ticket.Clone(), nil
}

func (r *MemoryTicketRepository) Update(ctx context.Context, id string, patch TicketPatch) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.tickets[id]
	if !ok || !patch.Matches(current) {
		return nil, nil
	}
	patch.Apply(current)
	return current.Clone(), nil
}

// UpdatePositions applies every assignment under one lock.
func (r *MemoryTicketRepository) UpdatePositions(ctx context.Context, assignments []domain.PositionAssignment, touchedAt *time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	updated := 0
	for _, a := range assignments {
		current, ok := r.tickets[a.TicketID]
		if !ok || !assignmentMatches(a, current) {
			continue
		}
		pos := a.Position
		TicketPatch{Position: &pos, UpdatedAt: touchedAt}.Apply(current)
		updated++
	}
	return updated, nil
}

// Seed replaces the store content, keeping the given order.
func (r *MemoryTicketRepository) Seed(tickets []domain.Ticket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = r.order[:0]
	r.tickets = make(map[string]*domain.Ticket, len(tickets))
	for i := range tickets {
		r.tickets[tickets[i].ID] = tickets[i].Clone()
		r.order = append(r.order, tickets[i].ID)
	}
}
