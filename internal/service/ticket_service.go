package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

// List defaults and bounds.
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// Sortable list fields.
const (
	SortByStatus    = "status"
	SortByCreatedAt = "createdAt"
	SortByUpdatedAt = "updatedAt"

	SortAsc  = "asc"
	SortDesc = "desc"
)

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets    repository.TicketRepository
	locker     Locker
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	Locker     Locker
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

// CreateTicketInput describes ticket creation payload.
type CreateTicketInput struct {
	Title       string
	Description string
	Contact     domain.Contact
}

// UpdateTicketInput describes a partial edit. Nil fields are kept.
type UpdateTicketInput struct {
	Title       *string
	Description *string
	Contact     *domain.ContactPatch
}

// ListQuery describes list filters, sort and page.
type ListQuery struct {
	Statuses  []domain.TicketStatus
	SortBy    string
	SortOrder string
	Page      int
	Limit     int
}

// Pagination describes the page returned by ListTickets.
type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

// TicketPage is one page of list results.
type TicketPage struct {
	Items      []domain.Ticket
	Pagination Pagination
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	svc := &TicketService{
		tickets:    deps.TicketRepo,
		locker:     deps.Locker,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		now:        deps.Now,
	}
	if svc.locker == nil {
		svc.locker = NewKeyedMutex()
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	if svc.now == nil {
		svc.now = domain.Now
	}
	return svc
}

// CreateTicket validates and stores a new pending ticket.
func (s *TicketService) CreateTicket(ctx context.Context, input CreateTicketInput) (*domain.Ticket, error) {
	ticket, err := domain.NewTicket(input.Title, input.Description, input.Contact, s.now())
	if err != nil {
		return nil, err
	}
	created, err := s.tickets.Create(ctx, ticket)
	if err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.NewEvent(events.EventTicketCreated, created.ID, created.CreatedAt,
		events.TicketCreatedPayload{Title: created.Title, Status: created.Status}))
	return created, nil
}

// GetTicket returns (nil, nil) when id is unknown.
func (s *TicketService) GetTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	return s.tickets.FindByID(ctx, id)
}

// UpdateTicket edits title, description and contact. Status and position
// are never touched here. Returns (nil, nil) when id is unknown.
func (s *TicketService) UpdateTicket(ctx context.Context, id string, input UpdateTicketInput) (*domain.Ticket, error) {
	unlock, err := s.locker.Lock(ctx, ticketLockKey(id))
	if err != nil {
		return nil, err
	}
	defer unlock()

	ticket, err := s.tickets.FindByID(ctx, id)
	if err != nil || ticket == nil {
		return nil, err
	}
	if err := ticket.Edit(input.Title, input.Description, input.Contact, s.now()); err != nil {
		return nil, err
	}

	patch := repository.TicketPatch{UpdatedAt: &ticket.UpdatedAt}
	fields := []string{}
	if input.Title != nil {
		patch.Title = &ticket.Title
		fields = append(fields, "title")
	}
	if input.Description != nil {
		patch.Description = &ticket.Description
		fields = append(fields, "description")
	}
	if input.Contact != nil {
		patch.Contact = &ticket.Contact
		fields = append(fields, "contact")
	}

	updated, err := s.tickets.Update(ctx, id, patch)
	if err != nil || updated == nil {
		return updated, err
	}
	s.publishEvent(ctx, events.NewEvent(events.EventTicketUpdated, id, updated.UpdatedAt,
		events.TicketUpdatedPayload{Fields: fields}))
	return updated, nil
}

// UpdateStatus is the status transition engine. The lookup is strict: only
// edges of the transition table are accepted, a same-status request included.
// On success the ticket is written with exactly one Update carrying status,
// updatedAt and the optional position. Returns (nil, nil) when id is unknown.
func (s *TicketService) UpdateStatus(ctx context.Context, id, rawStatus string, position *int64) (*domain.Ticket, error) {
	unlock, err := s.locker.Lock(ctx, ticketLockKey(id))
	if err != nil {
		return nil, err
	}
	defer unlock()

	ticket, err := s.tickets.FindByID(ctx, id)
	if err != nil || ticket == nil {
		return nil, err
	}
	target, err := domain.ParseStatus(rawStatus)
	if err != nil {
		return nil, err
	}
	return s.applyTransition(ctx, ticket, target, position)
}

// applyTransition must run with the ticket lock held.
func (s *TicketService) applyTransition(ctx context.Context, ticket *domain.Ticket, target domain.TicketStatus, position *int64) (*domain.Ticket, error) {
	previous := ticket.Status
	if err := ticket.TransitionTo(target, s.now()); err != nil {
		return nil, err
	}

	updated, err := s.tickets.Update(ctx, ticket.ID, repository.TicketPatch{
		Status:    &ticket.Status,
		Position:  position,
		UpdatedAt: &ticket.UpdatedAt,
	})
	if err != nil || updated == nil {
		return updated, err
	}

	s.logger.Info("ticket status changed",
		zap.String("ticket_id", updated.ID),
		zap.String("from", string(previous)),
		zap.String("to", string(updated.Status)))
	s.publishEvent(ctx, events.NewEvent(events.EventTicketStatusChanged, updated.ID, updated.UpdatedAt,
		events.TicketStatusChangedPayload{OldStatus: previous, NewStatus: updated.Status, Position: position}))
	return updated, nil
}

// ListTickets filters, sorts and pages the full ticket set in memory. The
// query is normalized first; see NormalizeListQuery.
func (s *TicketService) ListTickets(ctx context.Context, query ListQuery) (*TicketPage, error) {
	query = NormalizeListQuery(query)

	all, err := s.tickets.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	filtered := filterByStatus(all, query.Statuses)
	sortTickets(filtered, query.SortBy, query.SortOrder)

	total := len(filtered)
	totalPages := (total + query.Limit - 1) / query.Limit
	start := (query.Page - 1) * query.Limit
	if start > total {
		start = total
	}
	end := start + query.Limit
	if end > total {
		end = total
	}

	return &TicketPage{
		Items: filtered[start:end],
		Pagination: Pagination{
			Page:       query.Page,
			Limit:      query.Limit,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    query.Page < totalPages,
			HasPrev:    query.Page > 1,
		},
	}, nil
}

// NormalizeListQuery replaces out-of-range or unknown values with defaults
// and caps the limit.
func NormalizeListQuery(q ListQuery) ListQuery {
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	if q.Limit < 1 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	switch q.SortBy {
	case SortByStatus, SortByCreatedAt, SortByUpdatedAt:
	default:
		q.SortBy = SortByUpdatedAt
	}
	switch q.SortOrder {
	case SortAsc, SortDesc:
	default:
		q.SortOrder = SortDesc
	}
	return q
}

func filterByStatus(tickets []domain.Ticket, statuses []domain.TicketStatus) []domain.Ticket {
	if len(statuses) == 0 {
		return tickets
	}
	wanted := make(map[domain.TicketStatus]struct{}, len(statuses))
	for _, st := range statuses {
		wanted[st] = struct{}{}
	}
	out := make([]domain.Ticket, 0, len(tickets))
	for _, t := range tickets {
		if _, ok := wanted[t.Status]; ok {
			out = append(out, t)
		}
	}
	return out
}

func sortTickets(tickets []domain.Ticket, field, order string) {
	compare := func(a, b *domain.Ticket) int {
		switch field {
		case SortByStatus:
			return a.Status.Ordinal() - b.Status.Ordinal()
		case SortByCreatedAt:
			return a.CreatedAt.Compare(b.CreatedAt)
		default:
			return a.UpdatedAt.Compare(b.UpdatedAt)
		}
	}
	sort.SliceStable(tickets, func(i, j int) bool {
		c := compare(&tickets[i], &tickets[j])
		if order == SortAsc {
			return c < 0
		}
		return c > 0
	})
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
	}
}
