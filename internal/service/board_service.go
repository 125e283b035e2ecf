package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

// Reasons logged when a reorder skips an id.
const (
	skipNotFound       = "not_found"
	skipStatusMismatch = "status_mismatch"
	skipStatusChanged  = "status_changed"
)

// ReorderResult reports what a column reorder wrote.
type ReorderResult struct {
	Updated int
	Skipped []string
}

// BackfillResult reports the positions assigned to legacy tickets.
type BackfillResult struct {
	Total       int
	Assignments []domain.PositionAssignment
	Applied     bool
}

// movePlan is the side-effect free first phase of MoveTicket.
type movePlan struct {
	ticket      *domain.Ticket
	target      domain.TicketStatus
	position    int64
	renumber    []domain.PositionAssignment
	statusDelta bool
}

// Board returns every ticket grouped into the four status columns.
func (s *TicketService) Board(ctx context.Context) ([]domain.Column, error) {
	all, err := s.tickets.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return domain.GroupByStatus(all), nil
}

// ReorderColumn gives orderedIDs[i] position i*1000. Ids that are unknown or
// sit in another column are skipped with a warning; they never fail the call.
// Writes only apply while the ticket is still in column, so a ticket moved
// by a concurrent transition keeps its new position.
func (s *TicketService) ReorderColumn(ctx context.Context, column string, orderedIDs []string) (*ReorderResult, error) {
	status := domain.TicketStatus(column)
	if !status.Valid() {
		return nil, domain.NewValidationError(domain.FieldError{
			Field:   "column",
			Message: fmt.Sprintf("Invalid column: %s", column),
		})
	}

	unlock, err := s.locker.Lock(ctx, columnLockKey(column))
	if err != nil {
		return nil, err
	}
	defer unlock()

	all, err := s.tickets.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*domain.Ticket, len(all))
	for i := range all {
		byID[all[i].ID] = &all[i]
	}

	result := &ReorderResult{}
	assignments := make([]domain.PositionAssignment, 0, len(orderedIDs))
	for i, id := range orderedIDs {
		ticket, ok := byID[id]
		switch {
		case !ok:
			s.logger.Warn("reorder skipped ticket",
				zap.String("ticket_id", id),
				zap.String("column", column),
				zap.String("reason", skipNotFound))
			result.Skipped = append(result.Skipped, id)
			continue
		case ticket.Status != status:
			s.logger.Warn("reorder skipped ticket",
				zap.String("ticket_id", id),
				zap.String("column", column),
				zap.String("reason", skipStatusMismatch),
				zap.String("actual_status", string(ticket.Status)))
			result.Skipped = append(result.Skipped, id)
			continue
		}
		assignments = append(assignments, domain.PositionAssignment{
			TicketID: id,
			Position: int64(i) * domain.PositionGap,
			Status:   status,
		})
	}

	now := s.now()
	updated, err := s.writePositions(ctx, assignments, &now)
	if err != nil {
		return nil, err
	}
	result.Updated = updated
	if updated < len(assignments) {
		stale, err := s.staleAssignments(ctx, assignments)
		if err != nil {
			return nil, err
		}
		result.Skipped = append(result.Skipped, stale...)
	}

	s.publishEvent(ctx, events.NewEvent(events.EventTicketsReordered, "", now,
		events.TicketsReorderedPayload{Status: status, Count: updated, Skipped: result.Skipped}))
	return result, nil
}

// MoveTicket drops a ticket at index of the status column. Dropping into the
// current column only repositions it. Any other column goes through the
// transition engine together with the computed position. Returns (nil, nil)
// when id is unknown.
func (s *TicketService) MoveTicket(ctx context.Context, id, rawStatus string, index int) (*domain.Ticket, error) {
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

	unlockColumn, err := s.locker.Lock(ctx, columnLockKey(string(target)))
	if err != nil {
		return nil, err
	}
	defer unlockColumn()

	plan, err := s.planMove(ctx, ticket, target, index)
	if err != nil {
		return nil, err
	}
	return s.commitMove(ctx, plan)
}

func (s *TicketService) planMove(ctx context.Context, ticket *domain.Ticket, target domain.TicketStatus, index int) (*movePlan, error) {
	if !domain.IsValidMove(ticket.Status, target) {
		return nil, domain.NewInvalidStatusTransitionError(ticket.Status, target, ticket.AllowedTransitions())
	}

	all, err := s.tickets.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	column := make([]domain.Ticket, 0, len(all))
	for _, t := range all {
		if t.Status == target {
			column = append(column, t)
		}
	}
	domain.SortColumn(column)

	assignments := domain.PlanInsert(column, ticket.ID, index)
	plan := &movePlan{
		ticket:      ticket,
		target:      target,
		statusDelta: ticket.Status != target,
	}
	if len(assignments) == 1 {
		plan.position = assignments[0].Position
		return plan, nil
	}

	for _, a := range domain.GuardColumn(assignments, target) {
		if a.TicketID == ticket.ID {
			plan.position = a.Position
			continue
		}
		plan.renumber = append(plan.renumber, a)
	}
	return plan, nil
}

// staleAssignments returns the ids whose ticket left the expected column
// before its position was written.
func (s *TicketService) staleAssignments(ctx context.Context, assignments []domain.PositionAssignment) ([]string, error) {
	all, err := s.tickets.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	current := make(map[string]domain.TicketStatus, len(all))
	for _, t := range all {
		current[t.ID] = t.Status
	}
	var stale []string
	for _, a := range assignments {
		if actual := current[a.TicketID]; actual != a.Status {
			s.logger.Warn("reorder skipped ticket",
				zap.String("ticket_id", a.TicketID),
				zap.String("column", string(a.Status)),
				zap.String("reason", skipStatusChanged),
				zap.String("actual_status", string(actual)))
			stale = append(stale, a.TicketID)
		}
	}
	return stale, nil
}

func (s *TicketService) commitMove(ctx context.Context, plan *movePlan) (*domain.Ticket, error) {
	if len(plan.renumber) > 0 {
		s.logger.Info("position gap exhausted, renumbering column",
			zap.String("column", string(plan.target)),
			zap.Int("tickets", len(plan.renumber)+1))
		if _, err := s.writePositions(ctx, plan.renumber, nil); err != nil {
			return nil, err
		}
	}

	position := plan.position
	if plan.statusDelta {
		return s.applyTransition(ctx, plan.ticket, plan.target, &position)
	}

	now := s.now()
	updated, err := s.tickets.Update(ctx, plan.ticket.ID, repository.TicketPatch{
		Position:  &position,
		UpdatedAt: &now,
	})
	if err != nil || updated == nil {
		return updated, err
	}
	s.publishEvent(ctx, events.NewEvent(events.EventTicketsReordered, updated.ID, now,
		events.TicketsReorderedPayload{Status: plan.target, Count: 1 + len(plan.renumber)}))
	return updated, nil
}

// BackfillPositions gives a position to every ticket stored without one.
// updatedAt is preserved. With dryRun nothing is written.
func (s *TicketService) BackfillPositions(ctx context.Context, dryRun bool) (*BackfillResult, error) {
	all, err := s.tickets.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	result := &BackfillResult{Total: len(all), Assignments: domain.PlanBackfill(all)}
	if dryRun || len(result.Assignments) == 0 {
		return result, nil
	}
	statuses := make(map[string]domain.TicketStatus, len(all))
	for _, t := range all {
		statuses[t.ID] = t.Status
	}
	guarded := make([]domain.PositionAssignment, len(result.Assignments))
	for i, a := range result.Assignments {
		a.Status = statuses[a.TicketID]
		guarded[i] = a
	}
	if _, err := s.writePositions(ctx, guarded, nil); err != nil {
		return nil, err
	}
	result.Applied = true
	return result, nil
}

// writePositions uses the adapter's batch path when it has one and falls
// back to one Update per ticket otherwise. A nil touchedAt keeps updatedAt.
// Assignments carrying a Status only apply while the ticket is in it.
func (s *TicketService) writePositions(ctx context.Context, assignments []domain.PositionAssignment, touchedAt *time.Time) (int, error) {
	if len(assignments) == 0 {
		return 0, nil
	}
	if batch, ok := s.tickets.(repository.PositionBatchUpdater); ok {
		return batch.UpdatePositions(ctx, assignments, touchedAt)
	}

	updated := 0
	for _, a := range assignments {
		pos := a.Position
		patch := repository.TicketPatch{Position: &pos, UpdatedAt: touchedAt}
		if a.Status != "" {
			status := a.Status
			patch.IfStatus = &status
		}
		ticket, err := s.tickets.Update(ctx, a.TicketID, patch)
		if err != nil {
			return updated, err
		}
		if ticket != nil {
			updated++
		}
	}
	return updated, nil
}
