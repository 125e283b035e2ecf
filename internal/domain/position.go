package domain

import (
	"fmt"
	"math"
	"sort"
)

// PositionGap is the spacing between neighbours after a renumber.
const PositionGap int64 = 1000

// PositionAssignment is one row of a bulk position write.
type PositionAssignment struct {
	TicketID string
	Position int64
	// Status, when set, is the column the ticket must still be in for the
	// write to apply.
	Status TicketStatus
}

// GuardColumn returns a copy of assignments that only apply while each
// ticket is still in status.
func GuardColumn(assignments []PositionAssignment, status TicketStatus) []PositionAssignment {
	out := make([]PositionAssignment, len(assignments))
	for i, a := range assignments {
		a.Status = status
		out[i] = a
	}
	return out
}

// ComputeInsertPosition picks a position for a ticket dropped at targetIndex
// of column, which must already be in board order. It never returns a value
// already used in column: when no free integer is left, or when column still
// holds tickets without a position, it returns ErrGapExhausted and the caller
// renumbers the column instead.
func ComputeInsertPosition(column []Ticket, targetIndex int) (int64, error) {
	if len(column) == 0 {
		return 0, nil
	}
	for i := range column {
		if column[i].Position == nil {
			return 0, ErrGapExhausted
		}
	}
	if targetIndex <= 0 {
		first := column[0].PositionOr(0)
		pos := first - PositionGap
		if pos < 0 {
			pos = 0
		}
		if pos >= first {
			return 0, ErrGapExhausted
		}
		return pos, nil
	}
	if targetIndex >= len(column) {
		last := *column[len(column)-1].Position
		if last > math.MaxInt64-PositionGap {
			return 0, ErrGapExhausted
		}
		return last + PositionGap, nil
	}

	prev := column[targetIndex-1].PositionOr(0)
	next := column[targetIndex].PositionOr(0)
	mid := floorMidpoint(prev, next)
	if mid <= prev || mid >= next {
		return 0, ErrGapExhausted
	}
	return mid, nil
}

func floorMidpoint(a, b int64) int64 {
	sum := a + b
	mid := sum / 2
	if sum%2 != 0 && sum < 0 {
		mid--
	}
	return mid
}

// RenumberColumn assigns canonical gapped positions in the given order.
func RenumberColumn(orderedIDs []string) []PositionAssignment {
	out := make([]PositionAssignment, len(orderedIDs))
	for i, id := range orderedIDs {
		out[i] = PositionAssignment{TicketID: id, Position: int64(i) * PositionGap}
	}
	return out
}

// ReorderWithinColumn moves the ticket at fromIndex to toIndex and renumbers
// the whole column.
func ReorderWithinColumn(column []Ticket, fromIndex, toIndex int) ([]PositionAssignment, error) {
	if fromIndex < 0 || fromIndex >= len(column) {
		return nil, NewValidationError(FieldError{
			Field:   "fromIndex",
			Message: fmt.Sprintf("fromIndex %d out of range [0,%d)", fromIndex, len(column)),
		})
	}
	if toIndex < 0 || toIndex >= len(column) {
		return nil, NewValidationError(FieldError{
			Field:   "toIndex",
			Message: fmt.Sprintf("toIndex %d out of range [0,%d)", toIndex, len(column)),
		})
	}

	ids := columnIDs(column)
	moved := ids[fromIndex]
	ids = append(ids[:fromIndex], ids[fromIndex+1:]...)
	ids = insertAt(ids, toIndex, moved)
	return RenumberColumn(ids), nil
}

// PlanInsert returns the writes needed to drop ticketID at targetIndex of
// column. The ticket itself is ignored if it is already part of column. The
// result holds a single assignment unless the gap was exhausted, in which
// case every ticket in the destination column is renumbered.
func PlanInsert(column []Ticket, ticketID string, targetIndex int) []PositionAssignment {
	others := make([]Ticket, 0, len(column))
	for _, t := range column {
		if t.ID != ticketID {
			others = append(others, t)
		}
	}

	pos, err := ComputeInsertPosition(others, targetIndex)
	if err == nil {
		return []PositionAssignment{{TicketID: ticketID, Position: pos}}
	}

	ids := insertAt(columnIDs(others), clamp(targetIndex, 0, len(others)), ticketID)
	return RenumberColumn(ids)
}

// SortColumn orders tickets by position ascending. Tickets without a
// position come after positioned ones; ties fall back to updatedAt desc.
func SortColumn(tickets []Ticket) {
	sort.SliceStable(tickets, func(i, j int) bool {
		return lessInColumn(&tickets[i], &tickets[j])
	})
}

func lessInColumn(a, b *Ticket) bool {
	switch {
	case a.Position != nil && b.Position != nil:
		if *a.Position != *b.Position {
			return *a.Position < *b.Position
		}
	case a.Position != nil:
		return true
	case b.Position != nil:
		return false
	}
	return a.UpdatedAt.After(b.UpdatedAt)
}

// Column is one status partition of the board.
type Column struct {
	Status  TicketStatus
	Tickets []Ticket
}

// GroupByStatus splits tickets into the four board columns, each sorted with
// SortColumn. Tickets with an unknown status are left out.
func GroupByStatus(tickets []Ticket) []Column {
	byStatus := make(map[TicketStatus][]Ticket, len(AllStatuses))
	for _, t := range tickets {
		if !t.Status.Valid() {
			continue
		}
		byStatus[t.Status] = append(byStatus[t.Status], t)
	}

	columns := make([]Column, 0, len(AllStatuses))
	for _, status := range AllStatuses {
		items := byStatus[status]
		if items == nil {
			items = []Ticket{}
		}
		SortColumn(items)
		columns = append(columns, Column{Status: status, Tickets: items})
	}
	return columns
}

func columnIDs(column []Ticket) []string {
	ids := make([]string, len(column))
	for i, t := range column {
		ids[i] = t.ID
	}
	return ids
}

func insertAt(ids []string, index int, id string) []string {
	index = clamp(index, 0, len(ids))
	out := make([]string, 0, len(ids)+1)
	out = append(out, ids[:index]...)
	out = append(out, id)
	return append(out, ids[index:]...)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// PlanBackfill assigns index*PositionGap to tickets stored without a
// position. The index is the ticket's place among same-status tickets in
// storage order; tickets that already have a position keep it.
func PlanBackfill(tickets []Ticket) []PositionAssignment {
	seen := make(map[TicketStatus]int64, len(AllStatuses))
	var out []PositionAssignment
	for _, t := range tickets {
		if !t.Status.Valid() {
			continue
		}
		index := seen[t.Status]
		seen[t.Status] = index + 1
		if t.Position == nil {
			out = append(out, PositionAssignment{TicketID: t.ID, Position: index * PositionGap})
		}
	}
	return out
}
