package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusPending  TicketStatus = "pending"
	TicketStatusAccepted TicketStatus = "accepted"
	TicketStatusResolved TicketStatus = "resolved"
	TicketStatusRejected TicketStatus = "rejected"
)

// Field limits applied to ticket text after trimming.
const (
	TitleMaxLength       = 255
	DescriptionMaxLength = 2000
)

// AllStatuses lists statuses in board and sort order.
var AllStatuses = []TicketStatus{
	TicketStatusPending,
	TicketStatusAccepted,
	TicketStatusResolved,
	TicketStatusRejected,
}

// ParseStatus returns the status named by raw or an InvalidStatusError.
func ParseStatus(raw string) (TicketStatus, error) {
	status := TicketStatus(raw)
	if !status.Valid() {
		return "", NewInvalidStatusError(raw)
	}
	return status, nil
}

// Valid reports whether s is one of the four known statuses.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusPending, TicketStatusAccepted, TicketStatusResolved, TicketStatusRejected:
		return true
	}
	return false
}

// Ordinal is the fixed sort rank of s; unknown values sort last.
func (s TicketStatus) Ordinal() int {
	switch s {
	case TicketStatusPending:
		return 0
	case TicketStatusAccepted:
		return 1
	case TicketStatusResolved:
		return 2
	case TicketStatusRejected:
		return 3
	}
	return len(AllStatuses)
}

// AllowedTransitions returns the outgoing edges of s. Terminal states return
// an empty slice. Same-status edges never appear.
func (s TicketStatus) AllowedTransitions() []TicketStatus {
	switch s {
	case TicketStatusPending:
		return []TicketStatus{TicketStatusAccepted, TicketStatusRejected}
	case TicketStatusAccepted:
		return []TicketStatus{TicketStatusResolved, TicketStatusRejected}
	case TicketStatusResolved, TicketStatusRejected:
		return []TicketStatus{}
	}
	return []TicketStatus{}
}

// IsFinal reports whether s has no outgoing transitions.
func (s TicketStatus) IsFinal() bool {
	return len(s.AllowedTransitions()) == 0
}

// CanTransitionTo is a strict table lookup.
func (s TicketStatus) CanTransitionTo(target TicketStatus) bool {
	for _, candidate := range s.AllowedTransitions() {
		if candidate == target {
			return true
		}
	}
	return false
}

// IsValidMove is the board drag rule: dropping a card back into its own
// column is always fine, otherwise the transition table decides. The
// transition engine does not use it.
func IsValidMove(from, to TicketStatus) bool {
	if from == to {
		return true
	}
	return from.CanTransitionTo(to)
}

// Contact identifies who raised the ticket.
type Contact struct {
	Name  string
	Email string
	Phone *string
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID          string
	Title       string
	Description string
	Contact     Contact
	Status      TicketStatus
	// Position orders tickets within a status column. Nil for tickets stored
	// before positions existed.
	Position  *int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewTicket builds a pending ticket with a fresh id and timestamps.
func NewTicket(title, description string, contact Contact, now time.Time) (*Ticket, error) {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	if err := validateText(title, description); err != nil {
		return nil, err
	}

	ts := normalizeTime(now)
	return &Ticket{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		Contact:     normalizeContact(contact),
		Status:      TicketStatusPending,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}, nil
}

func validateText(title, description string) error {
	var fields []FieldError
	switch {
	case title == "":
		fields = append(fields, FieldError{Field: "title", Message: "Title is required"})
	case utf8.RuneCountInString(title) > TitleMaxLength:
		fields = append(fields, FieldError{Field: "title", Message: "Title must be less than 255 characters"})
	}
	switch {
	case description == "":
		fields = append(fields, FieldError{Field: "description", Message: "Description is required"})
	case utf8.RuneCountInString(description) > DescriptionMaxLength:
		fields = append(fields, FieldError{Field: "description", Message: "Description must be less than 2000 characters"})
	}
	if len(fields) > 0 {
		return NewValidationError(fields...)
	}
	return nil
}

func normalizeContact(c Contact) Contact {
	out := Contact{
		Name:  strings.TrimSpace(c.Name),
		Email: strings.TrimSpace(c.Email),
	}
	if c.Phone != nil {
		if phone := strings.TrimSpace(*c.Phone); phone != "" {
			out.Phone = &phone
		}
	}
	return out
}

// normalizeTime keeps millisecond precision in UTC so timestamps survive
// every storage backend unchanged.
func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// Now returns the current time normalized for storage.
func Now() time.Time {
	return normalizeTime(time.Now())
}

// IsFinalState reports whether the ticket can no longer change status.
func (t *Ticket) IsFinalState() bool {
	return t.Status.IsFinal()
}

// AllowedTransitions returns the statuses reachable from the current one.
func (t *Ticket) AllowedTransitions() []TicketStatus {
	return t.Status.AllowedTransitions()
}

// CanTransitionTo reports whether target is reachable in one step.
func (t *Ticket) CanTransitionTo(target TicketStatus) bool {
	return t.Status.CanTransitionTo(target)
}

// TransitionTo validates and applies a status change.
func (t *Ticket) TransitionTo(target TicketStatus, now time.Time) error {
	if !target.Valid() {
		return NewInvalidStatusError(string(target))
	}
	if !t.CanTransitionTo(target) {
		return NewInvalidStatusTransitionError(t.Status, target, t.AllowedTransitions())
	}
	t.Status = target
	t.UpdatedAt = normalizeTime(now)
	return nil
}

// PositionOr returns the position or fallback when unset.
func (t *Ticket) PositionOr(fallback int64) int64 {
	if t.Position == nil {
		return fallback
	}
	return *t.Position
}

// Clone returns a deep copy.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	out := *t
	if t.Contact.Phone != nil {
		phone := *t.Contact.Phone
		out.Contact.Phone = &phone
	}
	if t.Position != nil {
		pos := *t.Position
		out.Position = &pos
	}
	return &out
}

// ContactPatch carries the contact fields supplied by a partial update.
type ContactPatch struct {
	Name  *string
	Email *string
	Phone *string
}

// Edit applies a partial update of the descriptive fields. Supplied text is
// trimmed and re-validated; contact fields merge into the stored contact and
// an empty phone clears it.
func (t *Ticket) Edit(title, description *string, contact *ContactPatch, now time.Time) error {
	nextTitle, nextDescription := t.Title, t.Description
	if title != nil {
		nextTitle = strings.TrimSpace(*title)
	}
	if description != nil {
		nextDescription = strings.TrimSpace(*description)
	}
	if err := validateText(nextTitle, nextDescription); err != nil {
		return err
	}

	merged := t.Contact
	if contact != nil {
		if contact.Name != nil {
			merged.Name = *contact.Name
		}
		if contact.Email != nil {
			merged.Email = *contact.Email
		}
		if contact.Phone != nil {
			phone := *contact.Phone
			merged.Phone = &phone
		}
	}

	t.Title = nextTitle
	t.Description = nextDescription
	t.Contact = normalizeContact(merged)
	t.UpdatedAt = normalizeTime(now)
	return nil
}
