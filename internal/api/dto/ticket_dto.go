package dto

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^[+]?[\d\s\-()]{7,20}$`)
)

// ContactRequest carries optional contact fields.
type ContactRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
	Phone *string `json:"phone"`
}

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Contact     *ContactRequest `json:"contact"`
}

// UpdateTicketRequest payload. Absent fields are kept.
type UpdateTicketRequest struct {
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	Contact     *ContactRequest `json:"contact"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status   *string `json:"status"`
	Position *int64  `json:"position"`
}

// ReorderRequest payload.
type ReorderRequest struct {
	Column     string   `json:"column"`
	OrderedIDs []string `json:"orderedIds"`
}

// MoveTicketRequest payload for a board drop.
type MoveTicketRequest struct {
	Status string `json:"status"`
	Index  *int   `json:"index"`
}

// ContactResponse is the contact as rendered to clients.
type ContactResponse struct {
	Name  string  `json:"name"`
	Email string  `json:"email"`
	Phone *string `json:"phone"`
}

// TicketResponse is the ticket as rendered to clients.
type TicketResponse struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Contact     ContactResponse     `json:"contact"`
	Status      domain.TicketStatus `json:"status"`
	Position    *int64              `json:"position"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}

// BoardColumnResponse is one board column.
type BoardColumnResponse struct {
	Status  domain.TicketStatus `json:"status"`
	Count   int                 `json:"count"`
	Tickets []TicketResponse    `json:"tickets"`
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Contact: ContactResponse{
			Name:  t.Contact.Name,
			Email: t.Contact.Email,
			Phone: t.Contact.Phone,
		},
		Status:    t.Status,
		Position:  t.Position,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

// NewTicketListResponse maps a slice of tickets; never nil.
func NewTicketListResponse(tickets []domain.Ticket) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		out = append(out, NewTicketResponse(&tickets[i]))
	}
	return out
}

// NewBoardResponse maps board columns.
func NewBoardResponse(columns []domain.Column) []BoardColumnResponse {
	out := make([]BoardColumnResponse, 0, len(columns))
	for _, col := range columns {
		out = append(out, BoardColumnResponse{
			Status:  col.Status,
			Count:   len(col.Tickets),
			Tickets: NewTicketListResponse(col.Tickets),
		})
	}
	return out
}

// Validate checks the create payload at the request boundary.
func (r CreateTicketRequest) Validate() []domain.FieldError {
	var fields []domain.FieldError
	fields = appendTextErrors(fields, "title", "Title", r.Title, domain.TitleMaxLength, true)
	fields = appendTextErrors(fields, "description", "Description", r.Description, domain.DescriptionMaxLength, true)
	return append(fields, r.Contact.validate()...)
}

// Validate checks the update payload at the request boundary. Emptiness of
// title and description is enforced by the ticket itself.
func (r UpdateTicketRequest) Validate() []domain.FieldError {
	var fields []domain.FieldError
	if r.Title != nil {
		fields = appendTextErrors(fields, "title", "Title", *r.Title, domain.TitleMaxLength, false)
	}
	if r.Description != nil {
		fields = appendTextErrors(fields, "description", "Description", *r.Description, domain.DescriptionMaxLength, false)
	}
	return append(fields, r.Contact.validate()...)
}

// Validate checks the reorder payload.
func (r ReorderRequest) Validate() []domain.FieldError {
	var fields []domain.FieldError
	if strings.TrimSpace(r.Column) == "" {
		fields = append(fields, domain.FieldError{Field: "column", Message: "Column is required"})
	}
	if r.OrderedIDs == nil {
		fields = append(fields, domain.FieldError{Field: "orderedIds", Message: "orderedIds must be an array"})
	}
	return fields
}

// Validate checks the move payload.
func (r MoveTicketRequest) Validate() []domain.FieldError {
	var fields []domain.FieldError
	if strings.TrimSpace(r.Status) == "" {
		fields = append(fields, domain.FieldError{Field: "status", Message: "Status is required"})
	}
	switch {
	case r.Index == nil:
		fields = append(fields, domain.FieldError{Field: "index", Message: "Index is required"})
	case *r.Index < 0:
		fields = append(fields, domain.FieldError{Field: "index", Message: "Index must be zero or greater"})
	}
	return fields
}

// ToContact converts the request contact, defaulting absent values.
func (c *ContactRequest) ToContact() domain.Contact {
	if c == nil {
		return domain.Contact{}
	}
	out := domain.Contact{Phone: c.Phone}
	if c.Name != nil {
		out.Name = *c.Name
	}
	if c.Email != nil {
		out.Email = *c.Email
	}
	return out
}

// ToPatch converts the request contact into a merge patch.
func (c *ContactRequest) ToPatch() *domain.ContactPatch {
	if c == nil {
		return nil
	}
	return &domain.ContactPatch{Name: c.Name, Email: c.Email, Phone: c.Phone}
}

func (c *ContactRequest) validate() []domain.FieldError {
	if c == nil {
		return nil
	}
	var fields []domain.FieldError
	if c.Email != nil {
		if email := strings.TrimSpace(*c.Email); email != "" && !emailPattern.MatchString(email) {
			fields = append(fields, domain.FieldError{Field: "contact.email", Message: "Contact email must be valid"})
		}
	}
	if c.Phone != nil {
		if phone := strings.TrimSpace(*c.Phone); phone != "" && !phonePattern.MatchString(phone) {
			fields = append(fields, domain.FieldError{Field: "contact.phone", Message: "Contact phone must be valid"})
		}
	}
	return fields
}

func appendTextErrors(fields []domain.FieldError, field, label, value string, max int, required bool) []domain.FieldError {
	value = strings.TrimSpace(value)
	switch {
	case value == "" && required:
		return append(fields, domain.FieldError{Field: field, Message: label + " is required"})
	case utf8.RuneCountInString(value) > max:
		return append(fields, domain.FieldError{
			Field:   field,
			Message: label + " must be less than " + strconv.Itoa(max) + " characters",
		})
	}
	return fields
}
