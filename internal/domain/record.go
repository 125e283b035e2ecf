package domain

import "time"

// ContactRecord is the persisted shape of Contact.
type ContactRecord struct {
	Name  string  `json:"name"`
	Email string  `json:"email"`
	Phone *string `json:"phone"`
}

// TicketRecord is the persisted shape of a ticket. Position is omitted for
// records written before positions existed.
type TicketRecord struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Contact     ContactRecord `json:"contact"`
	Status      string        `json:"status"`
	Position    *int64        `json:"position,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// Record serializes the ticket for storage.
func (t *Ticket) Record() TicketRecord {
	c := t.Clone()
	return TicketRecord{
		ID:          c.ID,
		Title:       c.Title,
		Description: c.Description,
		Contact: ContactRecord{
			Name:  c.Contact.Name,
			Email: c.Contact.Email,
			Phone: c.Contact.Phone,
		},
		Status:    string(c.Status),
		Position:  c.Position,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// Reconstruct rebuilds a ticket from storage without re-validating it.
// Missing contact values fall back to empty name/email and nil phone.
func Reconstruct(rec TicketRecord) *Ticket {
	t := &Ticket{
		ID:          rec.ID,
		Title:       rec.Title,
		Description: rec.Description,
		Contact: Contact{
			Name:  rec.Contact.Name,
			Email: rec.Contact.Email,
		},
		Status:    TicketStatus(rec.Status),
		CreatedAt: rec.CreatedAt.UTC(),
		UpdatedAt: rec.UpdatedAt.UTC(),
	}
	if rec.Contact.Phone != nil && *rec.Contact.Phone != "" {
		phone := *rec.Contact.Phone
		t.Contact.Phone = &phone
	}
	if rec.Position != nil {
		pos := *rec.Position
		t.Position = &pos
	}
	return t
}
