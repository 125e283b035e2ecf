package domain_test

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

var _ = Describe("Ticket", func() {
	now := time.Date(2026, 3, 1, 10, 0, 0, 123456789, time.UTC)

	Describe("NewTicket", func() {
		It("trims text and starts pending without a position", func() {
			t, err := domain.NewTicket("  Printer broken ", " desc ", domain.Contact{Name: " A ", Email: "a@a.com"}, now)
			Expect(err).NotTo(HaveOccurred())
			Expect(t.ID).NotTo(BeEmpty())
			Expect(t.Title).To(Equal("Printer broken"))
			Expect(t.Description).To(Equal("desc"))
			Expect(t.Contact.Name).To(Equal("A"))
			Expect(t.Contact.Phone).To(BeNil())
			Expect(t.Status).To(Equal(domain.TicketStatusPending))
			Expect(t.Position).To(BeNil())
			Expect(t.CreatedAt).To(Equal(t.UpdatedAt))
			Expect(t.CreatedAt.Nanosecond()).To(Equal(123000000))
		})

		It("drops a blank phone", func() {
			blank := "   "
			t, err := domain.NewTicket("t", "d", domain.Contact{Phone: &blank}, now)
			Expect(err).NotTo(HaveOccurred())
			Expect(t.Contact.Phone).To(BeNil())
		})

		DescribeTable("rejects invalid text",
			func(title, description, field string) {
				_, err := domain.NewTicket(title, description, domain.Contact{}, now)
				var verr *domain.ValidationError
				Expect(errors.As(err, &verr)).To(BeTrue())
				Expect(verr.Code()).To(Equal(domain.CodeValidation))
				Expect(verr.Fields).To(ContainElement(HaveField("Field", field)))
			},
			Entry("blank title", "   ", "d", "title"),
			Entry("blank description", "t", "\t", "description"),
			Entry("long title", strings.Repeat("x", 256), "d", "title"),
			Entry("long description", "t", strings.Repeat("y", 2001), "description"),
		)

		It("accepts text at the limits", func() {
			_, err := domain.NewTicket(strings.Repeat("x", 255), strings.Repeat("é", 2000), domain.Contact{}, now)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("status table", func() {
		valid := map[[2]domain.TicketStatus]bool{
			{domain.TicketStatusPending, domain.TicketStatusAccepted}:  true,
			{domain.TicketStatusPending, domain.TicketStatusRejected}:  true,
			{domain.TicketStatusAccepted, domain.TicketStatusResolved}: true,
			{domain.TicketStatusAccepted, domain.TicketStatusRejected}: true,
		}

		It("allows exactly the four forward edges", func() {
			for _, from := range domain.AllStatuses {
				for _, to := range domain.AllStatuses {
					Expect(from.CanTransitionTo(to)).To(Equal(valid[[2]domain.TicketStatus{from, to}]),
						"%s -> %s", from, to)
				}
			}
		})

		It("marks resolved and rejected as final", func() {
			Expect(domain.TicketStatusResolved.IsFinal()).To(BeTrue())
			Expect(domain.TicketStatusRejected.IsFinal()).To(BeTrue())
			Expect(domain.TicketStatusPending.IsFinal()).To(BeFalse())
			Expect(domain.TicketStatusResolved.AllowedTransitions()).To(BeEmpty())
		})

		It("keeps the board rule permissive for same-status drops only", func() {
			Expect(domain.IsValidMove(domain.TicketStatusResolved, domain.TicketStatusResolved)).To(BeTrue())
			Expect(domain.TicketStatusResolved.CanTransitionTo(domain.TicketStatusResolved)).To(BeFalse())
			Expect(domain.IsValidMove(domain.TicketStatusAccepted, domain.TicketStatusPending)).To(BeFalse())
		})

		It("parses only enum values", func() {
			s, err := domain.ParseStatus("accepted")
			Expect(err).NotTo(HaveOccurred())
			Expect(s).To(Equal(domain.TicketStatusAccepted))

			_, err = domain.ParseStatus("closed")
			var serr *domain.InvalidStatusError
			Expect(errors.As(err, &serr)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("pending, accepted, resolved, rejected"))
		})
	})

	Describe("TransitionTo", func() {
		var ticket *domain.Ticket

		BeforeEach(func() {
			var err error
			ticket, err = domain.NewTicket("Printer broken", "desc", domain.Contact{Name: "A", Email: "a@a.com"}, now)
			Expect(err).NotTo(HaveOccurred())
		})

		It("walks pending -> accepted -> resolved and refreshes updatedAt", func() {
			later := now.Add(time.Minute)
			Expect(ticket.TransitionTo(domain.TicketStatusAccepted, later)).To(Succeed())
			Expect(ticket.Status).To(Equal(domain.TicketStatusAccepted))
			Expect(ticket.UpdatedAt).To(Equal(later.Truncate(time.Millisecond)))
			Expect(ticket.TransitionTo(domain.TicketStatusResolved, later)).To(Succeed())
			Expect(ticket.IsFinalState()).To(BeTrue())
		})

		It("rejects backwards moves with the allowed set", func() {
			Expect(ticket.TransitionTo(domain.TicketStatusAccepted, now)).To(Succeed())
			err := ticket.TransitionTo(domain.TicketStatusPending, now)
			var terr *domain.InvalidStatusTransitionError
			Expect(errors.As(err, &terr)).To(BeTrue())
			Expect(terr.CurrentStatus).To(Equal(domain.TicketStatusAccepted))
			Expect(terr.AllowedTransitions).To(Equal([]domain.TicketStatus{domain.TicketStatusResolved, domain.TicketStatusRejected}))
			Expect(ticket.Status).To(Equal(domain.TicketStatusAccepted))
		})

		It("reports final states in the message", func() {
			Expect(ticket.TransitionTo(domain.TicketStatusRejected, now)).To(Succeed())
			err := ticket.TransitionTo(domain.TicketStatusAccepted, now)
			Expect(err).To(MatchError(ContainSubstring("none (final state)")))
		})

		It("rejects same-status transitions", func() {
			err := ticket.TransitionTo(domain.TicketStatusPending, now)
			Expect(err).To(BeAssignableToTypeOf(&domain.InvalidStatusTransitionError{}))
		})

		It("rejects values outside the enum before the table", func() {
			err := ticket.TransitionTo("closed", now)
			Expect(err).To(BeAssignableToTypeOf(&domain.InvalidStatusError{}))
		})
	})

	Describe("Edit", func() {
		var ticket *domain.Ticket
		later := now.Add(time.Minute)

		BeforeEach(func() {
			phone := "081"
			var err error
			ticket, err = domain.NewTicket("t", "d", domain.Contact{Name: "A", Email: "a@a.com", Phone: &phone}, now)
			Expect(err).NotTo(HaveOccurred())
		})

		It("keeps fields that are not supplied", func() {
			title := " new title "
			Expect(ticket.Edit(&title, nil, nil, later)).To(Succeed())
			Expect(ticket.Title).To(Equal("new title"))
			Expect(ticket.Description).To(Equal("d"))
			Expect(ticket.Contact.Email).To(Equal("a@a.com"))
			Expect(ticket.UpdatedAt).To(Equal(later.Truncate(time.Millisecond)))
			Expect(ticket.CreatedAt).To(Equal(now.Truncate(time.Millisecond)))
		})

		It("merges the contact and clears a blank phone", func() {
			name, blank := "B", ""
			Expect(ticket.Edit(nil, nil, &domain.ContactPatch{Name: &name, Phone: &blank}, later)).To(Succeed())
			Expect(ticket.Contact.Name).To(Equal("B"))
			Expect(ticket.Contact.Email).To(Equal("a@a.com"))
			Expect(ticket.Contact.Phone).To(BeNil())
		})

		It("leaves the ticket untouched when validation fails", func() {
			blank := "  "
			err := ticket.Edit(nil, &blank, nil, later)

			var verr *domain.ValidationError
			Expect(errors.As(err, &verr)).To(BeTrue())
			Expect(verr.Fields).To(ContainElement(domain.FieldError{Field: "description", Message: "Description is required"}))
			Expect(ticket.Description).To(Equal("d"))
			Expect(ticket.UpdatedAt).To(Equal(ticket.CreatedAt))
		})

		It("never changes status or position", func() {
			title := "x"
			Expect(ticket.Edit(&title, nil, nil, later)).To(Succeed())
			Expect(ticket.Status).To(Equal(domain.TicketStatusPending))
			Expect(ticket.Position).To(BeNil())
		})
	})

	Describe("Reconstruct", func() {
		It("round-trips a created ticket through its JSON record", func() {
			phone := "081-234-5678"
			original, err := domain.NewTicket("Printer broken", "desc", domain.Contact{Name: "A", Email: "a@a.com", Phone: &phone}, now)
			Expect(err).NotTo(HaveOccurred())

			raw, err := json.Marshal(original.Record())
			Expect(err).NotTo(HaveOccurred())
			var rec domain.TicketRecord
			Expect(json.Unmarshal(raw, &rec)).To(Succeed())

			Expect(domain.Reconstruct(rec)).To(Equal(original))
		})

		It("fills contact defaults for legacy records", func() {
			t := domain.Reconstruct(domain.TicketRecord{ID: "x", Status: "resolved"})
			Expect(t.Contact).To(Equal(domain.Contact{}))
			Expect(t.Position).To(BeNil())
			Expect(t.IsFinalState()).To(BeTrue())
		})
	})
})
