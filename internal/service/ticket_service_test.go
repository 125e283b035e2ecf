package service_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

var _ = Describe("TicketService", func() {
	var (
		ctx   context.Context
		store *repository.MemoryTicketRepository
		repo  *countingRepo
		clk   *clock
		rec   *recorder
		svc   *service.TicketService
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = repository.NewMemoryTicketRepository()
		repo = &countingRepo{TicketRepository: store}
		clk = newClock()
		rec = &recorder{}
		dispatcher := events.NewInMemoryDispatcher()
		rec.subscribeAll(dispatcher)
		svc = service.NewTicketService(service.TicketDependencies{
			TicketRepo: repo,
			Dispatcher: dispatcher,
			Now:        clk.Now,
		})
	})

	create := func(title string) *domain.Ticket {
		t, err := svc.CreateTicket(ctx, service.CreateTicketInput{
			Title:       title,
			Description: "desc",
			Contact:     domain.Contact{Name: "A", Email: "a@a.com"},
		})
		Expect(err).NotTo(HaveOccurred())
		return t
	}

	Describe("CreateTicket", func() {
		It("stores a pending ticket without a position", func() {
			t := create("  Printer broken ")
			Expect(t.Title).To(Equal("Printer broken"))
			Expect(t.Status).To(Equal(domain.TicketStatusPending))
			Expect(t.Position).To(BeNil())
			Expect(rec.types()).To(Equal([]events.EventType{events.EventTicketCreated}))

			found, err := svc.GetTicket(ctx, t.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(found.ID).To(Equal(t.ID))
		})

		It("rejects an empty title", func() {
			_, err := svc.CreateTicket(ctx, service.CreateTicketInput{Title: "  ", Description: "desc"})
			var verr *domain.ValidationError
			Expect(err).To(BeAssignableToTypeOf(verr))
		})
	})

	Describe("UpdateStatus", func() {
		It("walks the end-to-end lifecycle", func() {
			t := create("Printer broken")

			accepted, err := svc.UpdateStatus(ctx, t.ID, "accepted", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(accepted.Status).To(Equal(domain.TicketStatusAccepted))
			Expect(accepted.UpdatedAt.After(t.UpdatedAt)).To(BeTrue())

			_, err = svc.UpdateStatus(ctx, t.ID, "pending", nil)
			var terr *domain.InvalidStatusTransitionError
			Expect(err).To(BeAssignableToTypeOf(terr))

			resolved, err := svc.UpdateStatus(ctx, t.ID, "resolved", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(resolved.Status).To(Equal(domain.TicketStatusResolved))

			_, err = svc.UpdateStatus(ctx, t.ID, "rejected", nil)
			Expect(err).To(MatchError(ContainSubstring("none (final state)")))
		})

		It("writes exactly one update and applies the optional position", func() {
			t := create("Badge reader")
			before := repo.updateCount()

			updated, err := svc.UpdateStatus(ctx, t.ID, "rejected", pos(3000))
			Expect(err).NotTo(HaveOccurred())
			Expect(*updated.Position).To(Equal(int64(3000)))
			Expect(repo.updateCount() - before).To(Equal(1))
			Expect(rec.types()).To(ContainElement(events.EventTicketStatusChanged))
		})

		It("rejects a same-status request", func() {
			t := create("Same")
			_, err := svc.UpdateStatus(ctx, t.ID, "pending", nil)
			var terr *domain.InvalidStatusTransitionError
			Expect(err).To(BeAssignableToTypeOf(terr))
		})

		It("rejects a value outside the enum", func() {
			t := create("Enum")
			_, err := svc.UpdateStatus(ctx, t.ID, "closed", nil)
			var serr *domain.InvalidStatusError
			Expect(err).To(BeAssignableToTypeOf(serr))
			Expect(repo.updateCount()).To(BeZero())
		})

		It("returns nil for an unknown ticket before checking the status", func() {
			updated, err := svc.UpdateStatus(ctx, "missing", "bogus", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(updated).To(BeNil())
		})

		It("lets exactly one of two racing transitions win", func() {
			t := create("Race")
			results := make(chan error, 2)
			for _, target := range []string{"accepted", "accepted"} {
				go func(target string) {
					defer GinkgoRecover()
					_, err := svc.UpdateStatus(ctx, t.ID, target, nil)
					results <- err
				}(target)
			}
			errs := []error{<-results, <-results}
			failures := 0
			for _, err := range errs {
				if err != nil {
					failures++
				}
			}
			Expect(failures).To(Equal(1))
		})
	})

	Describe("UpdateTicket", func() {
		It("merges the contact and refreshes updatedAt", func() {
			t, err := svc.CreateTicket(ctx, service.CreateTicketInput{
				Title:       "VPN",
				Description: "down",
				Contact:     domain.Contact{Name: "Ada", Email: "ada@example.com", Phone: str("555-0100")},
			})
			Expect(err).NotTo(HaveOccurred())

			updated, err := svc.UpdateTicket(ctx, t.ID, service.UpdateTicketInput{
				Title:   str(" VPN flaky "),
				Contact: &domain.ContactPatch{Email: str("grace@example.com")},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.Title).To(Equal("VPN flaky"))
			Expect(updated.Description).To(Equal("down"))
			Expect(updated.Contact.Name).To(Equal("Ada"))
			Expect(updated.Contact.Email).To(Equal("grace@example.com"))
			Expect(*updated.Contact.Phone).To(Equal("555-0100"))
			Expect(updated.Status).To(Equal(domain.TicketStatusPending))
			Expect(updated.UpdatedAt.After(t.UpdatedAt)).To(BeTrue())
			Expect(rec.types()).To(ContainElement(events.EventTicketUpdated))
		})

		It("rejects a blank description", func() {
			t := create("Blank")
			_, err := svc.UpdateTicket(ctx, t.ID, service.UpdateTicketInput{Description: str("   ")})
			Expect(err).To(MatchError("Description is required"))
		})

		It("returns nil for an unknown ticket", func() {
			updated, err := svc.UpdateTicket(ctx, "missing", service.UpdateTicketInput{Title: str("x")})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated).To(BeNil())
		})
	})

	Describe("ListTickets", func() {
		base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

		BeforeEach(func() {
			store.Seed([]domain.Ticket{
				ticketAt("a", domain.TicketStatusResolved, nil, base.Add(1*time.Hour)),
				ticketAt("b", domain.TicketStatusPending, nil, base.Add(3*time.Hour)),
				ticketAt("c", domain.TicketStatusAccepted, nil, base.Add(2*time.Hour)),
			})
		})

		ids := func(page *service.TicketPage) []string {
			out := make([]string, len(page.Items))
			for i, t := range page.Items {
				out[i] = t.ID
			}
			return out
		}

		It("defaults to updatedAt desc", func() {
			page, err := svc.ListTickets(ctx, service.ListQuery{})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(page)).To(Equal([]string{"b", "c", "a"}))
			Expect(page.Pagination).To(Equal(service.Pagination{Page: 1, Limit: 10, Total: 3, TotalPages: 1}))
		})

		It("sorts by status ordinal, not lexically", func() {
			page, err := svc.ListTickets(ctx, service.ListQuery{SortBy: "status", SortOrder: "asc"})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(page)).To(Equal([]string{"b", "c", "a"}))
		})

		It("filters with OR semantics", func() {
			page, err := svc.ListTickets(ctx, service.ListQuery{
				Statuses:  []domain.TicketStatus{domain.TicketStatusResolved, domain.TicketStatusPending},
				SortBy:    "createdAt",
				SortOrder: "asc",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(page)).To(Equal([]string{"a", "b"}))
		})

		It("pages with hasNext and hasPrev", func() {
			first, err := svc.ListTickets(ctx, service.ListQuery{Page: 1, Limit: 2})
			Expect(err).NotTo(HaveOccurred())
			Expect(first.Items).To(HaveLen(2))
			Expect(first.Pagination.HasNext).To(BeTrue())
			Expect(first.Pagination.HasPrev).To(BeFalse())
			Expect(first.Pagination.TotalPages).To(Equal(2))

			second, err := svc.ListTickets(ctx, service.ListQuery{Page: 2, Limit: 2})
			Expect(err).NotTo(HaveOccurred())
			Expect(second.Items).To(HaveLen(1))
			Expect(second.Pagination.HasNext).To(BeFalse())
			Expect(second.Pagination.HasPrev).To(BeTrue())
			Expect(len(first.Items) + len(second.Items)).To(Equal(first.Pagination.Total))
		})

		It("returns an empty page past the end", func() {
			page, err := svc.ListTickets(ctx, service.ListQuery{Page: 9, Limit: 2})
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Items).To(BeEmpty())
			Expect(page.Pagination.HasPrev).To(BeTrue())
		})
	})

	Describe("NormalizeListQuery", func() {
		It("falls back to defaults and caps the limit", func() {
			q := service.NormalizeListQuery(service.ListQuery{Page: -1, Limit: 500, SortBy: "title", SortOrder: "up"})
			Expect(q.Page).To(Equal(1))
			Expect(q.Limit).To(Equal(service.MaxLimit))
			Expect(q.SortBy).To(Equal(service.SortByUpdatedAt))
			Expect(q.SortOrder).To(Equal(service.SortDesc))
		})
	})
})
