package dto_test

import (
	"encoding/json"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/domain"
)

func s(v string) *string { return &v }

func fieldsOf(errs []domain.FieldError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Field
	}
	return out
}

var _ = Describe("CreateTicketRequest", func() {
	It("accepts a minimal payload", func() {
		req := dto.CreateTicketRequest{Title: "Printer broken", Description: "desc"}
		Expect(req.Validate()).To(BeEmpty())
	})

	It("requires title and description after trimming", func() {
		req := dto.CreateTicketRequest{Title: "  ", Description: ""}
		Expect(fieldsOf(req.Validate())).To(Equal([]string{"title", "description"}))
	})

	It("limits title length", func() {
		req := dto.CreateTicketRequest{Title: strings.Repeat("x", 256), Description: "d"}
		errs := req.Validate()
		Expect(errs).To(HaveLen(1))
		Expect(errs[0].Message).To(Equal("Title must be less than 255 characters"))
	})

	DescribeTable("contact checks",
		func(contact dto.ContactRequest, invalid []string) {
			req := dto.CreateTicketRequest{Title: "t", Description: "d", Contact: &contact}
			Expect(fieldsOf(req.Validate())).To(Equal(invalid))
		},
		Entry("valid email and phone", dto.ContactRequest{Email: s("a@a.com"), Phone: s("+1 (555) 010-0100")}, []string{}),
		Entry("bad email", dto.ContactRequest{Email: s("not-an-email")}, []string{"contact.email"}),
		Entry("short phone", dto.ContactRequest{Phone: s("123")}, []string{"contact.phone"}),
		Entry("letters in phone", dto.ContactRequest{Phone: s("555-CALL-NOW")}, []string{"contact.phone"}),
		Entry("empty values are ignored", dto.ContactRequest{Email: s(""), Phone: s(" ")}, []string{}),
	)
})

var _ = Describe("UpdateTicketRequest", func() {
	It("only checks supplied fields", func() {
		Expect(dto.UpdateTicketRequest{}.Validate()).To(BeEmpty())
		req := dto.UpdateTicketRequest{Description: s(strings.Repeat("d", 2001))}
		Expect(fieldsOf(req.Validate())).To(Equal([]string{"description"}))
	})
})

var _ = Describe("ReorderRequest", func() {
	It("distinguishes a missing array from an empty one", func() {
		var missing dto.ReorderRequest
		Expect(json.Unmarshal([]byte(`{"column":"pending"}`), &missing)).To(Succeed())
		Expect(fieldsOf(missing.Validate())).To(Equal([]string{"orderedIds"}))

		var empty dto.ReorderRequest
		Expect(json.Unmarshal([]byte(`{"column":"pending","orderedIds":[]}`), &empty)).To(Succeed())
		Expect(empty.Validate()).To(BeEmpty())
	})
})

var _ = Describe("TicketResponse", func() {
	It("renders camelCase keys with a null position", func() {
		at := time.Date(2024, 1, 2, 3, 4, 5, 6_000_000, time.UTC)
		body, err := json.Marshal(dto.NewTicketResponse(&domain.Ticket{
			ID: "t1", Title: "T", Description: "D", Status: domain.TicketStatusPending,
			CreatedAt: at, UpdatedAt: at,
		}))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(body)).To(MatchJSON(`{
			"id":"t1","title":"T","description":"D",
			"contact":{"name":"","email":"","phone":null},
			"status":"pending","position":null,
			"createdAt":"2024-01-02T03:04:05.006Z","updatedAt":"2024-01-02T03:04:05.006Z"
		}`))
	})
})
