package errorutil_test

import (
	"errors"
	"fmt"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

var _ = Describe("ToDomainError", func() {
	DescribeTable("maps domain errors through the code table",
		func(err error, code string, status int) {
			de := errorutil.ToDomainError(fmt.Errorf("wrapped: %w", err))
			Expect(de.Code).To(Equal(code))
			Expect(de.HTTPStatus).To(Equal(status))
		},
		Entry("validation", domain.NewValidationError(domain.FieldError{Field: "title", Message: "Title is required"}),
			errorutil.CodeValidation, http.StatusBadRequest),
		Entry("invalid status", domain.NewInvalidStatusError("closed"),
			errorutil.CodeInvalidStatus, http.StatusBadRequest),
		Entry("invalid transition", domain.NewInvalidStatusTransitionError(domain.TicketStatusResolved, domain.TicketStatusPending, nil),
			errorutil.CodeInvalidStatusTransition, http.StatusUnprocessableEntity),
		Entry("not allowed", &domain.OperationNotAllowedError{Operation: "delete", Reason: "never"},
			errorutil.CodeOperationNotAllowed, http.StatusForbidden),
		Entry("ticket not found", errorutil.NewTicketNotFound("x"),
			errorutil.CodeTicketNotFound, http.StatusNotFound),
	)

	It("carries transition context in details", func() {
		de := errorutil.ToDomainError(domain.NewInvalidStatusTransitionError(
			domain.TicketStatusAccepted, domain.TicketStatusPending,
			[]domain.TicketStatus{domain.TicketStatusResolved, domain.TicketStatusRejected}))
		Expect(de.Details).To(HaveKeyWithValue("currentStatus", domain.TicketStatusAccepted))
		Expect(de.Details).To(HaveKeyWithValue("targetStatus", domain.TicketStatusPending))
		Expect(de.Message).To(ContainSubstring("Allowed transitions: resolved, rejected"))
	})

	It("treats unknown errors as internal", func() {
		de := errorutil.ToDomainError(errors.New("disk on fire"))
		Expect(de.Code).To(Equal(errorutil.CodeInternal))
		Expect(de.HTTPStatus).To(Equal(http.StatusInternalServerError))
	})

	It("masks internal messages in production only", func() {
		de := errorutil.ToDomainError(errors.New("disk on fire"))
		Expect(errorutil.Public(de, true).Message).To(Equal("Internal server error"))
		Expect(errorutil.Public(de, false).Message).To(Equal("disk on fire"))

		bad := errorutil.ToDomainError(domain.NewInvalidStatusError("closed"))
		Expect(errorutil.Public(bad, true).Message).To(ContainSubstring("Invalid status 'closed'"))
	})
})
