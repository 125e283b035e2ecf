package handlers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/service"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// TicketsHandler manages ticket and board endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// ListTickets GET /api/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	query, err := parseListQuery(c)
	if err != nil {
		return err
	}
	page, err := h.service.ListTickets(c.UserContext(), query)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success":    true,
		"data":       dto.NewTicketListResponse(page.Items),
		"pagination": page.Pagination,
	})
}

// GetTicket GET /api/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	id := c.Params("id")
	ticket, err := h.service.GetTicket(c.UserContext(), id)
	if err != nil {
		return err
	}
	if ticket == nil {
		return apperrors.NewTicketNotFound(id)
	}
	return c.JSON(fiber.Map{"success": true, "data": dto.NewTicketResponse(ticket)})
}

// CreateTicket POST /api/tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("Invalid request body", nil)
	}
	if fields := req.Validate(); len(fields) > 0 {
		return apperrors.NewValidationError("Validation failed", fields)
	}

	ticket, err := h.service.CreateTicket(c.UserContext(), service.CreateTicketInput{
		Title:       req.Title,
		Description: req.Description,
		Contact:     req.Contact.ToContact(),
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Ticket created successfully",
		"data":    dto.NewTicketResponse(ticket),
	})
}

// UpdateTicket PUT /api/tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	id := c.Params("id")
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("Invalid request body", nil)
	}
	if fields := req.Validate(); len(fields) > 0 {
		return apperrors.NewValidationError("Validation failed", fields)
	}

	ticket, err := h.service.UpdateTicket(c.UserContext(), id, service.UpdateTicketInput{
		Title:       req.Title,
		Description: req.Description,
		Contact:     req.Contact.ToPatch(),
	})
	if err != nil {
		return err
	}
	if ticket == nil {
		return apperrors.NewTicketNotFound(id)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Ticket updated successfully",
		"data":    dto.NewTicketResponse(ticket),
	})
}

// UpdateStatus PATCH /api/tickets/:id/status.
func (h *TicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	id := c.Params("id")
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("Invalid request body", nil)
	}
	if req.Status == nil || strings.TrimSpace(*req.Status) == "" {
		return apperrors.NewValidationError("Status is required",
			[]domain.FieldError{{Field: "status", Message: "Status is required"}})
	}

	ticket, err := h.service.UpdateStatus(c.UserContext(), id, *req.Status, req.Position)
	if err != nil {
		return err
	}
	if ticket == nil {
		return apperrors.NewTicketNotFound(id)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": fmt.Sprintf("Ticket status updated to '%s'", ticket.Status),
		"data":    dto.NewTicketResponse(ticket),
	})
}

// ReorderTickets PATCH /api/tickets/reorder.
func (h *TicketsHandler) ReorderTickets(c *fiber.Ctx) error {
	var req dto.ReorderRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("Column and orderedIds array are required", nil)
	}
	if fields := req.Validate(); len(fields) > 0 {
		return apperrors.NewValidationError("Column and orderedIds array are required", fields)
	}

	if _, err := h.service.ReorderColumn(c.UserContext(), req.Column, req.OrderedIDs); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Tickets reordered successfully",
	})
}

// MoveTicket PATCH /api/tickets/:id/move.
func (h *TicketsHandler) MoveTicket(c *fiber.Ctx) error {
	id := c.Params("id")
	var req dto.MoveTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("Invalid request body", nil)
	}
	if fields := req.Validate(); len(fields) > 0 {
		return apperrors.NewValidationError("Validation failed", fields)
	}

	ticket, err := h.service.MoveTicket(c.UserContext(), id, req.Status, *req.Index)
	if err != nil {
		return err
	}
	if ticket == nil {
		return apperrors.NewTicketNotFound(id)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Ticket moved successfully",
		"data":    dto.NewTicketResponse(ticket),
	})
}

// Board GET /api/board.
func (h *TicketsHandler) Board(c *fiber.Ctx) error {
	columns, err := h.service.Board(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": dto.NewBoardResponse(columns)})
}

// parseListQuery reads status (comma separated or repeated keys), sortBy,
// sortOrder, page and limit. Only an unknown status is rejected; other bad
// values fall back to defaults.
func parseListQuery(c *fiber.Ctx) (service.ListQuery, error) {
	query := service.ListQuery{
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
		Page:      parseInt(c.Query("page"), service.DefaultPage),
		Limit:     parseInt(c.Query("limit"), service.DefaultLimit),
	}

	for _, raw := range c.Context().QueryArgs().PeekMulti("status") {
		for _, part := range strings.Split(string(raw), ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			status := domain.TicketStatus(part)
			if !status.Valid() {
				return query, apperrors.NewValidationError(
					fmt.Sprintf("Invalid status filter '%s'. Must be one of: pending, accepted, resolved, rejected", part),
					[]domain.FieldError{{Field: "status", Message: "Status must be one of: pending, accepted, resolved, rejected"}})
			}
			query.Statuses = append(query.Statuses, status)
		}
	}
	return service.NormalizeListQuery(query), nil
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
