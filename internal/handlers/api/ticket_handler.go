package api

import (
	"errors"

	"github.com/derbyfab/derby-tickets/internal/middlewares"
	"github.com/derbyfab/derby-tickets/internal/related"
	"github.com/derbyfab/derby-tickets/internal/tickets"
	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cast"
)

// TicketHandler serves the read-only related-ticket lookup.
type TicketHandler struct {
	tickets *tickets.TicketRepository
	finder  *related.Finder
}

func NewTicketHandler(ticketRepo *tickets.TicketRepository, finder *related.Finder) *TicketHandler {
	return &TicketHandler{
		tickets: ticketRepo,
		finder:  finder,
	}
}

// GetRelated returns the ranked related tickets the caller may view.
func (h *TicketHandler) GetRelated(ctx *fiber.Ctx) error {
	ticketID, err := cast.ToUintE(ctx.Params("id"))
	if err != nil || ticketID == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid ticket id")
	}

	ticket, err := h.tickets.GetWithComments(ctx.Context(), ticketID)
	if errors.Is(err, tickets.ErrTicketNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "Ticket not found")
	}
	if err != nil {
		return err
	}

	user := middlewares.CurrentUser(ctx)
	if !ticket.AccessibleBy(user) {
		return fiber.NewError(fiber.StatusForbidden, "No access to this ticket")
	}

	candidates, err := h.finder.FindRelatedForUser(ctx.Context(), ticket, user)
	if err != nil {
		return err
	}
	resp := make([]relatedTicketResponse, 0, len(candidates))
	for _, c := range candidates {
		resp = append(resp, relatedTicketResponse{
			TicketID: c.Ticket.ID,
			Title:    c.Ticket.Title,
			Status:   c.Ticket.Status,
			Score:    c.Score,
			Reason:   c.Reason,
		})
	}
	return ctx.JSON(NewDataResponse(resp))
}
