// internal/handlers/ticket.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/inkmarket/commission-backend/internal/i18n"
	"github.com/inkmarket/commission-backend/internal/services"
	"github.com/inkmarket/commission-backend/internal/utils"
)

type TicketHandler struct {
	ticketService *services.TicketService
}

func NewTicketHandler(ticketService *services.TicketService) *TicketHandler {
	return &TicketHandler{
		ticketService: ticketService,
	}
}

// POST /contracts/:id/tickets
func (h *TicketHandler) OpenTicket(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	actorID, _, ok := actorFromContext(c)
	if !ok {
		return
	}
	contractID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req services.OpenTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	ticket, err := h.ticketService.OpenTicket(actorID, contractID, &req)
	if err != nil {
		respondAppError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyTicketOpened),
		"ticket":  ticket,
	})
}

// GET /contracts/:id/tickets
func (h *TicketHandler) ListTickets(c *gin.Context) {
	actorID, actorType, ok := actorFromContext(c)
	if !ok {
		return
	}
	contractID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	tickets, err := h.ticketService.ListTickets(actorID, actorType, contractID)
	if err != nil {
		respondAppError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"tickets": tickets})
}

// GET /tickets/:id
func (h *TicketHandler) GetTicket(c *gin.Context) {
	actorID, actorType, ok := actorFromContext(c)
	if !ok {
		return
	}
	ticketID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	ticket, err := h.ticketService.GetTicket(actorID, actorType, ticketID)
	if err != nil {
		respondAppError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"ticket": ticket})
}

// POST /tickets/:id/counter
func (h *TicketHandler) SubmitCounter(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	actorID, _, ok := actorFromContext(c)
	if !ok {
		return
	}
	ticketID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req services.CounterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	ticket, err := h.ticketService.SubmitCounter(actorID, ticketID, &req)
	if err != nil {
		respondAppError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyTicketCountered),
		"ticket":  ticket,
	})
}

// POST /tickets/:id/accept
func (h *TicketHandler) AcceptTicket(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	actorID, _, ok := actorFromContext(c)
	if !ok {
		return
	}
	ticketID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	ticket, err := h.ticketService.AcceptTicket(actorID, ticketID)
	if err != nil {
		respondAppError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyTicketAccepted),
		"ticket":  ticket,
	})
}

// POST /tickets/:id/escalate
func (h *TicketHandler) Escalate(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	actorID, _, ok := actorFromContext(c)
	if !ok {
		return
	}
	ticketID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	resolution, err := h.ticketService.Escalate(actorID, ticketID)
	if err != nil {
		respondAppError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message":    i18n.T(lang, i18n.KeyTicketEscalated),
		"resolution": resolution,
	})
}

// POST /tickets/:id/cancel
func (h *TicketHandler) CancelTicket(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	actorID, _, ok := actorFromContext(c)
	if !ok {
		return
	}
	ticketID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	ticket, err := h.ticketService.CancelTicket(actorID, ticketID)
	if err != nil {
		respondAppError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyTicketCancelled),
		"ticket":  ticket,
	})
}
