// internal/handlers/proposal.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/inkmarket/commission-backend/internal/i18n"
	"github.com/inkmarket/commission-backend/internal/models"
	"github.com/inkmarket/commission-backend/internal/services"
	"github.com/inkmarket/commission-backend/internal/utils"
)

type ProposalHandler struct {
	proposalService *services.ProposalService
}

func NewProposalHandler(proposalService *services.ProposalService) *ProposalHandler {
	return &ProposalHandler{
		proposalService: proposalService,
	}
}

// POST /proposals
func (h *ProposalHandler) CreateProposal(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	clientID, _, ok := actorFromContext(c)
	if !ok {
		return
	}

	var req services.CreateProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	proposal, err := h.proposalService.CreateProposal(clientID, &req)
	if err != nil {
		respondAppError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message":  i18n.T(lang, i18n.KeyProposalCreated),
		"proposal": proposal,
	})
}

// GET /proposals/:id
func (h *ProposalHandler) GetProposal(c *gin.Context) {
	actorID, actorType, ok := actorFromContext(c)
	if !ok {
		return
	}
	proposalID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	proposal, err := h.proposalService.GetProposal(actorID, actorType, proposalID)
	if err != nil {
		respondAppError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"proposal": proposal})
}

// GET /proposals
func (h *ProposalHandler) ListProposals(c *gin.Context) {
	actorID, actorType, ok := actorFromContext(c)
	if !ok {
		return
	}

	params := &services.ProposalSearchParams{
		PaginationParams: utils.GetPaginationParams(c),
	}
	if statusStr := c.Query("status"); statusStr != "" {
		status := models.ProposalStatus(statusStr)
		params.Status = &status
	}

	result, err := h.proposalService.ListProposals(actorID, actorType, params)
	if err != nil {
		respondAppError(c, err)
		return
	}

	utils.PaginatedResponse(c, *result)
}

// POST /proposals/:id/artist-response
func (h *ProposalHandler) ArtistRespond(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	artistID, _, ok := actorFromContext(c)
	if !ok {
		return
	}
	proposalID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req services.ArtistRespondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	proposal, err := h.proposalService.ArtistRespond(artistID, proposalID, &req)
	if err != nil {
		respondAppError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":  i18n.T(lang, i18n.KeyProposalResponded),
		"proposal": proposal,
	})
}

// POST /proposals/:id/client-response
func (h *ProposalHandler) ClientRespond(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	clientID, _, ok := actorFromContext(c)
	if !ok {
		return
	}
	proposalID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req services.ClientRespondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	proposal, err := h.proposalService.ClientRespond(clientID, proposalID, &req)
	if err != nil {
		respondAppError(c, err)
		return
	}

	key := i18n.KeyProposalAccepted
	if !req.Accept {
		key = i18n.KeyProposalRejected
	}
	utils.SuccessResponse(c, gin.H{
		"message":  i18n.T(lang, key),
		"proposal": proposal,
	})
}

// POST /proposals/:id/cancel
func (h *ProposalHandler) CancelProposal(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	clientID, _, ok := actorFromContext(c)
	if !ok {
		return
	}
	proposalID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	proposal, err := h.proposalService.ClientCancel(clientID, proposalID)
	if err != nil {
		respondAppError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":  i18n.T(lang, i18n.KeyProposalCancelled),
		"proposal": proposal,
	})
}
