// internal/handlers/contract.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/inkmarket/commission-backend/internal/i18n"
	"github.com/inkmarket/commission-backend/internal/models"
	"github.com/inkmarket/commission-backend/internal/services"
	"github.com/inkmarket/commission-backend/internal/utils"
)

type ContractHandler struct {
	contractService *services.ContractService
	storageService  *services.StorageService
}

func NewContractHandler(contractService *services.ContractService, storageService *services.StorageService) *ContractHandler {
	return &ContractHandler{
		contractService: contractService,
		storageService:  storageService,
	}
}

// GET /contracts/:id
func (h *ContractHandler) GetContract(c *gin.Context) {
	actorID, actorType, ok := actorFromContext(c)
	if !ok {
		return
	}
	contractID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	contract, err := h.contractService.GetContract(actorID, actorType, contractID)
	if err != nil {
		respondAppError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"contract": contract})
}

// GET /contracts
func (h *ContractHandler) ListContracts(c *gin.Context) {
	actorID, actorType, ok := actorFromContext(c)
	if !ok {
		return
	}

	params := &services.ContractSearchParams{
		PaginationParams: utils.GetPaginationParams(c),
	}
	if statusStr := c.Query("status"); statusStr != "" {
		status := models.ContractStatus(statusStr)
		params.Status = &status
	}

	result, err := h.contractService.ListContracts(actorID, actorType, params)
	if err != nil {
		respondAppError(c, err)
		return
	}

	utils.PaginatedResponse(c, *result)
}

// POST /contracts/:id/uploads
func (h *ContractHandler) SubmitUpload(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	artistID, _, ok := actorFromContext(c)
	if !ok {
		return
	}
	contractID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req services.SubmitUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	upload, err := h.contractService.SubmitUpload(artistID, contractID, &req)
	if err != nil {
		respondAppError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyUploadSubmitted),
		"upload":  upload,
	})
}

// GET /uploads/:id/download
//
// Deliveries live in a private bucket, so the stored keys are exchanged for
// short-lived presigned links. Without an object store (local development)
// the raw keys come back as-is.
func (h *ContractHandler) DownloadUpload(c *gin.Context) {
	actorID, actorType, ok := actorFromContext(c)
	if !ok {
		return
	}
	uploadID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	upload, err := h.contractService.GetUpload(actorID, actorType, uploadID)
	if err != nil {
		respondAppError(c, err)
		return
	}

	links := make([]string, 0, len(upload.Images))
	for _, key := range upload.Images {
		url, err := h.storageService.GeneratePresignedURL(key, services.DeliveryURLTTL)
		if err != nil {
			url = key
		}
		links = append(links, url)
	}

	utils.SuccessResponse(c, gin.H{
		"upload_id":  upload.ID,
		"links":      links,
		"expires_in": int(services.DeliveryURLTTL.Seconds()),
	})
}

// POST /uploads/:id/accept
func (h *ContractHandler) AcceptUpload(c *gin.Context) {
	h.reviewUpload(c, true)
}

// POST /uploads/:id/reject
func (h *ContractHandler) RejectUpload(c *gin.Context) {
	h.reviewUpload(c, false)
}

func (h *ContractHandler) reviewUpload(c *gin.Context, accept bool) {
	lang := utils.GetLangFromContext(c)
	clientID, _, ok := actorFromContext(c)
	if !ok {
		return
	}
	uploadID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	// The note body is optional on both accept and reject.
	var body struct {
		Note string `json:"note,omitempty"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
			return
		}
	}

	req := services.ReviewUploadRequest{Accept: accept, Note: body.Note}
	contract, err := h.contractService.ReviewUpload(clientID, uploadID, &req)
	if err != nil {
		respondAppError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":  i18n.T(lang, i18n.KeyUploadReviewed),
		"contract": contract,
	})
}
