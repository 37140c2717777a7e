// internal/handlers/listing.go
package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/inkmarket/commission-backend/internal/i18n"
	"github.com/inkmarket/commission-backend/internal/services"
	"github.com/inkmarket/commission-backend/internal/utils"
)

type ListingHandler struct {
	listingService *services.ListingService
}

func NewListingHandler(listingService *services.ListingService) *ListingHandler {
	return &ListingHandler{
		listingService: listingService,
	}
}

// POST /listings
func (h *ListingHandler) CreateListing(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	artistID, _, ok := actorFromContext(c)
	if !ok {
		return
	}

	var req services.CreateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	listing, err := h.listingService.CreateListing(artistID, &req)
	if err != nil {
		respondAppError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyListingCreated),
		"listing": listing,
	})
}

// GET /listings/:id
func (h *ListingHandler) GetListing(c *gin.Context) {
	listingID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	listing, err := h.listingService.GetListing(listingID)
	if err != nil {
		respondAppError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"listing": listing})
}

// GET /listings
func (h *ListingHandler) SearchListings(c *gin.Context) {
	params := &services.ListingSearchParams{
		PaginationParams: utils.GetPaginationParams(c),
	}

	if artistIDStr := c.Query("artist_id"); artistIDStr != "" {
		artistID, err := uuid.Parse(artistIDStr)
		if err != nil {
			utils.BadRequestResponse(c, "Invalid artist_id", nil)
			return
		}
		params.ArtistID = &artistID
	}
	if activeStr := c.Query("active"); activeStr != "" {
		active, err := strconv.ParseBool(activeStr)
		if err != nil {
			utils.BadRequestResponse(c, "Invalid active flag", nil)
			return
		}
		params.Active = &active
	}

	result, err := h.listingService.SearchListings(params)
	if err != nil {
		respondAppError(c, err)
		return
	}

	utils.PaginatedResponse(c, *result)
}

// PUT /listings/:id
func (h *ListingHandler) UpdateListing(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	artistID, _, ok := actorFromContext(c)
	if !ok {
		return
	}
	listingID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req services.UpdateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	listing, err := h.listingService.UpdateListing(artistID, listingID, &req)
	if err != nil {
		respondAppError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyListingUpdated),
		"listing": listing,
	})
}
