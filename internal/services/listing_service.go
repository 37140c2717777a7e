// internal/services/listing_service.go
package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/inkmarket/commission-backend/internal/apperrors"
	"github.com/inkmarket/commission-backend/internal/models"
	"github.com/inkmarket/commission-backend/internal/pricing"
	"github.com/inkmarket/commission-backend/internal/utils"
)

type ListingService struct {
	db *gorm.DB
}

type CreateListingRequest struct {
	Title        string                  `json:"title" validate:"required,max=255"`
	Description  string                  `json:"description,omitempty"`
	Tags         []string                `json:"tags,omitempty"`
	SampleImages []string                `json:"sample_images,omitempty"`
	Snapshot     pricing.ListingSnapshot `json:"snapshot" validate:"required"`
	SlotLimit    int                     `json:"slot_limit,omitempty"`
}

type UpdateListingRequest struct {
	Title        *string                  `json:"title,omitempty" validate:"omitempty,max=255"`
	Description  *string                  `json:"description,omitempty"`
	Tags         []string                 `json:"tags,omitempty"`
	SampleImages []string                 `json:"sample_images,omitempty"`
	Snapshot     *pricing.ListingSnapshot `json:"snapshot,omitempty"`
	Active       *bool                    `json:"active,omitempty"`
}

type ListingSearchParams struct {
	utils.PaginationParams
	ArtistID *uuid.UUID `json:"artist_id,omitempty"`
	Active   *bool      `json:"active,omitempty"`
}

func NewListingService(db *gorm.DB) *ListingService {
	return &ListingService{db: db}
}

// CreateListing validates the commission structure before anything is
// persisted. A milestone percentage set that does not sum to 100 is a
// consistency violation: the listing must never exist, or a proposal or
// contract could later be created from a broken snapshot.
func (s *ListingService) CreateListing(artistID uuid.UUID, req *CreateListingRequest) (*models.Listing, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid listing request")
	}
	if req.Snapshot.Currency == "" {
		return nil, apperrors.Validation("listing currency is required")
	}
	if err := req.Snapshot.Validate(); err != nil {
		return nil, apperrors.ConsistencyViolation(err.Error())
	}

	var artist models.User
	if err := s.db.First(&artist, "id = ?", artistID).Error; err != nil {
		return nil, apperrors.NotFound("artist")
	}
	if artist.UserType != models.UserTypeArtist {
		return nil, apperrors.Authorization("only artists can publish listings")
	}
	if artist.Status != models.UserStatusActive {
		return nil, apperrors.Authorization("artist account is not active")
	}

	listing := &models.Listing{
		ArtistID:     artistID,
		Title:        req.Title,
		Description:  req.Description,
		Tags:         pq.StringArray(req.Tags),
		SampleImages: pq.StringArray(req.SampleImages),
		Snapshot:     req.Snapshot,
		Active:       true,
		SlotLimit:    req.SlotLimit,
	}

	if err := s.db.Create(listing).Error; err != nil {
		return nil, fmt.Errorf("failed to create listing: %w", err)
	}

	return listing, nil
}

func (s *ListingService) GetListing(id uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	if err := s.db.Preload("Artist").First(&listing, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("listing")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &listing, nil
}

func (s *ListingService) SearchListings(params *ListingSearchParams) (*utils.PaginationResult, error) {
	query := s.db.Model(&models.Listing{})

	if params.ArtistID != nil {
		query = query.Where("artist_id = ?", *params.ArtistID)
	}
	if params.Active != nil {
		query = query.Where("active = ?", *params.Active)
	}
	if params.Search != "" {
		search := "%" + params.Search + "%"
		query = query.Where("title ILIKE ? OR description ILIKE ?", search, search)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count listings: %w", err)
	}

	var listings []models.Listing
	query = utils.ApplySort(query, params.PaginationParams, []string{"created_at", "title"})
	query = utils.ApplyPagination(query, params.PaginationParams)
	if err := query.Preload("Artist").Find(&listings).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch listings: %w", err)
	}

	result := utils.CreatePaginationResult(listings, total, params.PaginationParams)
	return &result, nil
}

// UpdateListing edits a live listing. Outstanding proposals are unaffected:
// they carry their own snapshot copy.
func (s *ListingService) UpdateListing(artistID, listingID uuid.UUID, req *UpdateListingRequest) (*models.Listing, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid listing update")
	}

	var listing models.Listing
	if err := s.db.First(&listing, "id = ?", listingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("listing")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	if listing.ArtistID != artistID {
		return nil, apperrors.Authorization("listing belongs to another artist")
	}

	if req.Snapshot != nil {
		if err := req.Snapshot.Validate(); err != nil {
			return nil, apperrors.ConsistencyViolation(err.Error())
		}
		listing.Snapshot = *req.Snapshot
	}
	if req.Title != nil {
		listing.Title = *req.Title
	}
	if req.Description != nil {
		listing.Description = *req.Description
	}
	if req.Tags != nil {
		listing.Tags = pq.StringArray(req.Tags)
	}
	if req.SampleImages != nil {
		listing.SampleImages = pq.StringArray(req.SampleImages)
	}
	if req.Active != nil {
		listing.Active = *req.Active
	}

	if err := s.db.Save(&listing).Error; err != nil {
		return nil, fmt.Errorf("failed to update listing: %w", err)
	}

	return &listing, nil
}
