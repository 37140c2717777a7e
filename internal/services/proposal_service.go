// internal/services/proposal_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/inkmarket/commission-backend/internal/apperrors"
	"github.com/inkmarket/commission-backend/internal/config"
	"github.com/inkmarket/commission-backend/internal/models"
	"github.com/inkmarket/commission-backend/internal/pricing"
	"github.com/inkmarket/commission-backend/internal/utils"
)

type ProposalService struct {
	db                  *gorm.DB
	cfg                 *config.Config
	notificationService *NotificationService
}

type CreateProposalRequest struct {
	ListingID       uuid.UUID         `json:"listing_id" validate:"required"`
	Selection       pricing.Selection `json:"selection" validate:"required"`
	Description     string            `json:"description" validate:"required"`
	ReferenceImages []string          `json:"reference_images,omitempty"`
}

// ArtistRespondRequest carries the artist's answer: accept (with an optional
// surcharge and/or discount plus reason) or reject.
type ArtistRespondRequest struct {
	Accept    bool   `json:"accept"`
	Surcharge int64  `json:"surcharge,omitempty" validate:"omitempty,min=0"`
	Discount  int64  `json:"discount,omitempty" validate:"omitempty,min=0"`
	Reason    string `json:"reason,omitempty"`
}

type ClientRespondRequest struct {
	Accept          bool   `json:"accept"`
	RejectionReason string `json:"rejection_reason,omitempty"`
}

type ProposalSearchParams struct {
	utils.PaginationParams
	Status *models.ProposalStatus `json:"status,omitempty"`
}

func NewProposalService(db *gorm.DB, cfg *config.Config, notificationService *NotificationService) *ProposalService {
	return &ProposalService{
		db:                  db,
		cfg:                 cfg,
		notificationService: notificationService,
	}
}

// CreateProposal copies the listing's snapshot by value and prices the
// client's selection through the engine. The proposal then waits on the
// artist.
func (s *ProposalService) CreateProposal(clientID uuid.UUID, req *CreateProposalRequest) (*models.Proposal, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid proposal request")
	}

	var client models.User
	if err := s.db.First(&client, "id = ?", clientID).Error; err != nil {
		return nil, apperrors.NotFound("client")
	}
	if client.Status != models.UserStatusActive {
		return nil, apperrors.Authorization("client account is not active")
	}

	var listing models.Listing
	if err := s.db.First(&listing, "id = ?", req.ListingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("listing")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	if !listing.Active {
		return nil, apperrors.Validation("listing is not accepting proposals")
	}
	if listing.ArtistID == clientID {
		return nil, apperrors.Authorization("cannot commission your own listing")
	}

	// The snapshot was validated at listing creation; re-check so a broken
	// snapshot can never fan out into a proposal.
	if err := listing.Snapshot.Validate(); err != nil {
		return nil, apperrors.ConsistencyViolation(err.Error())
	}

	breakdown, err := pricing.ComputePrice(listing.Snapshot, req.Selection, nil)
	if err != nil {
		return nil, err
	}

	proposal := &models.Proposal{
		ListingID:       listing.ID,
		ClientID:        clientID,
		ArtistID:        listing.ArtistID,
		Snapshot:        listing.Snapshot,
		Selection:       req.Selection,
		Breakdown:       *breakdown,
		Description:     req.Description,
		ReferenceImages: pq.StringArray(req.ReferenceImages),
		Status:          models.ProposalStatusPendingArtist,
		ExpiresAt:       time.Now().Add(time.Duration(s.cfg.Commission.ProposalTTLHours) * time.Hour),
	}

	if err := s.db.Create(proposal).Error; err != nil {
		return nil, fmt.Errorf("failed to create proposal: %w", err)
	}

	s.notificationService.NotifyProposalReceived(proposal)

	logrus.WithFields(logrus.Fields{
		"proposal_id": proposal.ID,
		"listing_id":  listing.ID,
		"total":       breakdown.Total,
	}).Info("Proposal created")

	return proposal, nil
}

// GetProposal returns the proposal after lazily expiring it when its deadline
// has passed. Only the two parties (or an admin) may read it.
func (s *ProposalService) GetProposal(actorID uuid.UUID, actorType models.UserType, proposalID uuid.UUID) (*models.Proposal, error) {
	proposal, err := s.load(proposalID)
	if err != nil {
		return nil, err
	}
	if actorType != models.UserTypeAdmin && proposal.ClientID != actorID && proposal.ArtistID != actorID {
		return nil, apperrors.Authorization("not a party to this proposal")
	}

	if proposal.Expired(time.Now()) {
		if err := s.expire(s.db, proposal); err != nil && !apperrors.IsStaleWrite(err) {
			return nil, err
		}
		return s.load(proposalID)
	}

	return proposal, nil
}

func (s *ProposalService) ListProposals(actorID uuid.UUID, actorType models.UserType, params *ProposalSearchParams) (*utils.PaginationResult, error) {
	query := s.db.Model(&models.Proposal{})
	switch actorType {
	case models.UserTypeArtist:
		query = query.Where("artist_id = ?", actorID)
	case models.UserTypeAdmin:
		// admins see everything
	default:
		query = query.Where("client_id = ?", actorID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count proposals: %w", err)
	}

	var proposals []models.Proposal
	query = utils.ApplySort(query, params.PaginationParams, []string{"created_at", "expires_at"})
	query = utils.ApplyPagination(query, params.PaginationParams)
	if err := query.Find(&proposals).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch proposals: %w", err)
	}

	result := utils.CreatePaginationResult(proposals, total, params.PaginationParams)
	return &result, nil
}

// ArtistRespond handles the artist side of negotiation. Accepting (with or
// without an adjustment) recomputes the total through the price engine and
// hands the proposal to the client; rejecting is terminal.
func (s *ProposalService) ArtistRespond(artistID, proposalID uuid.UUID, req *ArtistRespondRequest) (*models.Proposal, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid response")
	}

	proposal, err := s.load(proposalID)
	if err != nil {
		return nil, err
	}
	if proposal.ArtistID != artistID {
		return nil, apperrors.Authorization("not the artist on this proposal")
	}
	if proposal.Expired(time.Now()) {
		if err := s.expire(s.db, proposal); err != nil && !apperrors.IsStaleWrite(err) {
			return nil, err
		}
		return nil, apperrors.IllegalTransition("proposal", string(models.ProposalStatusExpired), "artist_respond")
	}
	if proposal.Status != models.ProposalStatusPendingArtist && proposal.Status != models.ProposalStatusRejectedClient {
		return nil, apperrors.IllegalTransition("proposal", string(proposal.Status), "artist_respond")
	}

	now := time.Now()

	if !req.Accept {
		updates := map[string]interface{}{
			"status":           models.ProposalStatusRejectedArtist,
			"rejection_reason": req.Reason,
			"responded_at":     now,
		}
		if err := s.transition(s.db, proposal, updates); err != nil {
			return nil, err
		}
		return s.notifyAndReload(proposalID)
	}

	adjustment := &pricing.Adjustment{Surcharge: req.Surcharge, Discount: req.Discount, Reason: req.Reason}
	breakdown, err := pricing.ComputePrice(proposal.Snapshot, proposal.Selection, adjustment)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"status":            models.ProposalStatusPendingClient,
		"surcharge":         req.Surcharge,
		"discount":          req.Discount,
		"adjustment_reason": req.Reason,
		"breakdown":         *breakdown,
		"responded_at":      now,
	}
	if err := s.transition(s.db, proposal, updates); err != nil {
		return nil, err
	}
	return s.notifyAndReload(proposalID)
}

// ClientRespond accepts or rejects the artist's quote. Accepting moves to
// accepted; payment is a separate step that moves accepted to paid. Rejecting
// returns control to the artist.
func (s *ProposalService) ClientRespond(clientID, proposalID uuid.UUID, req *ClientRespondRequest) (*models.Proposal, error) {
	proposal, err := s.load(proposalID)
	if err != nil {
		return nil, err
	}
	if proposal.ClientID != clientID {
		return nil, apperrors.Authorization("not the client on this proposal")
	}
	if proposal.Expired(time.Now()) {
		if err := s.expire(s.db, proposal); err != nil && !apperrors.IsStaleWrite(err) {
			return nil, err
		}
		return nil, apperrors.IllegalTransition("proposal", string(models.ProposalStatusExpired), "client_respond")
	}
	if proposal.Status != models.ProposalStatusPendingClient {
		return nil, apperrors.IllegalTransition("proposal", string(proposal.Status), "client_respond")
	}

	now := time.Now()
	var updates map[string]interface{}
	if req.Accept {
		updates = map[string]interface{}{
			"status":      models.ProposalStatusAccepted,
			"accepted_at": now,
		}
	} else {
		updates = map[string]interface{}{
			"status":           models.ProposalStatusRejectedClient,
			"rejection_reason": req.RejectionReason,
		}
	}
	if err := s.transition(s.db, proposal, updates); err != nil {
		return nil, err
	}
	return s.notifyAndReload(proposalID)
}

// ClientCancel withdraws the proposal from any non-terminal state, so a
// client is never stuck waiting on an unresponsive artist.
func (s *ProposalService) ClientCancel(clientID, proposalID uuid.UUID) (*models.Proposal, error) {
	proposal, err := s.load(proposalID)
	if err != nil {
		return nil, err
	}
	if proposal.ClientID != clientID {
		return nil, apperrors.Authorization("not the client on this proposal")
	}
	if proposal.Status.Terminal() {
		return nil, apperrors.IllegalTransition("proposal", string(proposal.Status), "client_cancel")
	}

	updates := map[string]interface{}{
		"status": models.ProposalStatusCancelledClient,
	}
	if err := s.transition(s.db, proposal, updates); err != nil {
		return nil, err
	}
	return s.load(proposalID)
}

// MarkPaid flips an accepted proposal to paid inside the caller's
// transaction. The caller (payment confirmation) creates the contract in the
// same transaction.
func (s *ProposalService) MarkPaid(tx *gorm.DB, proposal *models.Proposal, paidAt time.Time) error {
	if proposal.Status != models.ProposalStatusAccepted {
		return apperrors.IllegalTransition("proposal", string(proposal.Status), "mark_paid")
	}
	return s.transition(tx, proposal, map[string]interface{}{
		"status":  models.ProposalStatusPaid,
		"paid_at": paidAt,
	})
}

func (s *ProposalService) load(proposalID uuid.UUID) (*models.Proposal, error) {
	var proposal models.Proposal
	if err := s.db.First(&proposal, "id = ?", proposalID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("proposal")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &proposal, nil
}

func (s *ProposalService) notifyAndReload(proposalID uuid.UUID) (*models.Proposal, error) {
	proposal, err := s.load(proposalID)
	if err != nil {
		return nil, err
	}
	s.notificationService.NotifyProposalResponded(proposal)
	return proposal, nil
}

func (s *ProposalService) expire(tx *gorm.DB, proposal *models.Proposal) error {
	return s.transition(tx, proposal, map[string]interface{}{
		"status": models.ProposalStatusExpired,
	})
}

// transition applies a guarded update: the row must still carry the
// lock_version the caller loaded, otherwise a concurrent command won and this
// one fails with a stale-write error, mutating nothing.
func (s *ProposalService) transition(tx *gorm.DB, proposal *models.Proposal, updates map[string]interface{}) error {
	if next, ok := updates["status"].(models.ProposalStatus); ok {
		if !proposal.Status.CanTransitionTo(next) {
			return apperrors.IllegalTransition("proposal", string(proposal.Status), string(next))
		}
	}
	updates["lock_version"] = proposal.LockVersion + 1

	result := tx.Model(&models.Proposal{}).
		Where("id = ? AND lock_version = ?", proposal.ID, proposal.LockVersion).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update proposal: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.StaleWrite("proposal")
	}

	logrus.WithFields(logrus.Fields{
		"proposal_id": proposal.ID,
		"from":        proposal.Status,
		"to":          updates["status"],
	}).Info("Proposal transition")
	return nil
}
