// internal/services/resolution_service.go
package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/inkmarket/commission-backend/internal/apperrors"
	"github.com/inkmarket/commission-backend/internal/database"
	"github.com/inkmarket/commission-backend/internal/models"
	"github.com/inkmarket/commission-backend/internal/utils"
)

// minResolutionNoteLen is the floor for an admin's written justification.
// Arbitration decisions move money, so a bare "denied" is not acceptable.
const minResolutionNoteLen = 50

type ResolutionService struct {
	db                  *gorm.DB
	ticketService       *TicketService
	contractService     *ContractService
	notificationService *NotificationService
}

type ResolveRequest struct {
	Decision models.Decision `json:"decision" validate:"required"`
	Note     string          `json:"note" validate:"required"`
}

func NewResolutionService(db *gorm.DB, ticketService *TicketService, contractService *ContractService, notificationService *NotificationService) *ResolutionService {
	return &ResolutionService{
		db:                  db,
		ticketService:       ticketService,
		contractService:     contractService,
		notificationService: notificationService,
	}
}

// ListPending returns resolution tickets ready for an admin decision.
func (s *ResolutionService) ListPending(params utils.PaginationParams) ([]models.Ticket, int64, error) {
	query := s.db.Model(&models.Ticket{}).
		Where("type = ? AND status = ?", models.TicketTypeResolution, models.TicketStatusAwaitingReview)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count resolution tickets: %w", err)
	}

	var tickets []models.Ticket
	query = utils.ApplySort(query, params, []string{"created_at", "counter_expires_at"})
	query = utils.ApplyPagination(query, params)
	if err := query.Preload("Contract").Find(&tickets).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch resolution tickets: %w", err)
	}
	return tickets, total, nil
}

// Resolve records an admin decision on a resolution ticket and applies its
// consequence to the disputed item. Only tickets in awaiting review may be
// decided; open ones are still inside the counterproof window.
func (s *ResolutionService) Resolve(adminID, ticketID uuid.UUID, req *ResolveRequest) (*models.Ticket, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid resolution request")
	}
	if !req.Decision.Valid() {
		return nil, apperrors.InvalidDecision(string(req.Decision))
	}
	if len(req.Note) < minResolutionNoteLen {
		return nil, apperrors.Validation(fmt.Sprintf("resolution note must be at least %d characters", minResolutionNoteLen))
	}

	ticket, err := s.ticketService.load(ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Type != models.TicketTypeResolution {
		return nil, apperrors.Validation("only resolution tickets can be decided")
	}
	if ticket.Status != models.TicketStatusAwaitingReview {
		return nil, apperrors.IllegalTransition("ticket", string(ticket.Status), "resolve")
	}
	if ticket.TargetType == nil || ticket.TargetID == nil {
		return nil, apperrors.ConsistencyViolation("resolution ticket without target")
	}

	now := time.Now()
	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := s.applyConsequence(tx, ticket, req.Decision, now); err != nil {
			return err
		}
		return s.ticketService.transition(tx, ticket, map[string]interface{}{
			"status":          models.TicketStatusResolved,
			"decision":        req.Decision,
			"resolution_note": req.Note,
			"resolved_by":     adminID,
			"resolved_at":     now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.notificationService.NotifyTicketResolved(ticket)
	logrus.WithFields(logrus.Fields{
		"ticket_id": ticket.ID,
		"target":    *ticket.TargetType,
		"decision":  req.Decision,
		"admin_id":  adminID,
	}).Info("Resolution decided")
	return s.ticketService.load(ticketID)
}

// applyConsequence maps (target type, decision) onto the concrete mutation.
// Ticket targets resolve for or against their submitter; upload targets are
// force-accepted or force-rejected.
func (s *ResolutionService) applyConsequence(tx *gorm.DB, resolution *models.Ticket, decision models.Decision, now time.Time) error {
	switch *resolution.TargetType {
	case models.TargetCancelTicket, models.TargetRevisionTicket, models.TargetChangeTicket:
		return s.decideTicket(tx, resolution, decision, now)
	case models.TargetFinalUpload, models.TargetProgressMilestoneUpload, models.TargetRevisionUpload:
		return s.decideUpload(tx, resolution, decision, now)
	}
	return apperrors.ConsistencyViolation(fmt.Sprintf("unknown target type %s", *resolution.TargetType))
}

func (s *ResolutionService) decideTicket(tx *gorm.DB, resolution *models.Ticket, decision models.Decision, now time.Time) error {
	var target models.Ticket
	if err := tx.First(&target, "id = ?", *resolution.TargetID).Error; err != nil {
		return apperrors.NotFound("target ticket")
	}
	if target.Status == models.TicketStatusResolved || target.Status == models.TicketStatusCancelled {
		return apperrors.IllegalTransition("ticket", string(target.Status), "decide")
	}

	favorsSubmitter := (decision == models.DecisionFavorClient && target.SubmittedByRole == models.RoleClient) ||
		(decision == models.DecisionFavorArtist && target.SubmittedByRole == models.RoleArtist)

	if favorsSubmitter {
		return s.ticketService.ApplyGrant(tx, &target, false, now)
	}

	// Denied: the disputed ticket closes without effect on the contract.
	return s.ticketService.transition(tx, &target, map[string]interface{}{
		"status":                   models.TicketStatusCancelled,
		"accepted_by_counterparty": false,
		"resolved_at":              now,
	})
}

func (s *ResolutionService) decideUpload(tx *gorm.DB, resolution *models.Ticket, decision models.Decision, now time.Time) error {
	var upload models.Upload
	if err := tx.First(&upload, "id = ?", *resolution.TargetID).Error; err != nil {
		return apperrors.NotFound("target upload")
	}
	var contract models.Contract
	if err := tx.First(&contract, "id = ?", resolution.ContractID).Error; err != nil {
		return fmt.Errorf("failed to load contract: %w", err)
	}

	note := "arbitration: " + string(decision)

	if decision == models.DecisionFavorArtist {
		// The artist's delivery stands: force-accept it with all downstream
		// effects (milestone advance, contract completion).
		return s.contractService.OverrideUploadReview(tx, &contract, &upload, true, note, now)
	}

	// Favor client: the rejection is upheld.
	if err := s.contractService.OverrideUploadReview(tx, &contract, &upload, false, note, now); err != nil {
		return err
	}
	if *resolution.TargetType == models.TargetFinalUpload {
		// A final delivery judged unacceptable ends the engagement with the
		// client made whole.
		return s.contractService.Finalize(tx, &contract, models.ContractStatusNotCompleted, now)
	}
	return nil
}
