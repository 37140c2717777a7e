// internal/services/ticket_service.go
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
	"github.com/inkmarket/commission-backend/internal/database"
	"github.com/inkmarket/commission-backend/internal/models"
	"github.com/inkmarket/commission-backend/internal/pricing"
	"github.com/inkmarket/commission-backend/internal/utils"
)

type TicketService struct {
	db                  *gorm.DB
	cfg                 *config.Config
	contractService     *ContractService
	notificationService *NotificationService
}

type OpenTicketRequest struct {
	Type        models.TicketType     `json:"type" validate:"required"`
	Description string                `json:"description" validate:"required,min=10"`
	Evidence    []string              `json:"evidence,omitempty"`
	Change      *models.ChangeRequest `json:"change,omitempty"`

	// Resolution tickets disputing an upload review.
	TargetType *models.TicketTargetType `json:"target_type,omitempty"`
	TargetID   *uuid.UUID               `json:"target_id,omitempty"`
}

type CounterRequest struct {
	Description string   `json:"description" validate:"required,min=10"`
	Evidence    []string `json:"evidence,omitempty"`
}

func NewTicketService(db *gorm.DB, cfg *config.Config, contractService *ContractService, notificationService *NotificationService) *TicketService {
	return &TicketService{
		db:                  db,
		cfg:                 cfg,
		contractService:     contractService,
		notificationService: notificationService,
	}
}

// OpenTicket files a ticket against an active contract. The counterparty gets
// a counterproof window before the ticket becomes reviewable.
func (s *TicketService) OpenTicket(actorID, contractID uuid.UUID, req *OpenTicketRequest) (*models.Ticket, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid ticket request")
	}

	contract, role, err := s.loadContractAsParty(actorID, contractID)
	if err != nil {
		return nil, err
	}
	if contract.Status != models.ContractStatusActive {
		return nil, apperrors.IllegalTransition("contract", string(contract.Status), "open_ticket")
	}

	now := time.Now()
	ticket := &models.Ticket{
		ContractID:       contract.ID,
		Type:             req.Type,
		SubmittedByID:    actorID,
		SubmittedByRole:  role,
		CounterpartyID:   s.otherParty(contract, role),
		Description:      req.Description,
		Evidence:         pq.StringArray(req.Evidence),
		CounterExpiresAt: now.Add(time.Duration(s.cfg.Commission.CounterproofHours) * time.Hour),
		Status:           models.TicketStatusOpen,
	}

	switch req.Type {
	case models.TicketTypeCancel:
		// either party may ask to cancel

	case models.TicketTypeRevision:
		if role != models.RoleClient {
			return nil, apperrors.Authorization("only the client may request a revision")
		}
		if err := s.checkRevisionAllowed(contract); err != nil {
			return nil, err
		}

	case models.TicketTypeChange:
		if req.Change == nil || req.Change.Empty() {
			return nil, apperrors.Validation("change ticket requires at least one changed aspect")
		}
		if err := s.validateChange(contract, req.Change, now); err != nil {
			return nil, err
		}
		ticket.Change = req.Change

	case models.TicketTypeResolution:
		if req.TargetType == nil || req.TargetID == nil {
			return nil, apperrors.Validation("resolution ticket requires target_type and target_id")
		}
		if !req.TargetType.Valid() {
			return nil, apperrors.Validation(fmt.Sprintf("unknown target type %q", *req.TargetType))
		}
		if err := s.validateResolutionTarget(contract, *req.TargetType, *req.TargetID); err != nil {
			return nil, err
		}
		ticket.TargetType = req.TargetType
		ticket.TargetID = req.TargetID

	default:
		return nil, apperrors.Validation(fmt.Sprintf("unknown ticket type %q", req.Type))
	}

	if err := s.db.Create(ticket).Error; err != nil {
		return nil, fmt.Errorf("failed to create ticket: %w", err)
	}

	s.notificationService.NotifyTicketOpened(ticket)
	logrus.WithFields(logrus.Fields{
		"ticket_id":   ticket.ID,
		"contract_id": contract.ID,
		"type":        ticket.Type,
	}).Info("Ticket opened")
	return ticket, nil
}

func (s *TicketService) GetTicket(actorID uuid.UUID, actorType models.UserType, ticketID uuid.UUID) (*models.Ticket, error) {
	ticket, err := s.load(ticketID)
	if err != nil {
		return nil, err
	}
	if actorType != models.UserTypeAdmin && ticket.SubmittedByID != actorID && ticket.CounterpartyID != actorID {
		return nil, apperrors.Authorization("not a party to this ticket")
	}
	return ticket, nil
}

func (s *TicketService) ListTickets(actorID uuid.UUID, actorType models.UserType, contractID uuid.UUID) ([]models.Ticket, error) {
	if _, err := s.contractService.GetContract(actorID, actorType, contractID); err != nil {
		return nil, err
	}
	var tickets []models.Ticket
	if err := s.db.Where("contract_id = ?", contractID).Order("created_at DESC").Find(&tickets).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch tickets: %w", err)
	}
	return tickets, nil
}

// SubmitCounter records the counterparty's rebuttal while the window is open
// and moves the ticket to awaiting review.
func (s *TicketService) SubmitCounter(actorID, ticketID uuid.UUID, req *CounterRequest) (*models.Ticket, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid counter request")
	}

	ticket, err := s.load(ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.CounterpartyID != actorID {
		return nil, apperrors.Authorization("only the counterparty may submit counter evidence")
	}
	if ticket.Status != models.TicketStatusOpen {
		return nil, apperrors.IllegalTransition("ticket", string(ticket.Status), "counter")
	}
	now := time.Now()
	if now.After(ticket.CounterExpiresAt) {
		return nil, apperrors.IllegalTransition("ticket", "counter_window_lapsed", "counter")
	}

	if err := s.transition(s.db, ticket, map[string]interface{}{
		"status":              models.TicketStatusAwaitingReview,
		"counter_description": req.Description,
		"counter_evidence":    pq.StringArray(req.Evidence),
		"countered_at":        now,
	}); err != nil {
		return nil, err
	}

	s.notificationService.NotifyTicketCountered(ticket)
	return s.load(ticketID)
}

// AcceptTicket is the counterparty granting a cancel, revision or change
// ticket without admin involvement. Acceptance races against escalation; the
// version guard lets exactly one side win.
func (s *TicketService) AcceptTicket(actorID, ticketID uuid.UUID) (*models.Ticket, error) {
	ticket, err := s.load(ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.CounterpartyID != actorID {
		return nil, apperrors.Authorization("only the counterparty may accept a ticket")
	}
	if ticket.Type == models.TicketTypeResolution {
		return nil, apperrors.Validation("resolution tickets are decided by an administrator")
	}
	if ticket.Status != models.TicketStatusOpen && ticket.Status != models.TicketStatusAwaitingReview {
		return nil, apperrors.IllegalTransition("ticket", string(ticket.Status), "accept")
	}

	escalated, err := s.hasOpenResolution(ticket)
	if err != nil {
		return nil, err
	}
	if escalated {
		return nil, apperrors.Validation("ticket has been escalated for arbitration")
	}

	now := time.Now()
	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		return s.ApplyGrant(tx, ticket, true, now)
	})
	if err != nil {
		return nil, err
	}

	s.notificationService.NotifyTicketResolved(ticket)
	return s.load(ticketID)
}

// ApplyGrant closes a cancel/revision/change ticket as granted and applies
// its contract effect, inside the caller's transaction. byCounterparty
// distinguishes voluntary acceptance from an admin decision.
func (s *TicketService) ApplyGrant(tx *gorm.DB, ticket *models.Ticket, byCounterparty bool, now time.Time) error {
	var contract models.Contract
	if err := tx.First(&contract, "id = ?", ticket.ContractID).Error; err != nil {
		return fmt.Errorf("failed to load contract: %w", err)
	}

	accepted := byCounterparty
	if err := s.transition(tx, ticket, map[string]interface{}{
		"status":                   models.TicketStatusResolved,
		"accepted_by_counterparty": accepted,
		"resolved_at":              now,
	}); err != nil {
		return err
	}

	switch ticket.Type {
	case models.TicketTypeCancel:
		base := models.ContractStatusCancelledClient
		if ticket.SubmittedByRole == models.RoleArtist {
			base = models.ContractStatusCancelledArtist
		}
		return s.contractService.Finalize(tx, &contract, base, now)

	case models.TicketTypeRevision:
		return s.accrueRevisionFee(tx, &contract, now)

	case models.TicketTypeChange:
		return s.applyChange(tx, &contract, ticket, now)
	}
	return nil
}

// Escalate hands an unresolved cancel/revision/change ticket to admin
// arbitration by opening a resolution ticket targeting it.
func (s *TicketService) Escalate(actorID, ticketID uuid.UUID) (*models.Ticket, error) {
	original, err := s.load(ticketID)
	if err != nil {
		return nil, err
	}
	if original.SubmittedByID != actorID && original.CounterpartyID != actorID {
		return nil, apperrors.Authorization("not a party to this ticket")
	}
	if original.Type == models.TicketTypeResolution {
		return nil, apperrors.Validation("resolution tickets cannot be escalated")
	}
	if original.Status != models.TicketStatusOpen && original.Status != models.TicketStatusAwaitingReview {
		return nil, apperrors.IllegalTransition("ticket", string(original.Status), "escalate")
	}

	escalated, err := s.hasOpenResolution(original)
	if err != nil {
		return nil, err
	}
	if escalated {
		return nil, apperrors.Validation("ticket is already under arbitration")
	}

	var contract models.Contract
	if err := s.db.First(&contract, "id = ?", original.ContractID).Error; err != nil {
		return nil, fmt.Errorf("failed to load contract: %w", err)
	}

	targetType := map[models.TicketType]models.TicketTargetType{
		models.TicketTypeCancel:   models.TargetCancelTicket,
		models.TicketTypeRevision: models.TargetRevisionTicket,
		models.TicketTypeChange:   models.TargetChangeTicket,
	}[original.Type]

	role := models.RoleClient
	if contract.ArtistID == actorID {
		role = models.RoleArtist
	}

	now := time.Now()
	resolution := &models.Ticket{
		ContractID:       contract.ID,
		Type:             models.TicketTypeResolution,
		TargetType:       &targetType,
		TargetID:         &original.ID,
		SubmittedByID:    actorID,
		SubmittedByRole:  role,
		CounterpartyID:   s.otherParty(&contract, role),
		Description:      original.Description,
		Evidence:         original.Evidence,
		CounterExpiresAt: now.Add(time.Duration(s.cfg.Commission.CounterproofHours) * time.Hour),
		Status:           models.TicketStatusOpen,
	}

	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		// Bump the original's version so a concurrent acceptance loses the
		// race cleanly instead of granting an escalated ticket.
		if err := s.transition(tx, original, map[string]interface{}{}); err != nil {
			return err
		}
		return tx.Create(resolution).Error
	})
	if err != nil {
		return nil, err
	}

	s.notificationService.NotifyTicketOpened(resolution)
	return resolution, nil
}

// CancelTicket lets the submitter withdraw an unresolved ticket.
func (s *TicketService) CancelTicket(actorID, ticketID uuid.UUID) (*models.Ticket, error) {
	ticket, err := s.load(ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.SubmittedByID != actorID {
		return nil, apperrors.Authorization("only the submitter may withdraw a ticket")
	}
	if !ticket.Status.CanTransitionTo(models.TicketStatusCancelled) {
		return nil, apperrors.IllegalTransition("ticket", string(ticket.Status), string(models.TicketStatusCancelled))
	}

	if err := s.transition(s.db, ticket, map[string]interface{}{
		"status": models.TicketStatusCancelled,
	}); err != nil {
		return nil, err
	}
	return s.load(ticketID)
}

// checkRevisionAllowed enforces the listing's revision policy for opening a
// new revision ticket. Fee accounting happens at grant time.
func (s *TicketService) checkRevisionAllowed(contract *models.Contract) error {
	policy, err := s.revisionPolicy(contract)
	if err != nil {
		return err
	}
	if policy.Mode == pricing.RevisionNone {
		return apperrors.Validation("this commission does not include revisions")
	}
	return nil
}

// accrueRevisionFee charges the extra-revision fee when the granted revision
// exceeds the free allowance.
func (s *TicketService) accrueRevisionFee(tx *gorm.DB, contract *models.Contract, now time.Time) error {
	policy, err := s.revisionPolicy(contract)
	if err != nil {
		return err
	}

	var granted int64
	countQuery := tx.Model(&models.Ticket{}).
		Where("contract_id = ? AND type = ? AND status = ?",
			contract.ID, models.TicketTypeRevision, models.TicketStatusResolved)
	if policy.Mode == pricing.RevisionPerMilestone {
		var current models.Milestone
		if err := tx.First(&current, "contract_id = ? AND status = ?", contract.ID, models.MilestoneStatusInProgress).Error; err == nil && current.StartedAt != nil {
			countQuery = countQuery.Where("created_at >= ?", *current.StartedAt)
		}
	}
	if err := countQuery.Count(&granted).Error; err != nil {
		return fmt.Errorf("failed to count revisions: %w", err)
	}

	// The ticket being granted is already counted among the resolved rows.
	if granted <= int64(policy.FreeRevisions) || policy.ExtraRevisionFee == 0 {
		return nil
	}
	return s.contractService.AccrueRuntimeFees(tx, contract, policy.ExtraRevisionFee, nil, 0)
}

// revisionPolicy resolves which revision policy governs the contract right
// now: the milestone's own policy in per-milestone mode, the listing's
// otherwise.
func (s *TicketService) revisionPolicy(contract *models.Contract) (pricing.RevisionPolicy, error) {
	var proposal models.Proposal
	if err := s.db.First(&proposal, "id = ?", contract.ProposalID).Error; err != nil {
		return pricing.RevisionPolicy{}, fmt.Errorf("failed to load proposal: %w", err)
	}
	policy := proposal.Snapshot.Revisions
	if policy.Mode != pricing.RevisionPerMilestone || !proposal.Snapshot.MilestoneFlow() {
		return policy, nil
	}

	var current models.Milestone
	err := s.db.First(&current, "contract_id = ? AND status = ?", contract.ID, models.MilestoneStatusInProgress).Error
	if err != nil {
		return policy, nil
	}
	if current.Position < len(proposal.Snapshot.Milestones) {
		m := proposal.Snapshot.Milestones[current.Position].Revisions
		m.Mode = pricing.RevisionPerMilestone
		return m, nil
	}
	return policy, nil
}

// validateChange checks a change payload against the listing's changeable
// aspects and the deadline lead time.
func (s *TicketService) validateChange(contract *models.Contract, change *models.ChangeRequest, now time.Time) error {
	var proposal models.Proposal
	if err := s.db.First(&proposal, "id = ?", contract.ProposalID).Error; err != nil {
		return fmt.Errorf("failed to load proposal: %w", err)
	}
	changeable := proposal.Snapshot.Changeable

	if change.Deadline != nil {
		if !changeable.Deadline {
			return apperrors.Validation("deadline is not changeable on this commission")
		}
		lead := time.Duration(s.cfg.Commission.ChangeDeadlineLeadH) * time.Hour
		if change.Deadline.NewDeadlineAt.Before(now.Add(lead)) {
			return apperrors.Validation(fmt.Sprintf("new deadline must be at least %dh out", s.cfg.Commission.ChangeDeadlineLeadH))
		}
	}
	if change.Description != nil && !changeable.Description {
		return apperrors.Validation("description is not changeable on this commission")
	}
	if change.GeneralOptions != nil && !changeable.GeneralOptions {
		return apperrors.Validation("general options are not changeable on this commission")
	}
	if change.SubjectOptions != nil && !changeable.SubjectOptions {
		return apperrors.Validation("subject options are not changeable on this commission")
	}
	if change.ReferenceImages != nil && !changeable.ReferenceImages {
		return apperrors.Validation("reference images are not changeable on this commission")
	}
	return nil
}

// applyChange reprices the contract under the amended selection, appends the
// next terms version and folds the price delta into runtime fees.
func (s *TicketService) applyChange(tx *gorm.DB, contract *models.Contract, ticket *models.Ticket, now time.Time) error {
	if ticket.Change == nil || ticket.Change.Empty() {
		return apperrors.ConsistencyViolation("change ticket without change payload")
	}

	var proposal models.Proposal
	if err := tx.First(&proposal, "id = ?", contract.ProposalID).Error; err != nil {
		return fmt.Errorf("failed to load proposal: %w", err)
	}
	var current models.ContractTerms
	if err := tx.First(&current, "contract_id = ? AND version = ?", contract.ID, contract.CurrentTermsVersion).Error; err != nil {
		return fmt.Errorf("failed to load current terms: %w", err)
	}

	next := models.ContractTerms{
		ContractID:      contract.ID,
		Version:         contract.CurrentTermsVersion + 1,
		Description:     current.Description,
		Selection:       current.Selection,
		Breakdown:       current.Breakdown,
		DeadlineAt:      current.DeadlineAt,
		ReferenceImages: current.ReferenceImages,
		SourceTicketID:  &ticket.ID,
	}

	change := ticket.Change
	var newDeadline *time.Time
	if change.Deadline != nil {
		next.DeadlineAt = change.Deadline.NewDeadlineAt
		newDeadline = &change.Deadline.NewDeadlineAt
	}
	if change.Description != nil {
		next.Description = change.Description.NewDescription
	}
	if change.ReferenceImages != nil {
		next.ReferenceImages = pq.StringArray(change.ReferenceImages.Images)
	}

	repriced := change.GeneralOptions != nil || change.SubjectOptions != nil
	if change.GeneralOptions != nil {
		next.Selection.Items = change.GeneralOptions.Items
	}
	if change.SubjectOptions != nil {
		next.Selection.Subjects = change.SubjectOptions.Subjects
	}

	var delta int64
	if repriced {
		adjustment := &pricing.Adjustment{
			Surcharge: proposal.Surcharge,
			Discount:  proposal.Discount,
		}
		breakdown, err := pricing.ComputePrice(proposal.Snapshot, next.Selection, adjustment)
		if err != nil {
			return err
		}
		delta = breakdown.Total - current.Breakdown.Total
		next.Breakdown = *breakdown
	}

	if err := tx.Create(&next).Error; err != nil {
		return fmt.Errorf("failed to append terms version: %w", err)
	}
	return s.contractService.AccrueRuntimeFees(tx, contract, delta, newDeadline, next.Version)
}

func (s *TicketService) validateResolutionTarget(contract *models.Contract, targetType models.TicketTargetType, targetID uuid.UUID) error {
	switch targetType {
	case models.TargetCancelTicket, models.TargetRevisionTicket, models.TargetChangeTicket:
		var target models.Ticket
		if err := s.db.First(&target, "id = ? AND contract_id = ?", targetID, contract.ID).Error; err != nil {
			return apperrors.NotFound("target ticket")
		}
	case models.TargetFinalUpload, models.TargetProgressMilestoneUpload, models.TargetRevisionUpload:
		var target models.Upload
		if err := s.db.First(&target, "id = ? AND contract_id = ?", targetID, contract.ID).Error; err != nil {
			return apperrors.NotFound("target upload")
		}
	}
	return nil
}

func (s *TicketService) hasOpenResolution(ticket *models.Ticket) (bool, error) {
	var n int64
	err := s.db.Model(&models.Ticket{}).
		Where("contract_id = ? AND type = ? AND target_id = ? AND status IN ?",
			ticket.ContractID, models.TicketTypeResolution, ticket.ID,
			[]models.TicketStatus{models.TicketStatusOpen, models.TicketStatusAwaitingReview}).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("failed to check escalation: %w", err)
	}
	return n > 0, nil
}

func (s *TicketService) loadContractAsParty(actorID, contractID uuid.UUID) (*models.Contract, models.PartyRole, error) {
	var contract models.Contract
	if err := s.db.First(&contract, "id = ?", contractID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", apperrors.NotFound("contract")
		}
		return nil, "", fmt.Errorf("database error: %w", err)
	}
	switch actorID {
	case contract.ClientID:
		return &contract, models.RoleClient, nil
	case contract.ArtistID:
		return &contract, models.RoleArtist, nil
	}
	return nil, "", apperrors.Authorization("not a party to this contract")
}

func (s *TicketService) otherParty(contract *models.Contract, role models.PartyRole) uuid.UUID {
	if role == models.RoleClient {
		return contract.ArtistID
	}
	return contract.ClientID
}

func (s *TicketService) load(ticketID uuid.UUID) (*models.Ticket, error) {
	var ticket models.Ticket
	if err := s.db.First(&ticket, "id = ?", ticketID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("ticket")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &ticket, nil
}

func (s *TicketService) transition(tx *gorm.DB, ticket *models.Ticket, updates map[string]interface{}) error {
	updates["lock_version"] = ticket.LockVersion + 1

	result := tx.Model(&models.Ticket{}).
		Where("id = ? AND lock_version = ?", ticket.ID, ticket.LockVersion).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update ticket: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.StaleWrite("ticket")
	}
	ticket.LockVersion++
	return nil
}
