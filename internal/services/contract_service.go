// internal/services/contract_service.go
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

type ContractService struct {
	db                  *gorm.DB
	cfg                 *config.Config
	notificationService *NotificationService
}

type SubmitUploadRequest struct {
	Kind        models.UploadKind `json:"kind" validate:"required"`
	MilestoneID *uuid.UUID        `json:"milestone_id,omitempty"`
	TicketID    *uuid.UUID        `json:"ticket_id,omitempty"`
	Images      []string          `json:"images" validate:"required,min=1"`
	Note        string            `json:"note,omitempty"`
}

type ReviewUploadRequest struct {
	Accept bool   `json:"accept"`
	Note   string `json:"note,omitempty"`
}

type ContractSearchParams struct {
	utils.PaginationParams
	Status *models.ContractStatus `json:"status,omitempty"`
}

// entitlementRule is one row of the terminal-state payout policy. The table
// below is the authoritative business policy: every terminal state maps to an
// explicit rule, nothing is inferred.
type entitlementRule struct {
	ArtistGetsFullTotal  bool
	PayWorkShare         bool
	ApplyCancellationFee bool
}

var entitlementTable = map[models.ContractStatus]entitlementRule{
	models.ContractStatusCompleted:           {ArtistGetsFullTotal: true},
	models.ContractStatusCompletedLate:       {ArtistGetsFullTotal: true},
	models.ContractStatusCancelledClient:     {PayWorkShare: true, ApplyCancellationFee: true},
	models.ContractStatusCancelledClientLate: {PayWorkShare: true, ApplyCancellationFee: true},
	models.ContractStatusCancelledArtist:     {PayWorkShare: true},
	models.ContractStatusCancelledArtistLate: {PayWorkShare: true},
	models.ContractStatusNotCompleted:        {},
}

func NewContractService(db *gorm.DB, cfg *config.Config, notificationService *NotificationService) *ContractService {
	return &ContractService{
		db:                  db,
		cfg:                 cfg,
		notificationService: notificationService,
	}
}

// CreateFromProposal materializes the contract for a proposal that just
// reached paid, inside the caller's transaction: frozen finance baseline,
// terms v1, milestone rows, deadline and grace window.
func (s *ContractService) CreateFromProposal(tx *gorm.DB, proposal *models.Proposal, paidAt time.Time) (*models.Contract, error) {
	b := proposal.Breakdown
	deadline := paidAt.Add(time.Duration(proposal.Selection.ChosenDays) * 24 * time.Hour)

	contract := &models.Contract{
		ProposalID: proposal.ID,
		ListingID:  proposal.ListingID,
		ClientID:   proposal.ClientID,
		ArtistID:   proposal.ArtistID,
		Finance: models.ContractFinance{
			Currency:    b.Currency,
			Base:        b.Base,
			OptionFees:  b.OptionGroups,
			Addons:      b.Addons,
			SubjectFees: b.SubjectsTotal,
			RushFee:     b.RushFee,
			Discount:    b.Discount,
			Surcharge:   b.Surcharge,
			Total:       b.Total,
		},
		Status:              models.ContractStatusActive,
		DeadlineAt:          deadline,
		GraceEndsAt:         deadline.Add(time.Duration(s.cfg.Commission.GraceDays) * 24 * time.Hour),
		CurrentTermsVersion: 1,
	}

	if err := tx.Create(contract).Error; err != nil {
		return nil, fmt.Errorf("failed to create contract: %w", err)
	}

	terms := &models.ContractTerms{
		ContractID:      contract.ID,
		Version:         1,
		Description:     proposal.Description,
		Selection:       proposal.Selection,
		Breakdown:       proposal.Breakdown,
		DeadlineAt:      deadline,
		ReferenceImages: proposal.ReferenceImages,
	}
	if err := tx.Create(terms).Error; err != nil {
		return nil, fmt.Errorf("failed to create contract terms: %w", err)
	}

	for i, def := range proposal.Snapshot.Milestones {
		milestone := &models.Milestone{
			ContractID: contract.ID,
			Position:   i,
			Title:      def.Title,
			Percent:    def.Percent,
			Status:     models.MilestoneStatusPending,
		}
		if i == 0 {
			milestone.Status = models.MilestoneStatusInProgress
			now := paidAt
			milestone.StartedAt = &now
		}
		if err := tx.Create(milestone).Error; err != nil {
			return nil, fmt.Errorf("failed to create milestone: %w", err)
		}
	}

	return contract, nil
}

func (s *ContractService) GetContract(actorID uuid.UUID, actorType models.UserType, contractID uuid.UUID) (*models.Contract, error) {
	var contract models.Contract
	err := s.db.
		Preload("Terms", func(db *gorm.DB) *gorm.DB { return db.Order("version ASC") }).
		Preload("Milestones", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Uploads").
		First(&contract, "id = ?", contractID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("contract")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	if actorType != models.UserTypeAdmin && contract.ClientID != actorID && contract.ArtistID != actorID {
		return nil, apperrors.Authorization("not a party to this contract")
	}
	return &contract, nil
}

// GetUpload loads a single upload, visible only to the contract parties.
func (s *ContractService) GetUpload(actorID uuid.UUID, actorType models.UserType, uploadID uuid.UUID) (*models.Upload, error) {
	var upload models.Upload
	if err := s.db.First(&upload, "id = ?", uploadID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("upload")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	var contract models.Contract
	if err := s.db.First(&contract, "id = ?", upload.ContractID).Error; err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	if actorType != models.UserTypeAdmin && contract.ClientID != actorID && contract.ArtistID != actorID {
		return nil, apperrors.Authorization("not a party to this contract")
	}
	return &upload, nil
}

func (s *ContractService) ListContracts(actorID uuid.UUID, actorType models.UserType, params *ContractSearchParams) (*utils.PaginationResult, error) {
	query := s.db.Model(&models.Contract{})
	switch actorType {
	case models.UserTypeArtist:
		query = query.Where("artist_id = ?", actorID)
	case models.UserTypeAdmin:
	default:
		query = query.Where("client_id = ?", actorID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count contracts: %w", err)
	}

	var contracts []models.Contract
	query = utils.ApplySort(query, params.PaginationParams, []string{"created_at", "deadline_at"})
	query = utils.ApplyPagination(query, params.PaginationParams)
	if err := query.Find(&contracts).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch contracts: %w", err)
	}

	result := utils.CreatePaginationResult(contracts, total, params.PaginationParams)
	return &result, nil
}

// SubmitUpload records an artist delivery. Progress uploads are unlimited;
// only one final upload may be pending at a time; milestone uploads must name
// the in-progress milestone; revision uploads must name a revision ticket the
// artist owes work on.
func (s *ContractService) SubmitUpload(artistID, contractID uuid.UUID, req *SubmitUploadRequest) (*models.Upload, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid upload request")
	}

	contract, err := s.loadForUpdate(contractID)
	if err != nil {
		return nil, err
	}
	if contract.ArtistID != artistID {
		return nil, apperrors.Authorization("not the artist on this contract")
	}
	if contract.Status != models.ContractStatusActive {
		return nil, apperrors.IllegalTransition("contract", string(contract.Status), "submit_upload")
	}

	upload := &models.Upload{
		ContractID: contract.ID,
		Kind:       req.Kind,
		Images:     pq.StringArray(req.Images),
		Note:       req.Note,
		Status:     models.UploadStatusPending,
	}

	switch req.Kind {
	case models.UploadKindProgress:
		// always allowed while active

	case models.UploadKindFinal:
		var pendingFinals int64
		s.db.Model(&models.Upload{}).
			Where("contract_id = ? AND kind = ? AND status = ?", contract.ID, models.UploadKindFinal, models.UploadStatusPending).
			Count(&pendingFinals)
		if pendingFinals > 0 {
			return nil, apperrors.Validation("a final upload is already awaiting review")
		}

	case models.UploadKindMilestone:
		if req.MilestoneID == nil {
			return nil, apperrors.Validation("milestone upload requires milestone_id")
		}
		var milestone models.Milestone
		if err := s.db.First(&milestone, "id = ? AND contract_id = ?", *req.MilestoneID, contract.ID).Error; err != nil {
			return nil, apperrors.NotFound("milestone")
		}
		if milestone.Status != models.MilestoneStatusInProgress {
			return nil, apperrors.IllegalTransition("milestone", string(milestone.Status), "submit_upload")
		}
		upload.MilestoneID = req.MilestoneID

	case models.UploadKindRevision:
		if req.TicketID == nil {
			return nil, apperrors.Validation("revision upload requires ticket_id")
		}
		var ticket models.Ticket
		if err := s.db.First(&ticket, "id = ? AND contract_id = ? AND type = ?", *req.TicketID, contract.ID, models.TicketTypeRevision).Error; err != nil {
			return nil, apperrors.NotFound("revision ticket")
		}
		if ticket.Status != models.TicketStatusResolved {
			return nil, apperrors.Validation("revision ticket has not been granted")
		}
		upload.TicketID = req.TicketID

	default:
		return nil, apperrors.Validation(fmt.Sprintf("unknown upload kind %q", req.Kind))
	}

	if err := s.db.Create(upload).Error; err != nil {
		return nil, fmt.Errorf("failed to create upload: %w", err)
	}

	s.notificationService.NotifyUploadSubmitted(contract, upload)
	return upload, nil
}

// ReviewUpload is the client's accept/reject of a pending upload.
func (s *ContractService) ReviewUpload(clientID, uploadID uuid.UUID, req *ReviewUploadRequest) (*models.Contract, error) {
	var upload models.Upload
	if err := s.db.First(&upload, "id = ?", uploadID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("upload")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	contract, err := s.loadForUpdate(upload.ContractID)
	if err != nil {
		return nil, err
	}
	if contract.ClientID != clientID {
		return nil, apperrors.Authorization("not the client on this contract")
	}

	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		return s.ApplyUploadReview(tx, contract, &upload, req.Accept, req.Note, time.Now())
	})
	if err != nil {
		return nil, err
	}
	return s.loadForUpdate(upload.ContractID)
}

// ApplyUploadReview applies an accept/reject decision to a pending upload and
// its downstream contract effects. It is shared between the client review path
// and admin arbitration (force-accept / force-reject).
func (s *ContractService) ApplyUploadReview(tx *gorm.DB, contract *models.Contract, upload *models.Upload, accept bool, note string, now time.Time) error {
	if upload.Status != models.UploadStatusPending {
		return apperrors.IllegalTransition("upload", string(upload.Status), "review")
	}
	if contract.Status != models.ContractStatusActive {
		return apperrors.IllegalTransition("contract", string(contract.Status), "review_upload")
	}

	status := models.UploadStatusRejected
	if accept {
		status = models.UploadStatusAccepted
	}
	result := tx.Model(&models.Upload{}).
		Where("id = ? AND status = ?", upload.ID, models.UploadStatusPending).
		Updates(map[string]interface{}{
			"status":      status,
			"reviewed_at": now,
			"review_note": note,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update upload: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.StaleWrite("upload")
	}

	if !accept {
		return nil
	}

	switch upload.Kind {
	case models.UploadKindFinal:
		return s.Finalize(tx, contract, models.ContractStatusCompleted, now)
	case models.UploadKindMilestone:
		return s.advanceMilestone(tx, contract, upload, now)
	}
	return nil
}

// OverrideUploadReview is the arbitration path: it may flip an already
// reviewed upload, unlike the client path which only reviews pending ones.
// Accepting re-runs the accept side effects.
func (s *ContractService) OverrideUploadReview(tx *gorm.DB, contract *models.Contract, upload *models.Upload, accept bool, note string, now time.Time) error {
	if upload.Status == models.UploadStatusAccepted {
		return apperrors.IllegalTransition("upload", string(upload.Status), "override")
	}
	if contract.Status != models.ContractStatusActive {
		return apperrors.IllegalTransition("contract", string(contract.Status), "override_upload")
	}

	status := models.UploadStatusRejected
	if accept {
		status = models.UploadStatusAccepted
	}
	if err := tx.Model(&models.Upload{}).Where("id = ?", upload.ID).
		Updates(map[string]interface{}{
			"status":      status,
			"reviewed_at": now,
			"review_note": note,
		}).Error; err != nil {
		return fmt.Errorf("failed to update upload: %w", err)
	}

	if !accept {
		return nil
	}
	switch upload.Kind {
	case models.UploadKindFinal:
		return s.Finalize(tx, contract, models.ContractStatusCompleted, now)
	case models.UploadKindMilestone:
		return s.advanceMilestone(tx, contract, upload, now)
	}
	return nil
}

// advanceMilestone marks the upload's milestone accepted, accrues its percent
// into the contract's work percentage, and starts the next milestone.
// Accepting the last milestone completes the contract.
func (s *ContractService) advanceMilestone(tx *gorm.DB, contract *models.Contract, upload *models.Upload, now time.Time) error {
	if upload.MilestoneID == nil {
		return apperrors.ConsistencyViolation("milestone upload without milestone reference")
	}

	var milestone models.Milestone
	if err := tx.First(&milestone, "id = ?", *upload.MilestoneID).Error; err != nil {
		return apperrors.NotFound("milestone")
	}
	if milestone.Status != models.MilestoneStatusInProgress {
		return apperrors.IllegalTransition("milestone", string(milestone.Status), "accept")
	}

	// Milestones advance strictly left to right: the preceding one must be
	// accepted before this one can be.
	if milestone.Position > 0 {
		var prev models.Milestone
		if err := tx.First(&prev, "contract_id = ? AND position = ?", contract.ID, milestone.Position-1).Error; err != nil {
			return apperrors.ConsistencyViolation("milestone chain is broken")
		}
		if prev.Status != models.MilestoneStatusAccepted {
			return apperrors.IllegalTransition("milestone", string(prev.Status), "accept_out_of_order")
		}
	}

	if err := tx.Model(&models.Milestone{}).Where("id = ?", milestone.ID).
		Updates(map[string]interface{}{"status": models.MilestoneStatusAccepted, "accepted_at": now}).Error; err != nil {
		return fmt.Errorf("failed to accept milestone: %w", err)
	}

	workPct := contract.WorkPercentage + milestone.Percent

	var next models.Milestone
	err := tx.First(&next, "contract_id = ? AND position = ?", contract.ID, milestone.Position+1).Error
	switch {
	case err == nil:
		if err := tx.Model(&models.Milestone{}).Where("id = ? AND status = ?", next.ID, models.MilestoneStatusPending).
			Updates(map[string]interface{}{"status": models.MilestoneStatusInProgress, "started_at": now}).Error; err != nil {
			return fmt.Errorf("failed to start next milestone: %w", err)
		}
		if err := s.transition(tx, contract, map[string]interface{}{"work_percentage": workPct}); err != nil {
			return err
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		// last milestone accepted: the commission is delivered in full
		contract.WorkPercentage = workPct
		if err := s.transition(tx, contract, map[string]interface{}{"work_percentage": workPct}); err != nil {
			return err
		}
		contract.LockVersion++
		return s.Finalize(tx, contract, models.ContractStatusCompleted, now)
	default:
		return fmt.Errorf("failed to load next milestone: %w", err)
	}
	return nil
}

// Finalize moves an active contract into a terminal state, picking the Late
// variant when the transition lands after the deadline, and applies the
// entitlement policy exactly once. A terminal transition reached twice (a
// retried request, a concurrent sweep) finds the settlement row and no-ops.
func (s *ContractService) Finalize(tx *gorm.DB, contract *models.Contract, baseStatus models.ContractStatus, now time.Time) error {
	if contract.Status != models.ContractStatusActive {
		return apperrors.IllegalTransition("contract", string(contract.Status), string(baseStatus))
	}
	if !baseStatus.Terminal() {
		return apperrors.ConsistencyViolation("finalize requires a terminal status")
	}

	terminal := baseStatus
	if contract.Overdue(now) {
		terminal = baseStatus.Late()
	}

	// Exactly-once: a settlement row already present means a prior terminal
	// transition completed its ledger effect.
	var existing models.Settlement
	err := tx.First(&existing, "contract_id = ?", contract.ID).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to check settlement: %w", err)
	}

	rule, ok := entitlementTable[terminal]
	if !ok {
		return apperrors.ConsistencyViolation(fmt.Sprintf("no entitlement rule for terminal state %s", terminal))
	}

	var proposal models.Proposal
	if err := tx.First(&proposal, "id = ?", contract.ProposalID).Error; err != nil {
		return fmt.Errorf("failed to load proposal for settlement: %w", err)
	}

	total := contract.Finance.Total + contract.Finance.RuntimeFees
	var artistAmount, cancellationFee int64
	switch {
	case rule.ArtistGetsFullTotal:
		artistAmount = total
	case rule.PayWorkShare:
		artistAmount = pricing.WorkShare(total, contract.WorkPercentage)
	}
	if rule.ApplyCancellationFee {
		cancellationFee = pricing.CancellationFee(proposal.Snapshot.Cancellation, total)
		artistAmount += cancellationFee
	}
	if artistAmount > total {
		artistAmount = total
	}
	clientAmount := total - artistAmount

	settlement := &models.Settlement{
		ContractID:      contract.ID,
		TerminalStatus:  terminal,
		Currency:        contract.Finance.Currency,
		ClientAmount:    clientAmount,
		ArtistAmount:    artistAmount,
		CancellationFee: cancellationFee,
		WorkPercentage:  contract.WorkPercentage,
	}
	if err := tx.Create(settlement).Error; err != nil {
		return fmt.Errorf("failed to create settlement: %w", err)
	}

	finance := contract.Finance
	finance.TotalOwedClient = clientAmount
	finance.TotalOwedArtist = artistAmount

	if err := s.transition(tx, contract, map[string]interface{}{
		"status":      terminal,
		"finished_at": now,
		"finance":     finance,
	}); err != nil {
		return err
	}

	contract.Status = terminal
	s.notificationService.NotifyContractFinished(contract)

	logrus.WithFields(logrus.Fields{
		"contract_id":   contract.ID,
		"terminal":      terminal,
		"artist_amount": artistAmount,
		"client_amount": clientAmount,
	}).Info("Contract finalized")
	return nil
}

// AccrueRuntimeFees folds a runtime fee delta into the contract finance inside
// the caller's transaction. When the fee comes with a new authoritative terms
// version (an accepted change ticket), the caller passes it; fees with no terms
// amendment (a paid extra revision) pass 0 and the version stays put.
func (s *ContractService) AccrueRuntimeFees(tx *gorm.DB, contract *models.Contract, delta int64, newDeadline *time.Time, newTermsVersion int) error {
	finance := contract.Finance
	finance.RuntimeFees += delta

	updates := map[string]interface{}{
		"finance": finance,
	}
	if newTermsVersion > 0 {
		updates["current_terms_version"] = newTermsVersion
	}
	if newDeadline != nil {
		updates["deadline_at"] = *newDeadline
		updates["grace_ends_at"] = (*newDeadline).Add(time.Duration(s.cfg.Commission.GraceDays) * 24 * time.Hour)
	}
	return s.transition(tx, contract, updates)
}

func (s *ContractService) loadForUpdate(contractID uuid.UUID) (*models.Contract, error) {
	var contract models.Contract
	if err := s.db.First(&contract, "id = ?", contractID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("contract")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &contract, nil
}

func (s *ContractService) transition(tx *gorm.DB, contract *models.Contract, updates map[string]interface{}) error {
	updates["lock_version"] = contract.LockVersion + 1

	result := tx.Model(&models.Contract{}).
		Where("id = ? AND lock_version = ?", contract.ID, contract.LockVersion).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update contract: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.StaleWrite("contract")
	}
	return nil
}
