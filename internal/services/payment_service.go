// internal/services/payment_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
	"github.com/stripe/stripe-go/v74/refund"
	"gorm.io/gorm"

	"github.com/inkmarket/commission-backend/internal/apperrors"
	"github.com/inkmarket/commission-backend/internal/config"
	"github.com/inkmarket/commission-backend/internal/database"
	"github.com/inkmarket/commission-backend/internal/models"
	"github.com/inkmarket/commission-backend/internal/utils"
)

type PaymentService struct {
	db                  *gorm.DB
	config              *config.Config
	proposalService     *ProposalService
	contractService     *ContractService
	notificationService *NotificationService
}

type CreatePaymentIntentRequest struct {
	ProposalID uuid.UUID `json:"proposal_id" validate:"required"`
}

type PaymentIntentResponse struct {
	ClientSecret string    `json:"client_secret"`
	PaymentID    uuid.UUID `json:"payment_id"`
	Amount       int64     `json:"amount"`
	Currency     string    `json:"currency"`
	Status       string    `json:"status"`
}

type ConfirmPaymentRequest struct {
	PaymentID uuid.UUID `json:"payment_id" validate:"required"`
}

func NewPaymentService(db *gorm.DB, config *config.Config, proposalService *ProposalService, contractService *ContractService, notificationService *NotificationService) *PaymentService {
	stripe.Key = config.Payment.StripeSecretKey

	return &PaymentService{
		db:                  db,
		config:              config,
		proposalService:     proposalService,
		contractService:     contractService,
		notificationService: notificationService,
	}
}

// CreatePaymentIntent opens a Stripe PaymentIntent for an accepted proposal.
// The intent amount is the proposal's computed total, already in minor units.
func (s *PaymentService) CreatePaymentIntent(clientID uuid.UUID, req *CreatePaymentIntentRequest) (*PaymentIntentResponse, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid payment request")
	}

	var proposal models.Proposal
	if err := s.db.First(&proposal, "id = ?", req.ProposalID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("proposal")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	if proposal.ClientID != clientID {
		return nil, apperrors.Authorization("not the client on this proposal")
	}
	if proposal.Status != models.ProposalStatusAccepted {
		return nil, apperrors.IllegalTransition("proposal", string(proposal.Status), "pay")
	}

	// A prior intent for the same proposal is reused rather than duplicated.
	var payment models.Payment
	err := s.db.First(&payment, "proposal_id = ?", proposal.ID).Error
	if err == nil && payment.Status == models.PaymentStatusCompleted {
		return nil, apperrors.IllegalTransition("payment", string(payment.Status), "pay")
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("database error: %w", err)
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(proposal.Breakdown.Total),
		Currency: stripe.String(proposal.Breakdown.Currency),
	}
	params.AddMetadata("proposal_id", proposal.ID.String())
	params.AddMetadata("client_id", clientID.String())

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	if payment.ID == uuid.Nil {
		payment = models.Payment{
			ProposalID: proposal.ID,
			ClientID:   proposal.ClientID,
			ArtistID:   proposal.ArtistID,
			Amount:     proposal.Breakdown.Total,
			Currency:   proposal.Breakdown.Currency,
			Status:     models.PaymentStatusPending,
		}
	}
	payment.StripePaymentIntentID = pi.ID
	if err := s.db.Save(&payment).Error; err != nil {
		return nil, fmt.Errorf("failed to save payment: %w", err)
	}

	return &PaymentIntentResponse{
		ClientSecret: pi.ClientSecret,
		PaymentID:    payment.ID,
		Amount:       payment.Amount,
		Currency:     payment.Currency,
		Status:       string(pi.Status),
	}, nil
}

// ConfirmPayment verifies the Stripe intent succeeded, then atomically marks
// the proposal paid and creates the contract. Payment, proposal transition
// and contract creation commit or roll back together.
func (s *PaymentService) ConfirmPayment(clientID uuid.UUID, req *ConfirmPaymentRequest) (*models.Contract, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid confirmation request")
	}

	var payment models.Payment
	if err := s.db.First(&payment, "id = ?", req.PaymentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("payment")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	if payment.ClientID != clientID {
		return nil, apperrors.Authorization("not the payer on this payment")
	}
	if payment.Status == models.PaymentStatusCompleted {
		return nil, apperrors.IllegalTransition("payment", string(payment.Status), "confirm")
	}

	pi, err := paymentintent.Get(payment.StripePaymentIntentID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment intent: %w", err)
	}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return nil, apperrors.Validation(fmt.Sprintf("payment intent is %s, not succeeded", pi.Status))
	}

	var proposal models.Proposal
	if err := s.db.First(&proposal, "id = ?", payment.ProposalID).Error; err != nil {
		return nil, fmt.Errorf("failed to load proposal: %w", err)
	}

	now := time.Now()
	var contract *models.Contract
	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := s.proposalService.MarkPaid(tx, &proposal, now); err != nil {
			return err
		}

		result := tx.Model(&models.Payment{}).
			Where("id = ? AND status = ?", payment.ID, payment.Status).
			Updates(map[string]interface{}{
				"status":       models.PaymentStatusCompleted,
				"processed_at": now,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to update payment: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return apperrors.StaleWrite("payment")
		}

		created, err := s.contractService.CreateFromProposal(tx, &proposal, now)
		if err != nil {
			return err
		}
		contract = created

		if err := tx.Model(&models.Payment{}).Where("id = ?", payment.ID).
			Update("contract_id", created.ID).Error; err != nil {
			return fmt.Errorf("failed to link payment to contract: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notificationService.NotifyContractCreated(contract)
	logrus.WithFields(logrus.Fields{
		"payment_id":  payment.ID,
		"proposal_id": proposal.ID,
		"contract_id": contract.ID,
		"amount":      payment.Amount,
	}).Info("Payment confirmed, contract created")
	return contract, nil
}

// RefundClientShare pushes a settled contract's client entitlement back
// through Stripe. Called from the admin surface after a terminal transition;
// a zero client share is a no-op.
func (s *PaymentService) RefundClientShare(contractID uuid.UUID, reason string) error {
	var settlement models.Settlement
	if err := s.db.First(&settlement, "contract_id = ?", contractID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound("settlement")
		}
		return fmt.Errorf("database error: %w", err)
	}
	if settlement.ClientAmount <= 0 {
		return nil
	}

	var payment models.Payment
	if err := s.db.First(&payment, "contract_id = ?", contractID).Error; err != nil {
		return apperrors.NotFound("payment")
	}
	if payment.Status == models.PaymentStatusRefunded {
		return nil
	}

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(payment.StripePaymentIntentID),
		Amount:        stripe.Int64(settlement.ClientAmount),
		Reason:        stripe.String("requested_by_customer"),
	}
	ref, err := refund.New(params)
	if err != nil {
		return fmt.Errorf("failed to process refund: %w", err)
	}

	now := time.Now()
	if err := s.db.Model(&models.Payment{}).Where("id = ?", payment.ID).
		Updates(map[string]interface{}{
			"status":           models.PaymentStatusRefunded,
			"refunded_at":      now,
			"refund_reason":    reason,
			"stripe_refund_id": ref.ID,
		}).Error; err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"contract_id": contractID,
		"amount":      settlement.ClientAmount,
	}).Info("Client share refunded")
	return nil
}

// GetPaymentHistory lists a user's payments on either side of the table.
func (s *PaymentService) GetPaymentHistory(userID uuid.UUID, params utils.PaginationParams) ([]models.Payment, int64, error) {
	query := s.db.Model(&models.Payment{}).
		Where("client_id = ? OR artist_id = ?", userID, userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count payments: %w", err)
	}

	allowedSortFields := []string{"created_at", "amount", "status"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var payments []models.Payment
	if err := query.Find(&payments).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch payments: %w", err)
	}
	return payments, total, nil
}
