// internal/services/notification_service.go
package services

import (
	"fmt"
	"net/smtp"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/inkmarket/commission-backend/internal/config"
	"github.com/inkmarket/commission-backend/internal/models"
)

type NotificationService struct {
	db     *gorm.DB
	config *config.Config
}

func NewNotificationService(db *gorm.DB, config *config.Config) *NotificationService {
	return &NotificationService{
		db:     db,
		config: config,
	}
}

// NotifyParty writes an in-app notification for one party of a proposal or
// contract. Failures are logged, never propagated: a lifecycle transition must
// not roll back because a notification row could not be written.
func (s *NotificationService) NotifyParty(recipientID uuid.UUID, notifType, title, message, resourceType string, resourceID uuid.UUID) {
	notification := &models.Notification{
		RecipientID:         recipientID,
		Type:                notifType,
		Title:               title,
		Message:             message,
		RelatedResourceType: resourceType,
		RelatedResourceID:   &resourceID,
	}

	if err := s.db.Create(notification).Error; err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"recipient": recipientID,
			"type":      notifType,
		}).Error("Failed to create notification")
	}
}

// NotifyAdmins puts an item on the shared admin review queue.
func (s *NotificationService) NotifyAdmins(notifType, title, message, priority, resourceType string, resourceID uuid.UUID) {
	notification := &models.AdminNotification{
		Type:                notifType,
		Title:               title,
		Message:             message,
		Priority:            priority,
		RelatedResourceType: resourceType,
		RelatedResourceID:   &resourceID,
	}

	if err := s.db.Create(notification).Error; err != nil {
		logrus.WithError(err).WithField("type", notifType).Error("Failed to create admin notification")
	}
}

// Proposal lifecycle

func (s *NotificationService) NotifyProposalReceived(proposal *models.Proposal) {
	s.NotifyParty(proposal.ArtistID, "proposal_received", "New commission proposal",
		fmt.Sprintf("A client proposed a commission for %s", proposal.Breakdown.Currency),
		"proposal", proposal.ID)
}

func (s *NotificationService) NotifyProposalResponded(proposal *models.Proposal) {
	switch proposal.Status {
	case models.ProposalStatusPendingClient:
		s.NotifyParty(proposal.ClientID, "proposal_quoted", "Artist responded to your proposal",
			fmt.Sprintf("The artist accepted your proposal at a total of %d %s", proposal.Breakdown.Total, proposal.Breakdown.Currency),
			"proposal", proposal.ID)
	case models.ProposalStatusRejectedArtist:
		s.NotifyParty(proposal.ClientID, "proposal_rejected", "Proposal declined",
			"The artist declined your proposal", "proposal", proposal.ID)
	case models.ProposalStatusRejectedClient:
		s.NotifyParty(proposal.ArtistID, "proposal_rejected", "Quote declined",
			"The client declined your quote; you may adjust and respond again", "proposal", proposal.ID)
	case models.ProposalStatusAccepted:
		s.NotifyParty(proposal.ArtistID, "proposal_accepted", "Proposal accepted",
			"The client accepted your quote; awaiting payment", "proposal", proposal.ID)
	}
}

// Contract lifecycle

func (s *NotificationService) NotifyContractCreated(contract *models.Contract) {
	s.NotifyParty(contract.ArtistID, "contract_started", "Commission started",
		fmt.Sprintf("Payment received; deadline %s", contract.DeadlineAt.Format("2006-01-02")),
		"contract", contract.ID)
	s.NotifyParty(contract.ClientID, "contract_started", "Commission started",
		"Your payment was received and the commission is now active", "contract", contract.ID)
}

func (s *NotificationService) NotifyUploadSubmitted(contract *models.Contract, upload *models.Upload) {
	s.NotifyParty(contract.ClientID, "upload_submitted", "New delivery to review",
		fmt.Sprintf("The artist submitted a %s upload", upload.Kind), "upload", upload.ID)
}

func (s *NotificationService) NotifyContractFinished(contract *models.Contract) {
	s.NotifyParty(contract.ClientID, "contract_finished", "Commission closed",
		fmt.Sprintf("Contract closed with status %s", contract.Status), "contract", contract.ID)
	s.NotifyParty(contract.ArtistID, "contract_finished", "Commission closed",
		fmt.Sprintf("Contract closed with status %s", contract.Status), "contract", contract.ID)
}

// Tickets

func (s *NotificationService) NotifyTicketOpened(ticket *models.Ticket) {
	s.NotifyParty(ticket.CounterpartyID, "ticket_opened", "Ticket opened against your contract",
		fmt.Sprintf("A %s ticket was opened; you may submit counterproof until %s",
			ticket.Type, ticket.CounterExpiresAt.Format("2006-01-02 15:04")),
		"ticket", ticket.ID)

	if ticket.Type == models.TicketTypeResolution {
		s.NotifyAdmins("dispute_opened", "New dispute awaiting arbitration",
			fmt.Sprintf("Resolution ticket opened on contract %s", ticket.ContractID),
			"high", "ticket", ticket.ID)
	}
}

func (s *NotificationService) NotifyTicketCountered(ticket *models.Ticket) {
	s.NotifyParty(ticket.SubmittedByID, "ticket_countered", "Counterproof submitted",
		"The counterparty responded to your ticket; it is now awaiting review", "ticket", ticket.ID)
}

func (s *NotificationService) NotifyTicketResolved(ticket *models.Ticket) {
	for _, recipient := range []uuid.UUID{ticket.SubmittedByID, ticket.CounterpartyID} {
		s.NotifyParty(recipient, "ticket_resolved", "Ticket resolved",
			fmt.Sprintf("Your %s ticket was resolved", ticket.Type), "ticket", ticket.ID)
	}
}

// sendEmail delivers over SMTP when configured; otherwise it is a no-op so
// development environments work without a mail relay.
func (s *NotificationService) sendEmail(to, subject, body string) error {
	if s.config.Email.SMTPHost == "" {
		logrus.WithField("to", to).Debug("SMTP not configured, skipping email")
		return nil
	}

	auth := smtp.PlainAuth("", s.config.Email.SMTPUsername, s.config.Email.SMTPPassword, s.config.Email.SMTPHost)
	msg := []byte(fmt.Sprintf("From: %s <%s>\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n\r\n%s",
		s.config.Email.FromName, s.config.Email.FromEmail, to, subject, body))

	addr := fmt.Sprintf("%s:%s", s.config.Email.SMTPHost, s.config.Email.SMTPPort)
	return smtp.SendMail(addr, auth, s.config.Email.FromEmail, []string{to}, msg)
}
