// internal/services/sweep_service.go
package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/inkmarket/commission-backend/internal/config"
	"github.com/inkmarket/commission-backend/internal/database"
	"github.com/inkmarket/commission-backend/internal/models"
)

// SweepService drives the time-based transitions nobody requests explicitly:
// proposal expiry, lapsed counterproof windows and grace-period auto-accepts.
// Every sweep statement is a guarded UPDATE keyed on the current state, so
// concurrent sweeps and user actions stay safe and replays are no-ops.
type SweepService struct {
	db              *gorm.DB
	cfg             *config.Config
	contractService *ContractService
}

func NewSweepService(db *gorm.DB, cfg *config.Config, contractService *ContractService) *SweepService {
	return &SweepService{
		db:              db,
		cfg:             cfg,
		contractService: contractService,
	}
}

// Run loops until the context is cancelled.
func (s *SweepService) Run(ctx context.Context) {
	interval := time.Duration(s.cfg.Commission.SweepIntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logrus.WithField("interval", interval).Info("Sweep loop started")
	for {
		select {
		case <-ctx.Done():
			logrus.Info("Sweep loop stopped")
			return
		case <-ticker.C:
			s.SweepOnce(time.Now())
		}
	}
}

// SweepOnce runs all sweep passes for one tick. Each pass logs and continues
// on failure; a broken pass must not starve the others.
func (s *SweepService) SweepOnce(now time.Time) {
	if err := s.ExpireProposals(now); err != nil {
		logrus.WithError(err).Error("Proposal expiry sweep failed")
	}
	if err := s.SweepTicketWindows(now); err != nil {
		logrus.WithError(err).Error("Ticket window sweep failed")
	}
	if err := s.SweepGraceDeadlines(now); err != nil {
		logrus.WithError(err).Error("Grace deadline sweep failed")
	}
}

// ExpireProposals moves every overdue non-terminal proposal to expired in a
// single guarded statement.
func (s *SweepService) ExpireProposals(now time.Time) error {
	nonTerminal := []models.ProposalStatus{
		models.ProposalStatusPendingArtist,
		models.ProposalStatusPendingClient,
		models.ProposalStatusRejectedClient,
		models.ProposalStatusAccepted,
	}
	result := s.db.Model(&models.Proposal{}).
		Where("status IN ? AND expires_at < ?", nonTerminal, now).
		Updates(map[string]interface{}{
			"status":       models.ProposalStatusExpired,
			"lock_version": gorm.Expr("lock_version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		logrus.WithField("count", result.RowsAffected).Info("Proposals expired")
	}
	return nil
}

// SweepTicketWindows advances open tickets whose counterproof window lapsed
// to awaiting review with no counter evidence on record.
func (s *SweepService) SweepTicketWindows(now time.Time) error {
	result := s.db.Model(&models.Ticket{}).
		Where("status = ? AND counter_expires_at < ?", models.TicketStatusOpen, now).
		Updates(map[string]interface{}{
			"status":       models.TicketStatusAwaitingReview,
			"lock_version": gorm.Expr("lock_version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		logrus.WithField("count", result.RowsAffected).Info("Ticket counter windows lapsed")
	}
	return nil
}

// SweepGraceDeadlines auto-accepts final uploads the client sat on past the
// grace period. Silence after the grace window counts as acceptance, which
// finalizes the contract (late, when past deadline).
func (s *SweepService) SweepGraceDeadlines(now time.Time) error {
	var uploads []models.Upload
	err := s.db.
		Joins("JOIN contracts ON contracts.id = uploads.contract_id").
		Where("uploads.kind = ? AND uploads.status = ? AND contracts.status = ? AND contracts.grace_ends_at < ?",
			models.UploadKindFinal, models.UploadStatusPending, models.ContractStatusActive, now).
		Find(&uploads).Error
	if err != nil {
		return err
	}

	for i := range uploads {
		upload := uploads[i]
		contract, err := s.contractService.loadForUpdate(upload.ContractID)
		if err != nil {
			logrus.WithError(err).WithField("contract_id", upload.ContractID).Error("Grace sweep load failed")
			continue
		}
		err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
			return s.contractService.ApplyUploadReview(tx, contract, &upload, true, "auto-accepted after grace period", now)
		})
		if err != nil {
			logrus.WithError(err).WithField("upload_id", upload.ID).Error("Grace auto-accept failed")
			continue
		}
		logrus.WithFields(logrus.Fields{
			"contract_id": contract.ID,
			"upload_id":   upload.ID,
		}).Info("Final upload auto-accepted after grace period")
	}
	return nil
}
