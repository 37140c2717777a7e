// internal/services/admin_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/inkmarket/commission-backend/internal/models"
	"github.com/inkmarket/commission-backend/internal/utils"
)

type AdminService struct {
	db                  *gorm.DB
	notificationService *NotificationService
}

type AdminDashboardStats struct {
	TotalUsers        int64 `json:"total_users"`
	ActiveUsers       int64 `json:"active_users"`
	NewUsersThisMonth int64 `json:"new_users_this_month"`

	ActiveListings    int64 `json:"active_listings"`
	OpenProposals     int64 `json:"open_proposals"`
	ActiveContracts   int64 `json:"active_contracts"`
	OverdueContracts  int64 `json:"overdue_contracts"`
	PendingResolution int64 `json:"pending_resolution"`

	TotalVolume   int64 `json:"total_volume"`   // minor units, completed payments
	MonthlyVolume int64 `json:"monthly_volume"` // minor units
	RefundedTotal int64 `json:"refunded_total"` // minor units

	CompletedContracts int64   `json:"completed_contracts"`
	CancelledContracts int64   `json:"cancelled_contracts"`
	LateRate           float64 `json:"late_rate"` // share of terminal contracts finished late
}

type AdminUserFilter struct {
	utils.PaginationParams
	UserType      *models.UserType   `json:"user_type,omitempty"`
	Status        *models.UserStatus `json:"status,omitempty"`
	CreatedAfter  *time.Time         `json:"created_after,omitempty"`
	CreatedBefore *time.Time         `json:"created_before,omitempty"`
}

type AdminContractFilter struct {
	utils.PaginationParams
	Status        *models.ContractStatus `json:"status,omitempty"`
	ClientID      *uuid.UUID             `json:"client_id,omitempty"`
	ArtistID      *uuid.UUID             `json:"artist_id,omitempty"`
	OverdueOnly   bool                   `json:"overdue_only,omitempty"`
	CreatedAfter  *time.Time             `json:"created_after,omitempty"`
	CreatedBefore *time.Time             `json:"created_before,omitempty"`
}

type AdminPaymentFilter struct {
	utils.PaginationParams
	Status        *models.PaymentStatus `json:"status,omitempty"`
	ClientID      *uuid.UUID            `json:"client_id,omitempty"`
	ArtistID      *uuid.UUID            `json:"artist_id,omitempty"`
	AmountMin     *int64                `json:"amount_min,omitempty"`
	AmountMax     *int64                `json:"amount_max,omitempty"`
	CreatedAfter  *time.Time            `json:"created_after,omitempty"`
	CreatedBefore *time.Time            `json:"created_before,omitempty"`
}

func NewAdminService(db *gorm.DB, notificationService *NotificationService) *AdminService {
	return &AdminService{
		db:                  db,
		notificationService: notificationService,
	}
}

// Dashboard Statistics
func (s *AdminService) GetDashboardStats() (*AdminDashboardStats, error) {
	stats := &AdminDashboardStats{}
	now := time.Now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	// User statistics
	s.db.Model(&models.User{}).Count(&stats.TotalUsers)
	s.db.Model(&models.User{}).Where("status = ?", models.UserStatusActive).Count(&stats.ActiveUsers)
	s.db.Model(&models.User{}).Where("created_at >= ?", monthStart).Count(&stats.NewUsersThisMonth)

	// Marketplace statistics
	s.db.Model(&models.Listing{}).Where("active = ?", true).Count(&stats.ActiveListings)
	s.db.Model(&models.Proposal{}).
		Where("status IN ?", []models.ProposalStatus{
			models.ProposalStatusPendingArtist,
			models.ProposalStatusPendingClient,
			models.ProposalStatusAccepted,
		}).Count(&stats.OpenProposals)
	s.db.Model(&models.Contract{}).Where("status = ?", models.ContractStatusActive).Count(&stats.ActiveContracts)
	s.db.Model(&models.Contract{}).
		Where("status = ? AND deadline_at < ?", models.ContractStatusActive, now).
		Count(&stats.OverdueContracts)
	s.db.Model(&models.Ticket{}).
		Where("type = ? AND status = ?", models.TicketTypeResolution, models.TicketStatusAwaitingReview).
		Count(&stats.PendingResolution)

	// Volume statistics
	s.db.Model(&models.Payment{}).
		Where("status IN ?", []models.PaymentStatus{models.PaymentStatusCompleted, models.PaymentStatusRefunded}).
		Select("COALESCE(SUM(amount), 0)").Scan(&stats.TotalVolume)
	s.db.Model(&models.Payment{}).
		Where("status IN ? AND created_at >= ?",
			[]models.PaymentStatus{models.PaymentStatusCompleted, models.PaymentStatusRefunded}, monthStart).
		Select("COALESCE(SUM(amount), 0)").Scan(&stats.MonthlyVolume)
	s.db.Model(&models.Settlement{}).
		Select("COALESCE(SUM(client_amount), 0)").Scan(&stats.RefundedTotal)

	// Outcome statistics
	s.db.Model(&models.Contract{}).
		Where("status IN ?", []models.ContractStatus{models.ContractStatusCompleted, models.ContractStatusCompletedLate}).
		Count(&stats.CompletedContracts)
	s.db.Model(&models.Contract{}).
		Where("status IN ?", []models.ContractStatus{
			models.ContractStatusCancelledClient, models.ContractStatusCancelledClientLate,
			models.ContractStatusCancelledArtist, models.ContractStatusCancelledArtistLate,
			models.ContractStatusNotCompleted,
		}).Count(&stats.CancelledContracts)

	var lateTerminal, allTerminal int64
	s.db.Model(&models.Contract{}).
		Where("status IN ?", []models.ContractStatus{
			models.ContractStatusCompletedLate,
			models.ContractStatusCancelledClientLate,
			models.ContractStatusCancelledArtistLate,
		}).Count(&lateTerminal)
	s.db.Model(&models.Contract{}).Where("status != ?", models.ContractStatusActive).Count(&allTerminal)
	if allTerminal > 0 {
		stats.LateRate = float64(lateTerminal) / float64(allTerminal) * 100
	}

	return stats, nil
}

// User Management
func (s *AdminService) GetUsers(filter AdminUserFilter) ([]models.User, int64, error) {
	query := s.db.Model(&models.User{})

	if filter.UserType != nil {
		query = query.Where("user_type = ?", *filter.UserType)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Search != "" {
		searchTerm := "%" + filter.Search + "%"
		query = query.Where("username ILIKE ? OR email ILIKE ?", searchTerm, searchTerm)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at <= ?", *filter.CreatedBefore)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	allowedSortFields := []string{"created_at", "updated_at", "username", "email", "user_type", "status"}
	query = utils.ApplySort(query, filter.PaginationParams, allowedSortFields)
	query = utils.ApplyPagination(query, filter.PaginationParams)

	var users []models.User
	if err := query.Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch users: %w", err)
	}

	return users, total, nil
}

func (s *AdminService) UpdateUserStatus(userID uuid.UUID, status models.UserStatus, adminID uuid.UUID, reason string) error {
	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errors.New("user not found")
		}
		return fmt.Errorf("database error: %w", err)
	}

	// Prevent admins from modifying other admins
	if user.UserType == models.UserTypeAdmin {
		var admin models.User
		if err := s.db.First(&admin, adminID).Error; err != nil {
			return errors.New("admin not found")
		}
		if admin.UserType != models.UserTypeAdmin || admin.ID != user.ID {
			return errors.New("cannot modify admin user status")
		}
	}

	oldStatus := user.Status
	user.Status = status

	if err := s.db.Save(&user).Error; err != nil {
		return fmt.Errorf("failed to update user status: %w", err)
	}

	go s.createAuditLog(adminID, "UPDATE_USER_STATUS", "user", &userID,
		map[string]interface{}{"status": oldStatus},
		map[string]interface{}{"status": status, "reason": reason})

	go s.notificationService.NotifyParty(user.ID, "account_status", "Account status changed",
		fmt.Sprintf("Your account status changed from %s to %s. %s", oldStatus, status, reason),
		"user", user.ID)

	return nil
}

// Contract Oversight
func (s *AdminService) GetContracts(filter AdminContractFilter) ([]models.Contract, int64, error) {
	query := s.db.Model(&models.Contract{}).Preload("Client").Preload("Artist")

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.ClientID != nil {
		query = query.Where("client_id = ?", *filter.ClientID)
	}
	if filter.ArtistID != nil {
		query = query.Where("artist_id = ?", *filter.ArtistID)
	}
	if filter.OverdueOnly {
		query = query.Where("status = ? AND deadline_at < ?", models.ContractStatusActive, time.Now())
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at <= ?", *filter.CreatedBefore)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count contracts: %w", err)
	}

	allowedSortFields := []string{"created_at", "updated_at", "deadline_at", "status"}
	query = utils.ApplySort(query, filter.PaginationParams, allowedSortFields)
	query = utils.ApplyPagination(query, filter.PaginationParams)

	var contracts []models.Contract
	if err := query.Find(&contracts).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch contracts: %w", err)
	}

	return contracts, total, nil
}

// Payment Oversight
func (s *AdminService) GetPayments(filter AdminPaymentFilter) ([]models.Payment, int64, error) {
	query := s.db.Model(&models.Payment{})

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.ClientID != nil {
		query = query.Where("client_id = ?", *filter.ClientID)
	}
	if filter.ArtistID != nil {
		query = query.Where("artist_id = ?", *filter.ArtistID)
	}
	if filter.AmountMin != nil {
		query = query.Where("amount >= ?", *filter.AmountMin)
	}
	if filter.AmountMax != nil {
		query = query.Where("amount <= ?", *filter.AmountMax)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at <= ?", *filter.CreatedBefore)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count payments: %w", err)
	}

	allowedSortFields := []string{"created_at", "updated_at", "amount", "status", "processed_at"}
	query = utils.ApplySort(query, filter.PaginationParams, allowedSortFields)
	query = utils.ApplyPagination(query, filter.PaginationParams)

	var payments []models.Payment
	if err := query.Find(&payments).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch payments: %w", err)
	}

	return payments, total, nil
}

// GetSettlement exposes a contract's settlement row for dispute review.
func (s *AdminService) GetSettlement(contractID uuid.UUID) (*models.Settlement, error) {
	var settlement models.Settlement
	if err := s.db.First(&settlement, "contract_id = ?", contractID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("settlement not found")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &settlement, nil
}

// Analytics and Reporting
func (s *AdminService) GetAnalytics(startDate, endDate time.Time, metrics []string) (map[string]interface{}, error) {
	analytics := make(map[string]interface{})

	for _, metric := range metrics {
		switch metric {
		case "user_registrations":
			var count int64
			s.db.Model(&models.User{}).
				Where("created_at BETWEEN ? AND ?", startDate, endDate).
				Count(&count)
			analytics["user_registrations"] = count

		case "proposals":
			var count int64
			s.db.Model(&models.Proposal{}).
				Where("created_at BETWEEN ? AND ?", startDate, endDate).
				Count(&count)
			analytics["proposals"] = count

		case "contracts":
			var count int64
			s.db.Model(&models.Contract{}).
				Where("created_at BETWEEN ? AND ?", startDate, endDate).
				Count(&count)
			analytics["contracts"] = count

		case "tickets":
			var count int64
			s.db.Model(&models.Ticket{}).
				Where("created_at BETWEEN ? AND ?", startDate, endDate).
				Count(&count)
			analytics["tickets"] = count

		case "volume":
			var volume int64
			s.db.Model(&models.Payment{}).
				Where("status IN ? AND created_at BETWEEN ? AND ?",
					[]models.PaymentStatus{models.PaymentStatusCompleted, models.PaymentStatusRefunded},
					startDate, endDate).
				Select("COALESCE(SUM(amount), 0)").Scan(&volume)
			analytics["volume"] = volume
		}
	}

	return analytics, nil
}

// Helper methods
func (s *AdminService) createAuditLog(userID uuid.UUID, action, resourceType string, resourceID *uuid.UUID, oldValues, newValues map[string]interface{}) {
	auditLog := &models.AuditLog{
		UserID:       &userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		OldValues:    models.JSONB(oldValues),
		NewValues:    models.JSONB(newValues),
	}

	s.db.Create(auditLog)
}
