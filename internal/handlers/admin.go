// internal/handlers/admin.go
package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/inkmarket/commission-backend/internal/i18n"
	"github.com/inkmarket/commission-backend/internal/models"
	"github.com/inkmarket/commission-backend/internal/services"
	"github.com/inkmarket/commission-backend/internal/utils"
)

type AdminHandler struct {
	adminService      *services.AdminService
	resolutionService *services.ResolutionService
	paymentService    *services.PaymentService
}

func NewAdminHandler(adminService *services.AdminService, resolutionService *services.ResolutionService, paymentService *services.PaymentService) *AdminHandler {
	return &AdminHandler{
		adminService:      adminService,
		resolutionService: resolutionService,
		paymentService:    paymentService,
	}
}

// GET /admin/dashboard
func (h *AdminHandler) GetDashboardStats(c *gin.Context) {
	stats, err := h.adminService.GetDashboardStats()
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, stats)
}

// GET /admin/users
func (h *AdminHandler) GetUsers(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	filter := services.AdminUserFilter{
		PaginationParams: params,
	}

	if userType := c.Query("user_type"); userType != "" {
		uType := models.UserType(userType)
		filter.UserType = &uType
	}
	if status := c.Query("status"); status != "" {
		uStatus := models.UserStatus(status)
		filter.Status = &uStatus
	}
	if createdAfter := c.Query("created_after"); createdAfter != "" {
		if t, err := time.Parse("2006-01-02", createdAfter); err == nil {
			filter.CreatedAfter = &t
		}
	}
	if createdBefore := c.Query("created_before"); createdBefore != "" {
		if t, err := time.Parse("2006-01-02", createdBefore); err == nil {
			filter.CreatedBefore = &t
		}
	}

	users, total, err := h.adminService.GetUsers(filter)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	result := utils.CreatePaginationResult(users, total, params)
	utils.PaginatedResponse(c, result)
}

// PUT /admin/users/:id/status
func (h *AdminHandler) UpdateUserStatus(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	adminID, _, ok := actorFromContext(c)
	if !ok {
		return
	}
	userID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Status models.UserStatus `json:"status" validate:"required"`
		Reason string            `json:"reason,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	if err := h.adminService.UpdateUserStatus(userID, req.Status, adminID, req.Reason); err != nil {
		if strings.Contains(err.Error(), "not found") {
			utils.NotFoundResponse(c, i18n.KeyUserNotFound)
			return
		}
		if strings.Contains(err.Error(), "cannot modify") {
			utils.ForbiddenResponse(c, err.Error())
			return
		}
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	var message string
	switch req.Status {
	case models.UserStatusSuspended:
		message = i18n.T(lang, i18n.KeyAdminUserSuspended)
	case models.UserStatusActive:
		message = i18n.T(lang, i18n.KeyAdminUserUnsuspended)
	default:
		message = i18n.T(lang, i18n.KeyAdminActionSuccess)
	}

	utils.SuccessResponse(c, gin.H{
		"message": message,
	})
}

// GET /admin/contracts
func (h *AdminHandler) GetContracts(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	filter := services.AdminContractFilter{
		PaginationParams: params,
	}

	if status := c.Query("status"); status != "" {
		cStatus := models.ContractStatus(status)
		filter.Status = &cStatus
	}
	if clientIDStr := c.Query("client_id"); clientIDStr != "" {
		if id, err := uuid.Parse(clientIDStr); err == nil {
			filter.ClientID = &id
		}
	}
	if artistIDStr := c.Query("artist_id"); artistIDStr != "" {
		if id, err := uuid.Parse(artistIDStr); err == nil {
			filter.ArtistID = &id
		}
	}
	if overdue := c.Query("overdue"); overdue != "" {
		filter.OverdueOnly, _ = strconv.ParseBool(overdue)
	}
	if createdAfter := c.Query("created_after"); createdAfter != "" {
		if t, err := time.Parse("2006-01-02", createdAfter); err == nil {
			filter.CreatedAfter = &t
		}
	}
	if createdBefore := c.Query("created_before"); createdBefore != "" {
		if t, err := time.Parse("2006-01-02", createdBefore); err == nil {
			filter.CreatedBefore = &t
		}
	}

	contracts, total, err := h.adminService.GetContracts(filter)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	result := utils.CreatePaginationResult(contracts, total, params)
	utils.PaginatedResponse(c, result)
}

// GET /admin/payments
func (h *AdminHandler) GetPayments(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	filter := services.AdminPaymentFilter{
		PaginationParams: params,
	}

	if status := c.Query("status"); status != "" {
		pStatus := models.PaymentStatus(status)
		filter.Status = &pStatus
	}
	if clientIDStr := c.Query("client_id"); clientIDStr != "" {
		if id, err := uuid.Parse(clientIDStr); err == nil {
			filter.ClientID = &id
		}
	}
	if amountMin := c.Query("amount_min"); amountMin != "" {
		if v, err := strconv.ParseInt(amountMin, 10, 64); err == nil {
			filter.AmountMin = &v
		}
	}
	if amountMax := c.Query("amount_max"); amountMax != "" {
		if v, err := strconv.ParseInt(amountMax, 10, 64); err == nil {
			filter.AmountMax = &v
		}
	}
	if createdAfter := c.Query("created_after"); createdAfter != "" {
		if t, err := time.Parse("2006-01-02", createdAfter); err == nil {
			filter.CreatedAfter = &t
		}
	}
	if createdBefore := c.Query("created_before"); createdBefore != "" {
		if t, err := time.Parse("2006-01-02", createdBefore); err == nil {
			filter.CreatedBefore = &t
		}
	}

	payments, total, err := h.adminService.GetPayments(filter)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	result := utils.CreatePaginationResult(payments, total, params)
	utils.PaginatedResponse(c, result)
}

// GET /admin/contracts/:id/settlement
func (h *AdminHandler) GetSettlement(c *gin.Context) {
	contractID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	settlement, err := h.adminService.GetSettlement(contractID)
	if err != nil {
		respondAppError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"settlement": settlement})
}

// POST /admin/contracts/:id/refund
func (h *AdminHandler) ProcessRefund(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	contractID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Reason string `json:"reason" validate:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	if err := h.paymentService.RefundClientShare(contractID, req.Reason); err != nil {
		respondAppError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyPaymentRefunded),
	})
}

// GET /admin/resolutions
func (h *AdminHandler) ListResolutions(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	tickets, total, err := h.resolutionService.ListPending(params)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	result := utils.CreatePaginationResult(tickets, total, params)
	utils.PaginatedResponse(c, result)
}

// POST /admin/resolutions/:id/resolve
func (h *AdminHandler) ResolveTicket(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	adminID, _, ok := actorFromContext(c)
	if !ok {
		return
	}
	ticketID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req services.ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	ticket, err := h.resolutionService.Resolve(adminID, ticketID, &req)
	if err != nil {
		respondAppError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyTicketResolved),
		"ticket":  ticket,
	})
}

// GET /admin/analytics
func (h *AdminHandler) GetAnalytics(c *gin.Context) {
	endDate := time.Now()
	startDate := endDate.AddDate(0, -1, 0)

	if startStr := c.Query("start_date"); startStr != "" {
		if t, err := time.Parse("2006-01-02", startStr); err == nil {
			startDate = t
		}
	}
	if endStr := c.Query("end_date"); endStr != "" {
		if t, err := time.Parse("2006-01-02", endStr); err == nil {
			endDate = t
		}
	}

	metrics := []string{"user_registrations", "proposals", "contracts", "tickets", "volume"}
	if metricsStr := c.Query("metrics"); metricsStr != "" {
		metrics = strings.Split(metricsStr, ",")
	}

	analytics, err := h.adminService.GetAnalytics(startDate, endDate, metrics)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{
		"analytics":  analytics,
		"start_date": startDate.Format("2006-01-02"),
		"end_date":   endDate.Format("2006-01-02"),
	})
}
