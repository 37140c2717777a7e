// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Common
	KeySuccess = "success"
	KeyError   = "error"
	KeyWarning = "warning"
	KeyInfo    = "info"

	// Authentication
	KeyAuthRequired           = "auth.required"
	KeyAuthInvalidToken       = "auth.invalid_token"
	KeyAuthTokenExpired       = "auth.token_expired"
	KeyAuthInvalidCredentials = "auth.invalid_credentials"
	KeyAuthUserNotFound       = "auth.user_not_found"
	KeyAuthUserExists         = "auth.user_exists"
	KeyAuthLoginSuccess       = "auth.login_success"
	KeyAuthLogoutSuccess      = "auth.logout_success"
	KeyAuthRegisterSuccess    = "auth.register_success"
	KeyAuthPasswordReset      = "auth.password_reset"

	// User Management
	KeyUserProfileUpdated = "user.profile_updated"
	KeyUserNotFound       = "user.not_found"
	KeyUserSuspended      = "user.suspended"
	KeyUserDeleted        = "user.deleted"

	// Listings
	KeyListingCreated  = "listing.created"
	KeyListingUpdated  = "listing.updated"
	KeyListingDeleted  = "listing.deleted"
	KeyListingNotFound = "listing.not_found"
	KeyListingInactive = "listing.inactive"

	// Proposals
	KeyProposalCreated   = "proposal.created"
	KeyProposalResponded = "proposal.responded"
	KeyProposalAccepted  = "proposal.accepted"
	KeyProposalRejected  = "proposal.rejected"
	KeyProposalCancelled = "proposal.cancelled"
	KeyProposalExpired   = "proposal.expired"
	KeyProposalNotFound  = "proposal.not_found"

	// Contracts
	KeyContractCreated   = "contract.created"
	KeyContractNotFound  = "contract.not_found"
	KeyContractFinished  = "contract.finished"
	KeyUploadSubmitted   = "contract.upload_submitted"
	KeyUploadReviewed    = "contract.upload_reviewed"
	KeyMilestoneAccepted = "contract.milestone_accepted"

	// Tickets
	KeyTicketOpened    = "ticket.opened"
	KeyTicketCountered = "ticket.countered"
	KeyTicketAccepted  = "ticket.accepted"
	KeyTicketEscalated = "ticket.escalated"
	KeyTicketCancelled = "ticket.cancelled"
	KeyTicketResolved  = "ticket.resolved"
	KeyTicketNotFound  = "ticket.not_found"

	// Payments
	KeyPaymentSuccess       = "payment.success"
	KeyPaymentFailed        = "payment.failed"
	KeyPaymentPending       = "payment.pending"
	KeyPaymentRefunded      = "payment.refunded"
	KeyPaymentInvalidAmount = "payment.invalid_amount"
	KeyPaymentNotFound      = "payment.not_found"

	// Admin
	KeyAdminActionSuccess   = "admin.action_success"
	KeyAdminAccessDenied    = "admin.access_denied"
	KeyAdminUserSuspended   = "admin.user_suspended"
	KeyAdminUserUnsuspended = "admin.user_unsuspended"

	// Validation
	KeyValidationRequired = "validation.required"
	KeyValidationInvalid  = "validation.invalid"
	KeyValidationTooShort = "validation.too_short"
	KeyValidationTooLong  = "validation.too_long"
	KeyValidationEmail    = "validation.invalid_email"
	KeyValidationPassword = "validation.invalid_password"

	// File Upload
	KeyFileUploadSuccess = "file.upload_success"
	KeyFileUploadFailed  = "file.upload_failed"
	KeyFileInvalidType   = "file.invalid_type"
	KeyFileTooLarge      = "file.too_large"

	// Search
	KeySearchNoResults    = "search.no_results"
	KeySearchResultsFound = "search.results_found"

	// Notifications
	KeyNotificationSent   = "notification.sent"
	KeyNotificationFailed = "notification.failed"
)
