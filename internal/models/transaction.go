// internal/models/transaction.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Payment records the client's payment for an accepted proposal. Amounts are
// minor units; the stripe reference ties it to the external gateway.
type Payment struct {
	BaseModel
	ProposalID uuid.UUID  `json:"proposal_id" gorm:"type:uuid;not null;uniqueIndex"`
	ContractID *uuid.UUID `json:"contract_id" gorm:"type:uuid;index"`
	ClientID   uuid.UUID  `json:"client_id" gorm:"type:uuid;not null;index"`
	ArtistID   uuid.UUID  `json:"artist_id" gorm:"type:uuid;not null;index"`

	Amount   int64  `json:"amount" gorm:"not null"`
	Currency string `json:"currency" gorm:"size:10;not null"`

	StripePaymentIntentID string        `json:"stripe_payment_intent_id" gorm:"size:255;index"`
	Status                PaymentStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	ProcessedAt           *time.Time    `json:"processed_at"`
	RefundedAt            *time.Time    `json:"refunded_at"`
	RefundReason          string        `json:"refund_reason,omitempty" gorm:"type:text"`
	StripeRefundID        string        `json:"stripe_refund_id,omitempty" gorm:"size:255"`

	// Relationships
	Client User `json:"client,omitempty" gorm:"foreignKey:ClientID"`
	Artist User `json:"artist,omitempty" gorm:"foreignKey:ArtistID"`
}

// Settlement is the single ledger consequence of a contract's terminal
// transition. The unique index on ContractID makes settlement exactly-once: a
// retried terminal transition finds the existing row and does nothing.
type Settlement struct {
	BaseModel
	ContractID     uuid.UUID      `json:"contract_id" gorm:"type:uuid;not null;uniqueIndex"`
	TerminalStatus ContractStatus `json:"terminal_status" gorm:"type:varchar(30);not null"`

	Currency        string `json:"currency" gorm:"size:10;not null"`
	ClientAmount    int64  `json:"client_amount" gorm:"not null"`
	ArtistAmount    int64  `json:"artist_amount" gorm:"not null"`
	CancellationFee int64  `json:"cancellation_fee" gorm:"not null;default:0"`
	WorkPercentage  int    `json:"work_percentage" gorm:"not null;default:0"`

	// Relationships
	Contract Contract `json:"contract,omitempty" gorm:"foreignKey:ContractID"`
}
