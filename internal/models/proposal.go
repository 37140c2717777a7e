// internal/models/proposal.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/inkmarket/commission-backend/internal/pricing"
)

// Proposal is a client's commission request negotiated against a frozen
// listing snapshot. LockVersion is an optimistic-lock counter: every
// transition updates WHERE lock_version matches and bumps it, so a concurrent
// loser fails with a stale-write error instead of overwriting the winner.
type Proposal struct {
	BaseModel
	ListingID uuid.UUID `json:"listing_id" gorm:"type:uuid;not null;index"`
	ClientID  uuid.UUID `json:"client_id" gorm:"type:uuid;not null;index"`
	ArtistID  uuid.UUID `json:"artist_id" gorm:"type:uuid;not null;index"`

	Snapshot  pricing.ListingSnapshot `json:"snapshot" gorm:"type:jsonb;not null"`
	Selection pricing.Selection       `json:"selection" gorm:"type:jsonb;not null"`
	Breakdown pricing.PriceBreakdown  `json:"breakdown" gorm:"type:jsonb;not null"`

	Description     string         `json:"description" gorm:"type:text"`
	ReferenceImages pq.StringArray `json:"reference_images" gorm:"type:text[]"`

	// Artist adjustment: surcharge and/or discount with a reason.
	Surcharge        int64  `json:"surcharge" gorm:"not null;default:0"`
	Discount         int64  `json:"discount" gorm:"not null;default:0"`
	AdjustmentReason string `json:"adjustment_reason,omitempty" gorm:"type:text"`

	RejectionReason string `json:"rejection_reason,omitempty" gorm:"type:text"`

	Status      ProposalStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending_artist';index"`
	ExpiresAt   time.Time      `json:"expires_at" gorm:"not null;index"`
	RespondedAt *time.Time     `json:"responded_at"`
	AcceptedAt  *time.Time     `json:"accepted_at"`
	PaidAt      *time.Time     `json:"paid_at"`

	LockVersion int64 `json:"-" gorm:"not null;default:0"`

	// Relationships
	Listing Listing `json:"listing,omitempty" gorm:"foreignKey:ListingID"`
	Client  User    `json:"client,omitempty" gorm:"foreignKey:ClientID"`
	Artist  User    `json:"artist,omitempty" gorm:"foreignKey:ArtistID"`
}

// Expired reports whether the proposal's deadline has lapsed without the
// negotiation reaching a terminal state.
func (p *Proposal) Expired(now time.Time) bool {
	return !p.Status.Terminal() && now.After(p.ExpiresAt)
}
