// internal/models/contract.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/inkmarket/commission-backend/internal/pricing"
)

// ContractFinance is the frozen finance baseline copied from the paid
// proposal, plus runtime fees accrued from accepted change tickets. All
// amounts are minor units.
type ContractFinance struct {
	Currency    string `json:"currency"`
	Base        int64  `json:"base"`
	OptionFees  int64  `json:"option_fees"`
	Addons      int64  `json:"addons"`
	SubjectFees int64  `json:"subject_fees"`
	RushFee     int64  `json:"rush_fee"`
	Discount    int64  `json:"discount"`
	Surcharge   int64  `json:"surcharge"`
	RuntimeFees int64  `json:"runtime_fees"`
	Total       int64  `json:"total"`

	// Set exactly once at terminal transition.
	TotalOwedClient int64 `json:"total_owed_client"`
	TotalOwedArtist int64 `json:"total_owed_artist"`
}

func (f ContractFinance) Value() (driver.Value, error) { return json.Marshal(f) }

func (f *ContractFinance) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, f)
	case string:
		return json.Unmarshal([]byte(v), f)
	}
	return nil
}

type Contract struct {
	BaseModel
	ProposalID uuid.UUID `json:"proposal_id" gorm:"type:uuid;not null;uniqueIndex"`
	ListingID  uuid.UUID `json:"listing_id" gorm:"type:uuid;not null;index"`
	ClientID   uuid.UUID `json:"client_id" gorm:"type:uuid;not null;index"`
	ArtistID   uuid.UUID `json:"artist_id" gorm:"type:uuid;not null;index"`

	Finance ContractFinance `json:"finance" gorm:"type:jsonb;not null"`

	Status      ContractStatus `json:"status" gorm:"type:varchar(30);not null;default:'active';index"`
	DeadlineAt  time.Time      `json:"deadline_at" gorm:"not null;index"`
	GraceEndsAt time.Time      `json:"grace_ends_at" gorm:"not null"`
	FinishedAt  *time.Time     `json:"finished_at"`

	// Sum of percent over milestones with status accepted; 0..100.
	WorkPercentage int `json:"work_percentage" gorm:"not null;default:0"`

	// The latest terms version is authoritative for display and re-pricing.
	CurrentTermsVersion int `json:"current_terms_version" gorm:"not null;default:1"`

	LockVersion int64 `json:"-" gorm:"not null;default:0"`

	// Relationships
	Proposal   Proposal        `json:"proposal,omitempty" gorm:"foreignKey:ProposalID"`
	Client     User            `json:"client,omitempty" gorm:"foreignKey:ClientID"`
	Artist     User            `json:"artist,omitempty" gorm:"foreignKey:ArtistID"`
	Terms      []ContractTerms `json:"terms,omitempty" gorm:"foreignKey:ContractID"`
	Milestones []Milestone     `json:"milestones,omitempty" gorm:"foreignKey:ContractID"`
	Uploads    []Upload        `json:"uploads,omitempty" gorm:"foreignKey:ContractID"`
	Tickets    []Ticket        `json:"tickets,omitempty" gorm:"foreignKey:ContractID"`
}

// Overdue reports whether a transition happening now lands after the
// contract deadline. Exactly at the deadline counts as on time.
func (c *Contract) Overdue(now time.Time) bool {
	return now.After(c.DeadlineAt)
}

// ContractTerms is one immutable version of the contract's terms. Amendments
// append a new row with the next version; versions are never edited in place,
// so any past contract state can be reconstructed for audit or dispute review.
type ContractTerms struct {
	BaseModel
	ContractID      uuid.UUID              `json:"contract_id" gorm:"type:uuid;not null;index;uniqueIndex:idx_contract_terms_version"`
	Version         int                    `json:"version" gorm:"not null;uniqueIndex:idx_contract_terms_version"`
	Description     string                 `json:"description" gorm:"type:text"`
	Selection       pricing.Selection      `json:"selection" gorm:"type:jsonb;not null"`
	Breakdown       pricing.PriceBreakdown `json:"breakdown" gorm:"type:jsonb;not null"`
	DeadlineAt      time.Time              `json:"deadline_at" gorm:"not null"`
	ReferenceImages pq.StringArray         `json:"reference_images" gorm:"type:text[]"`
	// Ticket that produced this version; nil for v1.
	SourceTicketID *uuid.UUID `json:"source_ticket_id" gorm:"type:uuid"`
}

type Milestone struct {
	BaseModel
	ContractID uuid.UUID       `json:"contract_id" gorm:"type:uuid;not null;index;uniqueIndex:idx_contract_milestone_pos"`
	Position   int             `json:"position" gorm:"not null;uniqueIndex:idx_contract_milestone_pos"`
	Title      string          `json:"title" gorm:"size:255;not null"`
	Percent    int             `json:"percent" gorm:"not null"`
	Status     MilestoneStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	StartedAt  *time.Time      `json:"started_at"`
	AcceptedAt *time.Time      `json:"accepted_at"`
	RejectedAt *time.Time      `json:"rejected_at"`
}

// Upload is a delivery by the artist: unlimited progress uploads, exactly one
// pending final upload, milestone uploads tied to the in-progress milestone,
// and revision uploads tied to an accepted revision ticket.
type Upload struct {
	BaseModel
	ContractID  uuid.UUID      `json:"contract_id" gorm:"type:uuid;not null;index"`
	Kind        UploadKind     `json:"kind" gorm:"type:varchar(20);not null;index"`
	MilestoneID *uuid.UUID     `json:"milestone_id" gorm:"type:uuid;index"`
	TicketID    *uuid.UUID     `json:"ticket_id" gorm:"type:uuid;index"`
	Images      pq.StringArray `json:"images" gorm:"type:text[]"`
	Note        string         `json:"note" gorm:"type:text"`
	Status      UploadStatus   `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	ReviewedAt  *time.Time     `json:"reviewed_at"`
	ReviewNote  string         `json:"review_note,omitempty" gorm:"type:text"`
}
