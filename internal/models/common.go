// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:(gen_random_uuid())"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// BeforeCreate assigns an id when the database default is unavailable
// (the sqlite test harness has no gen_random_uuid()).
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			bytes = []byte(s)
		} else {
			return nil
		}
	}

	return json.Unmarshal(bytes, j)
}

// Enums
type UserType string

const (
	UserTypeClient UserType = "client"
	UserTypeArtist UserType = "artist"
	UserTypeAdmin  UserType = "admin"
)

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusBanned    UserStatus = "banned"
)

// PartyRole names which side of a contract an actor is on.
type PartyRole string

const (
	RoleClient PartyRole = "client"
	RoleArtist PartyRole = "artist"
)

type ProposalStatus string

const (
	ProposalStatusPendingArtist   ProposalStatus = "pending_artist"
	ProposalStatusPendingClient   ProposalStatus = "pending_client"
	ProposalStatusRejectedArtist  ProposalStatus = "rejected_artist"
	ProposalStatusRejectedClient  ProposalStatus = "rejected_client"
	ProposalStatusAccepted        ProposalStatus = "accepted"
	ProposalStatusExpired         ProposalStatus = "expired"
	ProposalStatusPaid            ProposalStatus = "paid"
	ProposalStatusCancelledClient ProposalStatus = "cancelled_client"
)

func (s ProposalStatus) Terminal() bool {
	switch s {
	case ProposalStatusRejectedArtist, ProposalStatusExpired, ProposalStatusPaid, ProposalStatusCancelledClient:
		return true
	}
	return false
}

func (s ProposalStatus) CanTransitionTo(next ProposalStatus) bool {
	transitions := map[ProposalStatus][]ProposalStatus{
		ProposalStatusPendingArtist:  {ProposalStatusRejectedArtist, ProposalStatusPendingClient, ProposalStatusExpired, ProposalStatusCancelledClient},
		ProposalStatusPendingClient:  {ProposalStatusAccepted, ProposalStatusRejectedClient, ProposalStatusExpired, ProposalStatusCancelledClient},
		ProposalStatusRejectedClient: {ProposalStatusPendingArtist, ProposalStatusExpired, ProposalStatusCancelledClient},
		ProposalStatusAccepted:       {ProposalStatusPaid, ProposalStatusExpired, ProposalStatusCancelledClient},
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type ContractStatus string

const (
	ContractStatusActive              ContractStatus = "active"
	ContractStatusCompleted           ContractStatus = "completed"
	ContractStatusCompletedLate       ContractStatus = "completed_late"
	ContractStatusCancelledClient     ContractStatus = "cancelled_client"
	ContractStatusCancelledClientLate ContractStatus = "cancelled_client_late"
	ContractStatusCancelledArtist     ContractStatus = "cancelled_artist"
	ContractStatusCancelledArtistLate ContractStatus = "cancelled_artist_late"
	ContractStatusNotCompleted        ContractStatus = "not_completed"
)

func (s ContractStatus) Terminal() bool {
	return s != ContractStatusActive
}

// Late returns the late variant of a terminal status for terminal transitions
// occurring after the contract deadline.
func (s ContractStatus) Late() ContractStatus {
	switch s {
	case ContractStatusCompleted:
		return ContractStatusCompletedLate
	case ContractStatusCancelledClient:
		return ContractStatusCancelledClientLate
	case ContractStatusCancelledArtist:
		return ContractStatusCancelledArtistLate
	}
	return s
}

type MilestoneStatus string

const (
	MilestoneStatusPending    MilestoneStatus = "pending"
	MilestoneStatusInProgress MilestoneStatus = "in_progress"
	MilestoneStatusAccepted   MilestoneStatus = "accepted"
	MilestoneStatusRejected   MilestoneStatus = "rejected"
)

type TicketType string

const (
	TicketTypeCancel     TicketType = "cancel"
	TicketTypeRevision   TicketType = "revision"
	TicketTypeChange     TicketType = "change"
	TicketTypeResolution TicketType = "resolution"
)

type TicketStatus string

const (
	TicketStatusOpen           TicketStatus = "open"
	TicketStatusAwaitingReview TicketStatus = "awaiting_review"
	TicketStatusResolved       TicketStatus = "resolved"
	TicketStatusCancelled      TicketStatus = "cancelled"
)

func (s TicketStatus) CanTransitionTo(next TicketStatus) bool {
	transitions := map[TicketStatus][]TicketStatus{
		TicketStatusOpen:           {TicketStatusAwaitingReview, TicketStatusResolved, TicketStatusCancelled},
		TicketStatusAwaitingReview: {TicketStatusResolved, TicketStatusCancelled},
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// TicketTargetType identifies what a resolution ticket disputes.
type TicketTargetType string

const (
	TargetCancelTicket            TicketTargetType = "cancel_ticket"
	TargetRevisionTicket          TicketTargetType = "revision_ticket"
	TargetChangeTicket            TicketTargetType = "change_ticket"
	TargetFinalUpload             TicketTargetType = "final_upload"
	TargetProgressMilestoneUpload TicketTargetType = "progress_milestone_upload"
	TargetRevisionUpload          TicketTargetType = "revision_upload"
)

func (t TicketTargetType) Valid() bool {
	switch t {
	case TargetCancelTicket, TargetRevisionTicket, TargetChangeTicket,
		TargetFinalUpload, TargetProgressMilestoneUpload, TargetRevisionUpload:
		return true
	}
	return false
}

type Decision string

const (
	DecisionFavorClient Decision = "favor_client"
	DecisionFavorArtist Decision = "favor_artist"
)

func (d Decision) Valid() bool {
	return d == DecisionFavorClient || d == DecisionFavorArtist
}

type UploadKind string

const (
	UploadKindProgress  UploadKind = "progress"
	UploadKindFinal     UploadKind = "final"
	UploadKindMilestone UploadKind = "milestone"
	UploadKindRevision  UploadKind = "revision"
)

type UploadStatus string

const (
	UploadStatusPending  UploadStatus = "pending"
	UploadStatusAccepted UploadStatus = "accepted"
	UploadStatusRejected UploadStatus = "rejected"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)
