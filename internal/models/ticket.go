// internal/models/ticket.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/inkmarket/commission-backend/internal/pricing"
)

// ChangeRequest is the validated payload of a change ticket. Each included
// aspect is an explicit sub-payload; an aspect absent from the request is not
// part of the change. At least one aspect must be present.
type ChangeRequest struct {
	Deadline        *DeadlineChange        `json:"deadline,omitempty"`
	Description     *DescriptionChange     `json:"description,omitempty"`
	GeneralOptions  *GeneralOptionsChange  `json:"general_options,omitempty"`
	SubjectOptions  *SubjectOptionsChange  `json:"subject_options,omitempty"`
	ReferenceImages *ReferenceImagesChange `json:"reference_images,omitempty"`
}

type DeadlineChange struct {
	NewDeadlineAt time.Time `json:"new_deadline_at"`
}

type DescriptionChange struct {
	NewDescription string `json:"new_description"`
}

type GeneralOptionsChange struct {
	Items []pricing.SelectionItem `json:"items"`
}

type SubjectOptionsChange struct {
	Subjects []pricing.SubjectSelection `json:"subjects"`
}

type ReferenceImagesChange struct {
	Images []string `json:"images"`
}

func (r ChangeRequest) Empty() bool {
	return r.Deadline == nil && r.Description == nil && r.GeneralOptions == nil &&
		r.SubjectOptions == nil && r.ReferenceImages == nil
}

func (r ChangeRequest) Value() (driver.Value, error) { return json.Marshal(r) }

func (r *ChangeRequest) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, r)
	case string:
		return json.Unmarshal([]byte(v), r)
	}
	return nil
}

// Ticket is the shared shape across the four families (cancel, revision,
// change, resolution), narrowed per family by Type. Resolution tickets also
// carry TargetType/TargetID naming the disputed item and, once decided, the
// admin decision and note.
type Ticket struct {
	BaseModel
	ContractID uuid.UUID  `json:"contract_id" gorm:"type:uuid;not null;index"`
	Type       TicketType `json:"type" gorm:"type:varchar(20);not null;index"`

	TargetType *TicketTargetType `json:"target_type,omitempty" gorm:"type:varchar(30)"`
	TargetID   *uuid.UUID        `json:"target_id,omitempty" gorm:"type:uuid;index"`

	SubmittedByID   uuid.UUID `json:"submitted_by_id" gorm:"type:uuid;not null;index"`
	SubmittedByRole PartyRole `json:"submitted_by_role" gorm:"type:varchar(10);not null"`
	CounterpartyID  uuid.UUID `json:"counterparty_id" gorm:"type:uuid;not null;index"`

	Description string         `json:"description" gorm:"type:text;not null"`
	Evidence    pq.StringArray `json:"evidence" gorm:"type:text[]"`

	CounterDescription string         `json:"counter_description,omitempty" gorm:"type:text"`
	CounterEvidence    pq.StringArray `json:"counter_evidence" gorm:"type:text[]"`
	CounterExpiresAt   time.Time      `json:"counter_expires_at" gorm:"not null;index"`
	CounteredAt        *time.Time     `json:"countered_at"`

	Status TicketStatus `json:"status" gorm:"type:varchar(20);not null;default:'open';index"`

	// Change tickets only.
	Change *ChangeRequest `json:"change,omitempty" gorm:"type:jsonb"`

	// Resolution tickets only, set when resolved.
	Decision       *Decision  `json:"decision,omitempty" gorm:"type:varchar(20)"`
	ResolutionNote string     `json:"resolution_note,omitempty" gorm:"type:text"`
	ResolvedBy     *uuid.UUID `json:"resolved_by,omitempty" gorm:"type:uuid"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`

	// Set when a cancel/revision/change ticket closes without admin review.
	AcceptedByCounterparty *bool `json:"accepted_by_counterparty,omitempty"`

	LockVersion int64 `json:"-" gorm:"not null;default:0"`

	// Relationships
	Contract     Contract `json:"contract,omitempty" gorm:"foreignKey:ContractID"`
	SubmittedBy  User     `json:"submitted_by,omitempty" gorm:"foreignKey:SubmittedByID"`
	Counterparty User     `json:"counterparty,omitempty" gorm:"foreignKey:CounterpartyID"`
	Resolver     *User    `json:"resolver,omitempty" gorm:"foreignKey:ResolvedBy"`
}

// CounterWindowLapsed reports whether the counterproof window passed with the
// ticket still open.
func (t *Ticket) CounterWindowLapsed(now time.Time) bool {
	return t.Status == TicketStatusOpen && now.After(t.CounterExpiresAt)
}
