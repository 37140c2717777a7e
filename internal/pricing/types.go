// internal/pricing/types.go
package pricing

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// All money values are integers in the currency's minor unit. Binary floating
// point is never used for totals.

type RevisionMode string

const (
	RevisionNone         RevisionMode = "none"
	RevisionStandard     RevisionMode = "standard"
	RevisionPerMilestone RevisionMode = "per_milestone"
)

type RushFeeMode string

const (
	RushFeeFlat   RushFeeMode = "flat"
	RushFeePerDay RushFeeMode = "per_day"
)

type CancellationFeeMode string

const (
	CancellationFeeFlat    CancellationFeeMode = "flat"
	CancellationFeePercent CancellationFeeMode = "percent"
)

// UnboundedInstances marks a subject with no instance limit.
const UnboundedInstances = -1

type OptionChoice struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Price int64  `json:"price"`
}

type OptionGroup struct {
	ID      string         `json:"id"`
	Title   string         `json:"title"`
	Choices []OptionChoice `json:"choices"`
}

type Addon struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Price int64  `json:"price"`
}

type Question struct {
	ID       string `json:"id"`
	Prompt   string `json:"prompt"`
	Required bool   `json:"required"`
}

// SubjectDefinition is a repeatable unit within a listing (e.g. "Character")
// with its own options and an instance limit. DiscountPercent applies to every
// instance after the first.
type SubjectDefinition struct {
	ID              string        `json:"id"`
	Title           string        `json:"title"`
	BasePrice       int64         `json:"base_price"`
	OptionGroups    []OptionGroup `json:"option_groups,omitempty"`
	Addons          []Addon       `json:"addons,omitempty"`
	Questions       []Question    `json:"questions,omitempty"`
	InstanceLimit   int           `json:"instance_limit"`
	DiscountPercent int           `json:"discount_percent"`
}

type RevisionPolicy struct {
	Mode             RevisionMode `json:"mode"`
	FreeRevisions    int          `json:"free_revisions"`
	ExtraRevisionFee int64        `json:"extra_revision_fee,omitempty"`
}

type DeadlinePolicy struct {
	MinDays     int         `json:"min_days"`
	MaxDays     int         `json:"max_days"`
	RushFeeMode RushFeeMode `json:"rush_fee_mode,omitempty"`
	RushFee     int64       `json:"rush_fee,omitempty"`
	// RushMinDays is the earliest deadline an artist accepts even with a rush
	// fee; deadlines earlier than MinDays but at or past RushMinDays are rushed.
	RushMinDays int `json:"rush_min_days,omitempty"`
}

type CancellationPolicy struct {
	Mode    CancellationFeeMode `json:"mode"`
	Fee     int64               `json:"fee,omitempty"`
	Percent int                 `json:"percent,omitempty"`
}

// ChangeableAspects lists which top-level aspects of a contract may be amended
// post-contract via a change ticket.
type ChangeableAspects struct {
	Deadline        bool `json:"deadline"`
	Description     bool `json:"description"`
	GeneralOptions  bool `json:"general_options"`
	SubjectOptions  bool `json:"subject_options"`
	ReferenceImages bool `json:"reference_images"`
}

type MilestoneDefinition struct {
	Title     string         `json:"title"`
	Percent   int            `json:"percent"`
	Revisions RevisionPolicy `json:"revisions"`
}

// ListingSnapshot is the immutable copy of a commission listing's terms
// captured at proposal creation. Listings copy it by value into proposals, so
// later listing edits never retroactively change an outstanding proposal.
type ListingSnapshot struct {
	Currency     string                `json:"currency"`
	BasePrice    int64                 `json:"base_price"`
	OptionGroups []OptionGroup         `json:"option_groups,omitempty"`
	Addons       []Addon               `json:"addons,omitempty"`
	Questions    []Question            `json:"questions,omitempty"`
	Subjects     []SubjectDefinition   `json:"subjects,omitempty"`
	Revisions    RevisionPolicy        `json:"revisions"`
	Deadline     DeadlinePolicy        `json:"deadline"`
	Cancellation CancellationPolicy    `json:"cancellation"`
	Changeable   ChangeableAspects     `json:"changeable"`
	Milestones   []MilestoneDefinition `json:"milestones,omitempty"`
}

func (s ListingSnapshot) MilestoneFlow() bool {
	return len(s.Milestones) > 0
}

// Validate rejects snapshots that must never produce a proposal or contract.
func (s ListingSnapshot) Validate() error {
	if s.BasePrice < 0 {
		return fmt.Errorf("base_price must not be negative")
	}
	if s.MilestoneFlow() {
		sum := 0
		for _, m := range s.Milestones {
			sum += m.Percent
		}
		if sum != 100 {
			return fmt.Errorf("milestone percentages must sum to 100, got %d", sum)
		}
	}
	return nil
}

type SelectionKind string

const (
	KindOptionGroup SelectionKind = "option_group"
	KindAddon       SelectionKind = "addon"
	KindAnswer      SelectionKind = "answer"
)

// SelectionItem is a tagged variant: exactly one of the per-kind payloads is
// meaningful, keyed by Kind.
type SelectionItem struct {
	Kind       SelectionKind `json:"kind"`
	GroupID    string        `json:"group_id,omitempty"`
	ChoiceID   string        `json:"choice_id,omitempty"`
	AddonID    string        `json:"addon_id,omitempty"`
	QuestionID string        `json:"question_id,omitempty"`
	Answer     string        `json:"answer,omitempty"`
}

type SubjectInstance struct {
	Items []SelectionItem `json:"items"`
}

type SubjectSelection struct {
	SubjectID string            `json:"subject_id"`
	Instances []SubjectInstance `json:"instances"`
}

// Selection names everything a client chose against a listing snapshot.
type Selection struct {
	ChosenDays int                `json:"chosen_days"`
	Deadline   time.Time          `json:"deadline,omitempty"`
	Items      []SelectionItem    `json:"items,omitempty"`
	Subjects   []SubjectSelection `json:"subjects,omitempty"`
}

// Adjustment is the artist's optional surcharge/discount attached when
// responding to a proposal.
type Adjustment struct {
	Surcharge int64  `json:"surcharge"`
	Discount  int64  `json:"discount"`
	Reason    string `json:"reason,omitempty"`
}

// InstanceBreakdown shows both the undiscounted and discounted figure for a
// subject instance.
type InstanceBreakdown struct {
	Index           int   `json:"index"`
	Undiscounted    int64 `json:"undiscounted"`
	Discounted      int64 `json:"discounted"`
	DiscountApplied bool  `json:"discount_applied"`
}

type SubjectBreakdown struct {
	SubjectID string              `json:"subject_id"`
	Title     string              `json:"title"`
	Instances []InstanceBreakdown `json:"instances"`
	Subtotal  int64               `json:"subtotal"`
}

type PriceBreakdown struct {
	Currency      string             `json:"currency"`
	Base          int64              `json:"base"`
	OptionGroups  int64              `json:"option_groups"`
	Addons        int64              `json:"addons"`
	Subjects      []SubjectBreakdown `json:"subjects,omitempty"`
	SubjectsTotal int64              `json:"subjects_total"`
	RushFee       int64              `json:"rush_fee"`
	RushedDays    int                `json:"rushed_days,omitempty"`
	Discount      int64              `json:"discount"`
	Surcharge     int64              `json:"surcharge"`
	Total         int64              `json:"total"`
}

// ComponentSum recomputes the total from the stored components; it must always
// equal Total.
func (b PriceBreakdown) ComponentSum() int64 {
	return b.Base + b.OptionGroups + b.Addons + b.SubjectsTotal + b.RushFee - b.Discount + b.Surcharge
}

// gorm column support, same pattern as the JSONB type in models.

func (s ListingSnapshot) Value() (driver.Value, error) { return json.Marshal(s) }
func (s *ListingSnapshot) Scan(value interface{}) error { return scanJSON(value, s) }

func (s Selection) Value() (driver.Value, error) { return json.Marshal(s) }
func (s *Selection) Scan(value interface{}) error { return scanJSON(value, s) }

func (b PriceBreakdown) Value() (driver.Value, error) { return json.Marshal(b) }
func (b *PriceBreakdown) Scan(value interface{}) error { return scanJSON(value, b) }

func scanJSON(value interface{}, dest interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported column type %T", value)
	}
}
