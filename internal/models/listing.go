// internal/models/listing.go
package models

import (
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/inkmarket/commission-backend/internal/pricing"
)

// Listing is a published commission offering. Its Snapshot is the authoritative
// commission structure; proposals copy it by value at creation so later edits
// here never reach an outstanding proposal.
type Listing struct {
	BaseModel
	ArtistID     uuid.UUID               `json:"artist_id" gorm:"type:uuid;not null;index"`
	Title        string                  `json:"title" gorm:"size:255;not null"`
	Description  string                  `json:"description" gorm:"type:text"`
	Tags         pq.StringArray          `json:"tags" gorm:"type:text[]"`
	SampleImages pq.StringArray          `json:"sample_images" gorm:"type:text[]"`
	Snapshot     pricing.ListingSnapshot `json:"snapshot" gorm:"type:jsonb;not null"`
	Active       bool                    `json:"active" gorm:"default:true;index"`
	SlotLimit    int                     `json:"slot_limit" gorm:"default:0"`

	// Relationships
	Artist    User       `json:"artist,omitempty" gorm:"foreignKey:ArtistID"`
	Proposals []Proposal `json:"proposals,omitempty" gorm:"foreignKey:ListingID"`
}
