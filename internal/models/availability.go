package models

import "time"

// Quality is the video resolution of an availability option
type Quality string

const (
	Quality480p  Quality = "480p"
	Quality720p  Quality = "720p"
	Quality1080p Quality = "1080p"
	Quality4K    Quality = "4K"
)

// Valid reports whether q is one of the known qualities
func (q Quality) Valid() bool {
	switch q {
	case Quality480p, Quality720p, Quality1080p, Quality4K:
		return true
	}
	return false
}

// SourceType describes who hosts an availability option
type SourceType string

const (
	SourceOfficial    SourceType = "Official"
	SourceSelfHosted  SourceType = "SelfHosted"
	SourceTelegramBot SourceType = "TelegramBot"
)

// Valid reports whether s is one of the known source types
func (s SourceType) Valid() bool {
	switch s {
	case SourceOfficial, SourceSelfHosted, SourceTelegramBot:
		return true
	}
	return false
}

// Availability is one download or stream option of a Content
type Availability struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	ContentID   uint       `gorm:"not null;index" json:"contentId"`
	Label       string     `gorm:"type:varchar(255);not null" json:"label"`
	Quality     *Quality   `gorm:"type:varchar(10)" json:"quality"`
	Language    string     `gorm:"type:varchar(100);not null" json:"language"`
	Size        string     `gorm:"type:varchar(50)" json:"size,omitempty"`
	SizeBytes   *int64     `json:"sizeBytes,omitempty"`
	SourceType  SourceType `gorm:"type:varchar(20);not null" json:"sourceType"`
	URL         string     `gorm:"type:text;not null" json:"url"`
	Region      *string    `gorm:"type:varchar(100)" json:"region,omitempty"`
	LicenseNote *string    `gorm:"type:text" json:"licenseNote,omitempty"`
	CreatedAt   time.Time  `gorm:"not null" json:"createdAt"`
	UpdatedAt   time.Time  `gorm:"not null" json:"updatedAt"`
}

// TableName specifies the table name for Availability
func (Availability) TableName() string {
	return "availabilities"
}
