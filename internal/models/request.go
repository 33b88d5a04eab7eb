package models

import (
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
)

// RequestStatus is the admin triage state of a content request
type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestApproved  RequestStatus = "approved"
	RequestRejected  RequestStatus = "rejected"
	RequestDuplicate RequestStatus = "duplicate"
	RequestFulfilled RequestStatus = "fulfilled"
)

// Valid reports whether s is one of the known statuses
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestPending, RequestApproved, RequestRejected, RequestDuplicate, RequestFulfilled:
		return true
	}
	return false
}

// RequestPriority orders the admin inbox
type RequestPriority string

const (
	PriorityLow    RequestPriority = "low"
	PriorityMedium RequestPriority = "medium"
	PriorityHigh   RequestPriority = "high"
)

// Valid reports whether p is one of the known priorities
func (p RequestPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// ContentRequest is a visitor's suggestion to add a title to the catalog
type ContentRequest struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	ContentName   string          `gorm:"type:varchar(255);not null" json:"contentName"`
	YearOfRelease int             `gorm:"not null" json:"yearOfRelease"`
	RequestedBy   string          `gorm:"type:varchar(255);not null" json:"requestedBy"`
	ContentType   ContentType     `gorm:"type:varchar(20);not null;index" json:"contentType"`
	Status        RequestStatus   `gorm:"type:varchar(20);not null;default:pending;index" json:"status"`
	Priority      RequestPriority `gorm:"type:varchar(10);not null;default:medium;index" json:"priority"`
	AdminNotes    *string         `gorm:"type:text" json:"adminNotes,omitempty"`
	CreatedIP     *string         `gorm:"type:varchar(64)" json:"createdIp,omitempty"`
	DedupeKey     string          `gorm:"type:varchar(320);not null;uniqueIndex" json:"-"`
	SearchName    string          `gorm:"type:text;not null;default:''" json:"-"`
	SearchBy      string          `gorm:"type:text;not null;default:''" json:"-"`
	CreatedAt     time.Time       `gorm:"not null;index" json:"createdAt"`
	UpdatedAt     time.Time       `gorm:"not null" json:"updatedAt"`
}

// TableName specifies the table name for ContentRequest
func (ContentRequest) TableName() string {
	return "content_requests"
}

// BeforeSave keeps the dedupe key and search columns in sync with the identifying fields
func (r *ContentRequest) BeforeSave(tx *gorm.DB) error {
	if r.ContentName != "" {
		r.DedupeKey = RequestDedupeKey(r.ContentName, r.YearOfRelease, r.ContentType)
		r.SearchName = FoldSearch(r.ContentName)
		r.SearchBy = FoldSearch(r.RequestedBy)
	}
	return nil
}

// RequestDedupeKey folds (name, year, type) into the case-insensitive unique key
func RequestDedupeKey(name string, year int, contentType ContentType) string {
	folded := strings.ToLower(strings.Join(strings.Fields(name), " "))
	return folded + "|" + strconv.Itoa(year) + "|" + strings.ToLower(string(contentType))
}
