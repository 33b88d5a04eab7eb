package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ContentType represents the classification of a catalog entry
type ContentType string

const (
	ContentTypeMovie     ContentType = "movie"
	ContentTypeWebSeries ContentType = "webseries"
	ContentTypeAnime     ContentType = "anime"
)

// ContentTypes lists every valid content type
var ContentTypes = []ContentType{ContentTypeMovie, ContentTypeWebSeries, ContentTypeAnime}

// Valid reports whether t is one of the known content types
func (t ContentType) Valid() bool {
	switch t {
	case ContentTypeMovie, ContentTypeWebSeries, ContentTypeAnime:
		return true
	}
	return false
}

// Content is a catalog entry (movie, web series or anime)
type Content struct {
	ID          uint                        `gorm:"primaryKey" json:"id"`
	Slug        string                      `gorm:"type:varchar(255);not null;uniqueIndex" json:"slug"`
	Type        ContentType                 `gorm:"type:varchar(20);not null;index:idx_contents_type_release" json:"type"`
	Title       string                      `gorm:"type:varchar(500);not null" json:"title"`
	Description string                      `gorm:"type:text;not null" json:"description"`
	ReleaseDate Date                        `gorm:"not null;index:idx_contents_type_release" json:"releaseDate"`
	Runtime     *int                        `json:"runtime,omitempty"`
	Genres      datatypes.JSONSlice[string] `gorm:"not null" json:"genres"`
	Rating      *float64                    `json:"rating,omitempty"`
	Director    *string                     `gorm:"type:varchar(255)" json:"director,omitempty"`
	Cast        datatypes.JSONSlice[string] `json:"cast"`
	PosterURL   string                      `gorm:"type:text;not null" json:"posterUrl"`
	BackdropURL *string                     `gorm:"type:text" json:"backdropUrl,omitempty"`
	Tags        datatypes.JSONSlice[string] `json:"tags"`
	SearchTitle string                      `gorm:"type:text;not null;default:''" json:"-"`
	SearchTags  string                      `gorm:"type:text;not null;default:''" json:"-"`
	CreatedAt   time.Time                   `gorm:"not null" json:"createdAt"`
	UpdatedAt   time.Time                   `gorm:"not null" json:"updatedAt"`

	// Associations
	Availability []Availability `gorm:"foreignKey:ContentID" json:"availability,omitempty"`
}

// TableName specifies the table name for Content
func (Content) TableName() string {
	return "contents"
}

// BeforeSave refreshes the folded search columns
func (c *Content) BeforeSave(tx *gorm.DB) error {
	c.SearchTitle = FoldSearch(c.Title)
	c.SearchTags = FoldTags(c.Tags)
	return nil
}

// ContentSummary is the projection returned by title search
type ContentSummary struct {
	ID          uint        `json:"id"`
	Title       string      `json:"title"`
	Type        ContentType `json:"type"`
	PosterURL   string      `json:"posterUrl"`
	Slug        string      `json:"slug"`
	ReleaseDate Date        `json:"releaseDate"`
}
