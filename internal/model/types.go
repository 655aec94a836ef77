package model

import "time"

type Style string

const (
	StyleCasual     Style = "casual"
	StyleFormal     Style = "formal"
	StyleStreetwear Style = "streetwear"
	StyleVintage    Style = "vintage"
	StyleModern     Style = "modern"
)

func (s Style) Valid() bool {
	switch s {
	case StyleCasual, StyleFormal, StyleStreetwear, StyleVintage, StyleModern:
		return true
	}
	return false
}

type GenerationStatus string

const (
	StatusPending   GenerationStatus = "pending"
	StatusCompleted GenerationStatus = "completed"
	StatusFailed    GenerationStatus = "failed"
)

type User struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Email     string    `json:"email" gorm:"uniqueIndex;size:255;not null"`
	Password  string    `json:"-" gorm:"not null"`
	Name      string    `json:"name" gorm:"size:255;not null"`
	CreatedAt time.Time `json:"createdAt"`
}

type Generation struct {
	ID        uint             `json:"id" gorm:"primaryKey"`
	UserID    uint             `json:"userId" gorm:"index;not null"`
	User      *User            `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	Prompt    string           `json:"prompt" gorm:"not null"`
	Style     Style            `json:"style" gorm:"size:50;not null"`
	ImageURL  string           `json:"imageUrl" gorm:"not null"`
	ResultURL *string          `json:"resultUrl"`
	Status    GenerationStatus `json:"status" gorm:"size:20;not null;default:pending"`
	CreatedAt time.Time        `json:"createdAt"`
}

// GenerationUpdate carries the mutable subset of a generation row for the
// administrative update path. Nil fields are left untouched.
type GenerationUpdate struct {
	Prompt    *string
	Style     *Style
	ResultURL *string
	Status    *GenerationStatus
}
