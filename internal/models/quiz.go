package models

import (
	"time"

	"gorm.io/gorm"
)

type QuizVisibility string

const (
	VisibilityPublic  QuizVisibility = "public"
	VisibilityPrivate QuizVisibility = "private"
)

type Quiz struct {
	ID          uint    `json:"id" gorm:"primaryKey"`
	Title       string  `json:"title" gorm:"not null;size:200;index" validate:"required,min=1,max=200"`
	Description string  `json:"description" gorm:"type:text;not null" validate:"required,max=2000"`

	// Live window and timing. Duration is in minutes.
	StartTime time.Time `json:"start_time" gorm:"not null;index"`
	EndTime   time.Time `json:"end_time" gorm:"not null;index"`
	Duration  int       `json:"duration" gorm:"not null" validate:"required,min=1,max=600"`

	// Access password digest. Plaintext is never persisted or logged.
	PasswordHash string `json:"-" gorm:"not null;size:255"`

	IsLive     bool           `json:"is_live" gorm:"default:false;index"`
	Visibility QuizVisibility `json:"visibility" gorm:"default:private" validate:"omitempty,oneof=public private"`

	// Behavioral flags
	AllowInternet bool `json:"allow_internet" gorm:"default:false"`
	AutoSubmit    bool `json:"auto_submit" gorm:"default:true"`
	Shuffle       bool `json:"shuffle" gorm:"default:false"`
	ShowResults   bool `json:"show_results" gorm:"default:false"`

	// Metadata
	CreatedBy string         `json:"created_by" gorm:"not null;index;size:255"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Questions []Question  `json:"questions" gorm:"foreignKey:QuizID"`
	Groups    []GroupQuiz `json:"-" gorm:"foreignKey:QuizID"`
	Creator   User        `json:"-" gorm:"foreignKey:CreatedBy"`

	// Computed fields (not stored)
	QuestionCount int `json:"question_count" gorm:"-"`
	TotalPoints   int `json:"total_points" gorm:"-"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

// Availability is the publicly readable live-window state of a quiz.
// It never carries the password digest or question answers.
type Availability struct {
	QuizID    uint      `json:"quiz_id"`
	Available bool      `json:"available"`
	IsLive    bool      `json:"is_live"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}
