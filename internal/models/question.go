package models

import (
	"time"

	"gorm.io/datatypes"
)

type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	ShortAnswer    QuestionType = "short_answer"
	LongAnswer     QuestionType = "long_answer"
	TrueFalse      QuestionType = "true_false"
)

func (t QuestionType) Valid() bool {
	switch t {
	case MultipleChoice, ShortAnswer, LongAnswer, TrueFalse:
		return true
	}
	return false
}

// AutoGradable reports whether answers of this type can be scored without
// a human grader. Long answers always need manual review.
func (t QuestionType) AutoGradable() bool {
	return t != LongAnswer
}

type Question struct {
	ID     uint         `json:"id" gorm:"primaryKey"`
	QuizID uint         `json:"quiz_id" gorm:"not null;index"`
	Type   QuestionType `json:"type" gorm:"not null;index"`
	Text   string       `json:"text" gorm:"type:text;not null" validate:"required,max=2000"`
	Points int          `json:"points" gorm:"default:1" validate:"min=1,max=100"`
	Order  int          `json:"order" gorm:"default:0"`

	// Optional media references (object storage is external; URLs only)
	Media datatypes.JSON `json:"media,omitempty" gorm:"type:jsonb"` // QuestionMedia

	// MCQ options stored as JSONB for flexibility
	Options datatypes.JSON `json:"options,omitempty" gorm:"type:jsonb"` // []string

	// Correct answer: string, or list for multi-valued types. Stripped from
	// every student-facing payload until after submission.
	Answer datatypes.JSON `json:"answer,omitempty" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Question) TableName() string {
	return "questions"
}

type QuestionMedia struct {
	ImageURL *string `json:"image_url,omitempty" validate:"omitempty,url"`
	AudioURL *string `json:"audio_url,omitempty" validate:"omitempty,url"`
	VideoURL *string `json:"video_url,omitempty" validate:"omitempty,url"`
	GifURL   *string `json:"gif_url,omitempty" validate:"omitempty,url"`
}

// Sanitized returns a copy safe to send to students: the correct answer is
// removed.
func (q Question) Sanitized() Question {
	q.Answer = nil
	return q
}
