package models

import (
	"time"

	"gorm.io/datatypes"
)

type Survey struct {
	BaseModel

	Hashkey     string `gorm:"size:8;uniqueIndex;not null" json:"hashkey"`
	Title       string `gorm:"not null" json:"title"`
	Description string `json:"description"`
	CreatorID   uint   `gorm:"not null;index" json:"creator_id"`
	IsActive    bool   `gorm:"not null;default:true;index" json:"is_active"`

	// Generation records whether the questions came from extraction or the fallback.
	Generation datatypes.JSON `gorm:"not null" json:"-"`

	// Relationships
	Questions []Question `gorm:"foreignKey:SurveyID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"questions,omitempty"`
}

type Question struct {
	BaseModel

	SurveyID       uint   `gorm:"not null;uniqueIndex:idx_questions_survey_number" json:"survey_id"`
	QuestionNumber int    `gorm:"not null;uniqueIndex:idx_questions_survey_number" json:"question_number"`
	QuestionText   string `gorm:"not null" json:"question_text"`
	QuestionType   string `gorm:"not null;default:multiple_choice" json:"question_type"`
	IsRequired     bool   `gorm:"not null;default:true" json:"is_required"`

	// Relationships
	Options []AnswerOption `gorm:"foreignKey:QuestionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"options"`
}

type AnswerOption struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	QuestionID   uint      `gorm:"not null;uniqueIndex:idx_answer_options_question_letter" json:"question_id"`
	OptionLetter string    `gorm:"size:1;not null;uniqueIndex:idx_answer_options_question_letter" json:"option_letter"`
	OptionText   string    `gorm:"not null" json:"option_text"`
	OptionValue  int       `gorm:"not null" json:"option_value"`
	CreatedAt    time.Time `json:"created_at"`
}

const QuestionTypeMultipleChoice = "multiple_choice"
