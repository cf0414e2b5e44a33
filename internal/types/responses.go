package types

import (
	"time"

	"github.com/oneclick-dev/oneclick/internal/models"
)

type UserResponse struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	VerifiedEmail bool   `json:"verified_email"`
	UserID        uint   `json:"userId,omitempty"`
	Hashkey       string `json:"hashkey,omitempty"`
}

type SurveySummary struct {
	ID          uint      `json:"id"`
	Hashkey     string    `json:"hashkey"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func NewSurveySummary(s models.Survey) SurveySummary {
	return SurveySummary{
		ID:          s.ID,
		Hashkey:     s.Hashkey,
		Title:       s.Title,
		Description: s.Description,
		IsActive:    s.IsActive,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

func NewSurveySummaries(surveys []models.Survey) []SurveySummary {
	out := make([]SurveySummary, 0, len(surveys))

	for _, s := range surveys {
		out = append(out, NewSurveySummary(s))
	}

	return out
}

// PublicSurvey is what anonymous respondents see. Numeric ids, the creator
// and generation provenance stay server-side.
type PublicSurvey struct {
	Hashkey     string           `json:"hashkey"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	CreatedAt   time.Time        `json:"created_at"`
	Questions   []PublicQuestion `json:"questions"`
}

type PublicQuestion struct {
	QuestionNumber int            `json:"question_number"`
	QuestionText   string         `json:"question_text"`
	QuestionType   string         `json:"question_type"`
	IsRequired     bool           `json:"is_required"`
	Options        []PublicOption `json:"options"`
}

type PublicOption struct {
	OptionLetter string `json:"option_letter"`
	OptionText   string `json:"option_text"`
	OptionValue  int    `json:"option_value"`
}

func NewPublicSurvey(s models.Survey) PublicSurvey {
	out := PublicSurvey{
		Hashkey:     s.Hashkey,
		Title:       s.Title,
		Description: s.Description,
		CreatedAt:   s.CreatedAt,
		Questions:   make([]PublicQuestion, 0, len(s.Questions)),
	}

	for _, q := range s.Questions {
		question := PublicQuestion{
			QuestionNumber: q.QuestionNumber,
			QuestionText:   q.QuestionText,
			QuestionType:   q.QuestionType,
			IsRequired:     q.IsRequired,
			Options:        make([]PublicOption, 0, len(q.Options)),
		}

		for _, o := range q.Options {
			question.Options = append(question.Options, PublicOption{
				OptionLetter: o.OptionLetter,
				OptionText:   o.OptionText,
				OptionValue:  o.OptionValue,
			})
		}

		out.Questions = append(out.Questions, question)
	}

	return out
}
