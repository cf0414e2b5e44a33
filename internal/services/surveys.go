package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oneclick-dev/oneclick/db"
	"github.com/oneclick-dev/oneclick/internal/hashkey"
	"github.com/oneclick-dev/oneclick/internal/logger"
	"github.com/oneclick-dev/oneclick/internal/models"
	"github.com/oneclick-dev/oneclick/internal/observability"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrSurveyNotFound     = errors.New("survey not found")
	ErrInvalidSurveyInput = errors.New("invalid survey input")
)

type NewSurvey struct {
	Title       string
	Description string
	CreatorID   uint
	Questions   []NewQuestion
	Generation  datatypes.JSON
}

type NewQuestion struct {
	Text    string
	Options []NewOption
}

type NewOption struct {
	Letter string
	Text   string
}

// SurveyUpdate holds the editable survey fields. Nil fields are left unchanged.
type SurveyUpdate struct {
	Title       *string
	Description *string
}

type SurveyDirectory struct {
	db     *gorm.DB
	log    *logger.Logger
	newKey func() (string, error)
}

func NewSurveyDirectory(conn *gorm.DB, log *logger.Logger) *SurveyDirectory {
	return &SurveyDirectory{db: conn, log: log.With("service", "SurveyDirectory"), newKey: hashkey.Generate}
}

// CreateSurvey persists the survey, its questions and their options in one
// transaction. Question numbers and option values follow input order. A
// hashkey collision reruns the whole transaction with a new key.
func (d *SurveyDirectory) CreateSurvey(ctx context.Context, in NewSurvey) (*models.Survey, error) {
	in.Title = strings.TrimSpace(in.Title)

	if in.Title == "" || in.CreatorID == 0 {
		return nil, ErrInvalidSurveyInput
	}

	ctx, span := observability.Tracer().Start(ctx, "SurveyDirectory.CreateSurvey")
	defer span.End()

	span.SetAttributes(attribute.Int("survey.questions", len(in.Questions)))

	var created *models.Survey

	err := hashkey.WithRetryFrom(d.newKey, isKeyCollision, func(key string) error {
		survey, err := d.createTx(ctx, key, in)

		if err != nil {
			return err
		}

		created = survey
		return nil
	})

	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("create survey: %w", err)
	}

	d.log.Info("survey created", "survey_id", created.ID, "hashkey", created.Hashkey, "questions", len(created.Questions))

	return created, nil
}

func (d *SurveyDirectory) createTx(ctx context.Context, key string, in NewSurvey) (*models.Survey, error) {
	if len(in.Generation) == 0 {
		in.Generation = datatypes.JSON("{}")
	}

	survey := models.Survey{
		Hashkey:     key,
		Title:       in.Title,
		Description: in.Description,
		CreatorID:   in.CreatorID,
		IsActive:    true,
		Generation:  in.Generation,
	}

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64

		if err := tx.Model(&models.Survey{}).Where("hashkey = ?", key).Count(&count).Error; err != nil {
			return err
		}

		if count > 0 {
			return errHashkeyTaken
		}

		if err := tx.Omit("Questions").Create(&survey).Error; err != nil {
			if db.IsUniqueViolation(err) {
				return errHashkeyTaken
			}
			return err
		}

		for i, q := range in.Questions {
			question := models.Question{
				SurveyID:       survey.ID,
				QuestionNumber: i + 1,
				QuestionText:   q.Text,
				QuestionType:   models.QuestionTypeMultipleChoice,
				IsRequired:     true,
			}

			if err := tx.Omit("Options").Create(&question).Error; err != nil {
				return fmt.Errorf("question %d: %w", i+1, err)
			}

			for j, o := range q.Options {
				option := models.AnswerOption{
					QuestionID:   question.ID,
					OptionLetter: o.Letter,
					OptionText:   o.Text,
					OptionValue:  j + 1,
				}

				if err := tx.Create(&option).Error; err != nil {
					return fmt.Errorf("question %d option %d: %w", i+1, j+1, err)
				}

				question.Options = append(question.Options, option)
			}

			survey.Questions = append(survey.Questions, question)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return &survey, nil
}

type surveyRow struct {
	SurveyID          uint
	Hashkey           string
	Title             string
	Description       string
	CreatorID         uint
	IsActive          bool
	Generation        datatypes.JSON
	CreatedAt         time.Time
	UpdatedAt         time.Time
	QuestionID        *uint
	QuestionNumber    *int
	QuestionText      *string
	QuestionType      *string
	IsRequired        *bool
	QuestionCreatedAt *time.Time
	QuestionUpdatedAt *time.Time
	OptionID          *uint
	OptionLetter      *string
	OptionText        *string
	OptionValue       *int
	OptionCreatedAt   *time.Time
}

// GetByHashkey returns an active survey with questions ordered by number and
// options ordered by letter. Surveys without questions are still returned.
func (d *SurveyDirectory) GetByHashkey(ctx context.Context, key string) (*models.Survey, error) {
	var rows []surveyRow

	err := d.db.WithContext(ctx).
		Table("surveys AS s").
		Select(`s.id AS survey_id, s.hashkey, s.title, s.description, s.creator_id, s.is_active,
			s.generation, s.created_at, s.updated_at,
			q.id AS question_id, q.question_number, q.question_text, q.question_type, q.is_required,
			q.created_at AS question_created_at, q.updated_at AS question_updated_at,
			ao.id AS option_id, ao.option_letter, ao.option_text, ao.option_value,
			ao.created_at AS option_created_at`).
		Joins("LEFT JOIN questions AS q ON q.survey_id = s.id").
		Joins("LEFT JOIN answer_options AS ao ON ao.question_id = q.id").
		Where("s.hashkey = ? AND s.is_active = ?", key, true).
		Order("q.question_number ASC, ao.option_letter ASC").
		Scan(&rows).Error

	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return nil, ErrSurveyNotFound
	}

	return assembleSurvey(rows), nil
}

func assembleSurvey(rows []surveyRow) *models.Survey {
	head := rows[0]

	survey := &models.Survey{
		BaseModel:   models.BaseModel{ID: head.SurveyID, CreatedAt: head.CreatedAt, UpdatedAt: head.UpdatedAt},
		Hashkey:     head.Hashkey,
		Title:       head.Title,
		Description: head.Description,
		CreatorID:   head.CreatorID,
		IsActive:    head.IsActive,
		Generation:  head.Generation,
		Questions:   []models.Question{},
	}

	index := make(map[uint]int)

	for _, row := range rows {
		if row.QuestionID == nil {
			continue
		}

		pos, ok := index[*row.QuestionID]

		if !ok {
			question := models.Question{
				BaseModel:      models.BaseModel{ID: *row.QuestionID},
				SurveyID:       head.SurveyID,
				QuestionNumber: deref(row.QuestionNumber),
				QuestionText:   deref(row.QuestionText),
				QuestionType:   deref(row.QuestionType),
				IsRequired:     deref(row.IsRequired),
				Options:        []models.AnswerOption{},
			}

			if row.QuestionCreatedAt != nil {
				question.CreatedAt = *row.QuestionCreatedAt
			}

			if row.QuestionUpdatedAt != nil {
				question.UpdatedAt = *row.QuestionUpdatedAt
			}

			survey.Questions = append(survey.Questions, question)
			pos = len(survey.Questions) - 1
			index[*row.QuestionID] = pos
		}

		if row.OptionID == nil {
			continue
		}

		option := models.AnswerOption{
			ID:           *row.OptionID,
			QuestionID:   *row.QuestionID,
			OptionLetter: deref(row.OptionLetter),
			OptionText:   deref(row.OptionText),
			OptionValue:  deref(row.OptionValue),
		}

		if row.OptionCreatedAt != nil {
			option.CreatedAt = *row.OptionCreatedAt
		}

		survey.Questions[pos].Options = append(survey.Questions[pos].Options, option)
	}

	return survey
}

// GetByCreator lists active surveys, newest first.
func (d *SurveyDirectory) GetByCreator(ctx context.Context, creatorID uint) ([]models.Survey, error) {
	surveys := []models.Survey{}

	err := d.db.WithContext(ctx).
		Where("creator_id = ? AND is_active = ?", creatorID, true).
		Order("created_at DESC, id DESC").
		Find(&surveys).Error

	if err != nil {
		return nil, err
	}

	return surveys, nil
}

// Deactivate soft-deletes a survey. It reports false when no survey with that
// id belongs to creatorID.
func (d *SurveyDirectory) Deactivate(ctx context.Context, id, creatorID uint) (bool, error) {
	result := d.db.WithContext(ctx).
		Model(&models.Survey{}).
		Where("id = ? AND creator_id = ?", id, creatorID).
		Update("is_active", false)

	if result.Error != nil {
		return false, result.Error
	}

	if result.RowsAffected > 0 {
		d.log.Info("survey deactivated", "survey_id", id)
	}

	return result.RowsAffected > 0, nil
}

// Update edits title and description of an active survey owned by creatorID.
func (d *SurveyDirectory) Update(ctx context.Context, id, creatorID uint, in SurveyUpdate) (*models.Survey, error) {
	updates := make(map[string]interface{})

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)

		if title == "" {
			return nil, ErrInvalidSurveyInput
		}

		updates["title"] = title
	}

	if in.Description != nil {
		updates["description"] = *in.Description
	}

	if len(updates) > 0 {
		result := d.db.WithContext(ctx).
			Model(&models.Survey{}).
			Where("id = ? AND creator_id = ? AND is_active = ?", id, creatorID, true).
			Updates(updates)

		if result.Error != nil {
			return nil, result.Error
		}

		if result.RowsAffected == 0 {
			return nil, ErrSurveyNotFound
		}
	}

	var survey models.Survey

	err := d.db.WithContext(ctx).
		Where("id = ? AND creator_id = ? AND is_active = ?", id, creatorID, true).
		First(&survey).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSurveyNotFound
		}
		return nil, err
	}

	return &survey, nil
}

func deref[T any](p *T) T {
	var zero T

	if p == nil {
		return zero
	}

	return *p
}
