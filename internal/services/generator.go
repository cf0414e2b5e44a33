package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/oneclick-dev/oneclick/internal/logger"
	"github.com/oneclick-dev/oneclick/internal/models"
	"gorm.io/datatypes"
)

const (
	SourceExtraction = "extraction"
	SourceFallback   = "fallback"

	defaultDescription = "Generated survey"
	rawPreviewLimit    = 500
)

type SurveyCreator interface {
	CreateSurvey(ctx context.Context, in NewSurvey) (*models.Survey, error)
}

type GenerateInput struct {
	SlideName string
	Content   string
	CreatorID uint
}

// Generation is stored on the survey to record where its questions came from.
type Generation struct {
	Source string `json:"source"`
	Reason string `json:"reason,omitempty"`
	Model  string `json:"model,omitempty"`
}

// SurveyGenerator turns uploaded text into a stored survey. Extraction and
// parse failures never reach the caller; the fixed fallback survey is stored
// instead.
type SurveyGenerator struct {
	extractor Extractor
	surveys   SurveyCreator
	validate  *validator.Validate
	model     string
	log       *logger.Logger
}

func NewSurveyGenerator(extractor Extractor, surveys SurveyCreator, model string, log *logger.Logger) *SurveyGenerator {
	return &SurveyGenerator{
		extractor: extractor,
		surveys:   surveys,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		model:     model,
		log:       log.With("service", "SurveyGenerator"),
	}
}

func (g *SurveyGenerator) Generate(ctx context.Context, in GenerateInput) (*models.Survey, error) {
	title := strings.TrimSpace(in.SlideName)

	if title == "" || in.CreatorID == 0 {
		return nil, ErrInvalidSurveyInput
	}

	draft, generation := g.draft(ctx, in.Content)

	description := draft.Description

	if description == "" {
		description = defaultDescription
	}

	meta, err := json.Marshal(generation)

	if err != nil {
		return nil, err
	}

	survey, err := g.surveys.CreateSurvey(ctx, NewSurvey{
		Title:       title,
		Description: description,
		CreatorID:   in.CreatorID,
		Questions:   draft.toQuestions(),
		Generation:  datatypes.JSON(meta),
	})

	if err != nil {
		return nil, fmt.Errorf("generate survey: %w", err)
	}

	return survey, nil
}

// draft always returns a usable draft, falling back when extraction fails.
func (g *SurveyGenerator) draft(ctx context.Context, content string) (*Draft, Generation) {
	raw, err := g.extractor.Extract(ctx, BuildPrompt(content))

	if err != nil {
		g.log.Warn("extraction failed, using fallback survey", "error", err)
		return FallbackDraft(), Generation{Source: SourceFallback, Reason: err.Error(), Model: g.model}
	}

	draft, err := ParseDraft(raw)

	if err == nil {
		draft.Normalize()
		err = draft.Usable(g.validate)
	}

	if err != nil {
		g.log.Warn("extraction output rejected, using fallback survey", "error", err, "raw", preview(raw))
		return FallbackDraft(), Generation{Source: SourceFallback, Reason: err.Error(), Model: g.model}
	}

	return draft, Generation{Source: SourceExtraction, Model: g.model}
}

func preview(s string) string {
	if len(s) <= rawPreviewLimit {
		return s
	}

	cut := rawPreviewLimit

	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}

	return s[:cut] + "..."
}
