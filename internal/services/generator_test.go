package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/oneclick-dev/oneclick/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExtractor struct {
	content string
	err     error
	prompt  string
}

func (f *fakeExtractor) Extract(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.content, f.err
}

func TestStripFencesVariants(t *testing.T) {
	want := `{"title":"T","questions":[]}`

	inputs := []string{
		want,
		"```json\n" + want + "\n```",
		"```JSON\n" + want + "\n```",
		"```\n" + want + "\n```",
		"  ```json\n" + want + "```  ",
	}

	for _, in := range inputs {
		assert.Equal(t, want, StripFences(in), in)

		draft, err := ParseDraft(in)
		require.NoError(t, err, in)
		assert.Equal(t, "T", draft.Title)
		assert.NotNil(t, draft.Questions)
		assert.Empty(t, draft.Questions)
	}
}

func TestParseDraftRejectsBadShapes(t *testing.T) {
	inputs := []string{
		"",
		"not json",
		`{"questions":[]}`,
		`{"title":"  ","questions":[]}`,
		`{"title":"T"}`,
		`{"title":"T","questions":null}`,
		`{"title":"T","questions":{}}`,
		`{"title":7,"questions":[]}`,
	}

	for _, in := range inputs {
		_, err := ParseDraft(in)
		assert.ErrorIs(t, err, ErrInvalidDraft, in)
	}
}

func TestDraftUsable(t *testing.T) {
	v := validator.New(validator.WithRequiredStructEnabled())

	assert.NoError(t, FallbackDraft().Usable(v))

	cases := map[string]*Draft{
		"no questions": {Title: "T", Questions: []DraftQuestion{}},
		"no options":   {Title: "T", Questions: []DraftQuestion{{QuestionText: "Q"}}},
		"empty text": {Title: "T", Questions: []DraftQuestion{{
			Options: []DraftOption{{OptionLetter: "A", OptionText: "a"}},
		}}},
		"long letter": {Title: "T", Questions: []DraftQuestion{{
			QuestionText: "Q",
			Options:      []DraftOption{{OptionLetter: "AB", OptionText: "a"}},
		}}},
		"digit letter": {Title: "T", Questions: []DraftQuestion{{
			QuestionText: "Q",
			Options:      []DraftOption{{OptionLetter: "1", OptionText: "a"}},
		}}},
		"duplicate letters": {Title: "T", Questions: []DraftQuestion{{
			QuestionText: "Q",
			Options:      []DraftOption{{OptionLetter: "A", OptionText: "a"}, {OptionLetter: "A", OptionText: "b"}},
		}}},
	}

	for name, draft := range cases {
		assert.ErrorIs(t, draft.Usable(v), ErrInvalidDraft, name)
	}
}

func TestNormalizeUppercasesLetters(t *testing.T) {
	draft := &Draft{Title: " T ", Questions: []DraftQuestion{{
		QuestionText: " Q ",
		Options:      []DraftOption{{OptionLetter: " a ", OptionText: " x "}},
	}}}

	draft.Normalize()

	assert.Equal(t, "T", draft.Title)
	assert.Equal(t, "Q", draft.Questions[0].QuestionText)
	assert.Equal(t, "A", draft.Questions[0].Options[0].OptionLetter)
	assert.Equal(t, "x", draft.Questions[0].Options[0].OptionText)
}

func newGenerator(t *testing.T, extractor Extractor) (*SurveyGenerator, *surveyFixture, uint) {
	f := newSurveyFixture(t)
	owner := f.user(t, "owner@example.com")
	return NewSurveyGenerator(extractor, f.surveys, "test-model", logger.Nop()), f, owner.ID
}

func generation(t *testing.T, raw []byte) Generation {
	var g Generation
	require.NoError(t, json.Unmarshal(raw, &g))
	return g
}

func assertFallback(t *testing.T, gen *SurveyGenerator, creatorID uint) {
	t.Helper()

	survey, err := gen.Generate(context.Background(), GenerateInput{SlideName: "Slides", Content: "text", CreatorID: creatorID})
	require.NoError(t, err)

	assert.Equal(t, "Slides", survey.Title)
	assert.Equal(t, "Survey generated from uploaded content due to processing error", survey.Description)
	require.Len(t, survey.Questions, 2)

	for _, q := range survey.Questions {
		require.Len(t, q.Options, 4)

		for i, o := range q.Options {
			assert.Equal(t, string(rune('A'+i)), o.OptionLetter)
		}
	}

	assert.Equal(t, SourceFallback, generation(t, survey.Generation).Source)
}

func TestGenerateFallsBackOnTimeout(t *testing.T) {
	gen, _, owner := newGenerator(t, &fakeExtractor{err: context.DeadlineExceeded})
	assertFallback(t, gen, owner)
}

func TestGenerateFallsBackOnInvalidJSON(t *testing.T) {
	gen, _, owner := newGenerator(t, &fakeExtractor{content: "Sure! Here is your survey: {"})
	assertFallback(t, gen, owner)
}

func TestGenerateFallsBackOnUnusableDraft(t *testing.T) {
	gen, _, owner := newGenerator(t, &fakeExtractor{content: `{"title":"T","questions":[]}`})
	assertFallback(t, gen, owner)
}

func TestGenerateFallsBackWithoutAPIKey(t *testing.T) {
	client := NewDeepSeekClient(DeepSeekConfig{URL: "http://127.0.0.1:0"}, logger.Nop())
	gen, _, owner := newGenerator(t, client)
	assertFallback(t, gen, owner)
}

func TestGenerateUsesExtraction(t *testing.T) {
	extractor := &fakeExtractor{content: "```json\n" + `{
		"title": "Photosynthesis",
		"description": "",
		"questions": [
			{"question_text": "Where does it happen?", "options": [
				{"option_letter": "a", "option_text": "Chloroplast"},
				{"option_letter": "b", "option_text": "Nucleus"}
			]}
		]
	}` + "\n```"}

	gen, f, owner := newGenerator(t, extractor)

	survey, err := gen.Generate(context.Background(), GenerateInput{SlideName: " Biology 101 ", Content: "Plants make sugar.", CreatorID: owner})
	require.NoError(t, err)

	assert.Contains(t, extractor.prompt, "Plants make sugar.")
	assert.Equal(t, "Biology 101", survey.Title)
	assert.Equal(t, "Generated survey", survey.Description)
	require.Len(t, survey.Questions, 1)
	assert.Equal(t, "A", survey.Questions[0].Options[0].OptionLetter)

	g := generation(t, survey.Generation)
	assert.Equal(t, SourceExtraction, g.Source)
	assert.Equal(t, "test-model", g.Model)

	stored, err := f.surveys.GetByHashkey(context.Background(), survey.Hashkey)
	require.NoError(t, err)
	assert.Equal(t, "Where does it happen?", stored.Questions[0].QuestionText)
}

func TestGenerateRejectsMissingSlideName(t *testing.T) {
	gen, _, owner := newGenerator(t, &fakeExtractor{err: errors.New("unused")})

	_, err := gen.Generate(context.Background(), GenerateInput{SlideName: "   ", CreatorID: owner})
	assert.ErrorIs(t, err, ErrInvalidSurveyInput)
}

func TestPreviewKeepsRunesWhole(t *testing.T) {
	short := "déjà vu"
	assert.Equal(t, short, preview(short))

	long := strings.Repeat("a", rawPreviewLimit-1) + "é" + strings.Repeat("b", 10)
	out := preview(long)

	assert.True(t, utf8.ValidString(out))
	assert.Equal(t, strings.Repeat("a", rawPreviewLimit-1)+"...", out)
}
