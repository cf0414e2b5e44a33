package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var ErrInvalidDraft = errors.New("invalid survey draft")

// Draft is the survey structure the extraction service is asked to return.
type Draft struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Questions   []DraftQuestion `json:"questions" validate:"min=1,dive"`
}

type DraftQuestion struct {
	QuestionText string        `json:"question_text" validate:"required"`
	Options      []DraftOption `json:"options" validate:"min=1,unique=OptionLetter,dive"`
}

type DraftOption struct {
	OptionLetter string `json:"option_letter" validate:"required,len=1,alpha,uppercase"`
	OptionText   string `json:"option_text" validate:"required"`
}

const promptTemplate = `Analyze the text and create a survey. Return ONLY valid JSON with no markdown, explanations, or extra text.

Required JSON structure:
{
  "title": "Survey Title",
  "description": "Brief description",
  "questions": [
    {
      "question_text": "Question text",
      "options": [
        {"option_letter": "A", "option_text": "Option A"},
        {"option_letter": "B", "option_text": "Option B"},
        {"option_letter": "C", "option_text": "Option C"},
        {"option_letter": "D", "option_text": "Option D"}
      ]
    }
  ]
}

Text content to analyze:
%s

Return only the JSON object, no markdown formatting:`

// BuildPrompt embeds the uploaded text verbatim.
func BuildPrompt(content string) string {
	return fmt.Sprintf(promptTemplate, content)
}

var (
	leadingFence  = regexp.MustCompile("^```[A-Za-z0-9_+-]*[ \t]*\r?\n?")
	trailingFence = regexp.MustCompile("\r?\n?[ \t]*```$")
)

// StripFences removes one leading and one trailing Markdown code fence.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	s = leadingFence.ReplaceAllString(s, "")
	s = trailingFence.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// ParseDraft decodes completion text and checks its shape: a non-empty title
// and a questions array.
func ParseDraft(raw string) (*Draft, error) {
	var draft Draft

	if err := json.Unmarshal([]byte(StripFences(raw)), &draft); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDraft, err)
	}

	if strings.TrimSpace(draft.Title) == "" {
		return nil, fmt.Errorf("%w: missing title", ErrInvalidDraft)
	}

	if draft.Questions == nil {
		return nil, fmt.Errorf("%w: questions is not an array", ErrInvalidDraft)
	}

	return &draft, nil
}

// Normalize trims text fields and upper-cases option letters in place.
func (d *Draft) Normalize() {
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)

	for i := range d.Questions {
		q := &d.Questions[i]
		q.QuestionText = strings.TrimSpace(q.QuestionText)

		for j := range q.Options {
			o := &q.Options[j]
			o.OptionLetter = strings.ToUpper(strings.TrimSpace(o.OptionLetter))
			o.OptionText = strings.TrimSpace(o.OptionText)
		}
	}
}

// Usable reports whether a normalized draft can be stored as a survey.
func (d *Draft) Usable(v *validator.Validate) error {
	if err := v.Struct(d); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDraft, err)
	}
	return nil
}

func FallbackDraft() *Draft {
	return &Draft{
		Title:       "Generated Survey",
		Description: "Survey generated from uploaded content due to processing error",
		Questions: []DraftQuestion{
			{
				QuestionText: "How would you rate the content of the uploaded file?",
				Options: []DraftOption{
					{OptionLetter: "A", OptionText: "Excellent"},
					{OptionLetter: "B", OptionText: "Good"},
					{OptionLetter: "C", OptionText: "Fair"},
					{OptionLetter: "D", OptionText: "Poor"},
				},
			},
			{
				QuestionText: "What type of content was most interesting to you?",
				Options: []DraftOption{
					{OptionLetter: "A", OptionText: "Technical information"},
					{OptionLetter: "B", OptionText: "General concepts"},
					{OptionLetter: "C", OptionText: "Examples and cases"},
					{OptionLetter: "D", OptionText: "Overall structure"},
				},
			},
		},
	}
}

func (d *Draft) toQuestions() []NewQuestion {
	questions := make([]NewQuestion, 0, len(d.Questions))

	for _, q := range d.Questions {
		options := make([]NewOption, 0, len(q.Options))

		for _, o := range q.Options {
			options = append(options, NewOption{Letter: o.OptionLetter, Text: o.OptionText})
		}

		questions = append(questions, NewQuestion{Text: q.QuestionText, Options: options})
	}

	return questions
}
