package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sahay-ai/sahay/internal/core"
	"github.com/sahay-ai/sahay/internal/core/errs"
	"github.com/sahay-ai/sahay/internal/models"
)

// LanguageResult is the structured reply of the language-detection call.
// Field names follow the extraction schema exactly.
type LanguageResult struct {
	PrimaryLanguage       string  `json:"primary_detected_language"`
	DetectionConfidence   float64 `json:"detection_confidence"`
	SecondaryLanguages    string  `json:"secondary_detected_languages"`
	EnglishTranslation    string  `json:"translation_to_english"`
	TranslationConfidence float64 `json:"translation_confidence"`
	HasEnglishWords       bool    `json:"has_english_words"`
}

// EnglishQuery returns the text to embed against the English-indexed corpus:
// the translation when one was produced, otherwise the original text.
func (r LanguageResult) EnglishQuery(original string) string {
	if r.EnglishTranslation != "" {
		return r.EnglishTranslation
	}
	return original
}

var detectLanguagesSchema = core.ExtractionSchema{
	Name:        "detect_languages",
	Description: "Detecting language and other insights on a piece of user input text.",
	Fields: []core.SchemaField{
		{Name: "primary_detected_language", Type: "string", Description: "The primary detected language", Required: true},
		{Name: "detection_confidence", Type: "number", Description: "Confidence level of the language detection from scale of 0 to 1", Required: true},
		{Name: "secondary_detected_languages", Type: "string", Description: "Comma separated list of secondary languages detected if any"},
		{Name: "translation_to_english", Type: "string", Description: "English translation of the user input text if not in English", Required: true},
		{Name: "translation_confidence", Type: "number", Description: "Confidence level of the language translation to English from scale of 0 to 1", Required: true},
		{Name: "has_english_words", Type: "boolean", Description: "Whether the input text has English words", Required: true},
	},
}

// LanguageIdentifier detects the primary language of user input and produces
// an English translation through one structured-extraction call. Running
// detection separately from answering lets the second call answer in the
// user's language while retrieving against an English-indexed corpus.
type LanguageIdentifier struct {
	completions core.CompletionProvider
	model       string
}

// NewLanguageIdentifier builds an identifier using the given detection model.
func NewLanguageIdentifier(completions core.CompletionProvider, model string) *LanguageIdentifier {
	return &LanguageIdentifier{completions: completions, model: model}
}

// Identify runs one structured detection call. A reply that cannot be parsed
// against the schema is a hard failure; the caller does not retry.
func (l *LanguageIdentifier) Identify(ctx context.Context, text, apiKey string) (LanguageResult, error) {
	req := core.CompletionRequest{
		Model:  l.model,
		APIKey: apiKey,
		Messages: []core.ChatTurn{
			{Role: models.RoleSystem, Content: "You are a language detection bot specialized in detecting standard and niche local India languages."},
			{Role: models.RoleUser, Content: fmt.Sprintf("Detect the languages in this text: %s", text)},
		},
	}

	raw, err := l.completions.ExtractStructured(ctx, req, detectLanguagesSchema)
	if err != nil {
		return LanguageResult{}, errs.Upstream("detect languages", err)
	}

	var res LanguageResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return LanguageResult{}, errs.Upstream("detect languages", fmt.Errorf("malformed structured reply: %w", err))
	}
	if res.PrimaryLanguage == "" {
		return LanguageResult{}, errs.Upstream("detect languages", fmt.Errorf("structured reply missing primary_detected_language"))
	}
	return res, nil
}
