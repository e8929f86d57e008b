// Package buttons matches user messages against configured response buttons
// and validates buttons when they are created.
package buttons

import (
	"errors"
	"strings"

	"github.com/agentoven/chatwidget/pkg/models"
	"github.com/google/uuid"
)

var (
	ErrEmptyText    = errors.New("button text is required")
	ErrNoKeywords   = errors.New("at least one trigger keyword is required")
	ErrInvalidStyle = errors.New("button style must be primary, secondary or text")
	ErrDuplicateID  = errors.New("duplicate button id")
)

// NewID returns a fresh button id.
func NewID() string {
	return "button-" + uuid.New().String()
}

// Match returns the buttons with at least one trigger keyword contained in
// the utterance, compared case-insensitively. The result keeps the input
// order. Buttons without keywords never match. Blank keywords are rejected
// by Validate, so they only reach Match from hand-built configs.
func Match(utterance string, buttons []models.ResponseButton) []models.ResponseButton {
	input := strings.ToLower(utterance)
	var matched []models.ResponseButton
	for _, b := range buttons {
		if matches(input, b.TriggerKeywords) {
			matched = append(matched, b)
		}
	}
	return matched
}

func matches(lowerInput string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lowerInput, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// NewButton builds a validated button with a fresh id. Keywords are trimmed
// and blank ones dropped; an empty style defaults to primary.
func NewButton(text string, keywords []string, action string, style models.ButtonStyle) (models.ResponseButton, error) {
	b := models.ResponseButton{
		ID:              NewID(),
		Text:            text,
		TriggerKeywords: normalizeKeywords(keywords),
		Action:          strings.TrimSpace(action),
		Style:           style,
	}
	if b.Style == "" {
		b.Style = models.ButtonPrimary
	}
	if err := Validate(b); err != nil {
		return models.ResponseButton{}, err
	}
	return b, nil
}

// Validate checks the creation-time rules for a button.
func Validate(b models.ResponseButton) error {
	if strings.TrimSpace(b.Text) == "" {
		return ErrEmptyText
	}
	if len(normalizeKeywords(b.TriggerKeywords)) == 0 {
		return ErrNoKeywords
	}
	switch b.Style {
	case "", models.ButtonPrimary, models.ButtonSecondary, models.ButtonText:
	default:
		return ErrInvalidStyle
	}
	return nil
}

func normalizeKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	for _, kw := range in {
		if kw = strings.TrimSpace(kw); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

// Add returns a new list with b appended.
func Add(list []models.ResponseButton, b models.ResponseButton) []models.ResponseButton {
	out := models.CloneButtons(list)
	return append(out, b)
}

// Remove returns a new list without the button identified by id.
func Remove(list []models.ResponseButton, id string) []models.ResponseButton {
	out := make([]models.ResponseButton, 0, len(list))
	for _, b := range models.CloneButtons(list) {
		if b.ID != id {
			out = append(out, b)
		}
	}
	return out
}

// Find returns the button with the given id.
func Find(list []models.ResponseButton, id string) (models.ResponseButton, bool) {
	for _, b := range list {
		if b.ID == id {
			return b, true
		}
	}
	return models.ResponseButton{}, false
}
