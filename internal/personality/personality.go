// Package personality applies a tone to bot replies and renders the
// per-personality welcome message.
package personality

import (
	"github.com/agentoven/chatwidget/pkg/models"
)

// Suffix returns the fixed text appended to replies for p. Unknown
// personalities have no suffix.
func Suffix(p models.Personality) string {
	switch p {
	case models.PersonalityFriendly:
		return " 😊 Let me know if you need anything else!"
	case models.PersonalityProfessional:
		return " Please don't hesitate to ask if you require further assistance."
	case models.PersonalityHumorous:
		return " 😄 I'd make a joke about it, but I'm still learning comedy!"
	case models.PersonalityCasual:
		return " Anything else you wanna know?"
	case models.PersonalityFormal:
		return " I remain at your service should you require additional information."
	default:
		return ""
	}
}

// Format styles a base reply for p.
func Format(base string, p models.Personality) string {
	return base + Suffix(p)
}

// Welcome renders the opening message for a business. Unlike Format it is a
// complete sentence per personality, not a suffix.
func Welcome(businessName string, p models.Personality) string {
	switch p {
	case models.PersonalityFriendly:
		return "Hi there! 👋 I'm the virtual assistant for " + businessName + ". How can I help you today?"
	case models.PersonalityProfessional:
		return "Welcome to " + businessName + ". I'm your virtual assistant and I'm here to provide you with information and assistance."
	case models.PersonalityHumorous:
		return "Hey there! 😄 I'm the chatbot for " + businessName + " - not as smart as a human, but way funnier! What can I help you with?"
	case models.PersonalityCasual:
		return "Hey! I'm the " + businessName + " bot. What's up? Need any help today?"
	case models.PersonalityFormal:
		return "Good day. I am the virtual assistant for " + businessName + ". I would be pleased to assist you with any inquiries you may have."
	default:
		return "Welcome to " + businessName + ". How can I assist you today?"
	}
}

var options = []models.PersonalityOption{
	{ID: models.PersonalityFriendly, Label: "Friendly", Description: "Warm and approachable, focuses on building rapport with users", Icon: "😊"},
	{ID: models.PersonalityProfessional, Label: "Professional", Description: "Formal and business-like, focuses on efficiency and clarity", Icon: "👔"},
	{ID: models.PersonalityHumorous, Label: "Humorous", Description: "Light-hearted and witty, adds jokes and playful responses", Icon: "😄"},
	{ID: models.PersonalityCasual, Label: "Casual", Description: "Relaxed and conversational, uses simple language", Icon: "👋"},
	{ID: models.PersonalityFormal, Label: "Formal", Description: "Polite and respectful, uses proper language and etiquette", Icon: "🎩"},
}

// Options returns the selectable personalities.
func Options() []models.PersonalityOption {
	out := make([]models.PersonalityOption, len(options))
	copy(out, options)
	return out
}
