// Package resolver decides which base reply a user message gets.
//
// Rules are evaluated in a fixed order and the first match wins:
//   - capability: "what" plus one of "do", "offer", "service"
//   - greeting:   "hello", "hi" or "hey"
//   - gratitude:  "thank" or "thanks"
//   - knowledge:  a hit in the compiled knowledge base
//   - fallback
//
// The rules overlap ("hi, what do you offer" is both a greeting and a
// capability query), so the order is part of the contract.
package resolver

import (
	"encoding/json"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/agentoven/chatwidget/pkg/models"
)

// Rule names the resolver rule that produced a reply.
type Rule string

const (
	RuleCapability Rule = "capability"
	RuleGreeting   Rule = "greeting"
	RuleGratitude  Rule = "gratitude"
	RuleKnowledge  Rule = "knowledge"
	RuleFallback   Rule = "fallback"
)

// Fixed replies.
const (
	GreetingReply  = "How can I help you today?"
	GratitudeReply = "You're welcome! Is there anything else I can help with?"
	FallbackReply  = "I don't have specific information about that yet. Is there something else I can help with?"
)

// chunkPreviewLen is the number of characters of a text chunk quoted in a reply.
const chunkPreviewLen = 100

var (
	capabilityVerbs = []string{"do", "offer", "service"}
	greetings       = []string{"hello", "hi", "hey"}
	thanks          = []string{"thank", "thanks"}
)

// Resolve returns the unformatted base reply for utterance.
func Resolve(utterance string, k models.CompiledKnowledge, business models.BusinessProfile) string {
	text, _ := ResolveRule(utterance, k, business)
	return text
}

// ResolveRule is Resolve that also reports which rule fired.
func ResolveRule(utterance string, k models.CompiledKnowledge, business models.BusinessProfile) (string, Rule) {
	input := strings.ToLower(utterance)

	if strings.Contains(input, "what") && containsAny(input, capabilityVerbs) {
		return capabilityReply(business), RuleCapability
	}
	if containsAny(input, greetings) {
		return GreetingReply, RuleGreeting
	}
	if containsAny(input, thanks) {
		return GratitudeReply, RuleGratitude
	}
	if reply, ok := lookup(input, k); ok {
		return reply, RuleKnowledge
	}
	return FallbackReply, RuleFallback
}

func capabilityReply(b models.BusinessProfile) string {
	if b.Description != "" {
		return b.Name + " " + b.Description
	}
	industry := b.Industry
	if industry == "" {
		industry = "service"
	}
	return "We're in the " + industry + " industry."
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// ── Knowledge lookup ─────────────────────────────────────────

// lookup searches the active knowledge variant for the lowercased input.
// The input must appear inside the knowledge entry, not the other way round.
func lookup(input string, k models.CompiledKnowledge) (string, bool) {
	switch v := k.(type) {
	case *models.TextKnowledge:
		for _, chunk := range v.Chunks {
			if strings.Contains(strings.ToLower(chunk), input) {
				return "Based on our information: " + truncate(chunk, chunkPreviewLen) + "...", true
			}
		}
	case *models.URLKnowledge:
		if v.Content != "" && strings.Contains(strings.ToLower(v.Content), input) {
			return "I found some information from our website that might help: \"" + v.Content + "\"", true
		}
	case *models.JSONKnowledge:
		return lookupJSON(input, v.Data)
	}
	return "", false
}

func lookupJSON(input string, data any) (string, bool) {
	root, ok := data.(map[string]any)
	if !ok {
		return "", false
	}

	for _, faq := range objects(root["faqs"]) {
		q, ok := faq["question"].(string)
		if ok && strings.Contains(strings.ToLower(q), input) {
			return toText(faq["answer"]), true
		}
	}
	for _, p := range objects(root["products"]) {
		name, ok := p["name"].(string)
		if ok && strings.Contains(strings.ToLower(name), input) {
			return name + ": " + toText(p["description"]), true
		}
	}
	return "", false
}

// objects returns the object elements of a JSON array, or nil when v is not one.
func objects(v any) []map[string]any {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(arr))
	for _, el := range arr {
		if obj, ok := el.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}

func toText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// truncate returns the first n characters of s.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
