// Package knowledge turns raw knowledge-base input into the queryable
// structures the resolver searches.
package knowledge

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"github.com/agentoven/chatwidget/pkg/models"
)

// Separator splits plain-text knowledge into chunks.
const Separator = "\n\n"

// URLPlaceholderPrefix prefixes the simulated content of a URL source.
const URLPlaceholderPrefix = "Simulated content from "

var (
	// ErrInvalidKnowledgeFormat is matched (via errors.Is) by every *FormatError.
	ErrInvalidKnowledgeFormat = errors.New("invalid knowledge format")

	// ErrUnsupportedType is returned for a knowledge type the compiler does not know.
	ErrUnsupportedType = errors.New("unsupported knowledge base type")
)

// FormatError reports knowledge content that could not be parsed for its
// declared type. It is recoverable: the caller proceeds without knowledge.
type FormatError struct {
	Type models.KnowledgeType
	Err  error
}

func (e *FormatError) Error() string {
	return "invalid " + string(e.Type) + " knowledge: " + e.Err.Error()
}

func (e *FormatError) Unwrap() error { return e.Err }

func (e *FormatError) Is(target error) bool { return target == ErrInvalidKnowledgeFormat }

// Compile converts src into compiled knowledge.
//
// It returns (nil, nil) when the content is empty or whitespace-only. For
// malformed JSON it returns (nil, *FormatError); for an unknown type it
// returns (nil, ErrUnsupportedType). A nil result always means "no knowledge".
func Compile(src models.KnowledgeSource) (models.CompiledKnowledge, error) {
	if strings.TrimSpace(src.Content) == "" {
		return nil, nil
	}

	switch src.Type {
	case models.KnowledgeText:
		return &models.TextKnowledge{
			Raw:    src.Content,
			Chunks: SplitChunks(src.Content),
		}, nil

	case models.KnowledgeURL:
		// No network I/O: the fetch is simulated.
		return &models.URLKnowledge{
			Source:  src.Content,
			Content: URLPlaceholderPrefix + src.Content,
		}, nil

	case models.KnowledgeJSON:
		var data any
		if err := json.Unmarshal([]byte(src.Content), &data); err != nil {
			return nil, &FormatError{Type: models.KnowledgeJSON, Err: err}
		}
		return &models.JSONKnowledge{
			Raw:  src.Content,
			Data: data,
			Keys: topLevelKeys(data),
		}, nil

	default:
		return nil, ErrUnsupportedType
	}
}

// SplitChunks splits text on blank-line boundaries, dropping chunks that are
// empty after trimming. Kept chunks are returned untrimmed, in order.
func SplitChunks(text string) []string {
	parts := strings.Split(text, Separator)
	chunks := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		chunks = append(chunks, p)
	}
	return chunks
}

func topLevelKeys(data any) []string {
	obj, ok := data.(map[string]any)
	if !ok {
		return []string{}
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Status summarizes a compile result for display.
func Status(k models.CompiledKnowledge, err error) models.KnowledgeStatus {
	if err != nil {
		return models.KnowledgeStatus{Error: UserMessage(err)}
	}
	switch v := k.(type) {
	case *models.TextKnowledge:
		return models.KnowledgeStatus{Available: true, Type: models.KnowledgeText, Chunks: len(v.Chunks)}
	case *models.URLKnowledge:
		return models.KnowledgeStatus{Available: true, Type: models.KnowledgeURL}
	case *models.JSONKnowledge:
		return models.KnowledgeStatus{Available: true, Type: models.KnowledgeJSON, Keys: v.Keys}
	default:
		return models.KnowledgeStatus{}
	}
}

// UserMessage renders a compile error as the inline message shown to the user.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidKnowledgeFormat):
		return "Invalid JSON format. Please check your syntax."
	case errors.Is(err, ErrUnsupportedType):
		return "Unsupported knowledge base type"
	default:
		return "Error processing knowledge base"
	}
}
