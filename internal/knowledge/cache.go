package knowledge

import (
	"context"
	"sync"

	"github.com/agentoven/chatwidget/pkg/models"
	"github.com/rs/zerolog/log"
)

// CompileFunc compiles a knowledge source; a response engine's
// ProcessKnowledgeBase satisfies it.
type CompileFunc func(ctx context.Context, src models.KnowledgeSource) (models.CompiledKnowledge, error)

// Cache memoizes the most recent compile by source value. A different
// (type, content) pair always triggers a fresh compile.
type Cache struct {
	mu       sync.Mutex
	compile  CompileFunc
	src      models.KnowledgeSource
	compiled models.CompiledKnowledge
	err      error
	valid    bool
	compiles int
}

// NewCache creates an empty cache around fn. A nil fn uses Compile.
func NewCache(fn CompileFunc) *Cache {
	if fn == nil {
		fn = func(_ context.Context, src models.KnowledgeSource) (models.CompiledKnowledge, error) {
			return Compile(src)
		}
	}
	return &Cache{compile: fn}
}

// Get returns the compiled knowledge for src, compiling only when src
// differs from the last source seen. On error the knowledge is nil.
func (c *Cache) Get(ctx context.Context, src models.KnowledgeSource) (models.CompiledKnowledge, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.valid && c.src == src {
		return c.compiled, c.err
	}

	compiled, err := c.compile(ctx, src)
	if err != nil {
		compiled = nil
		log.Warn().Err(err).Str("type", string(src.Type)).Msg("Knowledge base could not be compiled")
	} else {
		log.Debug().Str("type", string(src.Type)).Bool("available", compiled != nil).Msg("Knowledge base compiled")
	}
	c.src, c.compiled, c.err, c.valid = src, compiled, err, true
	c.compiles++
	return compiled, err
}

// Status returns the status of the last compile.
func (c *Cache) Status() models.KnowledgeStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.valid {
		return models.KnowledgeStatus{}
	}
	return Status(c.compiled, c.err)
}

// Compiles returns how many times the cache actually compiled.
func (c *Cache) Compiles() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.compiles
}
