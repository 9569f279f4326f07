package catalogue

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"aster/internal/engine/ports"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	defaultCacheMaxSize = 256
	defaultCacheTTL     = 5 * time.Minute
)

// CacheConfig configures the tool result cache behaviour.
type CacheConfig struct {
	// MaxSize is the maximum number of entries in the LRU cache.
	MaxSize int
	// TTL is how long a cached result remains valid.
	TTL time.Duration
	// ExcludeTools lists tool names that should never be cached.
	ExcludeTools []string
}

// DefaultCacheConfig returns sensible defaults for tool result caching.
// Tools with side effects are excluded; only read-only results are safe
// to replay.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		MaxSize: defaultCacheMaxSize,
		TTL:     defaultCacheTTL,
		ExcludeTools: []string{
			"write_file",
			"ask_human",
		},
	}
}

type cacheEntry struct {
	content  string
	metadata map[string]any
	storedAt time.Time
}

// cachedTool wraps a Tool with an LRU result cache keyed by tool name plus
// normalised arguments. Results carrying errors or artifacts are never
// cached.
type cachedTool struct {
	delegate ports.Tool
	cache    *lru.Cache[string, cacheEntry]
	ttl      time.Duration
	excluded bool
}

// WithResultCache wraps tool with an LRU result cache. Tools listed in
// config.ExcludeTools, and tools marked non-read-only in their metadata,
// pass through uncached.
func WithResultCache(tool ports.Tool, config CacheConfig) ports.Tool {
	if tool == nil {
		return nil
	}
	if config.MaxSize <= 0 {
		config.MaxSize = defaultCacheMaxSize
	}
	if config.TTL <= 0 {
		config.TTL = defaultCacheTTL
	}
	cache, err := lru.New[string, cacheEntry](config.MaxSize)
	if err != nil {
		return tool
	}

	excluded := !tool.Metadata().ReadOnly
	name := tool.Metadata().Name
	for _, candidate := range config.ExcludeTools {
		if candidate == name {
			excluded = true
			break
		}
	}

	return &cachedTool{delegate: tool, cache: cache, ttl: config.TTL, excluded: excluded}
}

func (c *cachedTool) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	if c.excluded {
		return c.delegate.Execute(ctx, call)
	}

	key := cacheKey(call.Name, call.Arguments)
	if entry, ok := c.cache.Get(key); ok {
		if time.Since(entry.storedAt) < c.ttl {
			return &ports.ToolResult{
				CallID:   call.ID,
				Content:  entry.content,
				Metadata: entry.metadata,
			}, nil
		}
		c.cache.Remove(key)
	}

	result, err := c.delegate.Execute(ctx, call)
	if err != nil || result == nil || result.Error != nil || len(result.Artifacts) > 0 {
		return result, err
	}

	c.cache.Add(key, cacheEntry{
		content:  result.Content,
		metadata: result.Metadata,
		storedAt: time.Now(),
	})
	return result, nil
}

func (c *cachedTool) Definition() ports.ToolDefinition { return c.delegate.Definition() }
func (c *cachedTool) Metadata() ports.ToolMetadata     { return c.delegate.Metadata() }

// cacheKey builds a deterministic key from the tool name and arguments.
func cacheKey(name string, args map[string]any) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(name)
	for _, k := range keys {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		if encoded, err := json.Marshal(args[k]); err == nil {
			b.Write(encoded)
		}
	}
	return b.String()
}
