package budget

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkoukk/tiktoken-go"

	"github.com/hupe1980/agentcore/core"
)

const defaultEncoding = "cl100k_base"

// messageOverhead approximates the per-message framing tokens added by chat APIs.
const messageOverhead = 4

// TokenCounter estimates the token length of text for a model.
type TokenCounter interface {
	CountTokens(modelID, text string) (int, error)
}

// CounterFunc adapts a function to TokenCounter.
type CounterFunc func(modelID, text string) (int, error)

// CountTokens implements TokenCounter.
func (f CounterFunc) CountTokens(modelID, text string) (int, error) { return f(modelID, text) }

// TiktokenCounter counts tokens with the BPE encoding of the model, falling
// back to cl100k_base for models tiktoken does not know. Encoders are loaded
// lazily and shared.
type TiktokenCounter struct {
	mu       sync.RWMutex
	encoders map[string]*tiktoken.Tiktoken
}

// NewTiktokenCounter creates an empty counter.
func NewTiktokenCounter() *TiktokenCounter {
	return &TiktokenCounter{encoders: make(map[string]*tiktoken.Tiktoken)}
}

// CountTokens implements TokenCounter.
func (c *TiktokenCounter) CountTokens(modelID, text string) (int, error) {
	tke, err := c.encoder(modelID)
	if err != nil {
		return 0, err
	}
	return len(tke.Encode(text, nil, nil)), nil
}

func (c *TiktokenCounter) encoder(modelID string) (*tiktoken.Tiktoken, error) {
	c.mu.RLock()
	tke, ok := c.encoders[modelID]
	c.mu.RUnlock()
	if ok {
		return tke, nil
	}

	tke, err := tiktoken.EncodingForModel(modelID)
	if err != nil {
		tke, err = tiktoken.GetEncoding(defaultEncoding)
		if err != nil {
			return nil, fmt.Errorf("failed to get default encoding '%s': %w", defaultEncoding, err)
		}
	}

	c.mu.Lock()
	c.encoders[modelID] = tke
	c.mu.Unlock()
	return tke, nil
}

type cacheKey struct {
	model string
	text  string
}

// CachedCounter memoizes another counter in a bounded LRU cache.
type CachedCounter struct {
	next  TokenCounter
	cache *lru.Cache[cacheKey, int]
}

// NewCachedCounter wraps next with an LRU of the given size.
func NewCachedCounter(next TokenCounter, size int) (*CachedCounter, error) {
	if size <= 0 {
		size = 1024
	}
	cache, err := lru.New[cacheKey, int](size)
	if err != nil {
		return nil, fmt.Errorf("create token cache: %w", err)
	}
	return &CachedCounter{next: next, cache: cache}, nil
}

// CountTokens implements TokenCounter.
func (c *CachedCounter) CountTokens(modelID, text string) (int, error) {
	key := cacheKey{model: modelID, text: text}
	if n, ok := c.cache.Get(key); ok {
		return n, nil
	}
	n, err := c.next.CountTokens(modelID, text)
	if err != nil {
		return 0, err
	}
	c.cache.Add(key, n)
	return n, nil
}

// Len returns the number of cached entries.
func (c *CachedCounter) Len() int { return c.cache.Len() }

// ApproxCounter estimates four characters per token. It never fails and needs
// no encoder files.
type ApproxCounter struct{}

// CountTokens implements TokenCounter.
func (ApproxCounter) CountTokens(_, text string) (int, error) {
	return (len(text) + 3) / 4, nil
}

// CountMessages estimates the prompt size of msgs: content, request names and
// arguments, plus a fixed per-message overhead.
func CountMessages(counter TokenCounter, modelID string, msgs []core.Message) (int, error) {
	total := 0
	for _, m := range msgs {
		n, err := counter.CountTokens(modelID, m.Content)
		if err != nil {
			return 0, err
		}
		total += n + messageOverhead
		for _, r := range m.Requests {
			n, err := counter.CountTokens(modelID, r.Name+r.Arguments)
			if err != nil {
				return 0, err
			}
			total += n
		}
	}
	return total, nil
}
