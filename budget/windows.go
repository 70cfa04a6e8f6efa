package budget

import (
	"sort"
	"strings"
)

// DefaultContextWindow is used for models missing from the lookup table.
const DefaultContextWindow = 128_000

// WindowLookup resolves the input limit of a model.
type WindowLookup interface {
	ContextWindow(modelID string) int
}

// WindowFunc adapts a function to WindowLookup.
type WindowFunc func(modelID string) int

// ContextWindow implements WindowLookup.
func (f WindowFunc) ContextWindow(modelID string) int { return f(modelID) }

var knownWindows = map[string]int{
	"gpt-4o":            128_000,
	"gpt-4o-mini":       128_000,
	"gpt-4.1":           1_047_576,
	"gpt-4.1-mini":      1_047_576,
	"gpt-4-turbo":       128_000,
	"gpt-4":             8_192,
	"gpt-3.5-turbo":     16_385,
	"o3":                200_000,
	"o4-mini":           200_000,
	"claude-3-5-sonnet": 200_000,
	"claude-3-5-haiku":  200_000,
	"claude-3-7-sonnet": 200_000,
	"claude-sonnet-4":   200_000,
	"claude-opus-4":     200_000,
}

// StaticWindows is a read-only table keyed by model identifier. Lookups try an
// exact match, then the longest known prefix (so dated snapshots such as
// "gpt-4o-2024-08-06" resolve), then the default.
type StaticWindows struct {
	def      int
	table    map[string]int
	prefixes []string
}

// NewStaticWindows builds a table from the built-in entries plus overrides.
func NewStaticWindows(def int, overrides map[string]int) *StaticWindows {
	if def <= 0 {
		def = DefaultContextWindow
	}
	table := make(map[string]int, len(knownWindows)+len(overrides))
	for k, v := range knownWindows {
		table[k] = v
	}
	for k, v := range overrides {
		if v > 0 {
			table[k] = v
		}
	}
	prefixes := make([]string, 0, len(table))
	for k := range table {
		prefixes = append(prefixes, k)
	}
	sort.Slice(prefixes, func(i, j int) bool { return len(prefixes[i]) > len(prefixes[j]) })
	return &StaticWindows{def: def, table: table, prefixes: prefixes}
}

// ContextWindow implements WindowLookup.
func (w *StaticWindows) ContextWindow(modelID string) int {
	if v, ok := w.table[modelID]; ok {
		return v
	}
	for _, p := range w.prefixes {
		if strings.HasPrefix(modelID, p) {
			return w.table[p]
		}
	}
	return w.def
}
