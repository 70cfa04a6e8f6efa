package history

import "github.com/hupe1980/agentcore/core"

// WindowForBudget keeps the last keepRecent messages and closes that window
// under two rules: the assistant message that issued a kept tool-result is
// pulled back in, and every system message is kept wherever it sits. Output
// preserves the original relative order.
//
// A pulled-back assistant message may have issued further requests whose
// results fall outside the window; those results are pulled back too, so no
// retained assistant message is partially answered.
func WindowForBudget(messages []core.Message, keepRecent int) []core.Message {
	keep := WindowMask(messages, keepRecent)
	out := make([]core.Message, 0, len(messages))
	for i, m := range messages {
		if keep[i] {
			out = append(out, m)
		}
	}
	return out
}

// WindowMask reports, per position, whether WindowForBudget would keep the
// message.
func WindowMask(messages []core.Message, keepRecent int) []bool {
	if keepRecent < 0 {
		keepRecent = 0
	}
	n := len(messages)
	keep := make([]bool, n)
	start := n - keepRecent
	if start < 0 {
		start = 0
	}
	for i := start; i < n; i++ {
		keep[i] = true
	}

	issuer := make(map[string]int)
	resultsOf := make(map[int][]int)
	for i, m := range messages {
		if m.HasRequests() {
			for _, r := range m.Requests {
				issuer[r.ID] = i
			}
			continue
		}
		if m.Role == core.RoleTool {
			if a, ok := issuer[m.RespondsTo]; ok {
				resultsOf[a] = append(resultsOf[a], i)
			}
		}
	}

	for i, m := range messages {
		if m.IsSystem() {
			keep[i] = true
		}
	}
	for i := start; i < n; i++ {
		m := messages[i]
		if m.Role != core.RoleTool {
			continue
		}
		a, ok := issuer[m.RespondsTo]
		if !ok || keep[a] {
			continue
		}
		keep[a] = true
		for _, r := range resultsOf[a] {
			keep[r] = true
		}
	}

	return keep
}

// SplitSystem separates system messages from the rest, preserving order in both.
func SplitSystem(messages []core.Message) (system, rest []core.Message) {
	for _, m := range messages {
		if m.IsSystem() {
			system = append(system, m)
		} else {
			rest = append(rest, m)
		}
	}
	return system, rest
}
