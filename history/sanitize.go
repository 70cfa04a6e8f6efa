package history

import "github.com/hupe1980/agentcore/core"

// Sanitize removes every assistant message whose action requests are not all
// answered by a later tool-result. Such a message is dropped as a unit, and so
// are the tool-results that answered any of its requests. Tool-results that do
// not follow a retained request are dropped as well. The result never holds an
// unanswered request or an orphaned result, and Sanitize(Sanitize(m)) equals
// Sanitize(m).
func Sanitize(messages []core.Message) []core.Message {
	// Backward scan: answered holds ids of results seen after position i.
	answered := make(map[string]bool)
	keepAssistant := make([]bool, len(messages))
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		switch {
		case m.Role == core.RoleTool && m.RespondsTo != "":
			answered[m.RespondsTo] = true
		case m.HasRequests():
			keepAssistant[i] = allAnswered(m.Requests, answered)
		}
	}

	out := make([]core.Message, 0, len(messages))
	open := make(map[string]bool)
	for i, m := range messages {
		switch {
		case m.HasRequests():
			if !keepAssistant[i] {
				continue
			}
			for _, r := range m.Requests {
				open[r.ID] = true
			}
		case m.Role == core.RoleTool:
			if !open[m.RespondsTo] {
				continue
			}
			delete(open, m.RespondsTo)
		}
		out = append(out, m)
	}
	return out
}

func allAnswered(reqs []core.ActionRequest, answered map[string]bool) bool {
	for _, r := range reqs {
		if !answered[r.ID] {
			return false
		}
	}
	return true
}

// PendingRequests returns the requests of the last assistant message that have
// no tool-result after it. It returns nil when the conversation does not end
// in an unresolved action batch.
func PendingRequests(messages []core.Message) []core.ActionRequest {
	idx := -1
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == core.RoleAssistant {
			idx = i
			break
		}
	}
	if idx < 0 || !messages[idx].HasRequests() {
		return nil
	}
	answered := make(map[string]bool)
	for _, m := range messages[idx+1:] {
		if m.Role == core.RoleTool {
			answered[m.RespondsTo] = true
		}
	}
	var pending []core.ActionRequest
	for _, r := range messages[idx].Requests {
		if !answered[r.ID] {
			pending = append(pending, r)
		}
	}
	return pending
}

// Unanswered reports whether any retained assistant request lacks a later result.
func Unanswered(messages []core.Message) bool {
	answered := make(map[string]bool)
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		if m.Role == core.RoleTool {
			answered[m.RespondsTo] = true
			continue
		}
		if m.HasRequests() && !allAnswered(m.Requests, answered) {
			return true
		}
	}
	return false
}

// SplitInFlight separates a trailing unresolved action batch from the rest of
// the history. inflight starts at the last assistant message when it still has
// pending requests and holds every message after it; otherwise inflight is nil
// and settled is messages.
func SplitInFlight(messages []core.Message) (settled, inflight []core.Message) {
	if len(PendingRequests(messages)) == 0 {
		return messages, nil
	}
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == core.RoleAssistant {
			return messages[:i:i], messages[i:]
		}
	}
	return messages, nil
}
