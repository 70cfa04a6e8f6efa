package agent

import (
	"fmt"
	"strings"

	"github.com/hupe1980/agentcore/core"
	"github.com/hupe1980/agentcore/internal/util"
)

// RenderInstruction renders the system prompt of desc. The template sees
// .agent, .name, .skills, .delegates (a preformatted list) and .context_id.
func RenderInstruction(desc core.AgentDescriptor, delegates []core.AgentDescriptor, state core.ConversationState) (string, error) {
	text, err := util.RenderTemplate(desc.Instruction, map[string]any{
		"agent":      desc.ID,
		"name":       desc.Name,
		"skills":     strings.Join(desc.Skills, ", "),
		"delegates":  DescribeDelegates(delegates),
		"context_id": state.ContextID,
	})
	if err != nil {
		return "", fmt.Errorf("render instruction for %s: %w", desc.ID, err)
	}
	return text, nil
}

// DescribeDelegates formats agents as "- id (name): skill, skill" lines.
func DescribeDelegates(delegates []core.AgentDescriptor) string {
	var b strings.Builder
	for i, d := range delegates {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "- %s", d.ID)
		if d.Name != "" && d.Name != d.ID {
			fmt.Fprintf(&b, " (%s)", d.Name)
		}
		if d.Description != "" {
			fmt.Fprintf(&b, ": %s", d.Description)
		}
		if len(d.Skills) > 0 {
			fmt.Fprintf(&b, " [skills: %s]", strings.Join(d.Skills, ", "))
		}
	}
	return b.String()
}
