// Package prompt assembles the system instruction for the agent from tenant
// persona, business context, lead data, and the enabled tool set.
package prompt

import (
	"fmt"
	"strings"

	"github.com/leadpilot/leadpilot/pkg/tenant"
	"github.com/leadpilot/leadpilot/pkg/tool"
)

// Input carries everything the composer needs. All fields are optional
// except the fixed base and closing rules, which are always emitted.
type Input struct {
	Personality     tenant.Personality
	BusinessContext tenant.BusinessContext
	AvailableTools  []tool.Definition
	Lead            tenant.Lead
}

const baseInstructions = `You are an intelligent virtual assistant helping customers over a messaging channel.

**Important rules:**
- Always reply in the customer's language.
- Be concise: keep replies short and direct (at most 2-3 lines).
- Be proactive: offer relevant help without being asked.
- Be human: use natural language, avoid sounding like a robot.
- Do NOT use emojis unless the customer uses them first.
- Do NOT make up information you don't have.`

const closingInstructions = `# Final Instructions

**Reply formatting:**
- Use short paragraphs (1-2 lines at most)
- Use line breaks to separate ideas
- Do NOT use markdown formatting (**bold**, *italics*) in replies to customers
- Be direct and clear

**Error handling:**
- If you don't understand something, politely ask for clarification
- If you can't help with something, acknowledge it honestly
- If a tool fails, tell the customer in plain words

**Privacy:**
- NEVER share information about other customers
- Do NOT ask for sensitive information (passwords, banking details)`

// Build assembles the full system prompt. It is a pure function: no section
// header is emitted with empty content, and the fixed base and closing rules
// are always present.
func Build(in Input) string {
	sections := []string{baseInstructions}

	if role := in.Personality.SystemPrompt; role != "" {
		sections = append(sections, "# Your Role\n"+role)
	}
	if tone := in.Personality.Tone; tone != "" {
		sections = append(sections, fmt.Sprintf("# Communication Tone\nYou use a %s tone.", tone))
	}
	if s := businessSection(in.BusinessContext); s != "" {
		sections = append(sections, s)
	}
	if s := leadSection(in.Lead); s != "" {
		sections = append(sections, s)
	}
	if s := toolsSection(in.AvailableTools); s != "" {
		sections = append(sections, s)
	}

	sections = append(sections, closingInstructions)
	return strings.Join(sections, "\n\n")
}

func businessSection(bc tenant.BusinessContext) string {
	var parts []string
	if bc.CompanyName != "" {
		parts = append(parts, "**Company:** "+bc.CompanyName)
	}
	if len(bc.Services) > 0 {
		parts = append(parts, "**Services:** "+strings.Join(bc.Services, ", "))
	}
	if bc.Schedule != "" {
		parts = append(parts, "**Hours:** "+bc.Schedule)
	}
	if bc.Description != "" {
		parts = append(parts, "**Description:** "+bc.Description)
	}
	if len(parts) == 0 {
		return ""
	}
	return "# Business Information\n" + strings.Join(parts, "\n")
}

func leadSection(lead tenant.Lead) string {
	var parts []string
	if lead.Name != "" {
		parts = append(parts, "**Customer name:** "+lead.Name)
		parts = append(parts, fmt.Sprintf("Address the customer by name (%s) to personalize the conversation.", lead.Name))
	}
	if lead.Status != "" {
		parts = append(parts, "**Customer status:** "+lead.Status)
	}
	if len(lead.Tags) > 0 {
		parts = append(parts, "**Tags:** "+strings.Join(lead.Tags, ", "))
	}
	if len(parts) == 0 {
		return ""
	}
	return "# Customer Information\n" + strings.Join(parts, "\n")
}

func toolsSection(defs []tool.Definition) string {
	if len(defs) == 0 {
		return ""
	}

	lines := make([]string, 0, len(defs))
	for _, def := range defs {
		lines = append(lines, fmt.Sprintf("- **%s**: %s", def.Name, def.Description))
	}

	return `# Available Tools

You have access to the following tools to help the customer:

` + strings.Join(lines, "\n") + `

**When to use tools:**
- Use tools ONLY when the customer asks for it or when it is clearly necessary.
- Before using a tool, make sure you have all the required information.
- If information is missing, ask the customer first.
- After using a tool, explain to the customer what you did.`
}
