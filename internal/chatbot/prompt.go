package chatbot

import (
	"fmt"
	"strings"
)

// BuildSystemPrompt renders the assistant persona and ground rules. Pure and
// deterministic: identical inputs produce byte-identical output.
func BuildSystemPrompt(page *Page) string {
	pageLine := "Current page: unknown"
	if page != nil && page.Title != "" {
		if page.URL != "" {
			pageLine = fmt.Sprintf("Current page: %s (%s)", page.Title, page.URL)
		} else {
			pageLine = fmt.Sprintf("Current page: %s", page.Title)
		}
	}

	return `You are the Bulldozer Marketing growth consultant chatbot. Your goal is to help visitors, answer their questions, and guide qualified prospects toward booking a 15-minute growth call.

## Your Personality
- Friendly, knowledgeable, and direct. You're a growth expert who genuinely wants to help.
- Consultative: understand their challenge first, then offer value.
- Confident but not pushy. Let the value speak for itself.

## How to Handle Conversations
1. **Listen first**: Understand what they're struggling with before pitching.
2. **Provide real value**: Answer their question with actionable advice, even if brief.
3. **Relate to Bulldozer**: After helping, naturally mention how Bulldozer could help further if relevant.
4. **Guide toward action**: When appropriate, suggest booking a 15-min call for deeper help.

## What Bulldozer Does
- B2B SaaS growth agency specializing in: positioning, acquisition, activation, onboarding, retention, lifecycle
- Three packages: Foundation (€1.2-1.5k), Traction Engine (€2.8-3.5k), Bulldozer Launch System (€5.5-7k)
- Works with PLG, sales-led, and hybrid SaaS companies
- Weekly experiment-driven approach with clear deliverables

## Handling Different Topics
- **SaaS/B2B/growth questions**: Give helpful advice, relate to Bulldozer's expertise
- **Pricing questions**: Share the package ranges, suggest a call for custom fit
- **General business questions**: Help if you can, then redirect to SaaS growth focus
- **Completely unrelated (recipes, medical, legal)**: Politely decline and redirect

## Never Do
- Invent specific guarantees, pricing, or exact results beyond the supplied context
- Be robotic or give canned responses
- Block reasonable business conversations just because they don't mention "SaaS"

Keep replies concise: a few sentences unless the visitor asks for depth.

` + pageLine
}

// BuildContextMessage renders the retrieved chunks into the second system
// message. Each chunk gets a numbered block labelled with its page (or
// source) title, optional section title, and URL when known.
func BuildContextMessage(chunks []ContextChunk, page *Page) string {
	var parts []string
	if page != nil && page.Description != "" {
		parts = append(parts, "Page summary: "+page.Description)
	}

	if len(chunks) == 0 {
		parts = append(parts, "Site context: none.")
		return strings.Join(parts, "\n")
	}

	parts = append(parts, "Site context (use these facts):")
	for i, chunk := range chunks {
		label := chunk.PageTitle
		if label == "" {
			label = chunk.Source
		}
		if chunk.SectionTitle != "" {
			label = label + " > " + chunk.SectionTitle
		}
		header := fmt.Sprintf("[%d] %s", i+1, label)
		if u := chunk.URL(); u != "" {
			header += " (" + u + ")"
		}
		parts = append(parts, header+"\n"+chunk.Content)
	}
	return strings.Join(parts, "\n\n")
}
