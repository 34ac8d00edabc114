package deck

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"slidecoffee/internal/domain"
)

// System prompts for the two LLM calls.
const (
	outlineSystemPrompt = "You are a presentation expert. Return only valid JSON."
	slideSystemPrompt   = "You are a presentation designer. Return only valid JSON."
)

// maxSubjectLength bounds the topic text placed in the outline prompt.
const maxSubjectLength = 500

func outlinePrompt(subject, research string, plan json.RawMessage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create a detailed presentation outline for: %s\n\n", subject)
	if research != "" {
		fmt.Fprintf(&b, "Research Context:\n%s\n\n", research)
	}
	if len(plan) > 0 {
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, plan, "", "  "); err != nil {
			pretty.Reset()
			pretty.Write(plan)
		}
		fmt.Fprintf(&b, "User's Plan:\n%s\n\n", pretty.String())
	}
	b.WriteString(`Generate a JSON outline with:
{
  "title": "Presentation Title",
  "summary": "Brief summary",
  "slideCount": 8,
  "slides": [
    {"title": "Slide 1", "keyPoints": ["Point 1", "Point 2"]},
    ...
  ]
}`)
	return b.String()
}

func slidePrompt(n int, item domain.OutlineItem, brand *domain.Brand) string {
	title := item.Title
	if title == "" {
		title = fmt.Sprintf("Slide %d", n)
	}
	points := item.KeyPoints
	if points == nil {
		points = []string{}
	}
	keyPoints, _ := json.Marshal(points)

	var b strings.Builder
	fmt.Fprintf(&b, "Generate detailed content for slide %d:\n\n", n)
	fmt.Fprintf(&b, "Title: %s\nKey Points: %s\n\n", title, keyPoints)
	if brand != nil {
		fmt.Fprintf(&b, "Brand Guidelines:\n- Primary Color: %s\n- Secondary Color: %s\n- Font Heading: %s\n- Font Body: %s\n\n",
			brand.PrimaryColor, brand.SecondaryColor, brand.FontHeading, brand.FontBody)
	}
	b.WriteString(`Return JSON:
{
  "title": "Slide Title",
  "content": "Detailed content with bullet points",
  "layout": "content|two-column|image-text|title",
  "designNotes": "Visual suggestions",
  "speakerNotes": "What to say"
}`)
	return b.String()
}

// formatResearch renders search results as prompt context.
func formatResearch(query string, sources []domain.Source) string {
	if len(sources) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "## Web Search Results for: %q\n\n", query)
	fmt.Fprintf(&b, "Found %d results\n\n", len(sources))
	for i, s := range sources {
		fmt.Fprintf(&b, "### Result %d: %s\n", i+1, s.Title)
		fmt.Fprintf(&b, "**URL:** %s\n", s.URL)
		fmt.Fprintf(&b, "**Summary:** %s\n\n", s.Snippet)
	}
	return b.String()
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
