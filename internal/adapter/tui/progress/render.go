package progress

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"slidecoffee/internal/domain"
)

// Markdown formats a finished presentation as a Markdown document.
func Markdown(res *domain.GenerationResult) string {
	if res == nil {
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", res.Title)
	if res.Outline != nil && res.Outline.Summary != "" {
		fmt.Fprintf(&sb, "%s\n\n", res.Outline.Summary)
	}
	for i, s := range res.Slides {
		fmt.Fprintf(&sb, "## %d. %s\n\n", i+1, s.Title)
		if c := strings.TrimSpace(s.Content); c != "" {
			sb.WriteString(c)
			sb.WriteString("\n\n")
		}
		if n := strings.TrimSpace(s.SpeakerNotes); n != "" {
			fmt.Fprintf(&sb, "> %s\n\n", n)
		}
	}
	if len(res.Sources) > 0 {
		sb.WriteString("## Sources\n\n")
		for _, src := range res.Sources {
			title := src.Title
			if title == "" {
				title = src.URL
			}
			fmt.Fprintf(&sb, "- [%s](%s)\n", title, src.URL)
		}
	}
	return sb.String()
}

// Render formats res for the terminal, wrapped at width.
func Render(res *domain.GenerationResult, width int) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("create markdown renderer: %w", err)
	}
	out, err := r.Render(Markdown(res))
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return out, nil
}
