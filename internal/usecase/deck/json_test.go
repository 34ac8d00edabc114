package deck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slidecoffee/internal/domain"
)

func TestSanitizeJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n[1,2]\n```", `[1,2]`},
		{"prose around", "Sure! {\"a\":{\"b\":2}} Hope this helps.", `{"a":{"b":2}}`},
		{"empty", "  ", `{}`},
		{"no json", "nothing here", "nothing here"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeJSON(tt.in))
		})
	}
}

func TestDecodeValidatedSlide(t *testing.T) {
	s, err := compileSchemas()
	require.NoError(t, err)

	var reply slideReply
	require.NoError(t, decodeValidated(`{"title":"T","content":"body"}`, s.slide, &reply))
	assert.Equal(t, "body", reply.content())

	err = decodeValidated(`{"title":"T"}`, s.slide, &reply)
	assert.ErrorContains(t, err, "did not match schema")

	err = decodeValidated(`{"content": 42}`, s.slide, &reply)
	assert.Error(t, err)

	err = decodeValidated(`{"content": "x"`, s.slide, &reply)
	assert.ErrorContains(t, err, "invalid JSON")
}

func TestDecodeValidatedOutline(t *testing.T) {
	s, err := compileSchemas()
	require.NoError(t, err)

	var outline domain.Outline
	require.NoError(t, decodeValidated(`{"title":"T","slides":[{"title":"A","keyPoints":["x"]}]}`, s.outline, &outline))
	assert.Equal(t, []domain.OutlineItem{{Title: "A", KeyPoints: []string{"x"}}}, outline.Slides)

	err = decodeValidated(`{"slides":[{"keyPoints":"x"}]}`, s.outline, &outline)
	assert.Error(t, err)
}

func TestSlidePromptDefaults(t *testing.T) {
	p := slidePrompt(4, domain.OutlineItem{}, nil)
	assert.Contains(t, p, "Title: Slide 4")
	assert.Contains(t, p, "Key Points: []")
	assert.NotContains(t, p, "Brand Guidelines")
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "héll", truncateRunes("héllo", 4))
	assert.Equal(t, "hi", truncateRunes("hi", 4))
}
