package domain

import (
	"context"
	"encoding/json"
)

// CredentialProvider resolves the bearer token attached to a generation
// request. It is consulted once per session, before any network call.
type CredentialProvider interface {
	Token(ctx context.Context) (string, error)
}

// Brand carries the style hints passed to slide prompts.
type Brand struct {
	ID             string `json:"id,omitempty"`
	PrimaryColor   string `json:"primary_color,omitempty"`
	SecondaryColor string `json:"secondary_color,omitempty"`
	FontHeading    string `json:"font_heading,omitempty"`
	FontBody       string `json:"font_body,omitempty"`
}

// GenerationRequest is the JSON body of a streaming generation request.
// EnableResearch defaults to true when nil.
type GenerationRequest struct {
	Topic            string          `json:"topic,omitempty"`
	PresentationPlan json.RawMessage `json:"presentationPlan,omitempty"`
	Brand            *Brand          `json:"brand,omitempty"`
	EnableResearch   *bool           `json:"enableResearch,omitempty"`
	ProjectID        string          `json:"projectId,omitempty"`
	BrandID          string          `json:"brandId,omitempty"`
}

// ResearchEnabled reports whether the request asks for web research.
func (r GenerationRequest) ResearchEnabled() bool {
	return r.EnableResearch == nil || *r.EnableResearch
}

// EffectiveBrandID returns BrandID, falling back to the embedded brand's id.
func (r GenerationRequest) EffectiveBrandID() string {
	if r.BrandID != "" {
		return r.BrandID
	}
	if r.Brand != nil {
		return r.Brand.ID
	}
	return ""
}

// HasPlan reports whether a non-null presentation plan was supplied.
func (r GenerationRequest) HasPlan() bool {
	return len(r.PresentationPlan) > 0 && string(r.PresentationPlan) != "null"
}

// PlanTitle returns the "title" field of the presentation plan, if any.
func (r GenerationRequest) PlanTitle() string {
	if !r.HasPlan() {
		return ""
	}
	var p struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal(r.PresentationPlan, &p); err != nil {
		return ""
	}
	return p.Title
}

// GenerationResult is the success value of a generation session.
type GenerationResult struct {
	PresentationID string      `json:"presentationId"`
	Title          string      `json:"title"`
	SlideCount     int         `json:"slideCount"`
	Sources        []SourceRef `json:"sources,omitempty"`
	Outline        *Outline    `json:"outline,omitempty"`
	Slides         []Slide     `json:"slides,omitempty"`
}
