package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"slidecoffee/internal/domain"
	"slidecoffee/internal/usecase/deck"
)

// Generator runs authorized generations.
type Generator interface {
	Budget(ctx context.Context, workspaceID string, plan domain.Plan) (int, error)
	Run(ctx context.Context, job deck.Job, out deck.Emitter) error
}

// Limits bounds request bodies.
type Limits struct {
	MaxTopicLength int
	MaxPlanBytes   int
}

// HandlerDeps holds the dependencies of the HTTP handlers.
type HandlerDeps struct {
	Generator Generator
	Store     domain.PresentationStore
	Plans     map[string]domain.Plan
	Limits    Limits
	Metrics   *Metrics
	Logger    *slog.Logger
}

// maxBodySlack is added to the plan limit to bound the whole request body.
const maxBodySlack = 16 * 1024

func generateHandler(deps HandlerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := PrincipalFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, int64(deps.Limits.MaxPlanBytes+maxBodySlack))
		var req domain.GenerationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
				return
			}
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if msg := validateRequest(req, deps.Limits); msg != "" {
			writeError(w, http.StatusBadRequest, msg)
			return
		}

		plan := domain.LookupPlan(deps.Plans, principal.Plan)
		budget, err := deps.Generator.Budget(r.Context(), principal.WorkspaceID, plan)
		if err != nil {
			var qe *deck.QuotaError
			if errors.As(err, &qe) {
				deps.Logger.Info("generation rejected by plan limit",
					"workspace_id", principal.WorkspaceID, "plan", plan.ID, "reason", qe.Reason)
				writeJSON(w, http.StatusForbidden, quotaBody{
					Error:           qe.Reason,
					Message:         qe.Message,
					Limit:           qe.Limit,
					Current:         qe.Current,
					UpgradeRequired: true,
				})
				return
			}
			deps.Logger.Error("usage check failed", "workspace_id", principal.WorkspaceID, "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to check usage")
			return
		}

		sse, err := NewSSEWriter(w)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Streaming not supported")
			return
		}

		deps.Logger.Info("stream generation request",
			"workspace_id", principal.WorkspaceID,
			"topic", truncate(req.Topic, 50),
			"project_id", req.ProjectID,
			"brand_id", req.EffectiveBrandID(),
			"research", req.ResearchEnabled(),
		)

		counter := &countingEmitter{next: sse}
		deps.Metrics.GenerationsStarted.Add(1)
		err = deps.Generator.Run(r.Context(), deck.Job{
			Request:     req,
			UserID:      principal.UserID,
			WorkspaceID: principal.WorkspaceID,
			MaxSlides:   budget,
		}, counter)
		deps.Metrics.SlidesGenerated.Add(counter.slides)
		if err != nil {
			deps.Metrics.GenerationsFailed.Add(1)
			return
		}
		deps.Metrics.GenerationsCompleted.Add(1)
	}
}

// validateRequest returns a client-facing message for an invalid request.
func validateRequest(req domain.GenerationRequest, limits Limits) string {
	topic := strings.TrimSpace(req.Topic)
	if topic == "" && !req.HasPlan() {
		return "Topic or presentation plan is required"
	}
	if utf8.RuneCountInString(topic) > limits.MaxTopicLength {
		return fmt.Sprintf("topic must not exceed %d characters", limits.MaxTopicLength)
	}
	if req.HasPlan() {
		var compact bytes.Buffer
		if err := json.Compact(&compact, req.PresentationPlan); err != nil {
			return "Invalid presentation plan"
		}
		if compact.Len() > limits.MaxPlanBytes {
			return fmt.Sprintf("Presentation plan too large (max %dKB)", limits.MaxPlanBytes/1000)
		}
	}
	return ""
}

func getPresentationHandler(deps HandlerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := PrincipalFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		id := r.PathValue("id")
		p, err := deps.Store.Get(r.Context(), principal.WorkspaceID, id)
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Presentation not found")
			return
		}
		if err != nil {
			deps.Logger.Error("load presentation failed", "id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to load presentation")
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

// countingEmitter counts slides on their way to the client.
type countingEmitter struct {
	next   deck.Emitter
	slides int64
}

func (c *countingEmitter) Emit(ev domain.StreamEvent) error {
	if ev.Type() == domain.EventSlideGenerated {
		c.slides++
	}
	return c.next.Emit(ev)
}

type errorBody struct {
	Error string `json:"error"`
}

type quotaBody struct {
	Error           string `json:"error"`
	Message         string `json:"message"`
	Limit           int    `json:"limit"`
	Current         int    `json:"current"`
	UpgradeRequired bool   `json:"upgradeRequired"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
