package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/artswap/artswap/internal/core"
	"github.com/artswap/artswap/internal/core/engine"
	apperrors "github.com/artswap/artswap/internal/errors"
)

// maxMatchBody caps POST /v1/match payloads.
const maxMatchBody = 8 << 20

// Runner executes a match run. *engine.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, cards []core.Card, gameImagesDir, replacementImagesDir string) (*core.RunReport, error)
}

// MatchRequest is the body accepted by POST /v1/match. Names is shorthand
// for cards that only carry a name.
type MatchRequest struct {
	GameImagesDir        string      `json:"game_images_dir"`
	ReplacementImagesDir string      `json:"replacement_images_dir"`
	Cards                []core.Card `json:"cards,omitempty"`
	Names                []string    `json:"names,omitempty"`
}

// SearchResponse is returned by GET /v1/cards.
type SearchResponse struct {
	Name  string      `json:"name"`
	Count int         `json:"count"`
	Cards []core.Card `json:"cards"`
}

// MatchHandler serves match runs and index lookups.
type MatchHandler struct {
	Runner Runner
	Index  core.CardIndex
	// MaxCards bounds a single request; zero means unlimited.
	MaxCards int
	// Roots lists the directories requests may point into. Empty allows any.
	Roots []string
}

// Match runs the pipeline for the posted batch and returns the report.
func (h *MatchHandler) Match(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Runner == nil {
		apperrors.RespondWithError(w, r, apperrors.NewInternalError("match pipeline is not configured"))
		return
	}

	var req MatchRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMatchBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		apperrors.RespondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, "request body must be a match request"))
		return
	}

	cards := req.Cards
	for _, name := range req.Names {
		if name = strings.TrimSpace(name); name != "" {
			cards = append(cards, core.Card{Name: name})
		}
	}
	if h.MaxCards > 0 && len(cards) > h.MaxCards {
		apperrors.RespondWithError(w, r, apperrors.NewValidationError(fmt.Sprintf("at most %d cards per request", h.MaxCards)))
		return
	}
	for _, dir := range []string{req.GameImagesDir, req.ReplacementImagesDir} {
		if !h.allowed(dir) {
			apperrors.RespondWithError(w, r, apperrors.NewValidationError(fmt.Sprintf("directory %q is outside the configured image roots", dir)))
			return
		}
	}

	report, err := h.Runner.Run(r.Context(), cards, req.GameImagesDir, req.ReplacementImagesDir)
	var dirErr *engine.DirectoryError
	switch {
	case err == nil:
	case errors.As(err, &dirErr):
		apperrors.RespondWithError(w, r, apperrors.WrapValidationError(r.Context(), err, dirErr.Error()))
		return
	default:
		apperrors.RespondWithError(w, r, apperrors.WrapInternal(r.Context(), err, "match run failed"))
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// SearchCards returns index candidates for the name query parameter.
func (h *MatchHandler) SearchCards(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Index == nil {
		apperrors.RespondWithError(w, r, apperrors.NewInternalError("card index is not configured"))
		return
	}

	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		apperrors.RespondWithError(w, r, apperrors.NewInvalidInputError("name query parameter is required"))
		return
	}

	cards, err := h.Index.SearchCards(r.Context(), name)
	if err != nil {
		apperrors.RespondWithError(w, r, apperrors.WrapIndexError(r.Context(), err))
		return
	}
	if cards == nil {
		cards = []core.Card{}
	}

	writeJSON(w, http.StatusOK, SearchResponse{Name: name, Count: len(cards), Cards: cards})
}

// allowed reports whether dir lies inside one of the roots. Empty dirs pass
// through so the pipeline reports them.
func (h *MatchHandler) allowed(dir string) bool {
	if len(h.Roots) == 0 || strings.TrimSpace(dir) == "" {
		return true
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	for _, root := range h.Roots {
		rootAbs, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(rootAbs, abs)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
