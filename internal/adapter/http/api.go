package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/couchcryptid/blow-storage/internal/domain"
	"github.com/couchcryptid/blow-storage/internal/store"
)

// Service is the subset of service.Service the API needs.
type Service interface {
	SubmitBlow(ctx context.Context, description string, files []domain.File, tags []string) (uint64, error)
	GetBlow(id uint64) (domain.Blow, bool)
	ListBlows(opts store.ListOptions) []domain.Blow
	GetPublicBlow(id uint64) (domain.PublicBlow, bool)
	GetPublicBlows(opts store.ListOptions) []domain.PublicBlow
	UpvoteBlow(ctx context.Context, id uint64, voter string) (bool, error)
	DownvoteBlow(ctx context.Context, id uint64, voter string) (bool, error)
	SetTrustScore(ctx context.Context, id, score uint64) (bool, error)
	FlagBlow(ctx context.Context, id uint64) (bool, error)
	SetVisibility(ctx context.Context, id, weight uint64) (bool, error)
	ClassifyTags(text string) []string
	GenerateTagsLLM(ctx context.Context, text string) ([]string, error)
	TrustScoreLLM(ctx context.Context, text string, tags []string) (uint64, error)
}

// VoterHeader carries an optional opaque voter id for vote de-duplication.
const VoterHeader = "X-Voter-ID"

type submitRequest struct {
	Description string        `json:"description"`
	Files       []domain.File `json:"files"`
	Tags        []string      `json:"tags"`
}

type textRequest struct {
	Text string   `json:"text"`
	Tags []string `json:"tags"`
}

type scoreRequest struct {
	Score *uint64 `json:"score"`
}

type visibilityRequest struct {
	Visibility *uint64 `json:"visibility"`
}

type idResponse struct {
	ID uint64 `json:"id"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

type tagsResponse struct {
	Tags []string `json:"tags"`
}

type scoreResponse struct {
	Score uint64 `json:"score"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type api struct {
	svc    Service
	logger *slog.Logger
}

func (a *api) register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/blows", a.handleSubmit)
	mux.HandleFunc("GET /v1/blows", a.handleList)
	mux.HandleFunc("GET /v1/blows/{id}", a.handleGet)
	mux.HandleFunc("GET /v1/public/blows", a.handlePublicList)
	mux.HandleFunc("GET /v1/public/blows/{id}", a.handlePublicGet)
	mux.HandleFunc("POST /v1/blows/{id}/upvote", a.handleVote(Service.UpvoteBlow))
	mux.HandleFunc("POST /v1/blows/{id}/downvote", a.handleVote(Service.DownvoteBlow))
	mux.HandleFunc("PUT /v1/blows/{id}/trust", a.handleSetTrust)
	mux.HandleFunc("POST /v1/blows/{id}/flag", a.handleFlag)
	mux.HandleFunc("PUT /v1/blows/{id}/visibility", a.handleSetVisibility)
	mux.HandleFunc("POST /v1/tags/classify", a.handleClassify)
	mux.HandleFunc("POST /v1/tags/suggest", a.handleSuggest)
	mux.HandleFunc("POST /v1/trust/score", a.handleScore)
}

func (a *api) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if !a.decode(w, r, &req) {
		return
	}
	id, err := a.svc.SubmitBlow(r.Context(), req.Description, req.Files, req.Tags)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, idResponse{ID: id})
}

func (a *api) handleList(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.svc.ListBlows(opts))
}

func (a *api) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r)
	if !ok {
		return
	}
	b, found := a.svc.GetBlow(id)
	if !found {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: fmt.Sprintf("blow %d not found", id)})
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (a *api) handlePublicList(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.svc.GetPublicBlows(opts))
}

func (a *api) handlePublicGet(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r)
	if !ok {
		return
	}
	b, found := a.svc.GetPublicBlow(id)
	if !found {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: fmt.Sprintf("blow %d not found", id)})
		return
	}
	writeJSON(w, http.StatusOK, b)
}

type voteFunc func(s Service, ctx context.Context, id uint64, voter string) (bool, error)

func (a *api) handleVote(vote voteFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := a.pathID(w, r)
		if !ok {
			return
		}
		done, err := vote(a.svc, r.Context(), id, r.Header.Get(VoterHeader))
		a.writeResult(w, r, done, err)
	}
}

func (a *api) handleSetTrust(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r)
	if !ok {
		return
	}
	var req scoreRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.Score == nil {
		a.writeError(w, r, fmt.Errorf("%w: score is required", domain.ErrInvalidInput))
		return
	}
	done, err := a.svc.SetTrustScore(r.Context(), id, *req.Score)
	a.writeResult(w, r, done, err)
}

func (a *api) handleFlag(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r)
	if !ok {
		return
	}
	done, err := a.svc.FlagBlow(r.Context(), id)
	a.writeResult(w, r, done, err)
}

func (a *api) handleSetVisibility(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r)
	if !ok {
		return
	}
	var req visibilityRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.Visibility == nil {
		a.writeError(w, r, fmt.Errorf("%w: visibility is required", domain.ErrInvalidInput))
		return
	}
	done, err := a.svc.SetVisibility(r.Context(), id, *req.Visibility)
	a.writeResult(w, r, done, err)
}

func (a *api) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !a.decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, tagsResponse{Tags: a.svc.ClassifyTags(req.Text)})
}

func (a *api) handleSuggest(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !a.decode(w, r, &req) {
		return
	}
	tags, err := a.svc.GenerateTagsLLM(r.Context(), req.Text)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tagsResponse{Tags: tags})
}

func (a *api) handleScore(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !a.decode(w, r, &req) {
		return
	}
	score, err := a.svc.TrustScoreLLM(r.Context(), req.Text, req.Tags)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scoreResponse{Score: score})
}

// writeResult reports a mutation outcome. An unknown id is not an error: the
// body carries ok=false.
func (a *api) writeResult(w http.ResponseWriter, r *http.Request, done bool, err error) {
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: done})
}

func (a *api) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrDuplicateVote):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrEvaluation):
		status = http.StatusBadGateway
	}
	if status >= http.StatusInternalServerError {
		a.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (a *api) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		a.writeError(w, r, fmt.Errorf("%w: decode body: %v", domain.ErrInvalidInput, err))
		return false
	}
	return true
}

func (a *api) pathID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	raw := r.PathValue("id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		a.writeError(w, r, fmt.Errorf("%w: invalid blow id %q", domain.ErrInvalidInput, raw))
		return 0, false
	}
	return id, true
}

func listOptions(r *http.Request) (store.ListOptions, error) {
	q := r.URL.Query()
	order, err := store.ParseSortOrder(q.Get("sort"))
	if err != nil {
		return store.ListOptions{}, err
	}
	opts := store.ListOptions{
		Query: q.Get("q"),
		Tag:   q.Get("tag"),
		Sort:  order,
	}
	if v := q.Get("exclude_flagged"); v != "" {
		exclude, err := strconv.ParseBool(v)
		if err != nil {
			return store.ListOptions{}, fmt.Errorf("%w: invalid exclude_flagged %q", domain.ErrInvalidInput, v)
		}
		opts.ExcludeFlagged = exclude
	}
	return opts, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone away
}
