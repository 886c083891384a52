package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vantutran2k1/elements/internal/element"
	"github.com/vantutran2k1/elements/internal/events"
	"github.com/vantutran2k1/elements/pkg/filter"
	"github.com/vantutran2k1/elements/pkg/logger"
	"github.com/vantutran2k1/elements/pkg/metrics"
	"github.com/vantutran2k1/elements/pkg/queryparser"
)

const (
	serviceName = "elements-api"
	cacheHeader = "X-Elements-Cache"
)

// Repository is the part of element.Repository the API needs.
type Repository interface {
	Compile(query string) (element.Filter, error)
	FindWhere(ctx context.Context, f element.Filter) ([]element.Element, error)
	FindByID(ctx context.Context, id int64) (element.Element, error)
	Save(ctx context.Context, e element.Element) (element.Element, error)
	DeleteByID(ctx context.Context, id int64) (int64, error)
}

type Option func(*APIHandler)

func WithCache(c ResultCache) Option {
	return func(h *APIHandler) {
		h.cache = c
	}
}

func WithPublisher(p events.Publisher) Option {
	return func(h *APIHandler) {
		h.publisher = p
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(h *APIHandler) {
		h.logger = l
	}
}

// WithReservedParam renames the single-expression query parameter.
func WithReservedParam(name string) Option {
	return func(h *APIHandler) {
		h.builder = queryparser.NewBuilder(queryparser.WithReserved(name))
	}
}

type APIHandler struct {
	repo      Repository
	builder   *queryparser.Builder
	cache     ResultCache
	publisher events.Publisher
	logger    *slog.Logger
}

func NewAPIHandler(repo Repository, opts ...Option) *APIHandler {
	h := &APIHandler{
		repo:      repo,
		builder:   queryparser.NewBuilder(),
		cache:     NopCache{},
		publisher: events.NopPublisher{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Mount registers the element routes under /v1.
func (h *APIHandler) Mount(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Get("/{id}", h.HandleGet)
		r.Post("/", h.HandleCreate)
		r.Put("/{id}", h.HandleUpdate)
		r.Delete("/{id}", h.HandleDelete)
	})
}

// HandleList answers GET /v1 with either field=value parameters or a single
// q expression. Results are cached by the compiled filter's canonical form;
// when the cache is unreachable the store is queried directly.
func (h *APIHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query, err := h.builder.BuildRaw(r.URL.RawQuery)
	if err != nil {
		h.rejectQuery(w, r, err)
		return
	}

	f, err := h.repo.Compile(query)
	if err != nil {
		h.rejectQuery(w, r, err)
		return
	}

	key, err := h.cache.Key(ctx, f.String())
	if err != nil {
		h.log(ctx).Warn("cache key lookup failed", "error", err)
		h.list(w, r, f, NopCache{}, "")
		return
	}
	h.list(w, r, f, h.cache, key)
}

func (h *APIHandler) list(w http.ResponseWriter, r *http.Request, f element.Filter, cache ResultCache, key string) {
	ctx := r.Context()

	cached, ok, err := cache.Get(ctx, key)
	if err != nil {
		h.log(ctx).Warn("cache lookup failed", "error", err)
	}
	if ok {
		metrics.CacheRequestsTotal.WithLabelValues(serviceName, "hit").Inc()
		w.Header().Set(cacheHeader, "HIT")
		writeRaw(w, http.StatusOK, cached)
		return
	}
	metrics.CacheRequestsTotal.WithLabelValues(serviceName, "miss").Inc()

	elements, err := h.repo.FindWhere(ctx, f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	body, err := json.Marshal(elements)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := cache.Set(ctx, key, body); err != nil {
		h.log(ctx).Warn("failed to set cache", "error", err)
	}

	w.Header().Set(cacheHeader, "MISS")
	writeRaw(w, http.StatusOK, body)
}

func (h *APIHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	e, err := h.repo.FindByID(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *APIHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	saved, err := h.repo.Save(r.Context(), req.element(0))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.afterWrite(r.Context(), events.New(events.KindCreated, saved))
	writeJSON(w, http.StatusCreated, saved)
}

func (h *APIHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	// Save inserts when the id is unset; ids are assigned from 1.
	if id <= 0 {
		h.writeError(w, r, element.ErrNotFound)
		return
	}
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	saved, err := h.repo.Save(r.Context(), req.element(id))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.afterWrite(r.Context(), events.New(events.KindUpdated, saved))
	writeJSON(w, http.StatusOK, saved)
}

// HandleDelete answers 204 whether or not the element existed.
func (h *APIHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	n, err := h.repo.DeleteByID(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if n > 0 {
		h.afterWrite(r.Context(), events.Deleted(id))
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid element id "+strconv.Quote(raw))
		return 0, false
	}
	return id, true
}

func (h *APIHandler) decode(w http.ResponseWriter, r *http.Request) (elementRequest, bool) {
	defer r.Body.Close()

	var req elementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return elementRequest{}, false
	}
	if err := req.validate(); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return elementRequest{}, false
	}
	return req, true
}

// afterWrite drops cached results and announces the change. Neither step
// can fail the request.
func (h *APIHandler) afterWrite(ctx context.Context, ev events.Event) {
	if err := h.cache.Invalidate(ctx); err != nil {
		h.log(ctx).Error("failed to invalidate cache", "error", err)
	}
	if err := h.publisher.Publish(ctx, ev); err != nil {
		h.log(ctx).Error("failed to publish event", "kind", ev.Kind, "element_id", ev.ElementID, "error", err)
	}
}

func (h *APIHandler) rejectQuery(w http.ResponseWriter, r *http.Request, err error) {
	metrics.QueriesRejectedTotal.WithLabelValues(serviceName, rejectReason(err)).Inc()
	h.writeError(w, r, err)
}

func (h *APIHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()

	var integrityErr *element.IntegrityError
	switch {
	case filter.IsInvalid(err):
		h.log(ctx).Debug("invalid query", "error", err)
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, element.ErrNotFound):
		writeMessage(w, http.StatusNotFound, element.ErrNotFound.Error())
	case errors.As(err, &integrityErr):
		h.log(ctx).Warn("integrity violation", "reason", integrityErr.Reason, "cause", integrityErr.Err)
		writeMessage(w, http.StatusBadRequest, integrityErr.Error())
	default:
		h.log(ctx).Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeMessage(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *APIHandler) log(ctx context.Context) *slog.Logger {
	return logger.FromContext(ctx, h.logger)
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, queryparser.ErrSyntax):
		return "syntax"
	case errors.Is(err, queryparser.ErrAmbiguous):
		return "ambiguous"
	case errors.Is(err, filter.ErrUnknownField):
		return "unknown_field"
	case errors.Is(err, filter.ErrBadValue):
		return "bad_value"
	}
	return "other"
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeRaw(w, code, body)
}

func writeRaw(w http.ResponseWriter, code int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}

func writeMessage(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"message": msg})
}
