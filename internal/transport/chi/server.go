package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/lazysearch"
	"github.com/kailas-cloud/lazysearch/internal/engine/memory"
	"github.com/kailas-cloud/lazysearch/internal/transport/elastic"
	healthuc "github.com/kailas-cloud/lazysearch/internal/usecase/health"
)

type errorCode string

const (
	codeBadRequest    errorCode = "bad_request"
	codeUnauthorized  errorCode = "unauthorized"
	codeIndexNotFound errorCode = "index_not_found"
	codeUnsupported   errorCode = "unsupported"
	codeEngineError   errorCode = "engine_unavailable"
	codeDisabled      errorCode = "search_disabled"
	codeTimeout       errorCode = "timeout"
	codeInternalError errorCode = "internal_error"
)

const (
	filterPrefix = "f."
	queryPrefix  = "q."
)

type errorResponse struct {
	Code    errorCode `json:"code"`
	Message string    `json:"message"`
}

type hitResponse struct {
	ID        string              `json:"id"`
	Fields    map[string]any      `json:"fields"`
	Highlight map[string][]string `json:"highlight,omitempty"`
}

type searchResponse struct {
	Total  int                                `json:"total"`
	Took   int                                `json:"took"`
	Hits   []hitResponse                      `json:"hits"`
	Facets map[string][]lazysearch.FacetEntry `json:"facets,omitempty"`
}

type countResponse struct {
	Count int `json:"count"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// errorHandler tries to handle a search error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server exposes a Client over HTTP.
type Server struct {
	client          *lazysearch.Client
	health          *healthuc.Service
	logger          *zap.Logger
	defaultPageSize int
	maxPageSize     int
	errorHandlers   []errorHandler
}

// NewServer creates an HTTP search server.
func NewServer(client *lazysearch.Client, health *healthuc.Service, logger *zap.Logger) *Server {
	s := &Server{
		client:          client,
		health:          health,
		logger:          logger,
		defaultPageSize: 20,
		maxPageSize:     100,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(lazysearch.ErrNoIndex, http.StatusNotFound, codeIndexNotFound),
		sentinelHandler(lazysearch.ErrUsage, http.StatusBadRequest, codeBadRequest),
		sentinelHandler(memory.ErrUnsupported, http.StatusUnprocessableEntity, codeUnsupported),
		sentinelHandler(elastic.ErrUnsupported, http.StatusUnprocessableEntity, codeUnsupported),
		sentinelHandler(context.DeadlineExceeded, http.StatusGatewayTimeout, codeTimeout),
		engineErrorHandler,
	}
	return s
}

// WithPagination overrides the default and maximum page sizes.
func (s *Server) WithPagination(defaultSize, maxSize int) *Server {
	if defaultSize > 0 {
		s.defaultPageSize = defaultSize
	}
	if maxSize > 0 {
		s.maxPageSize = maxSize
	}
	return s
}

// Routes registers the server's handlers on r.
func (s *Server) Routes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(s.requireSearch)
		r.Get("/v1/search/{mapping}", s.Search)
		r.Get("/v1/search/{mapping}/count", s.Count)
	})
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// requireSearch answers 501 while searching is switched off.
func (s *Server) requireSearch(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.client.Disabled() {
			writeError(w, http.StatusNotImplemented, codeDisabled, "search is disabled")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Search handles GET /v1/search/{mapping}.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	cur, err := s.cursor(r)
	if err != nil {
		s.handleError(w, err)
		return
	}

	q := r.URL.Query()
	from, err := intParam(q, "from", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	size, err := intParam(q, "size", s.defaultPageSize)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	size = min(size, s.maxPageSize)

	cur = cur.ValuesDict(listParam(q, "fields")...).Slice(from, from+size)
	if keys := listParam(q, "order_by"); len(keys) > 0 {
		cur = cur.OrderBy(keys...)
	}
	if fields := listParam(q, "highlight"); len(fields) > 0 {
		cur = cur.Highlight(fields)
	}
	if fields := listParam(q, "facet"); len(fields) > 0 {
		cur = cur.FacetTerms(fields...)
	}

	set, err := cur.Result(r.Context())
	if err != nil {
		s.handleError(w, err)
		return
	}
	facets, err := cur.Facets(r.Context())
	if err != nil {
		s.handleError(w, err)
		return
	}

	resp := searchResponse{
		Total: set.Total,
		Took:  set.Took,
		Hits:  make([]hitResponse, len(set.Items)),
	}
	for i, it := range set.Items {
		resp.Hits[i] = hitResponse{ID: it.ID, Fields: it.Fields}
		if len(it.Highlights) > 0 {
			resp.Hits[i].Highlight = it.Highlights
		}
	}
	if len(facets) > 0 {
		resp.Facets = facets
	}
	writeJSON(w, http.StatusOK, resp)
}

// Count handles GET /v1/search/{mapping}/count.
func (s *Server) Count(w http.ResponseWriter, r *http.Request) {
	cur, err := s.cursor(r)
	if err != nil {
		s.handleError(w, err)
		return
	}
	n, err := cur.Count(r.Context())
	if err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, countResponse{Count: n})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// cursor translates the query and filter parameters shared by Search and
// Count.
func (s *Server) cursor(r *http.Request) (*lazysearch.Search[lazysearch.Ref], error) {
	cur := s.client.Search(chi.URLParam(r, "mapping"))
	q := r.URL.Query()

	filters := lazysearch.Q{}
	fieldQuery := lazysearch.Q{}
	for key, vals := range q {
		if len(vals) == 0 {
			continue
		}
		switch {
		case strings.HasPrefix(key, filterPrefix):
			name := strings.TrimPrefix(key, filterPrefix)
			filters[name] = paramValue(name, vals[len(vals)-1])
		case strings.HasPrefix(key, queryPrefix):
			name := strings.TrimPrefix(key, queryPrefix)
			fieldQuery[name] = paramValue(name, vals[len(vals)-1])
		}
	}

	var err error
	if len(filters) > 0 {
		if cur, err = cur.FilterBy(filters); err != nil {
			return nil, err
		}
	}
	if text := q.Get("q"); text != "" {
		if cur, err = cur.Query(text, nil); err != nil {
			return nil, err
		}
	}
	if len(fieldQuery) > 0 {
		if cur, err = cur.Query("", fieldQuery); err != nil {
			return nil, err
		}
	}
	return cur, nil
}

// paramValue splits comma-separated lists for the in operator.
func paramValue(key, raw string) any {
	if !strings.HasSuffix(key, "__in") {
		return raw
	}
	parts := strings.Split(raw, ",")
	out := make([]any, len(parts))
	for i, p := range parts {
		out[i] = strings.TrimSpace(p)
	}
	return out
}

func listParam(q map[string][]string, key string) []string {
	raw := ""
	if vals := q[key]; len(vals) > 0 {
		raw = vals[len(vals)-1]
	}
	if raw == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func intParam(q map[string][]string, key string, def int) (int, error) {
	vals := q[key]
	if len(vals) == 0 || vals[0] == "" {
		return def, nil
	}
	n, err := strconv.Atoi(vals[0])
	if err != nil || n < 0 {
		return 0, errors.New(key + " must be a non-negative integer")
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code errorCode, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeErrorMessage returns a sentinel error message for the client without exposing internals.
func safeErrorMessage(err error) string {
	sentinels := []error{
		lazysearch.ErrNoIndex,
		lazysearch.ErrInvalidQuery,
		lazysearch.ErrInvalidFilter,
		lazysearch.ErrIndexOutOfRange,
		memory.ErrUnsupported,
		elastic.ErrUnsupported,
		context.DeadlineExceeded,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code errorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// engineErrorHandler answers 503 when Elasticsearch rejects a request or
// cannot be reached.
func engineErrorHandler(w http.ResponseWriter, err error, _ string) bool {
	var ee *elastic.Error
	if errors.As(err, &ee) {
		writeError(w, http.StatusServiceUnavailable, codeEngineError, ee.Error())
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		writeError(w, http.StatusServiceUnavailable, codeEngineError, "search engine unreachable")
		return true
	}
	return false
}

func (s *Server) handleError(w http.ResponseWriter, err error) {
	s.logger.Warn("search error", zap.Error(err))
	msg := safeErrorMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
