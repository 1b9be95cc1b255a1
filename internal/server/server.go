package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/spigell/profile-fusion/internal/pipeline"
	"github.com/spigell/profile-fusion/internal/profile"
	"github.com/spigell/profile-fusion/internal/sources"
	"github.com/spigell/profile-fusion/internal/store"
)

const (
	maxJSONBodySize = 1 << 20  // 1MB
	maxUploadSize   = 10 << 20 // 10MB
	uploadField     = "file"
)

// Service is the part of the pipeline the HTTP surface drives.
type Service interface {
	Create(ctx context.Context, id string) (*profile.UnifiedProfile, error)
	Get(ctx context.Context, id string) (*profile.UnifiedProfile, error)
	List(ctx context.Context) ([]store.Summary, error)
	Delete(ctx context.Context, id string) error
	AddSourceAsync(ctx context.Context, id string, req sources.Request) (*store.Job, error)
	Job(ctx context.Context, id string) (*store.Job, error)
	Enhance(ctx context.Context, id string, persist bool) (*profile.EnhancedProfile, error)
}

type Deps struct {
	Service Service
	Logger  *zap.Logger
	// Token enables bearer authentication when set.
	Token string
}

type createRequest struct {
	ID string `json:"profile_id"`
}

type sourceRequest struct {
	Platform profile.Platform `json:"platform"`
	URL      string           `json:"url"`
}

type enhancementFailure struct {
	Error   errorBody               `json:"error"`
	Profile *profile.UnifiedProfile `json:"profile,omitempty"`
}

type errorBody struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Retryable bool   `json:"retryable,omitempty"`
}

func NewHandler(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(deps.Logger))
	if deps.Token != "" {
		r.Use(BearerAuth(deps.Token))
	}

	r.Post("/profiles", handleCreate(deps))
	r.Get("/profiles", handleList(deps))
	r.Get("/profiles/{id}", handleGet(deps))
	r.Delete("/profiles/{id}", handleDelete(deps))
	r.Post("/profiles/{id}/sources", handleAddSource(deps))
	r.Post("/profiles/{id}/enhance", handleEnhance(deps))
	r.Get("/jobs/{id}", handleJob(deps))

	return r
}

func handleCreate(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
		defer r.Body.Close()

		var req createRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		p, err := deps.Service.Create(r.Context(), req.ID)
		if err != nil {
			writeServiceError(w, deps.Logger, err)
			return
		}

		writeJSON(w, http.StatusCreated, p)
	}
}

func handleList(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summaries, err := deps.Service.List(r.Context())
		if err != nil {
			writeServiceError(w, deps.Logger, err)
			return
		}
		if summaries == nil {
			summaries = []store.Summary{}
		}

		writeJSON(w, http.StatusOK, map[string]any{"profiles": summaries})
	}
}

func handleGet(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := deps.Service.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, deps.Logger, err)
			return
		}

		writeJSON(w, http.StatusOK, p)
	}
}

func handleDelete(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeServiceError(w, deps.Logger, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// handleAddSource accepts a JSON body for linkedin and github, or a multipart
// upload of the document for cv.
func handleAddSource(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			req sources.Request
			err error
		)

		mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if mediaType == "multipart/form-data" {
			req, err = cvUpload(w, r)
		} else {
			req, err = sourceFromJSON(w, r)
		}
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		job, err := deps.Service.AddSourceAsync(r.Context(), chi.URLParam(r, "id"), req)
		if err != nil {
			writeServiceError(w, deps.Logger, err)
			return
		}

		w.Header().Set("Location", "/jobs/"+job.ID)
		writeJSON(w, http.StatusAccepted, job)
	}
}

func sourceFromJSON(w http.ResponseWriter, r *http.Request) (sources.Request, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	defer r.Body.Close()

	var body sourceRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("invalid request body: %w", err)
	}

	url := strings.TrimSpace(body.URL)
	if url == "" {
		return nil, errors.New("url is required")
	}

	switch body.Platform {
	case profile.PlatformLinkedIn:
		return sources.LinkedInRequest{URL: url}, nil
	case profile.PlatformGitHub:
		return sources.GitHubRequest{URL: url}, nil
	case profile.PlatformCV:
		return nil, errors.New("cv must be uploaded as multipart/form-data")
	default:
		return nil, fmt.Errorf("unknown platform %q", body.Platform)
	}
}

func cvUpload(w http.ResponseWriter, r *http.Request) (sources.Request, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	defer r.Body.Close()

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return nil, fmt.Errorf("invalid upload: %w", err)
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		return nil, fmt.Errorf("missing %q field: %w", uploadField, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("uploaded cv is empty")
	}

	return sources.CVRequest{Name: header.Filename, Data: data}, nil
}

func handleEnhance(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		persist := false
		if raw := r.URL.Query().Get("save"); raw != "" {
			v, err := strconv.ParseBool(raw)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid save flag %q", raw)
				return
			}
			persist = v
		}

		enhanced, err := deps.Service.Enhance(r.Context(), chi.URLParam(r, "id"), persist)

		var enhErr *profile.EnhancementError
		if errors.As(err, &enhErr) {
			deps.Logger.Warn("enhancement failed", zap.Error(err))
			writeJSON(w, http.StatusBadGateway, enhancementFailure{
				Error: errorBody{
					Message:   err.Error(),
					Type:      "enhancement_error",
					Retryable: profile.IsRetryable(err),
				},
				Profile: enhErr.Profile,
			})
			return
		}
		if err != nil {
			writeServiceError(w, deps.Logger, err)
			return
		}

		writeJSON(w, http.StatusOK, enhanced)
	}
}

func handleJob(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := deps.Service.Job(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, deps.Logger, err)
			return
		}

		writeJSON(w, http.StatusOK, job)
	}
}

// statusFor maps pipeline errors onto HTTP status codes and error types.
func statusFor(err error) (int, string) {
	var (
		extErr *profile.ExtractionError
		enhErr *profile.EnhancementError
	)

	switch {
	case errors.Is(err, pipeline.ErrInvalidID):
		return http.StatusBadRequest, "invalid_request_error"
	case errors.Is(err, profile.ErrNotFound), errors.Is(err, store.ErrJobNotFound):
		return http.StatusNotFound, "not_found_error"
	case errors.Is(err, pipeline.ErrAlreadyExists):
		return http.StatusConflict, "conflict_error"
	case errors.Is(err, profile.ErrConcurrentModification):
		return http.StatusConflict, "concurrent_modification_error"
	case errors.Is(err, profile.ErrUpstreamTimeout):
		return http.StatusGatewayTimeout, "timeout_error"
	case errors.As(err, &extErr):
		return http.StatusUnprocessableEntity, "extraction_error"
	case errors.As(err, &enhErr):
		return http.StatusBadGateway, "enhancement_error"
	case errors.Is(err, pipeline.ErrEnhancerDisabled):
		return http.StatusNotImplemented, "not_configured_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeServiceError(w http.ResponseWriter, log *zap.Logger, err error) {
	code, errType := statusFor(err)
	if code >= http.StatusInternalServerError {
		log.Error("request failed", zap.Error(err), zap.Int("status", code))
	}

	writeJSON(w, code, map[string]any{
		"error": errorBody{
			Message:   err.Error(),
			Type:      errType,
			Retryable: profile.IsRetryable(err),
		},
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": errorBody{
			Message: fmt.Sprintf(format, args...),
			Type:    errType,
		},
	})
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			log.Debug("request served",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
