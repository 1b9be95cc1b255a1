package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/profile-fusion/internal/ai"
	"github.com/spigell/profile-fusion/internal/pipeline"
	"github.com/spigell/profile-fusion/internal/profile"
	"github.com/spigell/profile-fusion/internal/sources"
	"github.com/spigell/profile-fusion/internal/store"
)

const testToken = "test-token-12345"

type stubSources struct {
	mu       sync.Mutex
	requests []sources.Request
	err      error
}

func (s *stubSources) Extract(_ context.Context, req sources.Request) (profile.SourceProfile, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	if s.err != nil {
		return nil, &profile.ExtractionError{Platform: req.Platform(), Err: s.err}
	}

	switch req.(type) {
	case sources.CVRequest:
		cv := &profile.CVProfile{}
		cv.Name = "Jane Doe"
		cv.Skills = []string{"Go"}
		return cv, nil
	default:
		gh := &profile.GitHubProfile{}
		gh.Skills = []string{"Go", "Rust"}
		gh.Extras = profile.GitHubExtras{UserID: "1", Username: "jane"}
		return gh, nil
	}
}

func (s *stubSources) last() sources.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return nil
	}
	return s.requests[len(s.requests)-1]
}

type stubEnhancer struct {
	err error
}

func (s *stubEnhancer) Enhance(_ context.Context, p *profile.UnifiedProfile) (*profile.EnhancedProfile, error) {
	if s.err != nil {
		return nil, &profile.EnhancementError{Profile: p.Clone(), Err: s.err}
	}
	return &profile.EnhancedProfile{
		UnifiedProfile: *p.Clone(),
		Model:          "stub",
		EnhancedAt:     time.Now(),
	}, nil
}

func setup(t *testing.T, token string, enh *stubEnhancer) (http.Handler, *pipeline.Service, *stubSources) {
	t.Helper()

	st := store.NewMemory()
	t.Cleanup(func() { st.Close() })

	src := &stubSources{}
	var enhancer ai.Enhancer
	if enh != nil {
		enhancer = enh
	}
	svc := pipeline.New(st, store.NewLocalLocker(time.Second), src, enhancer, nil, pipeline.Options{})
	t.Cleanup(svc.Wait)

	return NewHandler(Deps{Service: svc, Token: token}), svc, src
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type errorResponse struct {
	Error   errorBody               `json:"error"`
	Profile *profile.UnifiedProfile `json:"profile"`
}

func TestProfileCRUD(t *testing.T) {
	h, _, _ := setup(t, "", nil)

	rec := do(t, h, http.MethodPost, "/profiles", `{"profile_id":"jane"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "jane", decode[profile.UnifiedProfile](t, rec).ID)

	rec = do(t, h, http.MethodPost, "/profiles", `{"profile_id":"jane"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodPost, "/profiles", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotEmpty(t, decode[profile.UnifiedProfile](t, rec).ID)

	rec = do(t, h, http.MethodGet, "/profiles/jane", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/profiles", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[map[string][]store.Summary](t, rec)
	assert.Len(t, list["profiles"], 2)

	rec = do(t, h, http.MethodDelete, "/profiles/jane", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, "/profiles/jane", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found_error", decode[errorResponse](t, rec).Error.Type)

	rec = do(t, h, http.MethodDelete, "/profiles/jane", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/profiles", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddSourceRunsJob(t *testing.T) {
	h, svc, src := setup(t, "", nil)

	rec := do(t, h, http.MethodPost, "/profiles/jane/sources", `{"platform":"github","url":"https://github.com/jane"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	job := decode[store.Job](t, rec)
	assert.Equal(t, "jane", job.ProfileID)
	assert.Equal(t, profile.PlatformGitHub, job.Platform)
	assert.Equal(t, "/jobs/"+job.ID, rec.Header().Get("Location"))

	svc.Wait()
	assert.Equal(t, sources.GitHubRequest{URL: "https://github.com/jane"}, src.last())

	rec = do(t, h, http.MethodGet, "/jobs/"+job.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, store.JobCompleted, decode[store.Job](t, rec).Status)

	rec = do(t, h, http.MethodGet, "/profiles/jane", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Go", "Rust"}, decode[profile.UnifiedProfile](t, rec).Skills)

	rec = do(t, h, http.MethodGet, "/jobs/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddSourceFailedJob(t *testing.T) {
	h, svc, src := setup(t, "", nil)
	src.err = errors.New("profile is private")

	rec := do(t, h, http.MethodPost, "/profiles/jane/sources", `{"platform":"linkedin","url":"https://www.linkedin.com/in/jane"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	job := decode[store.Job](t, rec)

	svc.Wait()

	rec = do(t, h, http.MethodGet, "/jobs/"+job.ID, "")
	got := decode[store.Job](t, rec)
	assert.Equal(t, store.JobFailed, got.Status)
	assert.Contains(t, got.Error, "profile is private")
	assert.False(t, got.Retryable)

	rec = do(t, h, http.MethodGet, "/profiles/jane", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddSourceBadRequests(t *testing.T) {
	h, _, _ := setup(t, "", nil)

	cases := map[string]string{
		"unknown platform": `{"platform":"myspace","url":"https://myspace.com/jane"}`,
		"missing url":      `{"platform":"github"}`,
		"cv as json":       `{"platform":"cv","url":"/tmp/cv.pdf"}`,
		"broken json":      `{"platform":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/profiles/jane/sources", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "invalid_request_error", decode[errorResponse](t, rec).Error.Type)
		})
	}
}

func TestAddSourceCVUpload(t *testing.T) {
	h, svc, src := setup(t, "", nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "jane.md")
	require.NoError(t, err)
	_, err = part.Write([]byte("# Jane Doe\n\nGo developer"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/profiles/jane/sources", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	svc.Wait()

	assert.Equal(t, sources.CVRequest{Name: "jane.md", Data: []byte("# Jane Doe\n\nGo developer")}, src.last())
	assert.Equal(t, profile.PlatformCV, decode[store.Job](t, rec).Platform)
}

func TestEnhance(t *testing.T) {
	h, _, _ := setup(t, "", &stubEnhancer{})

	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/profiles", `{"profile_id":"jane"}`).Code)

	rec := do(t, h, http.MethodPost, "/profiles/jane/enhance", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "stub", decode[profile.EnhancedProfile](t, rec).Model)

	rec = do(t, h, http.MethodPost, "/profiles/jane/enhance?save=true", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/profiles/jane/enhance?save=maybe", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/profiles/nobody/enhance", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEnhanceFailureReturnsUnifiedProfile(t *testing.T) {
	h, _, _ := setup(t, "", &stubEnhancer{err: errors.New("model returned garbage")})

	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/profiles", `{"profile_id":"jane"}`).Code)

	rec := do(t, h, http.MethodPost, "/profiles/jane/enhance", "")
	require.Equal(t, http.StatusBadGateway, rec.Code)

	body := decode[errorResponse](t, rec)
	assert.Equal(t, "enhancement_error", body.Error.Type)
	assert.Contains(t, body.Error.Message, "model returned garbage")
	require.NotNil(t, body.Profile)
	assert.Equal(t, "jane", body.Profile.ID)
}

func TestEnhanceDisabled(t *testing.T) {
	h, _, _ := setup(t, "", nil)
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/profiles", `{"profile_id":"jane"}`).Code)

	rec := do(t, h, http.MethodPost, "/profiles/jane/enhance", "")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestBearerAuth(t *testing.T) {
	h, _, _ := setup(t, testToken, nil)

	rec := do(t, h, http.MethodGet, "/profiles", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/profiles", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/profiles", nil)
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{pipeline.ErrInvalidID, http.StatusBadRequest},
		{fmt.Errorf("load: %w", profile.ErrNotFound), http.StatusNotFound},
		{store.ErrJobNotFound, http.StatusNotFound},
		{pipeline.ErrAlreadyExists, http.StatusConflict},
		{profile.ErrConcurrentModification, http.StatusConflict},
		{&profile.ExtractionError{Platform: profile.PlatformGitHub, Err: errors.New("404")}, http.StatusUnprocessableEntity},
		{&profile.ExtractionError{Platform: profile.PlatformGitHub, Err: profile.Timeout(context.DeadlineExceeded)}, http.StatusGatewayTimeout},
		{&profile.EnhancementError{Err: errors.New("bad json")}, http.StatusBadGateway},
		{pipeline.ErrEnhancerDisabled, http.StatusNotImplemented},
		{errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		code, _ := statusFor(tt.err)
		assert.Equal(t, tt.code, code, tt.err.Error())
	}
}
