package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/promptlab-backend/internal/data/aggregates"
	"github.com/yungbote/promptlab-backend/internal/data/repos"
	repotest "github.com/yungbote/promptlab-backend/internal/data/repos/testutil"
	types "github.com/yungbote/promptlab-backend/internal/domain"
	domainagg "github.com/yungbote/promptlab-backend/internal/domain/aggregates"
	"github.com/yungbote/promptlab-backend/internal/http/response"
	"github.com/yungbote/promptlab-backend/internal/services"
)

func mount(h *PromptVersionHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api")
	api.GET("/prompts", h.ListPrompts)
	api.POST("/prompts", h.CreatePrompt)
	api.GET("/prompts/:id", h.GetPrompt)
	api.PUT("/prompts/:id", h.UpdatePrompt)
	api.DELETE("/prompts/:id", h.DeletePrompt)
	api.GET("/prompts/:id/versions", h.ListVersions)
	api.GET("/prompts/:id/versions/current", h.GetCurrentVersion)
	api.GET("/prompts/:id/versions/:number", h.GetVersion)
	api.POST("/prompts/:id/versions/:number/rollback", h.RollbackVersion)
	return r
}

func newSQLiteHandler(t *testing.T) *gin.Engine {
	t.Helper()
	db := repotest.DB(t)
	log := repotest.Logger(t)
	prompts := repos.NewPromptRepo(db, log)
	versions := repos.NewPromptVersionRepo(db, log)
	agg := aggregates.NewPromptVersionAggregate(aggregates.PromptVersionAggregateDeps{
		Base:     aggregates.BaseDeps{DB: db, Log: log},
		Prompts:  prompts,
		Versions: versions,
	})
	svc := services.NewPromptVersionService(log, agg, prompts, versions, nil, nil)
	return mount(NewPromptVersionHandler(log, svc, WriteRetry{Attempts: 2, Interval: time.Millisecond}))
}

func do(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeVersion(t *testing.T, rec *httptest.ResponseRecorder) VersionView {
	t.Helper()
	var out struct {
		Version VersionView `json:"version"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode version: %v body=%s", err, rec.Body.String())
	}
	return out.Version
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) response.APIError {
	t.Helper()
	var env response.ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error envelope: %v body=%s", err, rec.Body.String())
	}
	return env.Error
}

func TestPromptVersionHandlerLifecycle(t *testing.T) {
	r := newSQLiteHandler(t)

	rec := do(t, r, http.MethodPost, "/api/prompts", gin.H{"content": "Hello {{name}}, meet {{friend}} and {{name}}", "created_by": "alice"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: want=%d got=%d body=%s", http.StatusCreated, rec.Code, rec.Body.String())
	}
	v1 := decodeVersion(t, rec)
	if v1.VersionNumber != 1 || !v1.IsCurrent {
		t.Fatalf("create: unexpected version %+v", v1)
	}
	if len(v1.Variables) != 2 || v1.Variables[0] != "name" || v1.Variables[1] != "friend" {
		t.Fatalf("variables: got=%v", v1.Variables)
	}
	base := "/api/prompts/" + v1.PromptID.String()

	rec = do(t, r, http.MethodPut, base, gin.H{"content": "Hi {{name}}", "change_summary": "shorter"})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: want=%d got=%d body=%s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if v2 := decodeVersion(t, rec); v2.VersionNumber != 2 {
		t.Fatalf("update: want version 2 got=%d", v2.VersionNumber)
	}

	rec = do(t, r, http.MethodPost, base+"/versions/1/rollback", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("rollback: want=%d got=%d body=%s", http.StatusOK, rec.Code, rec.Body.String())
	}
	v3 := decodeVersion(t, rec)
	if v3.VersionNumber != 3 || v3.Content != v1.Content {
		t.Fatalf("rollback: unexpected version %+v", v3)
	}
	if v3.RolledBackFrom == nil || *v3.RolledBackFrom != 1 {
		t.Fatalf("rollback: rolled_back_from=%v", v3.RolledBackFrom)
	}
	if v3.ChangeSummary == nil || *v3.ChangeSummary != "Rolled back to version 1" {
		t.Fatalf("rollback: default summary=%v", v3.ChangeSummary)
	}

	rec = do(t, r, http.MethodGet, base+"/versions/current", nil)
	if rec.Code != http.StatusOK || decodeVersion(t, rec).VersionNumber != 3 {
		t.Fatalf("current: code=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = do(t, r, http.MethodGet, base+"/versions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: want=%d got=%d", http.StatusOK, rec.Code)
	}
	var list VersionListView
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Versions) != 3 || list.Versions[0].VersionNumber != 3 || !list.Versions[0].IsCurrent {
		t.Fatalf("list: unexpected %+v", list.Versions)
	}
	if bytes.Contains(rec.Body.Bytes(), []byte(`"content"`)) {
		t.Fatalf("list must not carry content: %s", rec.Body.String())
	}

	rec = do(t, r, http.MethodGet, base+"/versions/1", nil)
	if rec.Code != http.StatusOK || decodeVersion(t, rec).IsCurrent {
		t.Fatalf("get v1: code=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = do(t, r, http.MethodGet, base, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get prompt: want=%d got=%d", http.StatusOK, rec.Code)
	}

	rec = do(t, r, http.MethodDelete, base, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: want=%d got=%d body=%s", http.StatusNoContent, rec.Code, rec.Body.String())
	}
	rec = do(t, r, http.MethodPut, base, gin.H{"content": "after delete"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("update after delete: want=%d got=%d", http.StatusNotFound, rec.Code)
	}
	rec = do(t, r, http.MethodDelete, base, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete: want=%d got=%d", http.StatusNotFound, rec.Code)
	}
}

func TestPromptVersionHandlerClientErrors(t *testing.T) {
	r := newSQLiteHandler(t)
	rec := do(t, r, http.MethodPost, "/api/prompts", gin.H{"content": "x"})
	id := decodeVersion(t, rec).PromptID.String()
	missing := uuid.New().String()

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"blank content", http.MethodPost, "/api/prompts", gin.H{"content": "   "}, http.StatusBadRequest, "validation"},
		{"bad json", http.MethodPut, "/api/prompts/" + id, "not an object", http.StatusBadRequest, "validation"},
		{"bad prompt id", http.MethodGet, "/api/prompts/not-a-uuid", nil, http.StatusBadRequest, "validation"},
		{"zero version", http.MethodGet, "/api/prompts/" + id + "/versions/0", nil, http.StatusBadRequest, "validation"},
		{"non numeric version", http.MethodGet, "/api/prompts/" + id + "/versions/abc", nil, http.StatusBadRequest, "validation"},
		{"unknown version", http.MethodGet, "/api/prompts/" + id + "/versions/99", nil, http.StatusNotFound, "not_found"},
		{"rollback unknown version", http.MethodPost, "/api/prompts/" + id + "/versions/99/rollback", nil, http.StatusNotFound, "not_found"},
		{"unknown prompt", http.MethodGet, "/api/prompts/" + missing + "/versions/current", nil, http.StatusNotFound, "not_found"},
		{"update unknown prompt", http.MethodPut, "/api/prompts/" + missing, gin.H{"content": "y"}, http.StatusNotFound, "not_found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, r, tc.method, tc.path, tc.body)
			if rec.Code != tc.status {
				t.Fatalf("status: want=%d got=%d body=%s", tc.status, rec.Code, rec.Body.String())
			}
			if got := decodeError(t, rec).Code; got != tc.code {
				t.Fatalf("code: want=%q got=%q", tc.code, got)
			}
		})
	}
}

// conflictService fails Update with a conflict for the first failures calls.
type conflictService struct {
	services.PromptVersionService
	failures int
	calls    int
}

func (s *conflictService) Update(_ context.Context, promptID uuid.UUID, in services.UpdatePromptInput) (*types.PromptVersion, error) {
	s.calls++
	if s.calls <= s.failures {
		return nil, domainagg.NewError(domainagg.CodeConflict, "test.Update", "lost race", nil)
	}
	return &types.PromptVersion{ID: uuid.New(), PromptID: promptID, VersionNumber: 2, Content: in.Content, IsCurrent: true}, nil
}

func TestPromptVersionHandlerRetriesConflicts(t *testing.T) {
	log := repotest.Logger(t)
	path := "/api/prompts/" + uuid.New().String()

	svc := &conflictService{failures: 2}
	r := mount(NewPromptVersionHandler(log, svc, WriteRetry{Attempts: 3, Interval: time.Millisecond}))
	rec := do(t, r, http.MethodPut, path, gin.H{"content": "next"})
	if rec.Code != http.StatusOK {
		t.Fatalf("retried update: want=%d got=%d body=%s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if svc.calls != 3 {
		t.Fatalf("calls: want=3 got=%d", svc.calls)
	}

	svc = &conflictService{failures: 10}
	r = mount(NewPromptVersionHandler(log, svc, WriteRetry{Attempts: 2, Interval: time.Millisecond}))
	rec = do(t, r, http.MethodPut, path, gin.H{"content": "next"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("exhausted retries: want=%d got=%d", http.StatusConflict, rec.Code)
	}
	if svc.calls != 3 {
		t.Fatalf("calls: want=3 got=%d", svc.calls)
	}

	svc = &conflictService{failures: 1}
	r = mount(NewPromptVersionHandler(log, svc, WriteRetry{}))
	rec = do(t, r, http.MethodPut, path, gin.H{"content": "next"})
	if rec.Code != http.StatusConflict || svc.calls != 1 {
		t.Fatalf("retry disabled: code=%d calls=%d", rec.Code, svc.calls)
	}
}

func TestHealthCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/healthcheck", NewHealthHandler("1.2.3").HealthCheck)
	rec := do(t, r, http.MethodGet, "/healthcheck", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=%d got=%d", http.StatusOK, rec.Code)
	}
	var body healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" || body.Version != "1.2.3" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestPromptVersionHandlerListPrompts(t *testing.T) {
	r := newSQLiteHandler(t)

	rec := do(t, r, http.MethodGet, "/api/prompts", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list empty: want=%d got=%d body=%s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte(`"prompts":[]`)) {
		t.Fatalf("list empty: want prompts=[] body=%s", rec.Body.String())
	}

	first := decodeVersion(t, do(t, r, http.MethodPost, "/api/prompts", gin.H{"content": "one {{a}}"}))
	time.Sleep(2 * time.Millisecond)
	second := decodeVersion(t, do(t, r, http.MethodPost, "/api/prompts", gin.H{"content": "two"}))

	rec = do(t, r, http.MethodGet, "/api/prompts", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: want=%d got=%d", http.StatusOK, rec.Code)
	}
	var list PromptListView
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if list.Total != 2 || len(list.Prompts) != 2 {
		t.Fatalf("list: total=%d n=%d", list.Total, len(list.Prompts))
	}
	if list.Prompts[0].ID != second.PromptID || list.Prompts[1].ID != first.PromptID {
		t.Fatalf("list order: got=[%s %s]", list.Prompts[0].ID, list.Prompts[1].ID)
	}
	if cv := list.Prompts[1].CurrentVersion; cv.VersionNumber != 1 || len(cv.Variables) != 1 || cv.Variables[0] != "a" {
		t.Fatalf("list current version: unexpected %+v", cv)
	}
}

func TestPromptVersionHandlerRollbackChunkedEmptyBody(t *testing.T) {
	r := newSQLiteHandler(t)
	v1 := decodeVersion(t, do(t, r, http.MethodPost, "/api/prompts", gin.H{"content": "one"}))
	do(t, r, http.MethodPut, "/api/prompts/"+v1.PromptID.String(), gin.H{"content": "two"})

	// A reader of unknown length leaves ContentLength at -1, as with chunked encoding.
	body := struct{ io.Reader }{strings.NewReader("")}
	req := httptest.NewRequest(http.MethodPost, "/api/prompts/"+v1.PromptID.String()+"/versions/1/rollback", body)
	if req.ContentLength != -1 {
		t.Fatalf("content length: want=-1 got=%d", req.ContentLength)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("rollback: want=%d got=%d body=%s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if v3 := decodeVersion(t, rec); v3.VersionNumber != 3 || v3.Content != "one" {
		t.Fatalf("rollback: unexpected version %+v", v3)
	}
}

func TestPromptVersionHandlerAbandonedRequestIsRetryable(t *testing.T) {
	log := repotest.Logger(t)
	path := "/api/prompts/" + uuid.New().String()

	for _, attempts := range []uint64{0, 3} {
		svc := &conflictService{failures: 10}
		r := mount(NewPromptVersionHandler(log, svc, WriteRetry{Attempts: attempts, Interval: time.Millisecond}))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		req := httptest.NewRequest(http.MethodPut, path, strings.NewReader(`{"content":"next"}`)).WithContext(ctx)
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		if attempts == 0 {
			// Without retries the service's own error is reported.
			if rec.Code != http.StatusConflict {
				t.Fatalf("attempts=0: want=%d got=%d body=%s", http.StatusConflict, rec.Code, rec.Body.String())
			}
			continue
		}
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("attempts=%d: want=%d got=%d body=%s", attempts, http.StatusServiceUnavailable, rec.Code, rec.Body.String())
		}
		if got := decodeError(t, rec).Code; got != "retryable" {
			t.Fatalf("attempts=%d: code want=retryable got=%q", attempts, got)
		}
		if svc.calls != 0 {
			t.Fatalf("attempts=%d: canceled request reached the service %d times", attempts, svc.calls)
		}
	}
}
