package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/mati2251/res/artifacts"
	"github.com/mati2251/res/images"
	"github.com/mati2251/res/jobs"
	"github.com/mati2251/res/pipeline"
	"github.com/mati2251/res/runnerx"
	"github.com/mati2251/res/store"
)

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	dir := t.TempDir()
	fs := store.New(filepath.Join(dir, "images"), filepath.Join(dir, "jobs"))
	assert.NilError(t, fs.EnsureDirs())
	imgs := images.New(fs)
	repo := jobs.New(fs, imgs)
	runner := runnerx.New(fs, repo)
	a := artifacts.New(fs, repo)
	p := pipeline.New(repo, runner, a)
	return New(":0", fs, imgs, repo, runner, a, p), fs
}

func TestPutAndGetImageRaw(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPut, "/images/alpine/raw", bytes.NewReader([]byte("hello")))
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	assert.Equal(t, rec.Code, http.StatusCreated)
	assert.Equal(t, rec.Header().Get("Location"), "/images/alpine/properties")

	req = httptest.NewRequest(http.MethodGet, "/images/alpine/raw", nil)
	rec = httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	assert.Equal(t, rec.Code, http.StatusOK)
	assert.Equal(t, rec.Body.String(), "hello")
}

func TestPutImageWithoutEtagOnExistingReturns428(t *testing.T) {
	s, _ := newTestServer(t)

	put := func(body string, etag string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPut, "/images/alpine/raw", bytes.NewReader([]byte(body)))
		if etag != "" {
			req.Header.Set("ETag", etag)
		}
		rec := httptest.NewRecorder()
		s.httpServer.Handler.ServeHTTP(rec, req)
		return rec
	}

	rec := put("hello", "")
	assert.Equal(t, rec.Code, http.StatusCreated)
	etag := rec.Header().Get("ETag")
	assert.Assert(t, etag != "")

	rec = put("hi", "")
	assert.Equal(t, rec.Code, http.StatusPreconditionRequired)
	assert.Equal(t, rec.Header().Get("ETag"), etag)

	rec = put("hi", "wrong")
	assert.Equal(t, rec.Code, http.StatusPreconditionFailed)

	rec = put("hi", etag)
	assert.Equal(t, rec.Code, http.StatusCreated)
}

func TestGetMissingImageReturns404(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/images/missing/properties", nil)
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	assert.Equal(t, rec.Code, http.StatusNotFound)

	var body detail
	assert.NilError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Assert(t, body.Detail != "")
}

func TestJobLifecycleOverHTTP(t *testing.T) {
	s, _ := newTestServer(t)

	_ = putImage(t, s, "alpine", "sif-bytes")

	id := createJob(t, s)

	req := httptest.NewRequest(http.MethodPut, "/jobs/"+itoa(id)+"/properties",
		bytes.NewReader([]byte(`{"image":"alpine","artifacts":["out.txt"]}`)))
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	assert.Equal(t, rec.Code, http.StatusOK)

	req = httptest.NewRequest(http.MethodPut, "/jobs/"+itoa(id)+"/script/", bytes.NewReader([]byte("echo hi")))
	rec = httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	assert.Equal(t, rec.Code, http.StatusOK)

	req = httptest.NewRequest(http.MethodGet, "/jobs/"+itoa(id)+"/state/", nil)
	rec = httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	assert.Equal(t, rec.Code, http.StatusOK)
	assert.Equal(t, rec.Body.String(), "ready")
}

func TestPutJobStateUnknownVerbReturns400(t *testing.T) {
	s, _ := newTestServer(t)
	id := createJob(t, s)

	req := httptest.NewRequest(http.MethodPut, "/jobs/"+itoa(id)+"/state/?state=pause", nil)
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	assert.Equal(t, rec.Code, http.StatusBadRequest)
}

func TestCreatePipelineReturnsIDs(t *testing.T) {
	s, _ := newTestServer(t)
	_ = putImage(t, s, "alpine", "sif-bytes")

	body := `{"jobs":[{"name":"a","image":"alpine","script":["echo hi"]}]}`
	req := httptest.NewRequest(http.MethodPost, "/pipelines/", bytes.NewReader([]byte(body)))
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	assert.Equal(t, rec.Code, http.StatusOK)

	var ids []int64
	assert.NilError(t, json.Unmarshal(rec.Body.Bytes(), &ids))
	assert.Equal(t, len(ids), 1)
}

func TestUnacceptableAcceptHeaderReturns406(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/images/", nil)
	req.Header.Set("Accept", "application/xml")
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	assert.Equal(t, rec.Code, http.StatusNotAcceptable)
}

func TestBrowserStyleAcceptHeaderWithWildcardIsAccepted(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/images/", nil)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/json;q=0.9,*/*;q=0.8")
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	assert.Equal(t, rec.Code, http.StatusOK)
}

func putImage(t *testing.T, s *Server, name, body string) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodPut, "/images/"+name+"/raw", bytes.NewReader([]byte(body)))
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	assert.Equal(t, rec.Code, http.StatusCreated)
	return rec.Header().Get("ETag")
}

func createJob(t *testing.T, s *Server) int64 {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/jobs/", nil)
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	assert.Equal(t, rec.Code, http.StatusCreated)
	var resp map[string]int64
	assert.NilError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp["id"]
}
