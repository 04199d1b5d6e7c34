package main

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"htrweb/pkg/htr"

	"github.com/gin-gonic/gin"
)

// helper to perform requests with auth token
func performRequest(r http.Handler, method, path string, body io.Reader, token string, contentType string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func setupTestServer(t *testing.T) (*gin.Engine, *server) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	jwtSecret = []byte("test-secret")
	srv := &server{
		cfg:      config{demo: true, timeout: time.Minute},
		sessions: newSessionStore(sessionMaxIdle),
	}
	r := gin.New()
	setupRoutes(r, srv)
	return r, srv
}

func imageUpload(t *testing.T, field string, names ...string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	for _, name := range names {
		w, err := mw.CreateFormFile(field, name)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = w.Write([]byte("fake image bytes"))
	}
	_ = mw.Close()
	return buf, mw.FormDataContentType()
}

func TestFullFlow(t *testing.T) {
	r, _ := setupTestServer(t)

	// 1. Open a session
	resp := performRequest(r, http.MethodPost, "/session", nil, "", "")
	if resp.Code != 200 {
		t.Fatalf("create session failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	var sessResp map[string]any
	_ = json.Unmarshal(resp.Body.Bytes(), &sessResp)
	token, _ := sessResp["token"].(string)
	if token == "" {
		t.Fatalf("empty token in session response: %+v", sessResp)
	}

	// 2. Configure a custom pipeline
	pipeBody, _ := json.Marshal(map[string]string{
		"mode":               "custom",
		"segmentation_model": "org/seg-model",
		"text_model":         "org/text-model",
	})
	resp = performRequest(r, http.MethodPost, "/pipeline", bytes.NewBuffer(pipeBody), token, "application/json")
	if resp.Code != 200 {
		t.Fatalf("set pipeline failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	// 3. Read it back
	resp = performRequest(r, http.MethodGet, "/pipeline", nil, token, "")
	if resp.Code != 200 || !strings.Contains(resp.Body.String(), "org/text-model") {
		t.Fatalf("get pipeline failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	// 4. Transcribe one image
	buf, ct := imageUpload(t, "image", "brev.png")
	resp = performRequest(r, http.MethodPost, "/transcribe", buf, token, ct)
	if resp.Code != 200 {
		t.Fatalf("transcribe failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	var trResp map[string]any
	_ = json.Unmarshal(resp.Body.Bytes(), &trResp)
	if trResp["image_id"] != "brev" || trResp["text"] == "" || trResp["engine"] != "mock" {
		t.Fatalf("unexpected transcribe response: %+v", trResp)
	}

	// 5. Same image as a download
	buf, ct = imageUpload(t, "image", "brev.png")
	resp = performRequest(r, http.MethodPost, "/transcribe?download=1", buf, token, ct)
	if resp.Code != 200 {
		t.Fatalf("download failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	if cd := resp.Header().Get("Content-Disposition"); !strings.Contains(cd, "brev_transcription.txt") {
		t.Fatalf("bad Content-Disposition: %q", cd)
	}

	// 6. Batch of two images
	buf, ct = imageUpload(t, "images", "sida1.png", "sida2.png")
	resp = performRequest(r, http.MethodPost, "/batch", buf, token, ct)
	if resp.Code != 200 {
		t.Fatalf("batch failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	var batchResp map[string]any
	_ = json.Unmarshal(resp.Body.Bytes(), &batchResp)
	if batchResp["summary"] != "2/2" {
		t.Fatalf("unexpected batch summary: %+v", batchResp)
	}
	combined, _ := batchResp["combined"].(string)
	if !strings.Contains(combined, "=== TRANSCRIPTION OF sida1 ===") {
		t.Fatalf("combined report missing section:\n%s", combined)
	}

	// 7. Engine status is public
	resp = performRequest(r, http.MethodGet, "/engine", nil, "", "")
	if resp.Code != 200 || !strings.Contains(resp.Body.String(), "mock") {
		t.Fatalf("engine status failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	// 8. Close the session, then the token points nowhere
	resp = performRequest(r, http.MethodDelete, "/session", nil, token, "")
	if resp.Code != 200 {
		t.Fatalf("delete session failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	buf, ct = imageUpload(t, "image", "brev.png")
	resp = performRequest(r, http.MethodPost, "/transcribe", buf, token, ct)
	if resp.Code != http.StatusGone {
		t.Fatalf("expected 410 after session close, got %d", resp.Code)
	}

	// 9. No token at all is 401
	unauth := performRequest(r, http.MethodGet, "/pipeline", nil, "", "")
	if unauth.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for missing token got %d", unauth.Code)
	}
}

func TestUploadedPipelineFallsBackWithWarning(t *testing.T) {
	r, _ := setupTestServer(t)

	resp := performRequest(r, http.MethodPost, "/session", nil, "", "")
	var sessResp map[string]any
	_ = json.Unmarshal(resp.Body.Bytes(), &sessResp)
	token, _ := sessResp["token"].(string)

	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	w, _ := mw.CreateFormFile("pipeline", "pipeline.yaml")
	_, _ = w.Write([]byte("steps: [broken"))
	_ = mw.Close()

	resp = performRequest(r, http.MethodPost, "/pipeline", buf, token, mw.FormDataContentType())
	if resp.Code != 200 {
		t.Fatalf("upload pipeline failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	var pipeResp map[string]any
	_ = json.Unmarshal(resp.Body.Bytes(), &pipeResp)
	if warning, _ := pipeResp["warning"].(string); warning == "" {
		t.Fatalf("expected fallback warning, got %+v", pipeResp)
	}
	if pipeline, _ := pipeResp["pipeline"].(string); !strings.Contains(pipeline, htr.DefaultTextModel) {
		t.Fatalf("default pipeline not applied:\n%s", pipeResp["pipeline"])
	}
}

func TestSessionSweepRemovesIdle(t *testing.T) {
	_, srv := setupTestServer(t)
	sess, err := srv.sessions.create("")
	if err != nil {
		t.Fatal(err)
	}
	sess.mu.Lock()
	sess.lastUsed = time.Now().Add(-3 * time.Hour)
	sess.mu.Unlock()

	srv.sessions.sweep()
	if _, ok := srv.sessions.get(sess.ID); ok {
		t.Fatal("idle session survived sweep")
	}
}
