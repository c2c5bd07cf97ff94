package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"stationcodes/models"
	"stationcodes/pkg/capture"
	"stationcodes/pkg/history"

	"github.com/gin-gonic/gin"
)

// helper to perform requests with auth token
func performRequest(r http.Handler, method, path string, body io.Reader, token string, contentType string) *httptest.ResponseRecorder {
	// allow callers to pass nil for body safely
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

// stubEngine satisfies recognize.Engine without a tesseract install.
type stubEngine struct{ text string }

func (s *stubEngine) Recognize(string) (string, error) { return s.text, nil }
func (s *stubEngine) Close() error                     { return nil }

func setupTestServer(t *testing.T) *gin.Engine {
	// integration tests are opt-in. Set DB_DSN_TEST=1 and DB_DSN to run them.
	if os.Getenv("DB_DSN_TEST") != "1" {
		t.Skip("integration tests are disabled; set DB_DSN_TEST=1 to enable")
	}
	gin.SetMode(gin.TestMode)
	jwtSecret = []byte("test-secret")
	initDB()
	seedTestLocations(t)

	var err error
	locIndex, err = loadIndex()
	if err != nil {
		t.Fatalf("loadIndex failed: %v", err)
	}
	ocrEngine = &stubEngine{text: "B-11 3A"}
	scanLoop = capture.NewLoop(capture.Config{},
		func(string) (capture.FrameSource, error) { return nil, capture.ErrNoFrame },
		ocrEngine, resolveCandidate, history.NewLog())

	r := gin.Default()
	setupRoutes(r)
	return r
}

func seedTestLocations(t *testing.T) {
	rows := []models.Location{
		{Location: "B-11.3A", ReferenceID: "REF-B113A", Type: "STACKING_AREA"},
		{Location: "STG.H02", ReferenceID: "REF-STGH02", Type: "STAGING_AREA"},
		{Location: "AX1", ReferenceID: "REF-AX1", Type: "GENERAL_AREA"},
		{Location: "AX2", ReferenceID: "REF-AX2", Type: "GENERAL_AREA"},
	}
	for _, row := range rows {
		var cnt int64
		db.Model(&models.Location{}).Where("location = ?", row.Location).Count(&cnt)
		if cnt == 0 {
			if err := db.Create(&row).Error; err != nil {
				t.Fatalf("seed location %s: %v", row.Location, err)
			}
		}
	}
}

func loginTestUser(t *testing.T, r *gin.Engine) string {
	regBody, _ := json.Marshal(map[string]string{"username": "user1", "password": "pass123"})
	resp := performRequest(r, http.MethodPost, "/register", bytes.NewBuffer(regBody), "", "application/json")
	if resp.Code != 200 && resp.Code != 409 {
		t.Fatalf("register failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	resp = performRequest(r, http.MethodPost, "/login", bytes.NewBuffer(regBody), "", "application/json")
	if resp.Code != 200 {
		t.Fatalf("login failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	var loginResp map[string]any
	_ = json.Unmarshal(resp.Body.Bytes(), &loginResp)
	token, _ := loginResp["token"].(string)
	if token == "" {
		t.Fatalf("empty token in login response: %+v", loginResp)
	}
	return token
}

func TestFullFlow(t *testing.T) {
	r := setupTestServer(t)
	token := loginTestUser(t, r)

	// search resolves a noisy term to the canonical code
	searchBody, _ := json.Marshal(map[string]string{"term": "b113a"})
	resp := performRequest(r, http.MethodPost, "/search", bytes.NewBuffer(searchBody), token, "application/json")
	if resp.Code != 200 {
		t.Fatalf("search failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	var searchResp struct {
		Results []searchResult `json:"results"`
		Count   int            `json:"count"`
	}
	_ = json.Unmarshal(resp.Body.Bytes(), &searchResp)
	if searchResp.Count != 1 || searchResp.Results[0].Location != "B-11.3A" {
		t.Fatalf("unexpected search response: %+v", searchResp)
	}
	if searchResp.Results[0].ReferenceID != "REF-B113A" {
		t.Fatalf("unexpected reference id: %+v", searchResp.Results[0])
	}

	// range search expands and drops misses
	rangeBody, _ := json.Marshal(map[string]string{"term": "AX1-AX5"})
	resp = performRequest(r, http.MethodPost, "/search", bytes.NewBuffer(rangeBody), token, "application/json")
	if resp.Code != 200 {
		t.Fatalf("range search failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	_ = json.Unmarshal(resp.Body.Bytes(), &searchResp)
	if searchResp.Count != 2 {
		t.Fatalf("expected 2 range hits, got %+v", searchResp)
	}

	// reversed range is a client error
	badBody, _ := json.Marshal(map[string]string{"term": "AX5-AX1"})
	resp = performRequest(r, http.MethodPost, "/search", bytes.NewBuffer(badBody), token, "application/json")
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for reversed range, got %d", resp.Code)
	}

	// unknown code is 404
	missBody, _ := json.Marshal(map[string]string{"term": "Z-99.9Z"})
	resp = performRequest(r, http.MethodPost, "/search", bytes.NewBuffer(missBody), token, "application/json")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown code, got %d", resp.Code)
	}

	// suggest
	resp = performRequest(r, http.MethodGet, "/locations/suggest?term=stg", nil, token, "")
	if resp.Code != 200 {
		t.Fatalf("suggest failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	// history starts empty
	resp = performRequest(r, http.MethodGet, "/history", nil, token, "")
	if resp.Code != 200 {
		t.Fatalf("history failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	// history select for a known canonical code
	selBody, _ := json.Marshal(map[string]string{"location": "STG.H02"})
	resp = performRequest(r, http.MethodPost, "/history/select", bytes.NewBuffer(selBody), token, "application/json")
	if resp.Code != 200 {
		t.Fatalf("history select failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	// scan status reports idle before any session
	resp = performRequest(r, http.MethodGet, "/scan/status", nil, token, "")
	if resp.Code != 200 {
		t.Fatalf("scan status failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	var st map[string]any
	_ = json.Unmarshal(resp.Body.Bytes(), &st)
	if st["state"] != "idle" {
		t.Fatalf("expected idle state, got %v", st["state"])
	}

	// capture without a session is rejected
	resp = performRequest(r, http.MethodPost, "/scan/capture", nil, token, "")
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 capture while idle, got %d", resp.Code)
	}

	// public endpoints
	resp = performRequest(r, http.MethodGet, "/links", nil, "", "")
	if resp.Code != 200 {
		t.Fatalf("links failed status=%d", resp.Code)
	}
	resp = performRequest(r, http.MethodGet, "/qr?payload=REF-B113A", nil, "", "")
	if resp.Code != 200 || resp.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("qr failed status=%d ct=%s", resp.Code, resp.Header().Get("Content-Type"))
	}

	// unauthorized access to protected endpoint should be 401
	unauth := performRequest(r, http.MethodPost, "/search", bytes.NewBuffer(searchBody), "", "application/json")
	if unauth.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unauthorized search got %d", unauth.Code)
	}
}

func TestMigrateCommand(t *testing.T) {
	if os.Getenv("DB_DSN_TEST") != "1" {
		t.Skip("integration tests are disabled; set DB_DSN_TEST=1 to enable")
	}
	initDB()
}
