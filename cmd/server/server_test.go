package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/himanishpuri/NoteGram/internal/audio"
	"github.com/himanishpuri/NoteGram/internal/notegrid"
	"github.com/himanishpuri/NoteGram/internal/render"
	"github.com/himanishpuri/NoteGram/pkg/logger"
	"github.com/himanishpuri/NoteGram/pkg/notegram"
)

func newTestServer(t *testing.T, opts ...notegram.Option) (*Server, http.Handler) {
	t.Helper()
	opts = append([]notegram.Option{notegram.WithLogger(logger.Discard())}, opts...)
	svc, err := notegram.NewService(opts...)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	t.Cleanup(func() { svc.Close() })

	s := NewServer(svc, &ServerConfig{
		WindowLength:   1024,
		Backend:        "godsp",
		AllowedOrigins: []string{"*"},
	})
	s.log = logger.Discard()
	return s, s.setupRoutes()
}

func toneBytes(t *testing.T, samples int) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tone.wav")
	if err := audio.WriteWav(path, audio.Sine(440, 44100, samples, 0.5), 44100, 16); err != nil {
		t.Fatalf("WriteWav failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func uploadRequest(t *testing.T, target string, audioData []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if audioData != nil {
		fw, err := mw.CreateFormFile("audio", "tone.wav")
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(audioData)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndRoot(t *testing.T) {
	_, h := newTestServer(t)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var health map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&health); err != nil || health["status"] != "healthy" {
		t.Errorf("Unexpected health body: %v, %v", health, err)
	}

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 for root, got %d", rec.Code)
	}

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown path, got %d", rec.Code)
	}
}

func TestCreateSpectrogramJSON(t *testing.T) {
	_, h := newTestServer(t)
	data := toneBytes(t, 3*1024)

	rec := serve(h, uploadRequest(t, "/api/spectrograms", data, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp SpectrogramResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Source != "tone.wav" || resp.SampleRate != 44100 || resp.BitDepth != 16 {
		t.Errorf("Unexpected metadata: %+v", resp)
	}
	if resp.Windows != 3 || resp.Notes != len(notegrid.DefaultAxis()) {
		t.Errorf("Expected 3 windows x %d notes, got %d x %d", len(notegrid.DefaultAxis()), resp.Windows, resp.Notes)
	}
	if resp.Spectrogram == nil || len(resp.Spectrogram.Frames) != 3 {
		t.Fatalf("Expected 3 frames in the spectrogram")
	}
	if resp.Spectrogram.WindowLength != 1024 {
		t.Errorf("Expected window length 1024, got %d", resp.Spectrogram.WindowLength)
	}
}

func TestCreateSpectrogramWindowOverride(t *testing.T) {
	_, h := newTestServer(t)
	data := toneBytes(t, 3*1024)

	rec := serve(h, uploadRequest(t, "/api/spectrograms", data, map[string]string{"window": "512"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp SpectrogramResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Windows != 6 || resp.Spectrogram.WindowLength != 512 {
		t.Errorf("Expected 6 windows of 512, got %d of %d", resp.Windows, resp.Spectrogram.WindowLength)
	}

	rec = serve(h, uploadRequest(t, "/api/spectrograms", data, map[string]string{"window": "1000"}))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a non power of two window, got %d", rec.Code)
	}
}

func TestCreateSpectrogramImage(t *testing.T) {
	_, h := newTestServer(t)
	data := toneBytes(t, 4*1024)

	rec := serve(h, uploadRequest(t, "/api/spectrograms?format=png", data, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != render.PNG.ContentType() {
		t.Errorf("Expected %s, got %s", render.PNG.ContentType(), ct)
	}
	img, err := png.Decode(rec.Body)
	if err != nil {
		t.Fatalf("Response is not a PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 4 || b.Dy() != len(notegrid.DefaultAxis()) {
		t.Errorf("Expected 4x%d image, got %v", len(notegrid.DefaultAxis()), b)
	}

	rec = serve(h, uploadRequest(t, "/api/spectrograms?format=gif", data, nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown format, got %d", rec.Code)
	}
}

func TestCreateSpectrogramErrors(t *testing.T) {
	_, h := newTestServer(t)

	tests := []struct {
		name string
		req  *http.Request
		want int
	}{
		{"missing audio", uploadRequest(t, "/api/spectrograms", nil, map[string]string{"window": "512"}), http.StatusBadRequest},
		{"not a wav", uploadRequest(t, "/api/spectrograms", []byte("definitely not audio"), nil), http.StatusUnprocessableEntity},
		{"too short", uploadRequest(t, "/api/spectrograms", toneBytes(t, 512), nil), http.StatusUnprocessableEntity},
		{"not multipart", httptest.NewRequest(http.MethodPost, "/api/spectrograms", bytes.NewReader([]byte("x"))), http.StatusBadRequest},
		{"wrong method", httptest.NewRequest(http.MethodGet, "/api/spectrograms", nil), http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(h, tt.req)
			if rec.Code != tt.want {
				t.Errorf("Expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
			var resp ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil || resp.Code != tt.want {
				t.Errorf("Expected error body with code %d, got %+v (%v)", tt.want, resp, err)
			}
		})
	}
}

func TestRunEndpoints(t *testing.T) {
	s, h := newTestServer(t, notegram.WithDBPath(filepath.Join(t.TempDir(), "runs.sqlite3")))

	res, err := s.service.AnalyzeSamples(context.Background(), "gen.wav", audio.Sine(440, 44100, 2048, 0.5), 44100)
	if err != nil {
		t.Fatalf("AnalyzeSamples failed: %v", err)
	}

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var list ListRunsResponse
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if list.Count != 1 || list.Runs[0].ID != res.RunID {
		t.Fatalf("Expected the one recorded run, got %+v", list)
	}

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/api/runs/"+res.RunID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var run notegram.Run
	if err := json.NewDecoder(rec.Body).Decode(&run); err != nil {
		t.Fatal(err)
	}
	if run.Source != "gen.wav" || run.Windows != 2 {
		t.Errorf("Unexpected run: %+v", run)
	}

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/api/health/metrics", nil))
	var metrics MetricsResponse
	if err := json.NewDecoder(rec.Body).Decode(&metrics); err != nil || metrics.RunCount != 1 {
		t.Errorf("Expected run count 1, got %+v (%v)", metrics, err)
	}

	rec = serve(h, httptest.NewRequest(http.MethodDelete, "/api/runs/"+res.RunID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 on delete, got %d", rec.Code)
	}
	rec = serve(h, httptest.NewRequest(http.MethodGet, "/api/runs/"+res.RunID, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", rec.Code)
	}
	rec = serve(h, httptest.NewRequest(http.MethodDelete, "/api/runs/"+res.RunID, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 deleting twice, got %d", rec.Code)
	}

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/api/runs/", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without an ID, got %d", rec.Code)
	}
	rec = serve(h, httptest.NewRequest(http.MethodPost, "/api/runs", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", rec.Code)
	}
}

func TestRunEndpointsCatalogDisabled(t *testing.T) {
	_, h := newTestServer(t)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", rec.Code)
	}

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/api/health/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected metrics to stay available, got %d", rec.Code)
	}
	var metrics MetricsResponse
	if err := json.NewDecoder(rec.Body).Decode(&metrics); err != nil {
		t.Fatal(err)
	}
	if metrics.RunCount != 0 || metrics.WindowLength != 1024 {
		t.Errorf("Unexpected metrics: %+v", metrics)
	}
}

func TestCORS(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := corsMiddleware([]string{"https://a.example"})(ok)

	req := httptest.NewRequest(http.MethodOptions, "/api/spectrograms", nil)
	req.Header.Set("Origin", "https://a.example")
	rec := serve(h, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204 for preflight, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://a.example" {
		t.Errorf("Expected allowed origin echoed, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://b.example")
	rec = serve(h, req)
	if rec.Code != http.StatusTeapot {
		t.Errorf("Expected request to reach the handler, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Expected no CORS header for other origin, got %q", got)
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded", map[string]string{"X-Forwarded-For": "10.0.0.1, 10.0.0.2"}, "1.1.1.1:80", "10.0.0.1"},
		{"real ip", map[string]string{"X-Real-IP": "10.0.0.3"}, "1.1.1.1:80", "10.0.0.3"},
		{"remote", nil, "192.168.1.5:5555", "192.168.1.5"},
		{"remote ipv6", nil, "[::1]:5555", "::1"},
		{"remote without port", nil, "pipe", "pipe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := getClientIP(req); got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestParseOrigins(t *testing.T) {
	if got := parseOrigins("*"); len(got) != 1 || got[0] != "*" {
		t.Errorf("Expected wildcard, got %v", got)
	}
	got := parseOrigins("https://a.example, https://b.example")
	if len(got) != 2 || got[1] != "https://b.example" {
		t.Errorf("Expected trimmed origins, got %v", got)
	}
}
