package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/royalty/internal/shared"
	tu "github.com/desertthunder/royalty/internal/testing"
)

type testServer struct {
	t   *testing.T
	srv *Server
}

func newTestServer(t *testing.T, configure func(*shared.Config)) *testServer {
	t.Helper()

	config := shared.DefaultConfig()
	config.Server.UploadBurst = 100
	if configure != nil {
		configure(config)
	}
	return &testServer{t: t, srv: New(config, tu.NewTestDB(t), nil)}
}

func (ts *testServer) do(method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	ts.t.Helper()

	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	rec := httptest.NewRecorder()
	ts.srv.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) get(path, token string) *httptest.ResponseRecorder {
	return ts.do(http.MethodGet, path, token, nil, "")
}

func (ts *testServer) sendJSON(method, path, token, body string) *httptest.ResponseRecorder {
	return ts.do(method, path, token, strings.NewReader(body), "application/json")
}

func (ts *testServer) register(username string) string {
	ts.t.Helper()

	rec := ts.sendJSON(http.MethodPost, "/api/artists", "",
		`{"username": "`+username+`", "email": "`+username+`@example.com"}`)
	if rec.Code != http.StatusCreated {
		ts.t.Fatalf("register %s: expected 201, got %d: %s", username, rec.Code, rec.Body.String())
	}
	return decode[registerResponse](ts.t, rec).APIToken
}

func (ts *testServer) upload(token, filename string, content []byte) *httptest.ResponseRecorder {
	ts.t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		if err != nil {
			ts.t.Fatalf("failed to create form file: %v", err)
		}
		part.Write(content)
	} else {
		writer.WriteField("note", "no file")
	}
	writer.Close()

	return ts.do(http.MethodPost, "/api/csv-uploads/upload", token, &body, writer.FormDataContentType())
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, want int) ErrorBody {
	t.Helper()
	expectStatus(t, rec, want)
	body := decode[ErrorBody](t, rec)
	if body.Error == "" {
		t.Errorf("expected an error message in %s", rec.Body.String())
	}
	return body
}

var januaryReport = tu.NewReport("Track", "Album", "Platform", "Period Start", "Period End", "Streams", "Revenue", "Currency").
	Row("Skyline", "Night Drive", "Spotify", "2024-01-01", "2024-01-31", "1200", "4.8000", "USD").
	Row("Skyline", "Night Drive", "Apple Music", "2024-01-01", "2024-01-31", "300", "2.1000", "USD").
	Row("Harbor", "Night Drive", "Spotify", "2024-02-01", "2024-02-29", "500", "2.0000", "USD").
	Bytes()

func TestSystemRoutes(t *testing.T) {
	ts := newTestServer(t, nil)

	t.Run("healthz", func(t *testing.T) {
		rec := ts.get("/healthz", "")
		expectStatus(t, rec, http.StatusOK)
		if body := decode[map[string]string](t, rec); body["status"] != "ok" {
			t.Errorf("unexpected health %v", body)
		}
	})

	t.Run("metrics", func(t *testing.T) {
		ts.get("/healthz", "")
		rec := ts.get("/metrics", "")
		expectStatus(t, rec, http.StatusOK)
		if !strings.Contains(rec.Body.String(), "royalty_http_requests_total") {
			t.Error("expected request counter in metrics output")
		}
	})

	t.Run("unknown route", func(t *testing.T) {
		expectError(t, ts.get("/api/nope", ""), http.StatusNotFound)
	})

	t.Run("wrong method", func(t *testing.T) {
		rec := ts.do(http.MethodPut, "/api/streams/total", "", nil, "")
		expectError(t, rec, http.StatusMethodNotAllowed)
		if rec.Header().Get("Allow") == "" {
			t.Error("expected Allow header")
		}
	})

	preflight := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/api/streams/total", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
		req.Header.Set("Access-Control-Request-Headers", "authorization")
		rec := httptest.NewRecorder()
		ts.srv.ServeHTTP(rec, req)
		return rec
	}

	t.Run("cors preflight", func(t *testing.T) {
		rec := preflight("http://localhost:3000")
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
			t.Errorf("expected allowed origin, got %q (status %d)", got, rec.Code)
		}
	})

	t.Run("cors preflight from unknown origin", func(t *testing.T) {
		rec := preflight("http://evil.example")
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("expected no allowed origin, got %q", got)
		}
	})
}

func TestArtistRoutes(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.register("nova")

	t.Run("duplicate username", func(t *testing.T) {
		rec := ts.sendJSON(http.MethodPost, "/api/artists", "", `{"username": "nova", "email": "other@example.com"}`)
		expectError(t, rec, http.StatusConflict)
	})

	t.Run("invalid registration", func(t *testing.T) {
		tests := map[string]string{
			"bad email":     `{"username": "ray", "email": "not-an-email"}`,
			"no username":   `{"email": "ray@example.com"}`,
			"unknown field": `{"username": "ray", "email": "ray@example.com", "password": "x"}`,
			"malformed":     `{"username":`,
		}
		for name, body := range tests {
			t.Run(name, func(t *testing.T) {
				expectError(t, ts.sendJSON(http.MethodPost, "/api/artists", "", body), http.StatusBadRequest)
			})
		}
	})

	t.Run("requires a token", func(t *testing.T) {
		rec := ts.get("/api/auth/me", "")
		expectError(t, rec, http.StatusUnauthorized)
		if rec.Header().Get("WWW-Authenticate") == "" {
			t.Error("expected WWW-Authenticate header")
		}
		expectError(t, ts.get("/api/auth/me", "wrong"), http.StatusUnauthorized)
	})

	t.Run("me", func(t *testing.T) {
		rec := ts.get("/api/auth/me", token)
		expectStatus(t, rec, http.StatusOK)
		if me := decode[map[string]any](t, rec); me["username"] != "nova" || me["email"] != "nova@example.com" {
			t.Errorf("unexpected artist %v", me)
		}
	})

	t.Run("update profile", func(t *testing.T) {
		rec := ts.sendJSON(http.MethodPatch, "/api/artist/profile", token,
			`{"display_name": "Nova", "country": "us", "genres": ["synthwave"], "social_links": {"site": "https://nova.example.com"}}`)
		expectStatus(t, rec, http.StatusOK)

		profile := decode[map[string]any](t, rec)
		if profile["display_name"] != "Nova" || profile["country"] != "US" {
			t.Errorf("unexpected profile %v", profile)
		}
		if _, ok := profile["stats"].(map[string]any); !ok {
			t.Errorf("expected stats in profile, got %v", profile)
		}

		rec = ts.sendJSON(http.MethodPatch, "/api/artist/profile", token, `{"bio": "From the desert"}`)
		expectStatus(t, rec, http.StatusOK)
		if profile := decode[map[string]any](t, rec); profile["display_name"] != "Nova" || profile["bio"] != "From the desert" {
			t.Errorf("expected partial update to keep other fields, got %v", profile)
		}
	})

	t.Run("invalid profile", func(t *testing.T) {
		rec := ts.sendJSON(http.MethodPatch, "/api/artist/profile", token, `{"social_links": {"site": "not a url"}}`)
		expectError(t, rec, http.StatusBadRequest)

		rec = ts.sendJSON(http.MethodPatch, "/api/artist/profile", token, `{"country": "USA"}`)
		expectError(t, rec, http.StatusBadRequest)
	})
}

func TestUploadRoutes(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.register("nova")
	other := ts.register("ray")

	var uploadID string
	t.Run("imports a report", func(t *testing.T) {
		rec := ts.upload(token, "january.csv", januaryReport)
		expectStatus(t, rec, http.StatusCreated)

		resp := decode[uploadResponse](t, rec)
		if resp.Imported != 3 || resp.Upload.Status != "completed" || resp.Format != "csv" {
			t.Errorf("unexpected upload response %+v", resp)
		}
		uploadID = resp.Upload.ID
	})

	t.Run("re-upload counts duplicates", func(t *testing.T) {
		rec := ts.upload(token, "january-again.csv", januaryReport)
		expectStatus(t, rec, http.StatusCreated)
		if resp := decode[uploadResponse](t, rec); resp.Duplicates != 3 || resp.Imported != 0 {
			t.Errorf("expected 3 duplicates, got %+v", resp)
		}
	})

	t.Run("lists uploads newest first", func(t *testing.T) {
		rec := ts.get("/api/csv-uploads", token)
		expectStatus(t, rec, http.StatusOK)
		uploads := decode[[]uploadView](t, rec)
		if len(uploads) != 2 || uploads[0].Filename != "january-again.csv" {
			t.Errorf("unexpected uploads %+v", uploads)
		}

		rec = ts.get("/api/csv-uploads?limit=1&status=completed", token)
		expectStatus(t, rec, http.StatusOK)
		if uploads := decode[[]uploadView](t, rec); len(uploads) != 1 {
			t.Errorf("expected 1 upload, got %d", len(uploads))
		}

		expectError(t, ts.get("/api/csv-uploads?status=done", token), http.StatusBadRequest)
	})

	t.Run("gets one upload", func(t *testing.T) {
		rec := ts.get("/api/csv-uploads/"+uploadID, token)
		expectStatus(t, rec, http.StatusOK)
		if upload := decode[uploadView](t, rec); upload.SuccessCount != 3 {
			t.Errorf("unexpected upload %+v", upload)
		}

		expectError(t, ts.get("/api/csv-uploads/"+uploadID, other), http.StatusNotFound)
		expectError(t, ts.get("/api/csv-uploads/missing", token), http.StatusNotFound)
	})

	t.Run("requires a file", func(t *testing.T) {
		expectError(t, ts.upload(token, "", nil), http.StatusBadRequest)
	})

	t.Run("rejects unsupported formats", func(t *testing.T) {
		rec := ts.upload(token, "statement.pdf", []byte("%PDF-1.4\n%binary\n"))
		expectError(t, rec, http.StatusUnsupportedMediaType)
	})

	t.Run("rejects reports without required columns", func(t *testing.T) {
		rec := ts.upload(token, "partial.csv", tu.NewReport("Track", "Streams").Row("Skyline", "1").Bytes())
		expectError(t, rec, http.StatusBadRequest)
		if resp := decode[uploadResponse](t, rec); resp.Upload.Status != "failed" {
			t.Errorf("expected failed upload in response, got %+v", resp.Upload)
		}
	})

	t.Run("rejects oversized reports", func(t *testing.T) {
		large := append(bytes.Clone(januaryReport), bytes.Repeat([]byte("x"), 1<<20)...)
		small := newTestServer(t, func(c *shared.Config) { c.Server.MaxUploadMB = 1 })
		rec := small.upload(small.register("nova"), "large.csv", large)
		expectError(t, rec, http.StatusRequestEntityTooLarge)
	})
}

func TestUploadRateLimit(t *testing.T) {
	ts := newTestServer(t, func(c *shared.Config) {
		c.Server.UploadRate = 0.001
		c.Server.UploadBurst = 1
	})
	token := ts.register("nova")
	other := ts.register("ray")

	expectStatus(t, ts.upload(token, "one.csv", januaryReport), http.StatusCreated)

	rec := ts.upload(token, "two.csv", januaryReport)
	expectError(t, rec, http.StatusTooManyRequests)
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}

	expectStatus(t, ts.upload(other, "one.csv", januaryReport), http.StatusCreated)
}

func TestAnalyticsRoutes(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.register("nova")
	expectStatus(t, ts.upload(token, "january.csv", januaryReport), http.StatusCreated)

	t.Run("dashboard summary", func(t *testing.T) {
		rec := ts.get("/api/artist/dashboard-summary", token)
		expectStatus(t, rec, http.StatusOK)

		summary := decode[map[string]any](t, rec)
		if summary["total_streams"] != float64(2000) || summary["total_revenue"] != 8.9 || summary["currency"] != "USD" {
			t.Errorf("unexpected summary %v", summary)
		}
		breakdown := summary["platform_breakdown"].([]any)
		first := breakdown[0].(map[string]any)
		if first["platform_name"] != "Spotify" || first["percentage"] != float64(85) || first["platform_icon"] != "spotify" {
			t.Errorf("unexpected first platform %v", first)
		}
	})

	t.Run("totals", func(t *testing.T) {
		if body := decode[map[string]any](t, ts.get("/api/streams/total", token)); body["total_streams"] != float64(2000) {
			t.Errorf("unexpected stream total %v", body)
		}
		if body := decode[map[string]any](t, ts.get("/api/revenue/total", token)); body["total_revenue"] != 8.9 {
			t.Errorf("unexpected revenue total %v", body)
		}
	})

	t.Run("by platform", func(t *testing.T) {
		streams := decode[[]map[string]any](t, ts.get("/api/streams/by-platform", token))
		revenue := decode[[]map[string]any](t, ts.get("/api/revenue/by-platform", token))
		if len(streams) != 2 || len(revenue) != 2 || revenue[0]["platform_name"] != "Spotify" {
			t.Errorf("unexpected breakdowns %v %v", streams, revenue)
		}
	})

	t.Run("over time", func(t *testing.T) {
		rec := ts.get("/api/streams/over-time?interval=month&from=2024-01-01&to=2024-12-31", token)
		expectStatus(t, rec, http.StatusOK)
		series := decode[map[string]any](t, rec)
		if points := series["points"].([]any); len(points) != 2 {
			t.Errorf("expected 2 monthly points, got %v", points)
		}

		expectError(t, ts.get("/api/streams/over-time?interval=fortnight", token), http.StatusBadRequest)
		expectError(t, ts.get("/api/streams/over-time?from=yesterday", token), http.StatusBadRequest)
		expectError(t, ts.get("/api/streams/over-time?from=2024-12-01&to=2024-01-01", token), http.StatusBadRequest)
	})

	t.Run("top tracks", func(t *testing.T) {
		tracks := decode[[]map[string]any](t, ts.get("/api/streams/top-tracks?limit=1", token))
		if len(tracks) != 1 || tracks[0]["track_name"] != "Skyline" {
			t.Errorf("unexpected top tracks %v", tracks)
		}
		expectError(t, ts.get("/api/streams/top-tracks?limit=many", token), http.StatusBadRequest)
	})

	t.Run("other artists see nothing", func(t *testing.T) {
		other := ts.register("ray")
		if body := decode[map[string]any](t, ts.get("/api/streams/total", other)); body["total_streams"] != float64(0) {
			t.Errorf("expected no streams for another artist, got %v", body)
		}
	})
}

func TestDataRoutes(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.register("nova")
	expectStatus(t, ts.upload(token, "january.csv", januaryReport), http.StatusCreated)

	t.Run("csv export", func(t *testing.T) {
		rec := ts.get("/api/data/export?format=csv", token)
		expectStatus(t, rec, http.StatusOK)
		if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/csv") {
			t.Errorf("unexpected content type %s", rec.Header().Get("Content-Type"))
		}
		if !strings.Contains(rec.Header().Get("Content-Disposition"), "royalty_statements_nova_") {
			t.Errorf("unexpected disposition %s", rec.Header().Get("Content-Disposition"))
		}
		if lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n"); len(lines) != 4 {
			t.Errorf("expected header and 3 rows, got %d lines", len(lines))
		}
	})

	t.Run("exported csv imports as duplicates", func(t *testing.T) {
		exported := ts.get("/api/data/export", token).Body.Bytes()
		rec := ts.upload(token, "export.csv", exported)
		expectStatus(t, rec, http.StatusCreated)
		if resp := decode[uploadResponse](t, rec); resp.Duplicates != 3 {
			t.Errorf("expected every exported row to be a duplicate, got %+v", resp)
		}
	})

	t.Run("json export", func(t *testing.T) {
		rec := ts.get("/api/data/export?format=json", token)
		expectStatus(t, rec, http.StatusOK)
		if body := decode[map[string]any](t, rec); body["count"] != float64(3) {
			t.Errorf("unexpected export %v", body)
		}
		expectError(t, ts.get("/api/data/export?format=xml", token), http.StatusBadRequest)
	})

	t.Run("clear", func(t *testing.T) {
		rec := ts.do(http.MethodDelete, "/api/data/clear", token, nil, "")
		expectStatus(t, rec, http.StatusOK)
		if body := decode[clearResponse](t, rec); body.StatementsDeleted != 3 || body.UploadsDeleted != 2 {
			t.Errorf("unexpected clear response %+v", body)
		}

		if body := decode[map[string]any](t, ts.get("/api/streams/total", token)); body["total_streams"] != float64(0) {
			t.Errorf("expected no streams after clear, got %v", body)
		}
	})
}

func TestInsightRoutes(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.register("nova")

	rec := ts.sendJSON(http.MethodPost, "/api/insights", token, `{"observations": [
		{"platform": "Spotify", "track_name": "Skyline", "insight_type": "popularity", "value": 71},
		{"platform": "Spotify", "track_name": "Harbor", "insight_type": "popularity", "value": 40},
		{"platform": "Deezer", "track_name": "Skyline", "insight_type": "rank", "value": 12}
	]}`)
	expectStatus(t, rec, http.StatusCreated)
	if body := decode[map[string]int](t, rec); body["recorded"] != 3 {
		t.Errorf("unexpected record result %v", body)
	}

	t.Run("invalid observations", func(t *testing.T) {
		rec := ts.sendJSON(http.MethodPost, "/api/insights", token, `{"observations": [{"platform": "Spotify"}]}`)
		expectError(t, rec, http.StatusBadRequest)
	})

	t.Run("list", func(t *testing.T) {
		views := decode[[]map[string]any](t, ts.get("/api/insights?platform=spotify", token))
		if len(views) != 2 {
			t.Errorf("expected 2 spotify insights, got %d", len(views))
		}
	})

	t.Run("report", func(t *testing.T) {
		report := decode[map[string]any](t, ts.get("/api/insights/report", token))
		summary := report["summary"].(map[string]any)
		if summary["total_tracks_tracked"] != float64(2) {
			t.Errorf("unexpected summary %v", summary)
		}
		top := report["top_performers"].(map[string]any)["spotify"].(map[string]any)["popularity"].(map[string]any)
		if top["track_name"] != "Skyline" {
			t.Errorf("unexpected top performer %v", top)
		}
	})

	t.Run("comparison", func(t *testing.T) {
		comparison := decode[[]map[string]any](t, ts.get("/api/insights/comparison", token))
		if len(comparison) != 2 || comparison[1]["average_value"] != 55.5 {
			t.Errorf("unexpected comparison %v", comparison)
		}
	})
}
