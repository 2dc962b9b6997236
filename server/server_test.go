package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	scribeflow "github.com/scribeflow/scribeflow"
	"github.com/scribeflow/scribeflow/llm"
)

const testTitles = `1. How to Master Go Concurrency in 30 Days
2. The Ultimate Guide to Channels and Select
3. Goroutines Explained for Busy Engineers
4. Why Your Go Program Leaks Goroutines
5. Concurrency Patterns You Should Steal`

// scriptedClient returns canned responses in order and records every request.
type scriptedClient struct {
	responses []string
	errs      []error
	calls     int
}

func (c *scriptedClient) Generate(_ context.Context, _ llm.GenerateRequest) (string, error) {
	i := c.calls
	c.calls++
	if i < len(c.errs) && c.errs[i] != nil {
		return "", c.errs[i]
	}
	if i >= len(c.responses) {
		return "", errors.New("scripted client exhausted")
	}
	return c.responses[i], nil
}

func generationClient(translated bool) *scriptedClient {
	responses := []string{
		testTitles,
		"The Ultimate Guide to Channels and Select",
		strings.Repeat("word ", 850),
	}
	if translated {
		responses = append(responses, "contenido traducido")
	}
	return &scriptedClient{responses: responses}
}

func newTestServer(t *testing.T, client llm.TextClient) (*httptest.Server, *Server) {
	t.Helper()

	graph, err := scribeflow.BuildBlogGraph(client, nil)
	if err != nil {
		t.Fatalf("BuildBlogGraph() error = %v", err)
	}

	srv, err := NewServer(ServerConfig{
		Graph:     graph,
		Runs:      NewMemRunStore(),
		Schedules: NewMemScheduleStore(),
		Version:   "test",
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dest any) {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		t.Fatalf("decode response %q: %v", raw, err)
	}
}

func decodeError(t *testing.T, resp *http.Response) apiError {
	t.Helper()

	var envelope apiError
	decodeBody(t, resp, &envelope)
	return envelope
}

func TestHealthEndpoint(t *testing.T) {
	ts, _ := newTestServer(t, generationClient(false))

	resp, err := http.Get(ts.URL + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body map[string]string
	decodeBody(t, resp, &body)
	if body["status"] != "ok" {
		t.Errorf("status field = %q, want ok", body["status"])
	}
	if body["version"] != "test" {
		t.Errorf("version field = %q, want test", body["version"])
	}
}

func TestGenerateEndpoint(t *testing.T) {
	ts, _ := newTestServer(t, generationClient(false))

	resp := postJSON(t, ts.URL+"/api/v1/generate", GenerateRequest{Topic: "go concurrency"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body GenerateResponse
	decodeBody(t, resp, &body)
	if body.RunID == "" {
		t.Error("run_id is empty")
	}
	if body.Title != "The Ultimate Guide to Channels and Select" {
		t.Errorf("title = %q", body.Title)
	}
	if body.WordCount != 850 {
		t.Errorf("word_count = %d, want 850", body.WordCount)
	}
	if body.WasTranslated {
		t.Error("was_translated = true, want false")
	}
	if body.GenerationTimeSeconds < 0 {
		t.Errorf("generation_time_seconds = %v, want >= 0", body.GenerationTimeSeconds)
	}
	if len(body.BrainstormedTitles) != 5 {
		t.Errorf("brainstormed_titles has %d entries, want 5", len(body.BrainstormedTitles))
	}
}

func TestGenerateEndpointWithTranslation(t *testing.T) {
	ts, _ := newTestServer(t, generationClient(true))

	resp := postJSON(t, ts.URL+"/api/v1/generate", GenerateRequest{
		Topic:          "go concurrency",
		TargetLanguage: "spanish",
		Style:          "casual",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body GenerateResponse
	decodeBody(t, resp, &body)
	if !body.WasTranslated {
		t.Error("was_translated = false, want true")
	}
	if body.TargetLanguage != "spanish" {
		t.Errorf("target_language = %q, want spanish", body.TargetLanguage)
	}
	if body.Content != "contenido traducido" {
		t.Errorf("content = %q, want translated body", body.Content)
	}
}

func TestGenerateValidation(t *testing.T) {
	tests := []struct {
		name       string
		request    GenerateRequest
		wantDetail string
	}{
		{
			name:       "missing topic",
			request:    GenerateRequest{},
			wantDetail: "topic",
		},
		{
			name:       "topic too short",
			request:    GenerateRequest{Topic: "go"},
			wantDetail: "topic",
		},
		{
			name:       "topic too long",
			request:    GenerateRequest{Topic: strings.Repeat("a", 501)},
			wantDetail: "topic",
		},
		{
			name:       "unknown style",
			request:    GenerateRequest{Topic: "go concurrency", Style: "sardonic"},
			wantDetail: "style",
		},
		{
			name: "transcript too long",
			request: GenerateRequest{
				Topic:      "go concurrency",
				Transcript: strings.Repeat("a", 50001),
			},
			wantDetail: "transcript",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, _ := newTestServer(t, generationClient(false))

			resp := postJSON(t, ts.URL+"/api/v1/generate", tt.request)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.StatusCode)
			}

			envelope := decodeError(t, resp)
			if envelope.Error.Code != "INVALID_INPUT" {
				t.Errorf("code = %q, want INVALID_INPUT", envelope.Error.Code)
			}
			found := false
			for _, detail := range envelope.Error.Details {
				if strings.Contains(detail, tt.wantDetail) {
					found = true
				}
			}
			if !found {
				t.Errorf("details %v do not mention %q", envelope.Error.Details, tt.wantDetail)
			}
		})
	}
}

func TestGenerateRejectsMalformedJSON(t *testing.T) {
	ts, _ := newTestServer(t, generationClient(false))

	resp, err := http.Post(ts.URL+"/api/v1/generate", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	envelope := decodeError(t, resp)
	if envelope.Error.Code != "INVALID_INPUT" {
		t.Errorf("code = %q, want INVALID_INPUT", envelope.Error.Code)
	}
}

func TestGenerateMapsNodeFailure(t *testing.T) {
	client := &scriptedClient{errs: []error{errors.New("provider unavailable")}}
	ts, srv := newTestServer(t, client)

	resp := postJSON(t, ts.URL+"/api/v1/generate", GenerateRequest{Topic: "go concurrency"})
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", resp.StatusCode)
	}

	envelope := decodeError(t, resp)
	if envelope.Error.Code != "UPSTREAM_FAILED" {
		t.Errorf("code = %q, want UPSTREAM_FAILED", envelope.Error.Code)
	}
	if !strings.Contains(envelope.Error.Message, scribeflow.TitleNodeID) {
		t.Errorf("message %q does not name the failing node", envelope.Error.Message)
	}

	// The failed run is still recorded.
	records, err := srv.runs.ListRuns(context.Background(), RunFilter{})
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("recorded %d runs, want 1", len(records))
	}
	if records[0].Status != scribeflow.RunStatusFailed.String() {
		t.Errorf("recorded status = %q, want failed", records[0].Status)
	}
	if records[0].Error == "" {
		t.Error("recorded run has empty error")
	}
}

func TestRunsListAndGet(t *testing.T) {
	ts, _ := newTestServer(t, generationClient(false))

	resp := postJSON(t, ts.URL+"/api/v1/generate", GenerateRequest{Topic: "go concurrency"})
	var created GenerateResponse
	decodeBody(t, resp, &created)

	listResp, err := http.Get(ts.URL + "/api/v1/runs")
	if err != nil {
		t.Fatalf("GET runs: %v", err)
	}
	if listResp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d, want 200", listResp.StatusCode)
	}

	var listed []RunRecord
	decodeBody(t, listResp, &listed)
	if len(listed) != 1 {
		t.Fatalf("listed %d runs, want 1", len(listed))
	}
	rec := listed[0]
	if rec.RunID != created.RunID {
		t.Errorf("run_id = %q, want %q", rec.RunID, created.RunID)
	}
	if rec.Trigger != RunTriggerAPI {
		t.Errorf("trigger = %q, want api", rec.Trigger)
	}
	if rec.Title != created.Title {
		t.Errorf("title = %q, want %q", rec.Title, created.Title)
	}

	getResp, err := http.Get(ts.URL + "/api/v1/runs/" + created.RunID)
	if err != nil {
		t.Fatalf("GET run: %v", err)
	}
	if getResp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d, want 200", getResp.StatusCode)
	}
	var got RunRecord
	decodeBody(t, getResp, &got)
	if got.RunID != created.RunID {
		t.Errorf("run_id = %q, want %q", got.RunID, created.RunID)
	}
}

func TestGetRunNotFound(t *testing.T) {
	ts, _ := newTestServer(t, generationClient(false))

	resp, err := http.Get(ts.URL + "/api/v1/runs/does-not-exist")
	if err != nil {
		t.Fatalf("GET run: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	envelope := decodeError(t, resp)
	if envelope.Error.Code != "NOT_FOUND" {
		t.Errorf("code = %q, want NOT_FOUND", envelope.Error.Code)
	}
}

func TestListRunsStatusFilter(t *testing.T) {
	ts, _ := newTestServer(t, generationClient(false))

	postJSON(t, ts.URL+"/api/v1/generate", GenerateRequest{Topic: "go concurrency"})

	resp, err := http.Get(ts.URL + "/api/v1/runs?status=failed")
	if err != nil {
		t.Fatalf("GET runs: %v", err)
	}
	var listed []RunRecord
	decodeBody(t, resp, &listed)
	if len(listed) != 0 {
		t.Errorf("listed %d failed runs, want 0", len(listed))
	}
}

func TestGenerateBodyTooLarge(t *testing.T) {
	graph, err := scribeflow.BuildBlogGraph(generationClient(false), nil)
	if err != nil {
		t.Fatalf("BuildBlogGraph() error = %v", err)
	}
	srv, err := NewServer(ServerConfig{
		Graph:   graph,
		Runs:    NewMemRunStore(),
		MaxBody: 64,
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/api/v1/generate", GenerateRequest{
		Topic:      "go concurrency",
		Transcript: strings.Repeat("a", 256),
	})
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", resp.StatusCode)
	}
	envelope := decodeError(t, resp)
	if envelope.Error.Code != "BODY_TOO_LARGE" {
		t.Errorf("code = %q, want BODY_TOO_LARGE", envelope.Error.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	ts, _ := newTestServer(t, generationClient(false))

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/v1/generate", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
}

func TestSchedulesNotConfigured(t *testing.T) {
	graph, err := scribeflow.BuildBlogGraph(generationClient(false), nil)
	if err != nil {
		t.Fatalf("BuildBlogGraph() error = %v", err)
	}
	srv, err := NewServer(ServerConfig{Graph: graph, Runs: NewMemRunStore()})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/schedules")
	if err != nil {
		t.Fatalf("GET schedules: %v", err)
	}
	if resp.StatusCode != http.StatusNotImplemented {
		t.Fatalf("status = %d, want 501", resp.StatusCode)
	}
	envelope := decodeError(t, resp)
	if envelope.Error.Code != "NOT_IMPLEMENTED" {
		t.Errorf("code = %q, want NOT_IMPLEMENTED", envelope.Error.Code)
	}
}

func TestScheduleLifecycle(t *testing.T) {
	ts, _ := newTestServer(t, generationClient(false))

	// Create.
	createResp := postJSON(t, ts.URL+"/api/v1/schedules", map[string]any{
		"cron":    "0 9 * * 1",
		"request": GenerateRequest{Topic: "weekly go digest"},
	})
	if createResp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", createResp.StatusCode)
	}
	var created Schedule
	decodeBody(t, createResp, &created)
	if created.ID == "" {
		t.Fatal("created schedule has empty id")
	}
	if !created.Enabled {
		t.Error("created schedule is disabled, want enabled by default")
	}
	if created.NextRunAt.IsZero() {
		t.Error("created schedule has zero next_run_at")
	}
	if created.NextRunAt.Location() != time.UTC {
		t.Errorf("next_run_at location = %v, want UTC", created.NextRunAt.Location())
	}

	// List.
	listResp, err := http.Get(ts.URL + "/api/v1/schedules")
	if err != nil {
		t.Fatalf("GET schedules: %v", err)
	}
	var schedules []Schedule
	decodeBody(t, listResp, &schedules)
	if len(schedules) != 1 {
		t.Fatalf("listed %d schedules, want 1", len(schedules))
	}

	// Update: disable it.
	enabled := false
	updatePayload, _ := json.Marshal(map[string]any{
		"cron":    "0 9 * * 1",
		"enabled": &enabled,
		"request": GenerateRequest{Topic: "weekly go digest"},
	})
	updateReq, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/v1/schedules/"+created.ID, bytes.NewReader(updatePayload))
	updateReq.Header.Set("Content-Type", "application/json")
	updateResp, err := http.DefaultClient.Do(updateReq)
	if err != nil {
		t.Fatalf("PUT schedule: %v", err)
	}
	if updateResp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d, want 200", updateResp.StatusCode)
	}
	var updated Schedule
	decodeBody(t, updateResp, &updated)
	if updated.Enabled {
		t.Error("updated schedule still enabled")
	}

	// Delete.
	deleteReq, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/schedules/"+created.ID, nil)
	deleteResp, err := http.DefaultClient.Do(deleteReq)
	if err != nil {
		t.Fatalf("DELETE schedule: %v", err)
	}
	deleteResp.Body.Close()
	if deleteResp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", deleteResp.StatusCode)
	}

	getResp, err := http.Get(ts.URL + "/api/v1/schedules/" + created.ID)
	if err != nil {
		t.Fatalf("GET schedule: %v", err)
	}
	getResp.Body.Close()
	if getResp.StatusCode != http.StatusNotFound {
		t.Fatalf("get-after-delete status = %d, want 404", getResp.StatusCode)
	}
}

func TestScheduleCreateRejectsInvalidCron(t *testing.T) {
	ts, _ := newTestServer(t, generationClient(false))

	resp := postJSON(t, ts.URL+"/api/v1/schedules", map[string]any{
		"cron":    "CRON_TZ=America/New_York 0 9 * * 1",
		"request": GenerateRequest{Topic: "weekly go digest"},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	envelope := decodeError(t, resp)
	if envelope.Error.Code != "INVALID_SCHEDULE" {
		t.Errorf("code = %q, want INVALID_SCHEDULE", envelope.Error.Code)
	}
}

func TestScheduleCreateRejectsInvalidRequest(t *testing.T) {
	ts, _ := newTestServer(t, generationClient(false))

	resp := postJSON(t, ts.URL+"/api/v1/schedules", map[string]any{
		"cron":    "0 9 * * 1",
		"request": GenerateRequest{Topic: "go"},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

