package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return env
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	writeJSON(w, http.StatusCreated, map[string]string{"decision": "dial"})

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content-type = %q, want application/json", ct)
	}

	env := decodeEnvelope(t, w)
	if env.Error != "" {
		t.Errorf("error = %q, want empty", env.Error)
	}
	data, ok := env.Data.(map[string]any)
	if !ok {
		t.Fatalf("data is %T, want map", env.Data)
	}
	if data["decision"] != "dial" {
		t.Errorf("decision = %v, want dial", data["decision"])
	}
	// error is omitempty: success responses carry no error key at all.
	if strings.Contains(w.Body.String(), `"error"`) {
		t.Errorf("error field should be omitted, got %s", w.Body.String())
	}
}

func TestWriteJSONNilData(t *testing.T) {
	w := httptest.NewRecorder()
	writeJSON(w, http.StatusOK, nil)

	env := decodeEnvelope(t, w)
	if env.Data != nil || env.Error != "" {
		t.Errorf("unexpected envelope: %+v", env)
	}
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, http.StatusBadRequest, "exactly one of entry or schedule_id is required")

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	env := decodeEnvelope(t, w)
	if env.Error != "exactly one of entry or schedule_id is required" {
		t.Errorf("error = %q", env.Error)
	}
	if env.Data != nil {
		t.Errorf("data = %v, want nil", env.Data)
	}
}

func TestReadJSON(t *testing.T) {
	type payload struct {
		Name  string `json:"name"`
		Turns int    `json:"turns"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"valid object", `{"name":"main menu","turns":3}`, ""},
		{"empty body", ``, "request body must not be empty"},
		{"malformed json", `{bad`, "malformed json"},
		{"truncated json", `{"name":"ma`, "malformed json"},
		{"unknown field", `{"name":"x","bogus":1}`, `unknown field "bogus"`},
		{"wrong field type", `{"turns":"three"}`, "invalid value for field turns"},
		{"trailing object", `{"name":"a"}{"name":"b"}`, "request body must contain a single json object"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/v1/validate/ivr-menu", strings.NewReader(tt.body))
			var dst payload
			if got := readJSON(r, &dst); got != tt.wantErr {
				t.Errorf("readJSON = %q, want %q", got, tt.wantErr)
			}
		})
	}
}

func TestReadJSONDecodesFields(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"sales","turns":2}`))
	var dst struct {
		Name  string `json:"name"`
		Turns int    `json:"turns"`
	}
	if errMsg := readJSON(r, &dst); errMsg != "" {
		t.Fatalf("unexpected error: %q", errMsg)
	}
	if dst.Name != "sales" || dst.Turns != 2 {
		t.Errorf("decoded %+v", dst)
	}
}

func TestParsePagination(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantLimit  int
		wantOffset int
		wantErr    string
	}{
		{"defaults", "", defaultLimit, 0, ""},
		{"custom values", "?limit=50&offset=10", 50, 10, ""},
		{"limit clamped", "?limit=500", maxLimit, 0, ""},
		{"zero offset", "?offset=0", defaultLimit, 0, ""},
		{"non-numeric limit", "?limit=abc", 0, 0, "limit must be a positive integer"},
		{"zero limit", "?limit=0", 0, 0, "limit must be a positive integer"},
		{"negative limit", "?limit=-5", 0, 0, "limit must be a positive integer"},
		{"non-numeric offset", "?offset=abc", 0, 0, "offset must be a non-negative integer"},
		{"negative offset", "?offset=-1", 0, 0, "offset must be a non-negative integer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/v1/routing-log"+tt.query, nil)
			p, errMsg := parsePagination(r)
			if errMsg != tt.wantErr {
				t.Fatalf("error = %q, want %q", errMsg, tt.wantErr)
			}
			if tt.wantErr != "" {
				return
			}
			if p.Limit != tt.wantLimit || p.Offset != tt.wantOffset {
				t.Errorf("pagination = %+v, want limit %d offset %d", p, tt.wantLimit, tt.wantOffset)
			}
		})
	}
}

func TestPaginatedResponseShape(t *testing.T) {
	w := httptest.NewRecorder()
	writeJSON(w, http.StatusOK, PaginatedResponse{
		Items:  []string{"call-1", "call-2"},
		Total:  7,
		Limit:  20,
		Offset: 0,
	})

	env := decodeEnvelope(t, w)
	data, ok := env.Data.(map[string]any)
	if !ok {
		t.Fatalf("data is %T, want map", env.Data)
	}
	if data["total"] != float64(7) || data["limit"] != float64(20) || data["offset"] != float64(0) {
		t.Errorf("unexpected paging metadata: %v", data)
	}
	items, ok := data["items"].([]any)
	if !ok || len(items) != 2 {
		t.Errorf("items = %v", data["items"])
	}
}
