package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRespondWithError(t *testing.T) {
	tests := []struct {
		name    string
		code    int
		message string
	}{
		{name: "bad request", code: http.StatusBadRequest, message: "Invalid scope"},
		{name: "not found", code: http.StatusNotFound, message: "Job not found"},
		{name: "internal server error", code: http.StatusInternalServerError, message: "Something went wrong"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			RespondWithError(w, tt.code, tt.message)

			if w.Code != tt.code {
				t.Errorf("RespondWithError() status = %d, want %d", w.Code, tt.code)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("RespondWithError() Content-Type = %s, want application/json", ct)
			}

			var response ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if response.Error != tt.message {
				t.Errorf("RespondWithError() message = %s, want %s", response.Error, tt.message)
			}
		})
	}
}

func TestQueryHelpers(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/v1/models?limit=25&offset=abc&unique=true&active=0", nil)

	if got := QueryInt(r, "limit", 100); got != 25 {
		t.Errorf("QueryInt(limit) = %d, want 25", got)
	}
	if got := QueryInt(r, "offset", 7); got != 7 {
		t.Errorf("QueryInt(offset) = %d, want default 7", got)
	}
	if got := QueryInt(r, "missing", 3); got != 3 {
		t.Errorf("QueryInt(missing) = %d, want 3", got)
	}
	if !QueryBool(r, "unique") {
		t.Error("QueryBool(unique) = false, want true")
	}
	if QueryBool(r, "active") {
		t.Error("QueryBool(active) = true, want false")
	}
}
