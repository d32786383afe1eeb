package diagnostics

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestDiagnosticsRoutes(t *testing.T) {
	mock := newMock(t)
	app := fiber.New()
	RegisterRoutes(app.Group("/admin/diagnostics"), NewService(mock, nil))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/admin/diagnostics/schema/expected", nil))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("expected schema: %v", err)
	}
	var schema Schema
	if err := json.NewDecoder(resp.Body).Decode(&schema); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(schema.Tables) != len(ExpectedSchema().Tables) {
		t.Fatalf("unexpected table count %d", len(schema.Tables))
	}

	expectSchema(mock, Schema{})
	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/admin/diagnostics/gaps", nil))
	var body struct {
		Gaps  []Gap `json:"gaps"`
		Count int   `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode gaps: %v", err)
	}
	if body.Count != len(body.Gaps) || body.Gaps[0].Priority != PriorityCritical {
		t.Fatalf("unexpected gaps body %+v", body)
	}

	req := httptest.NewRequest(http.MethodPost, "/admin/diagnostics/gaps/apply", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	resp, _ = app.Test(req)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without id, got %d", resp.StatusCode)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
