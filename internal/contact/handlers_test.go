package contact

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pashagolub/pgxmock/v3"
)

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if fe, ok := err.(*fiber.Error); ok {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func TestContactHandler(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`INSERT INTO contact_inquiries`).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	app := fiber.New(fiber.Config{ErrorHandler: errorHandler})
	RegisterRoutes(app.Group("/api/contact"), NewService(mock, nil), nil)

	post := func(in Inquiry) (*http.Response, map[string]string) {
		body, _ := json.Marshal(in)
		req := httptest.NewRequest(http.MethodPost, "/api/contact/", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("request error: %v", err)
		}
		var out map[string]string
		_ = json.NewDecoder(resp.Body).Decode(&out)
		return resp, out
	}

	resp, out := post(Inquiry{Email: "ada@example.com"})
	if resp.StatusCode != http.StatusBadRequest || out["error"] != MsgMissingFields {
		t.Fatalf("unexpected missing-name response %d %v", resp.StatusCode, out)
	}

	resp, out = post(Inquiry{FirstName: "Ada", Email: "ada@example.com", Regions: []string{"Patagonia"}})
	if resp.StatusCode != http.StatusCreated || out["message"] != MsgThanks {
		t.Fatalf("unexpected success response %d %v", resp.StatusCode, out)
	}
}
