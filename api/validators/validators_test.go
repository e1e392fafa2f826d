package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	pkgerrors "github.com/angelmondragon/branchledger/pkg/errors"
)

type sampleBody struct {
	Name  string       `json:"name" validate:"required"`
	Items []sampleItem `json:"items" validate:"required,min=1,dive"`
}

type sampleItem struct {
	Quantity int `json:"quantity" validate:"gt=0"`
}

func TestDecodeJSONBodyReportsNestedFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x","items":[{"quantity":1},{"quantity":0}]}`))
	var body sampleBody
	err := DecodeJSONBody(req, &body)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := typed.Details().(map[string]string)
	if !ok {
		t.Fatalf("unexpected details %T", typed.Details())
	}
	if details["items[1].quantity"] != "must be greater than 0" {
		t.Fatalf("unexpected details %v", details)
	}
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x","items":[{"quantity":1}],"extra":true}`))
	var body sampleBody
	if err := DecodeJSONBody(req, &body); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParseIfMatch(t *testing.T) {
	tests := []struct {
		header  string
		want    int
		present bool
		fails   bool
	}{
		{header: "", present: false},
		{header: "*", present: false},
		{header: `"4"`, want: 4, present: true},
		{header: `W/"7"`, want: 7, present: true},
		{header: "12", want: 12, present: true},
		{header: `"abc"`, fails: true},
		{header: `"0"`, fails: true},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		if tt.header != "" {
			req.Header.Set("If-Match", tt.header)
		}
		got, err := ParseIfMatch(req)
		if tt.fails {
			if err == nil {
				t.Fatalf("%q: expected error", tt.header)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: unexpected error %v", tt.header, err)
		}
		if (got != nil) != tt.present {
			t.Fatalf("%q: presence mismatch", tt.header)
		}
		if got != nil && *got != tt.want {
			t.Fatalf("%q: expected %d got %d", tt.header, tt.want, *got)
		}
	}
}

func TestParseUUIDParam(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rc := chi.NewRouteContext()
	rc.URLParams.Add("id", "not-a-uuid")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
	if _, err := ParseUUIDParam(req, "id"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParseQueryHelpers(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=500&branch=nope", nil)
	if _, err := ParseQueryInt(req, "limit", 20, 1, 100); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected range error, got %v", err)
	}
	if _, err := ParseQueryUUID(req, "branch"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected uuid error, got %v", err)
	}
	if id, err := ParseQueryUUID(req, "missing"); err != nil || id != nil {
		t.Fatalf("expected nil for missing param, got %v %v", id, err)
	}
}

func TestSanitizeString(t *testing.T) {
	cases := []struct {
		name  string
		input string
		max   int
		want  string
	}{
		{name: "trims", input: "  Ankara  ", max: 20, want: "Ankara"},
		{name: "drops control characters", input: "Izmir\x00\x07 Depot", max: 20, want: "Izmir Depot"},
		{name: "keeps line breaks in notes", input: "line one\nline two", max: 0, want: "line one\nline two"},
		{name: "caps by rune", input: "Şişli Çarşı", max: 5, want: "Şişli"},
		{name: "no cap", input: "Gaziantep", max: 0, want: "Gaziantep"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeString(tc.input, tc.max); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestDecodeJSONBodyRejectsTrailingData(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x","items":[{"quantity":1}]} {"name":"y"}`))
	var body sampleBody
	if err := DecodeJSONBody(req, &body); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDecodeJSONBodyRejectsOversizedBody(t *testing.T) {
	payload := `{"name":"` + strings.Repeat("a", maxBodyBytes) + `","items":[{"quantity":1}]}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(payload))
	var body sampleBody
	if err := DecodeJSONBody(req, &body); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
