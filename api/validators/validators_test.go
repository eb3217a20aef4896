package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	pkgerrors "github.com/fallstrom/kvittofri-backend/pkg/errors"
)

type demoBody struct {
	Code  string `json:"code" validate:"required,len=6,numeric"`
	Phone string `json:"phone" validate:"required"`
}

func TestDecodeJSONBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"code":"123456","phone":"+46701234567"}`))

	var body demoBody
	if err := DecodeJSONBody(req, &body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body.Code != "123456" {
		t.Fatalf("unexpected code %q", body.Code)
	}
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"code":"123456","phone":"x","extra":true}`))

	var body demoBody
	err := DecodeJSONBody(req, &body)
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDecodeJSONBodyFormatsFieldErrors(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"code":"12ab","phone":""}`))

	var body demoBody
	err := DecodeJSONBody(req, &body)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected typed validation error, got %v", err)
	}
	details, ok := typed.Details().(map[string]string)
	if !ok {
		t.Fatalf("expected field details, got %T", typed.Details())
	}
	if _, ok := details["code"]; !ok {
		t.Fatalf("expected code field in details: %v", details)
	}
	if _, ok := details["phone"]; !ok {
		t.Fatalf("expected phone field in details: %v", details)
	}
}

func TestParseMonth(t *testing.T) {
	month, err := ParseMonth("2025-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !month.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected month %s", month)
	}

	if _, err := ParseMonth("January 2025"); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=25", nil)
	value, err := ParseQueryInt(req, "limit", 10, 1, 100)
	if err != nil || value != 25 {
		t.Fatalf("unexpected result %d, %v", value, err)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	value, err = ParseQueryInt(req, "limit", 10, 1, 100)
	if err != nil || value != 10 {
		t.Fatalf("expected default, got %d, %v", value, err)
	}

	req = httptest.NewRequest(http.MethodGet, "/?limit=0", nil)
	if _, err = ParseQueryInt(req, "limit", 10, 1, 100); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected range error, got %v", err)
	}
}
