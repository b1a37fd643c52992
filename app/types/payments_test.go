package types

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestNewExternalReferenceRequestFromContextTrims(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest("GET", "/payments/EXT1", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("external_reference")
	ctx.SetParamValues(" EXT1 ")

	parsed, err := NewExternalReferenceRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if parsed.ExternalReference != "EXT1" {
		t.Fatalf("expected trimmed reference, got %q", parsed.ExternalReference)
	}
	if err := parsed.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}
}

func TestExternalReferenceRequestValidate(t *testing.T) {
	if err := (&ExternalReferenceRequest{}).Validate(); err == nil {
		t.Fatal("expected required validation error")
	}
	if err := (&ExternalReferenceRequest{ExternalReference: strings.Repeat("x", 129)}).Validate(); err == nil {
		t.Fatal("expected length validation error")
	}
}
