package apperr_test

import (
	"errors"
	"os"
	"strings"
	"testing"

	"partrecon/internal/apperr"
)

func TestMissingInputErrorUnwrapsToMarker(t *testing.T) {
	err := error(&apperr.MissingInputError{Kind: "manifest", Path: "/tmp/manifest.json"})
	if !errors.Is(err, apperr.ErrMissingInput) {
		t.Fatalf("expected ErrMissingInput, got %v", err)
	}
	if !strings.Contains(err.Error(), "/tmp/manifest.json") {
		t.Fatalf("expected message to name the path, got %q", err.Error())
	}
}

func TestMissingInputErrorWithoutPath(t *testing.T) {
	err := &apperr.MissingInputError{Kind: "results"}
	if got := err.Error(); got != "results file not configured" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestWrapKeepsMarkerAndCause(t *testing.T) {
	err := apperr.Wrap(apperr.ErrParse, "parse", "read export", os.ErrPermission)
	if !errors.Is(err, apperr.ErrParse) {
		t.Fatalf("expected ErrParse marker, got %v", err)
	}
	if !errors.Is(err, os.ErrPermission) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
	if !strings.Contains(err.Error(), "parse: read export") {
		t.Fatalf("expected stage detail, got %q", err.Error())
	}
}

func TestWrapWithoutMarker(t *testing.T) {
	err := apperr.Wrap(nil, "", "", nil)
	if err == nil || err.Error() != "operation failed" {
		t.Fatalf("unexpected error %v", err)
	}
}
