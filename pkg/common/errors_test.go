package common

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
)

func TestStageErrorsUnwrap(t *testing.T) {
	wrapped := fmt.Errorf("cycle failed: %w", &FetchError{Op: "query", Err: io.ErrUnexpectedEOF})

	var fe *FetchError
	if !errors.As(wrapped, &fe) {
		t.Fatalf("errors.As(FetchError) = false for %v", wrapped)
	}
	if !errors.Is(wrapped, io.ErrUnexpectedEOF) {
		t.Errorf("errors.Is(io.ErrUnexpectedEOF) = false")
	}

	ce := &ClassificationError{Op: "kmeans", Err: ErrInsufficientData}
	if !errors.Is(ce, ErrInsufficientData) {
		t.Errorf("ClassificationError should unwrap to ErrInsufficientData")
	}
}

func TestNotifyErrorMessage(t *testing.T) {
	err := &NotifyError{Op: "slack", StatusCode: 502, Err: errors.New("bad gateway")}
	if got := err.Error(); !strings.Contains(got, "HTTP 502") || !strings.HasPrefix(got, "notify: slack") {
		t.Errorf("Error() = %q", got)
	}

	err = &NotifyError{Op: "slack", Err: errors.New("connection refused")}
	if got, want := err.Error(), "notify: slack: connection refused"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestFormatValue(t *testing.T) {
	cases := map[float64]string{
		95.2:       "95.2",
		90:         "90",
		12.3456:    "12.35",
		0.004:      "0",
		99.999:     "100",
		80.0999999: "80.1",
	}
	for in, want := range cases {
		if got := FormatValue(in); got != want {
			t.Errorf("FormatValue(%v) = %q, want %q", in, got, want)
		}
	}
}
