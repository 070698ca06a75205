package fault

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{NotFound("document %s not found", "x"), KindNotFound},
		{Precondition("classify first"), KindPreconditionFailed},
		{DataQuality("bad model answer"), KindUpstreamDataQuality},
		{InvalidInput("empty file"), KindInvalidInput},
		{Unprocessable("no text"), KindUnprocessable},
		{Timeout(context.DeadlineExceeded, "model call"), KindUpstreamTimeout},
		{Unavailable(errors.New("503"), "sheets api"), KindUpstreamUnavailable},
		{errors.New("plain"), KindUnknown},
		{fmt.Errorf("wrapped: %w", NotFound("gone")), KindNotFound},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestRetryable(t *testing.T) {
	if !Timeout(nil, "t").Retryable() || !Unavailable(nil, "u").Retryable() {
		t.Error("timeout and unavailable must be retryable")
	}
	for _, e := range []*Error{NotFound("x"), Precondition("x"), DataQuality("x"), InvalidInput("x")} {
		if e.Retryable() {
			t.Errorf("%v must not be retryable", e.Kind)
		}
	}
}

func TestUnwrap(t *testing.T) {
	cause := context.DeadlineExceeded
	err := Timeout(cause, "model call timed out")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("expected the cause to be reachable via errors.Is")
	}
	if want := "model call timed out: context deadline exceeded"; err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestKindStrings(t *testing.T) {
	tests := map[Kind]string{
		KindInvalidInput:        "invalid_input",
		KindUnprocessable:       "unprocessable_document",
		KindNotFound:            "not_found",
		KindPreconditionFailed:  "precondition_failed",
		KindUpstreamDataQuality: "upstream_data_quality",
		KindUpstreamTimeout:     "upstream_timeout",
		KindUpstreamUnavailable: "upstream_unavailable",
		KindUnknown:             "unknown",
	}
	for k, want := range tests {
		if k.String() != want {
			t.Errorf("%d.String() = %q, want %q", k, k.String(), want)
		}
	}
}
