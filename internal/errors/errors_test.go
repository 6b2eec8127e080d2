package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrapMatchesSentinel(t *testing.T) {
	cause := fmt.Errorf("dial tcp: timeout")
	err := WrapMessage(ErrProviderTransport, "schwab: request failed", cause)

	if !errors.Is(err, ErrProviderTransport) {
		t.Error("wrapped error should match its sentinel")
	}
	if errors.Is(err, ErrProviderAuth) {
		t.Error("wrapped error should not match a different sentinel")
	}
	if !errors.Is(err, cause) {
		t.Error("wrapped error should expose its cause")
	}
	if err.Error() != "schwab: request failed" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{ErrProviderNotConfigured, KindConfiguration},
		{WithMessage(ErrProviderAuth, "expired"), KindAuth},
		{ErrProviderRateLimited, KindRateLimit},
		{fmt.Errorf("fetch: %w", Wrap(ErrProviderTransport, errors.New("eof"))), KindTransport},
		{ErrProviderSchema, KindSchema},
		{ErrSyncInProgress, KindConflict},
		{ErrAccountNotFound, KindNotFound},
		{ErrInvalidInput, KindInternal},
		{errors.New("plain"), KindInternal},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestTransient(t *testing.T) {
	transient := map[Kind]bool{KindRateLimit: true, KindTransport: true}
	for _, k := range []Kind{KindConfiguration, KindAuth, KindRateLimit, KindTransport, KindSchema, KindConflict, KindNotFound, KindInternal} {
		if k.Transient() != transient[k] {
			t.Errorf("%s.Transient() = %v", k, k.Transient())
		}
	}
}
