package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"transient gateway error", &GatewayError{Kind: GatewayTransient, Op: "embed", Err: errors.New("timeout")}, true},
		{"wrapped transient", fmt.Errorf("store fp: %w", &GatewayError{Kind: GatewayTransient, Op: "chat", Err: errors.New("503")}), true},
		{"malformed output", &GatewayError{Kind: GatewayMalformedOutput, Op: "chat", Err: errors.New("bad json")}, false},
		{"rejected request", &GatewayError{Kind: GatewayRejected, Op: "embed", Err: errors.New("401")}, false},
		{"plain error", errors.New("boom"), false},
		{"sentinel", ErrDimensionMismatch, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestGatewayErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("embed fp: %w", &GatewayError{Kind: GatewayTransient, Op: "embed", Err: cause})
	if !errors.Is(err, cause) {
		t.Error("wrapped cause lost through GatewayError")
	}
}
