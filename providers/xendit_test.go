package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/malwarebo/paybridge/models"
)

func TestXenditMapStatus(t *testing.T) {
	p := NewXenditProvider(models.KeyPair{KeyID: "xnd_pub", KeySecret: "xnd_dev"}, nil)

	tests := []struct {
		status string
		want   PaymentStatus
	}{
		{"SUCCEEDED", StatusCaptured},
		{"FAILED", StatusFailed},
		{"EXPIRED", StatusFailed},
		// An unfinished payment request must stay pre-charge: it still
		// needs customer action and cannot be captured.
		{"REQUIRES_ACTION", StatusCreated},
		{"PENDING", StatusCreated},
		{"AWAITING_CAPTURE", StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			if got := p.mapStatus(tt.status); got != tt.want {
				t.Errorf("mapStatus(%q) = %q, want %q", tt.status, got, tt.want)
			}
		})
	}
}

func TestXenditCaptureNotSupported(t *testing.T) {
	p := NewXenditProvider(models.KeyPair{KeyID: "xnd_pub", KeySecret: "xnd_dev"}, nil)
	if err := p.Capture(context.Background(), "pr-123", 10000, "IDR"); !errors.Is(err, ErrNotSupported) {
		t.Errorf("Capture() error = %v, want ErrNotSupported", err)
	}
}
