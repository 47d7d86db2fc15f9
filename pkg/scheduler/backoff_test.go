package scheduler

import (
	"testing"
	"time"
)

func TestRetryBackoff(t *testing.T) {
	base := 100 * time.Millisecond
	tests := []struct {
		name    string
		attempt int
		want    time.Duration
	}{
		{"first retry", 0, 100 * time.Millisecond},
		{"second retry doubles", 1, 200 * time.Millisecond},
		{"third retry doubles again", 2, 400 * time.Millisecond},
		{"negative attempt", -1, 100 * time.Millisecond},
		{"large attempt capped", 40, maxBackoff},
		{"overflow-safe cap", 20, maxBackoff},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryBackoff(base, tt.attempt); got != tt.want {
				t.Errorf("retryBackoff(%v, %d) = %v, want %v", base, tt.attempt, got, tt.want)
			}
		})
	}
}
