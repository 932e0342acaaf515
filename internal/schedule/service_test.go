package schedule

import (
	"context"
	"testing"
)

func TestCronSpec(t *testing.T) {
	cases := []struct {
		at   string
		want string
		ok   bool
	}{
		{"00:10", "10 0 * * *", true},
		{"23:59", "59 23 * * *", true},
		{"8:05", "5 8 * * *", true},
		{"24:00", "", false},
		{"12:60", "", false},
		{"noon", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := cronSpec(tc.at)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("cronSpec(%q) = %q, %v; want %q", tc.at, got, err, tc.want)
		}
		if !tc.ok && err == nil {
			t.Fatalf("cronSpec(%q) should fail", tc.at)
		}
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	s := NewService("25:00", func(ctx context.Context) {})
	if err := s.Start(context.Background()); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

func TestStartAndStop(t *testing.T) {
	s := NewService("00:10", func(ctx context.Context) {})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Stop()
}
