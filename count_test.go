package tiktok

import "testing"

func TestParseCount(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in     string
		want   int
		wantOK bool
	}{
		{"987", 987, true},
		{"1,204", 1204, true},
		{"12.5K", 12500, true},
		{"3M", 3_000_000, true},
		{"1.2b", 1_200_000_000, true},
		{" 4.7 K ", 4700, true},
		{"0", 0, true},
		{"", 0, false},
		{"Share", 0, false},
		{"K", 0, false},
		{"-5", 0, false},
		{"1e300", 0, false},
		{"9e18K", 0, false},
		{"NaN", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseCount(tt.in)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("parseCount(%q) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestCountPtr(t *testing.T) {
	t.Parallel()
	if p := countPtr("nope"); p != nil {
		t.Errorf("expected nil, got %d", *p)
	}
	if p := countPtr("2K"); p == nil || *p != 2000 {
		t.Errorf("expected 2000, got %v", p)
	}
}
