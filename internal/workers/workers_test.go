package workers

import (
	"runtime"
	"testing"
)

func TestCount(t *testing.T) {
	t.Setenv(EnvOverride, "")

	availableCPU := runtime.GOMAXPROCS(0)

	tests := []struct {
		name       string
		multiplier float64
		limit      int
		minExpect  int
		maxExpect  int
	}{
		{
			name:       "CPU-bound task",
			multiplier: 1.0,
			limit:      0,
			minExpect:  1,
			maxExpect:  availableCPU,
		},
		{
			name:       "Mixed task",
			multiplier: 1.5,
			limit:      0,
			minExpect:  1,
			maxExpect:  int(float64(availableCPU) * 1.5),
		},
		{
			name:       "With limit lower than calculated",
			multiplier: 2.0,
			limit:      1,
			minExpect:  1,
			maxExpect:  1,
		},
		{
			name:       "Very low multiplier never drops below one",
			multiplier: 0.01,
			limit:      0,
			minExpect:  1,
			maxExpect:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Count(tt.multiplier, tt.limit)
			if got < tt.minExpect || got > tt.maxExpect {
				t.Errorf("Count(%v, %d) = %d, want in [%d, %d]",
					tt.multiplier, tt.limit, got, tt.minExpect, tt.maxExpect)
			}
		})
	}
}

func TestCountOverride(t *testing.T) {
	tests := []struct {
		name     string
		override string
		limit    int
		want     int
	}{
		{"override used", "3", 0, 3},
		{"override capped by limit", "12", 4, 4},
		{"invalid override ignored", "abc", 1, 1},
		{"zero override ignored", "0", 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvOverride, tt.override)
			if got := Count(1.0, tt.limit); got != tt.want {
				t.Errorf("Count with %s=%q = %d, want %d", EnvOverride, tt.override, got, tt.want)
			}
		})
	}
}

func TestForPages(t *testing.T) {
	tests := []struct {
		name     string
		override string
		pages    int
		want     int
	}{
		{"capped by page count", "6", 2, 2},
		{"capped by pool maximum", "20", 50, MaxPageWorkers},
		{"override below pages", "3", 10, 3},
		{"single page", "", 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvOverride, tt.override)
			if got := ForPages(tt.pages); got != tt.want {
				t.Errorf("ForPages(%d) with %s=%q = %d, want %d", tt.pages, EnvOverride, tt.override, got, tt.want)
			}
		})
	}
}

func TestForMerge(t *testing.T) {
	t.Setenv(EnvOverride, "")
	for inputs := 1; inputs <= 6; inputs++ {
		got := ForMerge(inputs)
		if got < 1 || got > inputs || got > MaxMergeWorkers {
			t.Errorf("ForMerge(%d) = %d, want in [1, min(%d, %d)]", inputs, got, inputs, MaxMergeWorkers)
		}
	}

	t.Setenv(EnvOverride, "9")
	if got := ForMerge(10); got != MaxMergeWorkers {
		t.Errorf("ForMerge(10) with override 9 = %d, want %d", got, MaxMergeWorkers)
	}
}
