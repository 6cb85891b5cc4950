package config

import "testing"

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
}

func TestLoadShiftDefaults(t *testing.T) {
	t.Setenv("SHIFT_UTC_OFFSET_HOURS", "")
	t.Setenv("SHIFT_BOUNDARY_HOUR", "")

	cfg := Load()
	if cfg.ShiftUTCOffsetHours != -5 {
		t.Fatalf("expected default offset -5, got %d", cfg.ShiftUTCOffsetHours)
	}
	if cfg.ShiftBoundaryHour != 6 {
		t.Fatalf("expected default boundary 6, got %d", cfg.ShiftBoundaryHour)
	}
}

func TestLoadRejectsOutOfRangeShiftValues(t *testing.T) {
	t.Setenv("SHIFT_UTC_OFFSET_HOURS", "99")
	t.Setenv("SHIFT_BOUNDARY_HOUR", "25")

	cfg := Load()
	if cfg.ShiftUTCOffsetHours != -5 {
		t.Fatalf("expected fallback offset -5, got %d", cfg.ShiftUTCOffsetHours)
	}
	if cfg.ShiftBoundaryHour != 6 {
		t.Fatalf("expected fallback boundary 6, got %d", cfg.ShiftBoundaryHour)
	}
}
