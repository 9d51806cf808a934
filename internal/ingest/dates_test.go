package ingest

import (
	"testing"
	"time"
)

func TestNormalizeClosingDate(t *testing.T) {
	now := time.Date(2025, 5, 30, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		raw         string
		wantDisplay string
		wantDays    int
		wantKnown   bool
	}{
		{"plain", "2025-06-01T10:00:00", "01/06/2025 10:00", 2, true},
		{"fractional seconds", "2025-06-01T15:30:00.123456", "01/06/2025 15:30", 2, true},
		{"trailing Z", "2025-06-01T10:00:00Z", "01/06/2025 10:00", 2, true},
		{"positive offset stripped", "2025-06-01T10:00:00+04:00", "01/06/2025 10:00", 2, true},
		{"negative offset stripped", "2025-06-01T10:00:00-04:00", "01/06/2025 10:00", 2, true},
		{"negative offset with fraction", "2025-06-01T10:00:00.123456-04:00", "01/06/2025 10:00", 2, true},
		{"surrounding whitespace", "  2025-06-01T10:00:00  ", "01/06/2025 10:00", 2, true},
		{"same day", "2025-05-30T22:00:00", "30/05/2025 22:00", 0, true},
		{"already closed clamps to zero", "2025-05-01T00:00:00", "01/05/2025 00:00", 0, true},
		{"empty", "", "N/A", 0, false},
		{"whitespace only", "   ", "N/A", 0, false},
		{"garbage", "mañana", "N/A", 0, false},
		{"date only", "2025-06-01", "N/A", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			display, days := NormalizeClosingDate(tt.raw, now)
			if display != tt.wantDisplay {
				t.Errorf("display = %q, want %q", display, tt.wantDisplay)
			}
			if days.Known != tt.wantKnown || days.Days != tt.wantDays {
				t.Errorf("days = %+v, want {%d %v}", days, tt.wantDays, tt.wantKnown)
			}
		})
	}
}

func TestNormalizeClosingDateFloorsPartialDays(t *testing.T) {
	now := time.Date(2025, 5, 30, 10, 0, 0, 0, time.UTC)

	// 47 hours out is still one whole day, not two.
	display, days := NormalizeClosingDate("2025-06-01T09:00:00", now)
	if display != "01/06/2025 09:00" {
		t.Errorf("display = %q", display)
	}
	if !days.Known || days.Days != 1 {
		t.Errorf("days = %+v, want {1 true}", days)
	}
}
