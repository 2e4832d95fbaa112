package ratelimit

import (
	"net/http"
	"testing"

	"github.com/rs/zerolog"
)

func headersWith(limit, usage string) http.Header {
	h := http.Header{}
	if limit != "" {
		h.Set(HeaderLimit, limit)
	}
	if usage != "" {
		h.Set(HeaderUsage, usage)
	}
	return h
}

func TestUpdateFromHeaders_WellFormed(t *testing.T) {
	tracker := NewTracker(zerolog.Nop())

	tracker.UpdateFromHeaders(headersWith("600,30000", "314,2716"))

	state := tracker.State()
	if !state.Known {
		t.Fatal("state should be known after well-formed headers")
	}
	if state.FifteenMinute.Usage != 314 || state.FifteenMinute.Limit != 600 {
		t.Errorf("fifteen minute window = %+v, want usage 314 limit 600", state.FifteenMinute)
	}
	if state.Daily.Usage != 2716 || state.Daily.Limit != 30000 {
		t.Errorf("daily window = %+v, want usage 2716 limit 30000", state.Daily)
	}
}

func TestUpdateFromHeaders_AbsentHeadersIgnored(t *testing.T) {
	tracker := NewTracker(zerolog.Nop())

	tracker.UpdateFromHeaders(http.Header{})

	if _, known := tracker.FifteenMinuteBudgetExceeded(); known {
		t.Error("state should be unknown when headers are absent")
	}
}

func TestUpdateFromHeaders_MalformedNeverExceeded(t *testing.T) {
	tests := []struct {
		name  string
		limit string
		usage string
	}{
		{"garbage limit", "not-a-pair", "1,2"},
		{"garbage usage", "600,30000", "banana"},
		{"missing usage", "600,30000", ""},
		{"too many fields", "1,2,3", "1,2"},
		{"non numeric", "a,b", "c,d"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := NewTracker(zerolog.Nop())
			tracker.UpdateFromHeaders(headersWith(tt.limit, tt.usage))

			exceeded, known := tracker.FifteenMinuteBudgetExceeded()
			if known {
				t.Error("malformed headers must leave state unknown")
			}
			if exceeded {
				t.Error("unknown state must never report exceeded")
			}
		})
	}
}

func TestUpdateFromHeaders_MalformedKeepsPreviousState(t *testing.T) {
	tracker := NewTracker(zerolog.Nop())

	tracker.UpdateFromHeaders(headersWith("600,30000", "100,200"))
	tracker.UpdateFromHeaders(headersWith("broken", "still broken"))

	state := tracker.State()
	if !state.Known {
		t.Fatal("previous well-formed state should survive a malformed update")
	}
	if state.FifteenMinute.Usage != 100 {
		t.Errorf("fifteen minute usage = %d, want 100", state.FifteenMinute.Usage)
	}
}

func TestBudgetExceeded(t *testing.T) {
	tests := []struct {
		name        string
		usage       string
		wantFifteen bool
		wantDaily   bool
	}{
		{"healthy", "10,100", false, false},
		{"fifteen minute spent", "600,100", true, false},
		{"daily spent", "10,30000", false, true},
		{"over the limit", "601,30001", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := NewTracker(zerolog.Nop())
			tracker.UpdateFromHeaders(headersWith("600,30000", tt.usage))

			fifteen, known := tracker.FifteenMinuteBudgetExceeded()
			if !known {
				t.Fatal("state should be known")
			}
			if fifteen != tt.wantFifteen {
				t.Errorf("FifteenMinuteBudgetExceeded() = %v, want %v", fifteen, tt.wantFifteen)
			}
			daily, _ := tracker.DailyBudgetExceeded()
			if daily != tt.wantDaily {
				t.Errorf("DailyBudgetExceeded() = %v, want %v", daily, tt.wantDaily)
			}
		})
	}
}

func TestParsePair_WhitespaceTolerated(t *testing.T) {
	fifteen, daily, err := parsePair(" 42 , 1000 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fifteen != 42 || daily != 1000 {
		t.Errorf("parsePair = (%d, %d), want (42, 1000)", fifteen, daily)
	}
}
