package lock

import (
	"testing"
	"time"

	"github.com/akquise-tool/internal/record"
)

var day0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func dataset(id, creator string, createdAt time.Time) record.Dataset {
	return record.Dataset{
		ID:                id,
		NormalizedAddress: "schulstr|80331",
		HouseNumber:       "1,2",
		CreatedAt:         createdAt,
		CreatedBy:         creator,
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name        string
		matches     []record.Dataset
		identity    string
		now         time.Time
		wantAllowed bool
		wantReason  string
		wantBlockID string
	}{
		{
			name:        "no matches",
			matches:     nil,
			identity:    "lisa",
			now:         day0.AddDate(0, 0, 5),
			wantAllowed: true,
			wantReason:  ReasonNoRecentVisit,
		},
		{
			name:        "recent dataset of another agent blocks",
			matches:     []record.Dataset{dataset("D1", "max", day0)},
			identity:    "lisa",
			now:         day0.AddDate(0, 0, 5),
			wantAllowed: false,
			wantReason:  ReasonRecentVisit,
			wantBlockID: "D1",
		},
		{
			name:        "creator is exempt from their own lock",
			matches:     []record.Dataset{dataset("D1", "max", day0)},
			identity:    "max",
			now:         day0.AddDate(0, 0, 5),
			wantAllowed: true,
			wantReason:  ReasonCreatorExempt,
		},
		{
			name:        "lock expires after the window",
			matches:     []record.Dataset{dataset("D1", "max", day0)},
			identity:    "lisa",
			now:         day0.AddDate(0, 0, 31),
			wantAllowed: true,
			wantReason:  ReasonNoRecentVisit,
		},
		{
			name:        "record exactly window old no longer blocks",
			matches:     []record.Dataset{dataset("D1", "max", day0)},
			identity:    "lisa",
			now:         day0.Add(DefaultWindow),
			wantAllowed: true,
			wantReason:  ReasonNoRecentVisit,
		},
		{
			name: "most recent foreign dataset is reported",
			matches: []record.Dataset{
				dataset("D1", "max", day0),
				dataset("D2", "tom", day0.AddDate(0, 0, 3)),
			},
			identity:    "lisa",
			now:         day0.AddDate(0, 0, 5),
			wantAllowed: false,
			wantReason:  ReasonRecentVisit,
			wantBlockID: "D2",
		},
		{
			name: "own dataset does not shadow a foreign one",
			matches: []record.Dataset{
				dataset("D1", "lisa", day0.AddDate(0, 0, 4)),
				dataset("D2", "max", day0),
			},
			identity:    "lisa",
			now:         day0.AddDate(0, 0, 5),
			wantAllowed: false,
			wantReason:  ReasonRecentVisit,
			wantBlockID: "D2",
		},
		{
			name:        "future creation time still blocks",
			matches:     []record.Dataset{dataset("D1", "max", day0.Add(time.Hour))},
			identity:    "lisa",
			now:         day0,
			wantAllowed: false,
			wantReason:  ReasonRecentVisit,
			wantBlockID: "D1",
		},
		{
			name: "expired foreign and recent own allow creation",
			matches: []record.Dataset{
				dataset("D1", "max", day0.AddDate(0, 0, -40)),
				dataset("D2", "lisa", day0),
			},
			identity:    "lisa",
			now:         day0.AddDate(0, 0, 5),
			wantAllowed: true,
			wantReason:  ReasonCreatorExempt,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.matches, tt.identity, tt.now, DefaultWindow)

			if got.Allowed != tt.wantAllowed {
				t.Errorf("Evaluate() allowed = %v, want %v", got.Allowed, tt.wantAllowed)
			}
			if got.Reason != tt.wantReason {
				t.Errorf("Evaluate() reason = %q, want %q", got.Reason, tt.wantReason)
			}
			if tt.wantBlockID == "" {
				if got.Blocking != nil {
					t.Errorf("Evaluate() blocking = %v, want none", got.Blocking)
				}
			} else {
				if got.Blocking == nil {
					t.Fatalf("Evaluate() blocking = nil, want %q", tt.wantBlockID)
				}
				if got.Blocking.ID != tt.wantBlockID {
					t.Errorf("Evaluate() blocking = %q, want %q", got.Blocking.ID, tt.wantBlockID)
				}
			}
		})
	}
}

func TestEvaluateDefaultsWindow(t *testing.T) {
	matches := []record.Dataset{dataset("D1", "max", day0)}

	got := Evaluate(matches, "lisa", day0.AddDate(0, 0, 5), 0)
	if got.Allowed {
		t.Errorf("Evaluate() with zero window should fall back to the default window and block")
	}

	got = Evaluate(matches, "lisa", day0.AddDate(0, 0, 31), 0)
	if !got.Allowed {
		t.Errorf("Evaluate() with zero window should not block past the default window")
	}
}
