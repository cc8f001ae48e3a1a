package housenumber

import (
	"testing"
)

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		candidate string
		want      bool
	}{
		{
			name:      "identical single numbers",
			query:     "1",
			candidate: "1",
			want:      true,
		},
		{
			name:      "range covers query",
			query:     "2",
			candidate: "1-3",
			want:      true,
		},
		{
			name:      "query range covers candidate",
			query:     "10-15",
			candidate: "12",
			want:      true,
		},
		{
			name:      "ranges overlap partially",
			query:     "1-5",
			candidate: "5-9",
			want:      true,
		},
		{
			name:      "disjoint ranges",
			query:     "1-3",
			candidate: "4-6",
			want:      false,
		},
		{
			name:      "list misses range",
			query:     "8,9",
			candidate: "1-5",
			want:      false,
		},
		{
			name:      "letter suffix matches verbatim",
			query:     "12a",
			candidate: "12a,14",
			want:      true,
		},
		{
			name:      "letter suffix does not match bare number",
			query:     "12a",
			candidate: "12",
			want:      false,
		},
		{
			name:      "opaque malformed token matches itself",
			query:     "5-3",
			candidate: "5-3",
			want:      true,
		},
		{
			name:      "empty query matches nothing",
			query:     "",
			candidate: "1-3",
			want:      false,
		},
		{
			name:      "both empty",
			query:     "",
			candidate: "",
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overlaps(tt.query, tt.candidate); got != tt.want {
				t.Errorf("Overlaps(%q, %q) = %v, want %v", tt.query, tt.candidate, got, tt.want)
			}
		})
	}
}

func TestOverlapsIsSymmetric(t *testing.T) {
	pairs := [][2]string{
		{"1", "1-3"},
		{"1-5", "3-7"},
		{"2,4", "4-6"},
		{"12a", "12"},
		{"", "1"},
		{"5-3", "3-5"},
	}

	for _, pair := range pairs {
		ab := Overlaps(pair[0], pair[1])
		ba := Overlaps(pair[1], pair[0])
		if ab != ba {
			t.Errorf("Overlaps(%q, %q) = %v but Overlaps(%q, %q) = %v", pair[0], pair[1], ab, pair[1], pair[0], ba)
		}
	}
}
