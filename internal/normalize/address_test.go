package normalize

import (
	"testing"
)

func TestKey(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "full address with postal code",
			input: "Hauptstraße 5, 50667 Köln",
			want:  "hauptstr|50667",
		},
		{
			name:  "strasse spelling variant",
			input: "Hauptstrasse 12a, 50667 Koeln",
			want:  "hauptstr|50667",
		},
		{
			name:  "abbreviated street suffix",
			input: "Hauptstr. 7, 50667 Köln",
			want:  "hauptstr|50667",
		},
		{
			name:  "no postal code",
			input: "Schulstraße 3",
			want:  "schulstr|",
		},
		{
			name:  "multi word street",
			input: "Am Alten Markt 2, 04109 Leipzig",
			want:  "am alten markt|04109",
		},
		{
			name:  "house number with letter",
			input: "Gartenweg 12b, 80331 München",
			want:  "gartenweg|80331",
		},
		{
			name:  "numbered street name",
			input: "Straße des 17. Juni 135, 10623 Berlin",
			want:  "str des juni|10623",
		},
		{
			name:  "umlaut street",
			input: "Grüner Weg 8, 50667 Köln",
			want:  "gruener weg|50667",
		},
		{
			name:  "empty input",
			input: "",
			want:  "|",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Key(tt.input)
			if got != tt.want {
				t.Errorf("Key(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestKeyFromParts(t *testing.T) {
	tests := []struct {
		name       string
		street     string
		postalCode string
		want       string
	}{
		{
			name:       "plain street and postal code",
			street:     "Hauptstraße",
			postalCode: "50667",
			want:       "hauptstr|50667",
		},
		{
			name:       "abbreviated suffix",
			street:     "Hauptstr.",
			postalCode: "50667",
			want:       "hauptstr|50667",
		},
		{
			name:       "house number left inside street field",
			street:     "Bahnhofstrasse 12",
			postalCode: "22767",
			want:       "bahnhofstr|22767",
		},
		{
			name:       "missing postal code",
			street:     "Schulstr",
			postalCode: "",
			want:       "schulstr|",
		},
		{
			name:       "postal code with country prefix",
			street:     "Gartenweg",
			postalCode: "D-80331",
			want:       "gartenweg|80331",
		},
		{
			name:       "invalid postal code degrades to street only",
			street:     "Gartenweg",
			postalCode: "8033",
			want:       "gartenweg|",
		},
		{
			name:       "missing street",
			street:     "",
			postalCode: "80331",
			want:       "|80331",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := KeyFromParts(tt.street, tt.postalCode)
			if got != tt.want {
				t.Errorf("KeyFromParts(%q, %q) = %q, want %q", tt.street, tt.postalCode, got, tt.want)
			}
		})
	}
}

func TestKeyTreatsVariantsAsSamePlace(t *testing.T) {
	pairs := []struct {
		name string
		a    string
		b    string
	}{
		{
			name: "straße vs strasse",
			a:    "Hauptstraße 5, 50667 Köln",
			b:    "Hauptstrasse 12a, 50667 Koeln",
		},
		{
			name: "suffix vs abbreviation",
			a:    "Gartenstraße 3, 04109 Leipzig",
			b:    "Gartenstr. 11, 04109 Leipzig",
		},
		{
			name: "city spelling ignored",
			a:    "Schulstraße 1, 80331 München",
			b:    "Schulstraße 2, 80331 Muenchen",
		},
		{
			name: "umlaut vs written out",
			a:    "Grüner Weg 3, 50667 Köln",
			b:    "Gruener Weg 5, 50667 Köln",
		},
	}

	for _, tt := range pairs {
		t.Run(tt.name, func(t *testing.T) {
			if Key(tt.a) != Key(tt.b) {
				t.Errorf("Key(%q) = %q, Key(%q) = %q, want equal keys", tt.a, Key(tt.a), tt.b, Key(tt.b))
			}
		})
	}
}

func TestHasStreet(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"hauptstr|50667", true},
		{"hauptstr|", true},
		{"|50667", false},
		{"|", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := HasStreet(tt.key); got != tt.want {
				t.Errorf("HasStreet(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}
