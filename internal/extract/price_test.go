package extract

import "testing"

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"$34.99", 34.99, true},
		{"$1,234.50", 1234.50, true},
		{"$5,120.96", 5120.96, true},
		{"34.99", 34.99, true},
		{"As low as $2,650.40 each", 2650.40, true},
		{"$12", 12, true},
		{"", 0, false},
		{"Call for price", 0, false},
		{"$,", 0, false},
	}

	for _, tt := range tests {
		got := ParsePrice(tt.in)
		if tt.ok {
			if got == nil {
				t.Errorf("ParsePrice(%q) = nil, want %v", tt.in, tt.want)
				continue
			}
			if *got != tt.want {
				t.Errorf("ParsePrice(%q) = %v, want %v", tt.in, *got, tt.want)
			}
		} else if got != nil {
			t.Errorf("ParsePrice(%q) = %v, want nil", tt.in, *got)
		}
	}
}

func TestParsePriceIdempotentProjection(t *testing.T) {
	// Re-formatting the parsed value and parsing again yields the same
	// number.
	first := ParsePrice("$1,234.50")
	if first == nil {
		t.Fatal("expected parse")
	}
	second := ParsePrice("1234.50")
	if second == nil || *second != *first {
		t.Fatalf("projection not stable: %v vs %v", first, second)
	}
}
