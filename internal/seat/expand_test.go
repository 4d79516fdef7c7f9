package seat

import (
	"errors"
	"strings"
	"testing"
)

func tokens(ids []ID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return strings.Join(parts, ",")
}

func TestExpandSingleRow(t *testing.T) {
	tests := []struct {
		start, end string
		want       int
	}{
		{"A1", "A1", 1},
		{"A1", "A20", 20},
		{"B5", "B9", 5},
		{"AA3", "AA4", 2},
	}
	for _, tt := range tests {
		t.Run(tt.start+"-"+tt.end, func(t *testing.T) {
			got, err := Expand(tt.start, tt.end)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != tt.want {
				t.Fatalf("len = %d, want %d", len(got), tt.want)
			}
			first := MustParse(tt.start)
			for i, id := range got {
				if id.Row != first.Row || id.Number != first.Number+i {
					t.Fatalf("seat %d = %s, not contiguous from %s", i, id, first)
				}
			}
		})
	}
}

func TestExpandMultiRowUsesEndNumberAsRowWidth(t *testing.T) {
	got, err := Expand("A1", "C20")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 60 {
		t.Fatalf("len = %d, want 60", len(got))
	}
	for i, row := range []string{"A", "B", "C"} {
		for n := 1; n <= 20; n++ {
			id := got[i*20+n-1]
			if id.Row != row || id.Number != n {
				t.Fatalf("got %s at %d, want %s%d", id, i*20+n-1, row, n)
			}
		}
	}

	got, err = Expand("A5", "B8")
	if err != nil {
		t.Fatal(err)
	}
	want := "A5,A6,A7,A8,B1,B2,B3,B4,B5,B6,B7,B8"
	if tokens(got) != want {
		t.Errorf("Expand(A5,B8) = %s, want %s", tokens(got), want)
	}

	// The start row is empty when its start number exceeds the row width.
	got, err = Expand("A9", "B3")
	if err != nil {
		t.Fatal(err)
	}
	if tokens(got) != "B1,B2,B3" {
		t.Errorf("Expand(A9,B3) = %s", tokens(got))
	}
}

func TestExpandErrors(t *testing.T) {
	if _, err := Expand("B5", "A1"); !errors.Is(err, ErrRangeOrder) {
		t.Errorf("Expand(B5,A1) error = %v, want ErrRangeOrder", err)
	}
	if _, err := Expand("A9", "A2"); !errors.Is(err, ErrRangeOrder) {
		t.Errorf("Expand(A9,A2) error = %v, want ErrRangeOrder", err)
	}
	if _, err := Expand("1A", "A1"); !errors.Is(err, ErrInvalidSeatFormat) {
		t.Errorf("Expand(1A,A1) error = %v, want ErrInvalidSeatFormat", err)
	}
	if _, err := Expand("A1", "A"); !errors.Is(err, ErrInvalidSeatFormat) {
		t.Errorf("Expand(A1,A) error = %v, want ErrInvalidSeatFormat", err)
	}
}

func TestExpandIsDeterministic(t *testing.T) {
	a, _ := Expand("B2", "D7")
	b, _ := Expand("B2", "D7")
	if tokens(a) != tokens(b) {
		t.Fatal("expanding the same pair twice should give identical results")
	}
}

func TestRangeCountMatchesSeats(t *testing.T) {
	for _, pair := range [][2]string{{"A1", "A1"}, {"A1", "C20"}, {"A9", "B3"}, {"Y4", "AB6"}} {
		r, err := ParseRange(pair[0], pair[1])
		if err != nil {
			t.Fatal(err)
		}
		if r.Count() != len(r.Seats()) {
			t.Errorf("%s: Count = %d, len(Seats) = %d", r, r.Count(), len(r.Seats()))
		}
	}
}

func TestRangeValidate(t *testing.T) {
	r, _ := ParseRange("A1", "B4")
	if err := r.Validate(); err != nil {
		t.Fatalf("valid range rejected: %v", err)
	}
	r.EndRowCode = 7
	if err := r.Validate(); err == nil {
		t.Fatal("range with inconsistent row code should be rejected")
	}
	bad := Range{StartRow: "a", EndRow: "B", StartNumber: 1, EndNumber: 2}
	if err := bad.Validate(); !errors.Is(err, ErrInvalidSeatFormat) {
		t.Fatalf("bad row label error = %v", err)
	}
}

func TestRangeExceeds(t *testing.T) {
	tests := []struct {
		start, end string
		limit      int
		want       bool
	}{
		{"A1", "A20", 20, false},
		{"A1", "A20", 19, true},
		{"A1", "C20", 60, false},
		{"A1", "C20", 59, true},
		{"A25", "C20", 40, false},
		{"A25", "C20", 39, true},
		{"A1", "ZZZZ1", 500, true},
		{"A1", "B999999999", 500, true},
		{"A5", "A5", 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.start+"-"+tt.end, func(t *testing.T) {
			r, err := ParseRange(tt.start, tt.end)
			if err != nil {
				t.Fatal(err)
			}
			if got := r.Exceeds(tt.limit); got != tt.want {
				t.Fatalf("Exceeds(%d) = %v, want %v", tt.limit, got, tt.want)
			}
			if r.Count() <= 100 && r.Exceeds(tt.limit) != (r.Count() > tt.limit) {
				t.Fatalf("Exceeds disagrees with Count() = %d", r.Count())
			}
		})
	}
}
