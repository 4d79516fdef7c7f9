package seat

import (
	"errors"
	"fmt"
)

// ErrRangeOrder is matched (via errors.Is) by every *RangeOrderError.
var ErrRangeOrder = errors.New("range start after end")

// RangeOrderError reports a start seat that sorts after the end seat.
type RangeOrderError struct {
	Start, End ID
}

func (e *RangeOrderError) Error() string {
	return fmt.Sprintf("seat range start %s comes after end %s", e.Start, e.End)
}

func (e *RangeOrderError) Is(target error) bool { return target == ErrRangeOrder }

// Range is a validated start/end pair.
//
// When the pair spans more than one row the end number acts as the row
// width: the start row holds StartNumber..EndNumber and every following
// row holds 1..EndNumber.  A1..C20 therefore yields A1-A20, B1-B20 and
// C1-C20.  Existing venues were provisioned with this rule, so it must not
// be changed into strict interpolation.
type Range struct {
	StartRow     string `json:"start_row"`
	EndRow       string `json:"end_row"`
	StartNumber  int    `json:"start_number"`
	EndNumber    int    `json:"end_number"`
	StartRowCode int    `json:"start_row_code"`
	EndRowCode   int    `json:"end_row_code"`
}

// NewRange builds a Range from two seats, rejecting start > end.
func NewRange(start, end ID) (Range, error) {
	if Compare(start, end) > 0 {
		return Range{}, &RangeOrderError{Start: start, End: end}
	}
	return Range{
		StartRow:     start.Row,
		EndRow:       end.Row,
		StartNumber:  start.Number,
		EndNumber:    end.Number,
		StartRowCode: start.RowCode(),
		EndRowCode:   end.RowCode(),
	}, nil
}

// ParseRange parses both tokens and builds the Range.
func ParseRange(start, end string) (Range, error) {
	s, err := Parse(start)
	if err != nil {
		return Range{}, err
	}
	e, err := Parse(end)
	if err != nil {
		return Range{}, err
	}
	return NewRange(s, e)
}

// Expand returns every seat the start/end pair implies in row-major,
// then numeric order.
func Expand(start, end string) ([]ID, error) {
	r, err := ParseRange(start, end)
	if err != nil {
		return nil, err
	}
	return r.Seats(), nil
}

// Start returns the range's first seat as entered.
func (r Range) Start() ID { return ID{Row: r.StartRow, Number: r.StartNumber} }

// End returns the range's last seat as entered.
func (r Range) End() ID { return ID{Row: r.EndRow, Number: r.EndNumber} }

func (r Range) String() string { return r.Start().String() + "-" + r.End().String() }

// ContainsRow reports whether the row lies within the range's row interval.
func (r Range) ContainsRow(row string) bool {
	code, ok := RowCode(row)
	return ok && code >= r.StartRowCode && code <= r.EndRowCode
}

// firstNumber is the first seat number emitted for the given row code.
func (r Range) firstNumber(code int) int {
	if code == r.StartRowCode {
		return r.StartNumber
	}
	return 1
}

// Count returns len(r.Seats()) without materialising the seats.
func (r Range) Count() int {
	total := 0
	for code := r.StartRowCode; code <= r.EndRowCode; code++ {
		if n := r.EndNumber - r.firstNumber(code) + 1; n > 0 {
			total += n
		}
	}
	return total
}

// Exceeds reports whether the range holds more than limit seats.  It runs
// in constant time so oversized input is refused before expansion.
func (r Range) Exceeds(limit int) bool {
	first := r.EndNumber - r.StartNumber + 1
	if first < 0 {
		first = 0
	}
	if first > limit {
		return true
	}
	rest := r.EndRowCode - r.StartRowCode
	if rest <= 0 {
		return false
	}
	if rest > limit || r.EndNumber > limit {
		return true
	}
	return first+rest*r.EndNumber > limit
}

// Seats expands the range.
func (r Range) Seats() []ID {
	out := make([]ID, 0, r.Count())
	for code := r.StartRowCode; code <= r.EndRowCode; code++ {
		row := RowLabel(code)
		for n := r.firstNumber(code); n <= r.EndNumber; n++ {
			out = append(out, ID{Row: row, Number: n})
		}
	}
	return out
}

// Validate checks that a decoded Range is internally consistent.
func (r Range) Validate() error {
	start, err := Parse(r.Start().String())
	if err != nil {
		return err
	}
	end, err := Parse(r.End().String())
	if err != nil {
		return err
	}
	want, err := NewRange(start, end)
	if err != nil {
		return err
	}
	if want != r {
		return fmt.Errorf("seat range %s: row codes do not match row labels", r)
	}
	return nil
}
