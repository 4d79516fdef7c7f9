// Package seat parses seat identifiers such as "A1" or "C20", expands
// operator-entered start/end pairs into concrete seat sets and groups the
// accumulated selection by row.
package seat

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrInvalidSeatFormat is matched (via errors.Is) by every *FormatError.
var ErrInvalidSeatFormat = errors.New("invalid seat format")

// FormatError names the token that failed to parse.
type FormatError struct {
	Token string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid seat format: %q (expected row letters followed by a seat number, e.g. A1)", e.Token)
}

func (e *FormatError) Is(target error) bool { return target == ErrInvalidSeatFormat }

// ID addresses one physical seat: row letters plus a 1-based seat number.
type ID struct {
	Row    string
	Number int
}

// Parse validates token against ^[A-Z]+[0-9]+$ and returns the seat it
// names.  The number must be positive and written without leading zeros so
// that every seat has exactly one spelling.
func Parse(token string) (ID, error) {
	i := 0
	for i < len(token) && token[i] >= 'A' && token[i] <= 'Z' {
		i++
	}
	if i == 0 || i == len(token) {
		return ID{}, &FormatError{Token: token}
	}
	digits := token[i:]
	for j := 0; j < len(digits); j++ {
		if digits[j] < '0' || digits[j] > '9' {
			return ID{}, &FormatError{Token: token}
		}
	}
	if digits[0] == '0' {
		return ID{}, &FormatError{Token: token}
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n <= 0 {
		return ID{}, &FormatError{Token: token}
	}
	return ID{Row: token[:i], Number: n}, nil
}

// MustParse is Parse for literals known to be valid; it panics otherwise.
func MustParse(token string) ID {
	id, err := Parse(token)
	if err != nil {
		panic(err)
	}
	return id
}

func (id ID) String() string { return id.Row + strconv.Itoa(id.Number) }

// RowCode returns the row's ordinal position.
func (id ID) RowCode() int {
	code, _ := RowCode(id.Row)
	return code
}

// MarshalText encodes the seat in its canonical token form.
func (id ID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

// UnmarshalText accepts only canonical tokens.
func (id *ID) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Compare orders seats by row, then by number ascending.  Rows are ordered
// by RowCode, which matches alphabetical order for single-letter rows and
// places "Z" before "AA".
func Compare(a, b ID) int {
	ra, rb := a.RowCode(), b.RowCode()
	switch {
	case ra < rb:
		return -1
	case ra > rb:
		return 1
	case a.Number < b.Number:
		return -1
	case a.Number > b.Number:
		return 1
	}
	return 0
}

// RowCode converts a row label like A or AA into its zero-based index
// (A=0, Z=25, AA=26).  ok is false for empty labels or non A-Z bytes.
func RowCode(label string) (code int, ok bool) {
	if label == "" {
		return -1, false
	}
	n := 0
	for i := 0; i < len(label); i++ {
		ch := label[i]
		if ch < 'A' || ch > 'Z' {
			return -1, false
		}
		n = n*26 + int(ch-'A'+1)
	}
	return n - 1, true
}

// RowLabel converts a zero-based index back into its row label.
func RowLabel(code int) string {
	if code < 0 {
		return ""
	}
	res := []byte{}
	for {
		res = append(res, byte('A'+code%26))
		code = code/26 - 1
		if code < 0 {
			break
		}
	}
	for j, k := 0, len(res)-1; j < k; j, k = j+1, k-1 {
		res[j], res[k] = res[k], res[j]
	}
	return string(res)
}
