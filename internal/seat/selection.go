package seat

import "sort"

// RowGroup is one row of the seat map with its seats in ascending order.
type RowGroup struct {
	Row   string `json:"row"`
	Seats []ID   `json:"seats"`
}

// SelectionState is the operator's working seat set: every accepted range
// and the seats they contributed.  It is a plain value; operations return
// a new state and never modify the receiver, so the state can be sent to
// a client and posted back between edits.
type SelectionState struct {
	Ranges   []Range `json:"ranges"`
	Selected []ID    `json:"selected"`
}

// AddRange expands start..end and merges it into the selection.  Adding a
// range that is already present, or seats that are already selected,
// leaves the state unchanged.
func (s SelectionState) AddRange(start, end ID) (SelectionState, error) {
	r, err := NewRange(start, end)
	if err != nil {
		return s, err
	}
	return s.WithRange(r), nil
}

// WithRange merges an already validated range into the selection.
func (s SelectionState) WithRange(r Range) SelectionState {
	out := SelectionState{
		Ranges:   append([]Range(nil), s.Ranges...),
		Selected: append([]ID(nil), s.Selected...),
	}
	known := false
	for _, existing := range out.Ranges {
		if existing == r {
			known = true
			break
		}
	}
	if !known {
		out.Ranges = append(out.Ranges, r)
	}
	out.Selected = union(out.Selected, r.Seats())
	return out
}

// DeleteRow drops every range whose row interval contains row, along with
// the seats of that row and any seat no remaining range still covers.
// Deletion is range-grained: a row cannot be removed from a multi-row
// range without discarding the whole range.
func (s SelectionState) DeleteRow(row string) SelectionState {
	out := SelectionState{}
	for _, r := range s.Ranges {
		if !r.ContainsRow(row) {
			out.Ranges = append(out.Ranges, r)
		}
	}
	covered := make(map[ID]struct{})
	for _, r := range out.Ranges {
		for _, id := range r.Seats() {
			covered[id] = struct{}{}
		}
	}
	for _, id := range s.Selected {
		if id.Row == row {
			continue
		}
		if _, ok := covered[id]; ok {
			out.Selected = append(out.Selected, id)
		}
	}
	return out
}

// Contains reports whether id is selected.
func (s SelectionState) Contains(id ID) bool {
	for _, sel := range s.Selected {
		if sel == id {
			return true
		}
	}
	return false
}

// Len returns the number of selected seats.
func (s SelectionState) Len() int { return len(s.Selected) }

// Sorted returns the selected seats in canonical order.
func (s SelectionState) Sorted() []ID {
	out := append([]ID(nil), s.Selected...)
	sortIDs(out)
	return out
}

// Map groups the selected seats by row.
func (s SelectionState) Map() []RowGroup { return group(s.Selected) }

// Validate checks a state decoded from a client.
func (s SelectionState) Validate() error {
	for _, r := range s.Ranges {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// BuildMap expands every range, de-duplicates the union and groups it by
// row: rows ascending, seats ascending within each row.
func BuildMap(ranges []Range) []RowGroup {
	var all []ID
	for _, r := range ranges {
		all = union(all, r.Seats())
	}
	return group(all)
}

func group(ids []ID) []RowGroup {
	sorted := append([]ID(nil), ids...)
	sortIDs(sorted)
	var out []RowGroup
	for _, id := range sorted {
		if n := len(out); n > 0 && out[n-1].Row == id.Row {
			out[n-1].Seats = append(out[n-1].Seats, id)
			continue
		}
		out = append(out, RowGroup{Row: id.Row, Seats: []ID{id}})
	}
	return out
}

// union appends the members of add missing from base and returns the
// result in canonical order.
func union(base, add []ID) []ID {
	seen := make(map[ID]struct{}, len(base)+len(add))
	out := make([]ID, 0, len(base)+len(add))
	for _, list := range [][]ID{base, add} {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	sortIDs(out)
	return out
}

func sortIDs(ids []ID) {
	sort.SliceStable(ids, func(i, j int) bool { return Compare(ids[i], ids[j]) < 0 })
}
