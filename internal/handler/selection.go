package handler

import (
	"fmt"      // fmt wraps validation errors
	"net/http" // http defines status code constants
	"strings"  // strings trims user input

	"github.com/labstack/echo/v4" // echo framework provides context and JSON helpers

	"github.com/iliyamo/theater-qr-provisioning/internal/provision" // provision owns the error kinds
	"github.com/iliyamo/theater-qr-provisioning/internal/seat"      // seat parses ranges and groups rows
)

// fallbackRangeLimit caps one range when no batch limit is configured.
const fallbackRangeLimit = 10000

// SelectionHandler edits a seat selection the client keeps between
// requests.  Nothing is stored server side.
type SelectionHandler struct {
	MaxSeats int // batch limit reported back so the client can warn early
}

func NewSelectionHandler(maxSeats int) *SelectionHandler {
	return &SelectionHandler{MaxSeats: maxSeats}
}

type addRangeReq struct {
	State seat.SelectionState `json:"state"` // selection so far
	Start string              `json:"start"` // first seat of the range
	End   string              `json:"end"`   // last seat, inclusive
}

type deleteRowReq struct {
	State seat.SelectionState `json:"state"` // selection so far
	Row   string              `json:"row"`   // row label to drop
}

type selectionResp struct {
	State    seat.SelectionState `json:"state"`     // updated selection to post back next time
	Map      []seat.RowGroup     `json:"map"`       // seats grouped by row for display
	Count    int                 `json:"count"`     // distinct seats selected
	MaxSeats int                 `json:"max_seats"` // batch limit, 0 when unlimited
	OverMax  bool                `json:"over_max"`  // the selection would fail submission
}

// AddRange handles POST /v1/seat-selection/ranges.
func (h *SelectionHandler) AddRange(c echo.Context) error {
	var req addRangeReq
	if err := c.Bind(&req); err != nil { // bind incoming JSON
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := h.checkState(req.State); err != nil { // the client may post anything
		return fail(c, err)
	}
	r, err := seat.ParseRange(strings.TrimSpace(req.Start), strings.TrimSpace(req.End))
	if err != nil {
		return fail(c, err)
	}
	if err := h.checkRange(r); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, h.respond(req.State.WithRange(r)))
}

// DeleteRow handles POST /v1/seat-selection/rows/delete.  Every range that
// spans the row is dropped whole.
func (h *SelectionHandler) DeleteRow(c echo.Context) error {
	var req deleteRowReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := h.checkState(req.State); err != nil {
		return fail(c, err)
	}
	row := strings.TrimSpace(req.Row)
	if _, ok := seat.RowCode(row); !ok { // letters only
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid row label"})
	}
	return c.JSON(http.StatusOK, h.respond(req.State.DeleteRow(row)))
}

// checkState validates a posted state and refuses ranges too large to
// expand.
func (h *SelectionHandler) checkState(s seat.SelectionState) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("%w: selection: %w", provision.ErrValidation, err)
	}
	for _, r := range s.Ranges {
		if err := h.checkRange(r); err != nil {
			return err
		}
	}
	return nil
}

// checkRange refuses a range holding more seats than one batch may.
func (h *SelectionHandler) checkRange(r seat.Range) error {
	limit := h.MaxSeats
	if limit <= 0 { // unlimited batches still get a sane cap
		limit = fallbackRangeLimit
	}
	if r.Exceeds(limit) {
		return fmt.Errorf("%w: range %s holds more than %d seats", provision.ErrOversizedBatch, r, limit)
	}
	return nil
}

// respond renders s with empty slices instead of null.
func (h *SelectionHandler) respond(s seat.SelectionState) selectionResp {
	m := s.Map()
	if m == nil {
		m = []seat.RowGroup{}
	}
	if s.Ranges == nil {
		s.Ranges = []seat.Range{}
	}
	if s.Selected == nil {
		s.Selected = []seat.ID{}
	}
	return selectionResp{
		State:    s,
		Map:      m,
		Count:    s.Len(),
		MaxSeats: h.MaxSeats,
		OverMax:  h.MaxSeats > 0 && s.Len() > h.MaxSeats,
	}
}
