package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/theater-qr-provisioning/internal/provision"
	"github.com/iliyamo/theater-qr-provisioning/internal/qrimage"
	"github.com/iliyamo/theater-qr-provisioning/internal/repository"
	"github.com/iliyamo/theater-qr-provisioning/internal/seat"
)

func do(t *testing.T, h echo.HandlerFunc, method, target, body string) (*httptest.ResponseRecorder, map[string]json.RawMessage) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	if err := h(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	out := map[string]json.RawMessage{}
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode %q: %v", rec.Body.String(), err)
		}
	}
	return rec, out
}

func kindOf(t *testing.T, body map[string]json.RawMessage) provision.Kind {
	t.Helper()
	var k provision.Kind
	if raw, ok := body["kind"]; ok {
		if err := json.Unmarshal(raw, &k); err != nil {
			t.Fatal(err)
		}
	}
	return k
}

func decodeSelection(t *testing.T, rec *httptest.ResponseRecorder) selectionResp {
	t.Helper()
	var resp selectionResp
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestSelectionAddRange(t *testing.T) {
	h := NewSelectionHandler(5)
	rec, _ := do(t, h.AddRange, http.MethodPost, "/v1/seat-selection/ranges",
		`{"state":{},"start":"A1","end":"B2"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	resp := decodeSelection(t, rec)
	if resp.Count != 4 || len(resp.Map) != 2 {
		t.Fatalf("count = %d, rows = %d", resp.Count, len(resp.Map))
	}
	if resp.Map[0].Row != "A" || resp.Map[1].Seats[1] != seat.MustParse("B2") {
		t.Fatalf("map = %+v", resp.Map)
	}
	if resp.OverMax || resp.MaxSeats != 5 {
		t.Fatalf("over_max = %v, max_seats = %d", resp.OverMax, resp.MaxSeats)
	}

	// feed the returned state back and grow past the batch limit
	state, _ := json.Marshal(resp.State)
	rec, _ = do(t, h.AddRange, http.MethodPost, "/v1/seat-selection/ranges",
		fmt.Sprintf(`{"state":%s,"start":"C1","end":"C3"}`, state))
	resp = decodeSelection(t, rec)
	if resp.Count != 7 || !resp.OverMax {
		t.Fatalf("count = %d, over_max = %v", resp.Count, resp.OverMax)
	}
	if len(resp.State.Ranges) != 2 {
		t.Fatalf("ranges = %v", resp.State.Ranges)
	}
}

func TestSelectionAddRangeRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		kind provision.Kind
	}{
		{"lower case", `{"start":"a1","end":"A2"}`, provision.KindInvalidSeatFormat},
		{"reversed", `{"start":"B1","end":"A1"}`, provision.KindRangeOrder},
		{"too large", `{"start":"A1","end":"ZZZ9"}`, provision.KindOversizedBatch},
		{"leading zero", `{"start":"A01","end":"A2"}`, provision.KindInvalidSeatFormat},
	}
	h := NewSelectionHandler(500)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := do(t, h.AddRange, http.MethodPost, "/v1/seat-selection/ranges", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if got := kindOf(t, body); got != tt.kind {
				t.Fatalf("kind = %q, want %q", got, tt.kind)
			}
		})
	}
}

func TestSelectionDeleteRow(t *testing.T) {
	var state seat.SelectionState
	for _, pair := range [][2]string{{"A1", "B3"}, {"C1", "C2"}} {
		r, err := seat.ParseRange(pair[0], pair[1])
		if err != nil {
			t.Fatal(err)
		}
		state = state.WithRange(r)
	}
	raw, _ := json.Marshal(state)

	h := NewSelectionHandler(0)
	rec, _ := do(t, h.DeleteRow, http.MethodPost, "/v1/seat-selection/rows/delete",
		fmt.Sprintf(`{"state":%s,"row":"B"}`, raw))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	resp := decodeSelection(t, rec)
	// A1-B3 spans row B and goes as a whole
	if resp.Count != 2 || len(resp.Map) != 1 || resp.Map[0].Row != "C" {
		t.Fatalf("resp = %+v", resp)
	}

	rec, _ = do(t, h.DeleteRow, http.MethodPost, "/v1/seat-selection/rows/delete",
		fmt.Sprintf(`{"state":%s,"row":"b"}`, raw))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("lower case row: status = %d", rec.Code)
	}
}

func TestSelectionRejectsTamperedState(t *testing.T) {
	// row codes that disagree with the labels
	body := `{"state":{"ranges":[{"start_row":"A","end_row":"B","start_number":1,"end_number":2,"start_row_code":0,"end_row_code":9}]},"row":"A"}`
	rec, _ := do(t, NewSelectionHandler(10).DeleteRow, http.MethodPost, "/v1/seat-selection/rows/delete", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 (%s)", rec.Code, rec.Body)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"seat missing", &provision.SeatOperationError{Op: "delete", Err: repository.ErrSeatNotFound}, http.StatusNotFound},
		{"seat duplicate", &provision.SeatOperationError{Op: "add", Err: repository.ErrDuplicateSeat}, http.StatusConflict},
		{"seat format", &provision.SeatOperationError{Op: "add", Err: &seat.FormatError{Token: "x"}}, http.StatusBadRequest},
		{"not screen", provision.ErrNotScreenCode, http.StatusBadRequest},
		{"inactive", fmt.Errorf("seat A1: %w", repository.ErrSeatInactive), http.StatusConflict},
		{"code missing", repository.ErrCodeNotFound, http.StatusNotFound},
		{"batch", &provision.BatchError{FailedSeats: []string{"A1"}, Err: errors.New("upload")}, http.StatusBadGateway},
		{"in flight", provision.ErrSubmissionInFlight, http.StatusConflict},
		{"oversized", fmt.Errorf("%w: too many", provision.ErrOversizedBatch), http.StatusBadRequest},
		{"size too small", fmt.Errorf("%w: 100 px", qrimage.ErrSizeTooSmall), http.StatusBadRequest},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Fatalf("statusFor = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestErrorBodyHidesInternalErrors(t *testing.T) {
	body := errorBody(errors.New("dial tcp 10.0.0.3:3306: refused"))
	if body["error"] != "internal error" {
		t.Fatalf("error = %v", body["error"])
	}
	body = errorBody(repository.ErrCodeNotFound)
	if body["error"] != repository.ErrCodeNotFound.Error() || body["kind"] != provision.KindNotFound {
		t.Fatalf("body = %v", body)
	}
}

func TestImageSize(t *testing.T) {
	h := &CodeHandler{ImageSize: 512, MaxImageSize: 2048, QuietZone: 32}
	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{"", 512, false},
		{"256", 256, false},
		{"128", 128, false},
		{"9000", 2048, false},
		{"127", 0, true},
		{"100", 0, true},
		{"64", 0, true},
		{"big", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := h.imageSize(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("size = %d, want %d", got, tt.want)
			}
		})
	}
}

type fakeScans struct {
	err   error
	calls []provision.ScanTarget
}

func (f *fakeScans) IncrementScan(_ context.Context, theaterID uint64, qrName, seatID string) error {
	f.calls = append(f.calls, provision.ScanTarget{TheaterID: theaterID, QRName: qrName, Seat: seatID})
	return f.err
}

func TestScanRecord(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		err    error
		want   int
		counts int
	}{
		{"screen seat", "theater=7&qr=Screen+1&type=screen&seat=A1", nil, http.StatusOK, 1},
		{"single", "theater=7&qr=Canteen&type=single", nil, http.StatusOK, 1},
		{"inactive seat", "theater=7&qr=Screen+1&type=screen&seat=A1", repository.ErrSeatInactive, http.StatusConflict, 1},
		{"unknown code", "theater=7&qr=Nope&type=single", repository.ErrCodeNotFound, http.StatusNotFound, 1},
		{"missing seat", "theater=7&qr=Screen+1&type=screen", nil, http.StatusBadRequest, 0},
		{"bad theater", "theater=x&qr=Canteen&type=single", nil, http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeScans{err: tt.err}
			rec, _ := do(t, NewScanHandler(store).Record, http.MethodGet, "/v1/scan?"+tt.query, "")
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body)
			}
			if len(store.calls) != tt.counts {
				t.Fatalf("store calls = %d, want %d", len(store.calls), tt.counts)
			}
		})
	}
}

func TestHealthWithoutStores(t *testing.T) {
	rec, body := do(t, NewHealthHandler(nil, nil).Health, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if string(body["redis"]) != `"disabled"` {
		t.Fatalf("redis = %s", body["redis"])
	}
}

func TestImageRejectsSizeBelowQuietZoneFloor(t *testing.T) {
	// Seats is nil: a size rejected up front never reaches rendering
	h := &CodeHandler{ImageSize: 512, MaxImageSize: 2048, QuietZone: 32}
	for _, size := range []string{"64", "100"} {
		t.Run(size, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/v1/theaters/7/codes/3/image?seat=A1&size="+size, nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)
			c.SetParamNames("theater_id", "code_id")
			c.SetParamValues("7", "3")
			if err := h.Image(c); err != nil {
				t.Fatal(err)
			}
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (%s)", rec.Code, rec.Body)
			}
		})
	}
}

func TestErrorBodySizeTooSmall(t *testing.T) {
	body := errorBody(fmt.Errorf("%w: 100 px with 32 px quiet zone for 49 modules", qrimage.ErrSizeTooSmall))
	if body["kind"] != provision.KindValidation {
		t.Fatalf("body = %v", body)
	}
}
