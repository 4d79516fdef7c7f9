package provision

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/iliyamo/theater-qr-provisioning/internal/model"
	"github.com/iliyamo/theater-qr-provisioning/internal/qrimage"
	"github.com/iliyamo/theater-qr-provisioning/internal/repository"
	"github.com/iliyamo/theater-qr-provisioning/internal/seat"
)

func provisioned(t *testing.T, h *harness, req Request) *model.ProvisionedCode {
	t.Helper()
	out, err := h.o.Submit(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return out.Code
}

func seatService(h *harness) *SeatService {
	return &SeatService{
		Codes:    h.codes,
		Images:   h.images,
		Renderer: h.renderer,
		Index:    h.index,
		Events:   h.events,
		Settings: h.o.Settings,
	}
}

func TestAddSeat(t *testing.T) {
	h := newHarness()
	code := provisioned(t, h, screenRequest("A1", "A2"))
	svc := seatService(h)

	cs, err := svc.AddSeat(context.Background(), theaterID, code.ID, "B7")
	if err != nil {
		t.Fatal(err)
	}
	if cs.Seat != "B7" || cs.QRCodeURL == "" || !cs.IsActive {
		t.Fatalf("seat = %+v", cs)
	}
	got, _ := h.codes.GetByID(context.Background(), theaterID, code.ID)
	if !reflect.DeepEqual(got.SeatTokens(), []string{"A1", "A2", "B7"}) {
		t.Fatalf("seats = %v", got.SeatTokens())
	}
	last := h.events.events[len(h.events.events)-1]
	if last.kind != SeatAdded || last.seat != "B7" {
		t.Fatalf("event = %+v", last)
	}
}

func TestSeatOperationFailuresLeaveSiblings(t *testing.T) {
	cases := []struct {
		name  string
		run   func(*SeatService, uint64) error
		cause error
	}{
		{"add duplicate", func(s *SeatService, id uint64) error {
			_, err := s.AddSeat(context.Background(), theaterID, id, "A1")
			return err
		}, repository.ErrDuplicateSeat},
		{"add bad token", func(s *SeatService, id uint64) error {
			_, err := s.AddSeat(context.Background(), theaterID, id, "a1")
			return err
		}, seat.ErrInvalidSeatFormat},
		{"update missing", func(s *SeatService, id uint64) error {
			active := false
			_, err := s.UpdateSeat(context.Background(), theaterID, id, "Z9", model.SeatPatch{IsActive: &active})
			return err
		}, repository.ErrSeatNotFound},
		{"rename onto sibling", func(s *SeatService, id uint64) error {
			to := "A2"
			_, err := s.UpdateSeat(context.Background(), theaterID, id, "A1", model.SeatPatch{Seat: &to})
			return err
		}, repository.ErrDuplicateSeat},
		{"delete missing", func(s *SeatService, id uint64) error {
			return s.DeleteSeat(context.Background(), theaterID, id, "Q1")
		}, repository.ErrSeatNotFound},
		{"wrong theater", func(s *SeatService, id uint64) error {
			return s.DeleteSeat(context.Background(), 99, id, "A1")
		}, repository.ErrCodeNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness()
			code := provisioned(t, h, screenRequest("A1", "A2"))
			err := tc.run(seatService(h), code.ID)
			var opErr *SeatOperationError
			if !errors.As(err, &opErr) || !errors.Is(err, tc.cause) {
				t.Fatalf("err = %v, want seat operation error caused by %v", err, tc.cause)
			}
			if KindOf(err) != KindPartialSeatOperationFailure {
				t.Fatalf("kind = %s", KindOf(err))
			}
			got, _ := h.codes.GetByID(context.Background(), theaterID, code.ID)
			if !reflect.DeepEqual(got.SeatTokens(), []string{"A1", "A2"}) {
				t.Fatalf("siblings changed: %v", got.SeatTokens())
			}
		})
	}
}

func TestUpdateSeat(t *testing.T) {
	h := newHarness()
	code := provisioned(t, h, screenRequest("A1", "A2"))
	svc := seatService(h)
	oldKey := code.Seats[0].ImageKey

	active := false
	cs, err := svc.UpdateSeat(context.Background(), theaterID, code.ID, "A1", model.SeatPatch{IsActive: &active})
	if err != nil {
		t.Fatal(err)
	}
	if cs.IsActive || cs.ImageKey != oldKey {
		t.Fatalf("toggle changed more than the flag: %+v", cs)
	}

	to := "C3"
	cs, err = svc.UpdateSeat(context.Background(), theaterID, code.ID, "A1", model.SeatPatch{Seat: &to})
	if err != nil {
		t.Fatal(err)
	}
	if cs.Seat != "C3" || cs.ImageKey == oldKey || cs.IsActive {
		t.Fatalf("renamed seat = %+v", cs)
	}
	if _, ok := h.images.objects[oldKey]; ok {
		t.Fatal("old image should be deleted after a rename")
	}
	if _, ok := h.images.objects[cs.ImageKey]; !ok {
		t.Fatal("new image missing")
	}

	if _, err := svc.UpdateSeat(context.Background(), theaterID, code.ID, "C3", model.SeatPatch{}); err == nil {
		t.Fatal("empty patch must fail")
	}
}

func TestDeleteSeatAndCode(t *testing.T) {
	h := newHarness()
	code := provisioned(t, h, screenRequest("A1", "A2", "A3"))
	svc := seatService(h)

	if err := svc.DeleteSeat(context.Background(), theaterID, code.ID, "A2"); err != nil {
		t.Fatal(err)
	}
	if h.images.count() != 2 {
		t.Fatalf("images = %d", h.images.count())
	}

	if err := svc.DeleteCode(context.Background(), theaterID, code.ID); err != nil {
		t.Fatal(err)
	}
	if h.images.count() != 0 {
		t.Fatalf("images left = %d", h.images.count())
	}
	if _, err := h.codes.GetByID(context.Background(), theaterID, code.ID); !errors.Is(err, repository.ErrCodeNotFound) {
		t.Fatalf("err = %v", err)
	}
	eligible, err := h.o.Eligible(context.Background(), theaterID, "")
	if err != nil {
		t.Fatal(err)
	}
	if eligible[0].QRName != "Screen 1" {
		t.Fatalf("deleted name should be eligible again: %v", eligible)
	}
}

func TestSeatOpsRejectSingleCodes(t *testing.T) {
	h := newHarness()
	code := provisioned(t, h, Request{TheaterID: theaterID, QRType: model.QRTypeSingle, QRName: "Canteen", LogoType: model.LogoTypeNone})
	_, err := seatService(h).AddSeat(context.Background(), theaterID, code.ID, "A1")
	if !errors.Is(err, ErrNotScreenCode) {
		t.Fatalf("err = %v", err)
	}
}

func TestRenderAndSheet(t *testing.T) {
	h := newHarness()
	code := provisioned(t, h, screenRequest("A1", "A2"))
	svc := seatService(h)

	png, err := svc.Render(context.Background(), theaterID, code.ID, "A2", 300)
	if err != nil {
		t.Fatal(err)
	}
	if string(png) != BuildPayload(h.o.Settings.OrderBaseURL, theaterID, "Screen 1", "A2", model.QRTypeScreen) {
		t.Fatalf("rendered %q", png)
	}
	if _, err := svc.Render(context.Background(), theaterID, code.ID, "Z1", 300); !errors.Is(err, repository.ErrSeatNotFound) {
		t.Fatalf("err = %v", err)
	}

	h.renderer.failSeat = "A2"
	_, images, err := svc.RenderSheet(context.Background(), theaterID, code.ID, 200)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := images["A1"]; !ok || len(images) != 1 {
		t.Fatalf("sheet images = %v", len(images))
	}
}

func TestRecordScan(t *testing.T) {
	h := newHarness()
	code := provisioned(t, h, screenRequest("A1", "A2"))
	active := false
	if _, err := seatService(h).UpdateSeat(context.Background(), theaterID, code.ID, "A2", model.SeatPatch{IsActive: &active}); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		seat string
		want error
	}{
		{"A1", nil},
		{"A2", repository.ErrSeatInactive},
		{"B9", repository.ErrSeatNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.seat, func(t *testing.T) {
			err := RecordScan(context.Background(), h.codes, ScanTarget{TheaterID: theaterID, QRName: "Screen 1", QRType: model.QRTypeScreen, Seat: tc.seat})
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
	got, _ := h.codes.GetByID(context.Background(), theaterID, code.ID)
	if got.Seats[0].ScanCount != 1 {
		t.Fatalf("scan count = %d", got.Seats[0].ScanCount)
	}
}

func TestRenderSheetErrors(t *testing.T) {
	h := newHarness()
	code := provisioned(t, h, screenRequest("A1", "A2"))
	svc := seatService(h)

	h.renderer.err = fmt.Errorf("%w: 100 px", qrimage.ErrSizeTooSmall)
	if _, _, err := svc.RenderSheet(context.Background(), theaterID, code.ID, 100); !errors.Is(err, qrimage.ErrSizeTooSmall) {
		t.Fatalf("err = %v", err)
	}
	if KindOf(fmt.Errorf("sheet: %w", qrimage.ErrSizeTooSmall)) != KindValidation {
		t.Fatal("a too small size is the caller's mistake")
	}

	// nothing rendered: an empty sheet is not a result
	h.renderer.err = errors.New("encode failed")
	if _, images, err := svc.RenderSheet(context.Background(), theaterID, code.ID, 300); err == nil {
		t.Fatalf("empty sheet returned %d images", len(images))
	}
}
