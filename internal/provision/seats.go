package provision

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/theater-qr-provisioning/internal/config"
	"github.com/iliyamo/theater-qr-provisioning/internal/model"
	"github.com/iliyamo/theater-qr-provisioning/internal/qrimage"
	"github.com/iliyamo/theater-qr-provisioning/internal/repository"
	"github.com/iliyamo/theater-qr-provisioning/internal/seat"
)

// SeatStore edits the seats of an existing code.  Seat rows are addressed
// by (codeID, seat); concurrent edits of the same seat are last write wins.
type SeatStore interface {
	GetByID(ctx context.Context, theaterID, codeID uint64) (*model.ProvisionedCode, error)
	AddSeat(ctx context.Context, codeID uint64, s *model.CodeSeat) error
	UpdateSeat(ctx context.Context, codeID uint64, current string, next model.CodeSeat) (*model.CodeSeat, error)
	DeleteSeat(ctx context.Context, codeID uint64, seat string) error
	Delete(ctx context.Context, theaterID, codeID uint64) error
}

// SeatService changes one seat at a time after provisioning.  A failure
// is reported as *SeatOperationError and leaves the sibling seats alone.
type SeatService struct {
	Codes    SeatStore
	Images   ImageStore
	Renderer Renderer
	Index    Index
	Events   Events
	Log      *logrus.Logger
	Settings Settings
}

const (
	SeatAdded   = "added"
	SeatUpdated = "updated"
	SeatDeleted = "deleted"
)

// AddSeat renders and stores the code of a new seat and appends it.
func (s *SeatService) AddSeat(ctx context.Context, theaterID, codeID uint64, token string) (*model.CodeSeat, error) {
	opErr := func(err error) error {
		return &SeatOperationError{Op: "add", CodeID: codeID, Seat: token, Err: err}
	}
	id, err := seat.Parse(token)
	if err != nil {
		return nil, opErr(err)
	}
	code, err := s.screenCode(ctx, theaterID, codeID)
	if err != nil {
		return nil, opErr(err)
	}
	if findSeat(code, id.String()) != nil {
		return nil, opErr(repository.ErrDuplicateSeat)
	}

	url, key, err := s.renderSeat(ctx, code, id.String())
	if err != nil {
		return nil, opErr(err)
	}
	cs := &model.CodeSeat{CodeID: codeID, Seat: id.String(), QRCodeURL: url, ImageKey: key, IsActive: true}
	if err := s.Codes.AddSeat(ctx, codeID, cs); err != nil {
		s.dropImage(ctx, key)
		return nil, opErr(err)
	}
	s.changed(ctx, theaterID, codeID, cs.Seat, SeatAdded)
	return cs, nil
}

// UpdateSeat applies patch to one seat.  Renaming the seat re-renders its
// code and replaces the stored image.
func (s *SeatService) UpdateSeat(ctx context.Context, theaterID, codeID uint64, token string, patch model.SeatPatch) (*model.CodeSeat, error) {
	opErr := func(err error) error {
		return &SeatOperationError{Op: "update", CodeID: codeID, Seat: token, Err: err}
	}
	if patch.Empty() {
		verr := &ValidationError{}
		verr.add("patch", "nothing to update", nil)
		return nil, opErr(verr)
	}
	code, err := s.screenCode(ctx, theaterID, codeID)
	if err != nil {
		return nil, opErr(err)
	}
	current := findSeat(code, token)
	if current == nil {
		return nil, opErr(repository.ErrSeatNotFound)
	}

	next := *current
	if patch.IsActive != nil {
		next.IsActive = *patch.IsActive
	}
	var newKey string
	if patch.Seat != nil && *patch.Seat != current.Seat {
		id, err := seat.Parse(*patch.Seat)
		if err != nil {
			return nil, opErr(err)
		}
		if findSeat(code, id.String()) != nil {
			return nil, opErr(repository.ErrDuplicateSeat)
		}
		url, key, err := s.renderSeat(ctx, code, id.String())
		if err != nil {
			return nil, opErr(err)
		}
		next.Seat, next.QRCodeURL, next.ImageKey = id.String(), url, key
		newKey = key
	}

	updated, err := s.Codes.UpdateSeat(ctx, codeID, current.Seat, next)
	if err != nil {
		s.dropImage(ctx, newKey)
		return nil, opErr(err)
	}
	if newKey != "" {
		s.dropImage(ctx, current.ImageKey)
	}
	s.changed(ctx, theaterID, codeID, updated.Seat, SeatUpdated)
	return updated, nil
}

// DeleteSeat removes one seat and its image.
func (s *SeatService) DeleteSeat(ctx context.Context, theaterID, codeID uint64, token string) error {
	opErr := func(err error) error {
		return &SeatOperationError{Op: "delete", CodeID: codeID, Seat: token, Err: err}
	}
	code, err := s.screenCode(ctx, theaterID, codeID)
	if err != nil {
		return opErr(err)
	}
	current := findSeat(code, token)
	if current == nil {
		return opErr(repository.ErrSeatNotFound)
	}
	if err := s.Codes.DeleteSeat(ctx, codeID, current.Seat); err != nil {
		return opErr(err)
	}
	s.dropImage(ctx, current.ImageKey)
	s.changed(ctx, theaterID, codeID, current.Seat, SeatDeleted)
	return nil
}

// DeleteCode removes a code with all of its seats and images.  The name
// becomes eligible again.
func (s *SeatService) DeleteCode(ctx context.Context, theaterID, codeID uint64) error {
	code, err := s.Codes.GetByID(ctx, theaterID, codeID)
	if err != nil {
		return err
	}
	if err := s.Codes.Delete(ctx, theaterID, codeID); err != nil {
		return err
	}
	s.dropImage(ctx, code.ImageKey)
	for _, cs := range code.Seats {
		s.dropImage(ctx, cs.ImageKey)
	}
	s.invalidate(ctx, theaterID)
	if s.Events != nil {
		s.Events.CodeDeleted(ctx, *code)
	}
	s.logger().WithFields(logrus.Fields{
		"theater_id": theaterID,
		"code_id":    codeID,
		"qr_name":    code.QRName,
		"seats":      len(code.Seats),
	}).Info("code deleted")
	return nil
}

// Render produces a fresh PNG of a seat (or of a single code when token is
// empty) at the requested size without storing it.
func (s *SeatService) Render(ctx context.Context, theaterID, codeID uint64, token string, size int) ([]byte, error) {
	code, err := s.Codes.GetByID(ctx, theaterID, codeID)
	if err != nil {
		return nil, err
	}
	seatID := ""
	switch code.QRType {
	case model.QRTypeScreen:
		cs := findSeat(code, token)
		if cs == nil {
			return nil, repository.ErrSeatNotFound
		}
		seatID = cs.Seat
	default:
		if token != "" {
			return nil, ErrNotScreenCode
		}
	}
	if size <= 0 {
		size = s.Settings.ImageSize
	}
	res, err := s.Renderer.Composite(ctx, BuildPayload(s.Settings.OrderBaseURL, code.TheaterID, code.QRName, seatID, code.QRType), size, brandingOf(code))
	if err != nil {
		return nil, err
	}
	if res.BrandingErr != nil {
		s.logger().WithFields(logrus.Fields{"code_id": codeID, "seat": seatID}).WithError(res.BrandingErr).Warn("branding unavailable")
	}
	return res.PNG, nil
}

// RenderSheet renders every image of a code at size for printing.  Keys
// are seat ids, or "" for a single code.  A seat that fails to render is
// left out and logged so the rest of the sheet still prints.  A size too
// small for the codes, or a sheet where nothing rendered, is an error.
func (s *SeatService) RenderSheet(ctx context.Context, theaterID, codeID uint64, size int) (*model.ProvisionedCode, map[string][]byte, error) {
	code, err := s.Codes.GetByID(ctx, theaterID, codeID)
	if err != nil {
		return nil, nil, err
	}
	tokens := []string{""}
	if code.QRType == model.QRTypeScreen {
		tokens = code.SeatTokens()
	}
	images := make(map[string][]byte, len(tokens))
	var lastErr error
	for _, tok := range tokens {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		res, err := s.Renderer.Composite(ctx, BuildPayload(s.Settings.OrderBaseURL, code.TheaterID, code.QRName, tok, code.QRType), size, brandingOf(code))
		if errors.Is(err, qrimage.ErrSizeTooSmall) {
			return nil, nil, err
		}
		if err != nil {
			config.LogError(s.logger(), "provision", "RenderSheet", "render seat", tok, err)
			lastErr = err
			continue
		}
		images[tok] = res.PNG
	}
	if len(images) == 0 && lastErr != nil {
		return nil, nil, lastErr
	}
	return code, images, nil
}

func (s *SeatService) screenCode(ctx context.Context, theaterID, codeID uint64) (*model.ProvisionedCode, error) {
	code, err := s.Codes.GetByID(ctx, theaterID, codeID)
	if err != nil {
		return nil, err
	}
	if code.QRType != model.QRTypeScreen {
		return nil, ErrNotScreenCode
	}
	return code, nil
}

func (s *SeatService) renderSeat(ctx context.Context, code *model.ProvisionedCode, seatID string) (string, string, error) {
	url, key, warn, err := RenderAndStore(ctx, s.Renderer, s.Images, s.Settings, code, seatID, s.Settings.ImageSize)
	if warn != nil {
		s.logger().WithFields(logrus.Fields{
			"theater_id": code.TheaterID,
			"qr_name":    code.QRName,
			"seat":       seatID,
		}).WithError(warn).Warn("branding unavailable; code rendered without logo")
	}
	return url, key, err
}

func (s *SeatService) dropImage(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.Images.Delete(context.WithoutCancel(ctx), key); err != nil {
		config.LogError(s.logger(), "provision", "dropImage", "delete image", key, err)
	}
}

func (s *SeatService) changed(ctx context.Context, theaterID, codeID uint64, seatID, action string) {
	s.invalidate(ctx, theaterID)
	if s.Events != nil {
		s.Events.SeatChanged(ctx, theaterID, codeID, seatID, action)
	}
}

func (s *SeatService) invalidate(ctx context.Context, theaterID uint64) {
	if s.Index == nil {
		return
	}
	if err := s.Index.Invalidate(ctx, theaterID); err != nil {
		config.LogError(s.logger(), "provision", "invalidate", "invalidate theater cache", theaterID, err)
	}
}

func (s *SeatService) logger() *logrus.Logger {
	if s.Log != nil {
		return s.Log
	}
	return config.GetLogger()
}

func findSeat(code *model.ProvisionedCode, token string) *model.CodeSeat {
	for i := range code.Seats {
		if code.Seats[i].Seat == token {
			return &code.Seats[i]
		}
	}
	return nil
}

func brandingOf(code *model.ProvisionedCode) *qrimage.Branding {
	if code.LogoURL == "" {
		return nil
	}
	return &qrimage.Branding{ImageURL: code.LogoURL}
}

// ScanStore counts scans.  IncrementScan fails with
// repository.ErrCodeNotFound, repository.ErrSeatNotFound or
// repository.ErrSeatInactive.
type ScanStore interface {
	IncrementScan(ctx context.Context, theaterID uint64, qrName, seat string) error
}

// RecordScan counts one scan of the code or seat the payload names.
func RecordScan(ctx context.Context, store ScanStore, t ScanTarget) error {
	if err := store.IncrementScan(ctx, t.TheaterID, t.QRName, t.Seat); err != nil {
		if errors.Is(err, repository.ErrSeatInactive) {
			return fmt.Errorf("seat %s of %q: %w", t.Seat, t.QRName, err)
		}
		return err
	}
	return nil
}
