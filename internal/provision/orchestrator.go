// Package provision turns an operator's QR name and seat selection into a
// persisted code: it validates the request, renders one image per seat (or
// one for a single code), stores the images and commits the whole code in
// one create call.  It also manages seats after creation and records scans.
package provision

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/theater-qr-provisioning/internal/config"
	"github.com/iliyamo/theater-qr-provisioning/internal/model"
	"github.com/iliyamo/theater-qr-provisioning/internal/qrimage"
	"github.com/iliyamo/theater-qr-provisioning/internal/repository"
	"github.com/iliyamo/theater-qr-provisioning/internal/seat"
	"github.com/iliyamo/theater-qr-provisioning/internal/storage"
	"github.com/iliyamo/theater-qr-provisioning/internal/utils"
)

type TheaterLookup interface {
	GetByID(ctx context.Context, id uint64) (*model.Theater, error)
}

type NameRegistry interface {
	ListByTheater(ctx context.Context, theaterID uint64) ([]model.QRName, error)
}

// CodeStore creates a code and all of its seats atomically.  Create fails
// with repository.ErrDuplicateName when the theater already has a code
// under that name.  Create sets code.ID only once the code is stored, so a
// non-zero ID after an error means the write went through.
type CodeStore interface {
	ProvisionedNames(ctx context.Context, theaterID uint64) ([]string, error)
	Create(ctx context.Context, code *model.ProvisionedCode) error
}

type ImageStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

type Renderer interface {
	Composite(ctx context.Context, payload string, size int, branding *qrimage.Branding) (*qrimage.Result, error)
}

// Index caches the names that already have a code.  load recomputes the
// set from storage when the cache is cold.
type Index interface {
	Provisioned(ctx context.Context, theaterID uint64, load func(context.Context) ([]string, error)) (map[string]struct{}, error)
	Invalidate(ctx context.Context, theaterID uint64) error
}

// Events receives notifications after successful writes.  Implementations
// must not block the request for long and report their own failures.
type Events interface {
	CodeProvisioned(ctx context.Context, code model.ProvisionedCode)
	CodeDeleted(ctx context.Context, code model.ProvisionedCode)
	SeatChanged(ctx context.Context, theaterID, codeID uint64, seat, action string)
}

// Settings are the tunables of a submission.
type Settings struct {
	MaxSeats       int
	ImageSize      int
	OrderBaseURL   string
	DefaultLogoURL string
}

func SettingsFrom(c config.ProvisionConfig) Settings {
	return Settings{
		MaxSeats:       c.MaxSeats,
		ImageSize:      c.ImageSize,
		OrderBaseURL:   c.OrderBaseURL,
		DefaultLogoURL: c.DefaultLogoURL,
	}
}

type State string

const (
	StateIdle            State = "idle"
	StateValidating      State = "validating"
	StateSubmitting      State = "submitting"
	StateSucceeded       State = "succeeded"
	StatePartiallyFailed State = "partially_failed"
	StateFailed          State = "failed"
)

// Progress follows the request lifecycle, not individual seats.
type Progress struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Message string `json:"message"`
}

type ProgressFunc func(Progress)

const (
	stepValidated = iota + 1
	stepRendered
	stepSubmitted
	stepPersisted
	totalSteps = stepPersisted
)

// Request is one provisioning submission.  For screen codes the seats may
// come as tokens, as a SelectionState, or both; they are merged.
type Request struct {
	TheaterID   uint64               `json:"theater_id" validate:"required"`
	QRType      model.QRType         `json:"qr_type" validate:"required,oneof=single screen"`
	QRName      string               `json:"qr_name" validate:"required,max=100"`
	LogoType    model.LogoType       `json:"logo_type" validate:"required,oneof=default theater none"`
	Orientation model.Orientation    `json:"orientation" validate:"omitempty,oneof=portrait landscape"`
	Seats       []string             `json:"seats,omitempty"`
	Selection   *seat.SelectionState `json:"selection,omitempty"`

	OperatorID uint64 `json:"-"`
	Session    string `json:"-"`
}

// Outcome reports how a submission ended.  Request is the submission as
// received so a failed attempt can be corrected and resent.
type Outcome struct {
	State       State                  `json:"state"`
	Code        *model.ProvisionedCode `json:"code,omitempty"`
	Progress    []Progress             `json:"progress"`
	FailedSeats []string               `json:"failed_seats,omitempty"`
	Warnings    []string               `json:"warnings,omitempty"`
	Kind        Kind                   `json:"kind,omitempty"`
	Error       string                 `json:"error,omitempty"`
	Fields      map[string]string      `json:"fields,omitempty"`
	Request     Request                `json:"request"`
}

// Orchestrator runs submissions.  Index, Events and Sessions are optional.
type Orchestrator struct {
	Theaters TheaterLookup
	Names    NameRegistry
	Codes    CodeStore
	Images   ImageStore
	Renderer Renderer
	Index    Index
	Events   Events
	Sessions SessionGuard
	Log      *logrus.Logger
	Settings Settings
}

// Submit validates req, renders and stores every image, and creates the
// code.  The returned Outcome is never nil; err is non-nil unless the
// state is StateSucceeded.
func (o *Orchestrator) Submit(ctx context.Context, req Request, progress ProgressFunc) (*Outcome, error) {
	out := &Outcome{State: StateIdle, Request: req}
	step := func(n int, msg string) {
		p := Progress{Current: n, Total: totalSteps, Message: msg}
		out.Progress = append(out.Progress, p)
		if progress != nil {
			progress(p)
		}
	}

	out.State = StateValidating
	seats, err := o.validate(req)
	if err != nil {
		return o.fail(out, StateFailed, err)
	}

	release, err := o.sessions().Acquire(ctx, sessionKey(req))
	if err != nil {
		return o.fail(out, StateFailed, err)
	}
	defer release()

	theater, name, err := o.resolve(ctx, req)
	if err != nil {
		return o.fail(out, StateFailed, err)
	}
	logoURL, err := o.logoFor(req.LogoType, theater)
	if err != nil {
		return o.fail(out, StateFailed, err)
	}
	step(stepValidated, "validated")

	out.State = StateSubmitting
	orientation := req.Orientation
	if orientation == "" {
		orientation = model.OrientationPortrait
	}
	code := &model.ProvisionedCode{
		TheaterID:   req.TheaterID,
		QRType:      req.QRType,
		QRName:      name.QRName,
		SeatClass:   name.SeatClass,
		LogoType:    req.LogoType,
		LogoURL:     logoURL,
		Orientation: orientation,
		CreatedBy:   req.OperatorID,
	}

	r := o.render(ctx, code, seats)
	out.Warnings = r.warnings
	if r.err != nil {
		o.cleanup(ctx, r.keys)
		if len(r.failed) > 0 {
			out.FailedSeats = r.failed
			return o.fail(out, StatePartiallyFailed, &BatchError{FailedSeats: r.failed, Err: r.err})
		}
		return o.fail(out, StateFailed, r.err)
	}
	step(stepRendered, "codes rendered")

	step(stepSubmitted, "submitted")
	if err := o.Codes.Create(ctx, code); err != nil && code.ID != 0 {
		// the store assigned an ID, so the code and its images are live
		config.LogError(o.logger(), "provision", "Submit", "create reported an error after storing the code", code.ID, err)
	} else if err != nil {
		o.cleanup(ctx, r.keys)
		if errors.Is(err, repository.ErrDuplicateName) {
			verr := &ValidationError{}
			verr.add("qr_name", fmt.Sprintf("%q was provisioned by another session; pick another name", req.QRName), err)
			err = verr
		}
		return o.fail(out, StateFailed, err)
	}
	step(stepPersisted, "persisted")

	out.State = StateSucceeded
	out.Code = code
	// the code is stored; finish the bookkeeping even if the caller gave up
	ctx = context.WithoutCancel(ctx)
	if err := o.index().Invalidate(ctx, code.TheaterID); err != nil {
		config.LogError(o.logger(), "provision", "Submit", "invalidate existing-codes index", code.TheaterID, err)
	}
	o.events().CodeProvisioned(ctx, *code)
	o.logger().WithFields(logrus.Fields{
		"theater_id": code.TheaterID,
		"code_id":    code.ID,
		"qr_name":    code.QRName,
		"qr_type":    code.QRType,
		"seats":      len(code.Seats),
		"operator":   req.OperatorID,
	}).Info("code provisioned")
	return out, nil
}

// Eligible lists the names the operator may provision for the theater.
// An empty result is reported as ErrNoEligibleNames.
func (o *Orchestrator) Eligible(ctx context.Context, theaterID uint64, editing string) ([]model.QRName, error) {
	names, err := o.Names.ListByTheater(ctx, theaterID)
	if err != nil {
		return nil, err
	}
	provisioned, err := o.provisioned(ctx, theaterID)
	if err != nil {
		return nil, err
	}
	eligible := EligibleNames(names, provisioned, editing)
	if len(eligible) == 0 {
		return eligible, ErrNoEligibleNames
	}
	return eligible, nil
}

func (o *Orchestrator) provisioned(ctx context.Context, theaterID uint64) (map[string]struct{}, error) {
	load := func(ctx context.Context) ([]string, error) {
		return o.Codes.ProvisionedNames(ctx, theaterID)
	}
	set, err := o.index().Provisioned(ctx, theaterID, load)
	if err == nil {
		return set, nil
	}
	// a broken cache must not block provisioning
	config.LogError(o.logger(), "provision", "provisioned", "existing-codes index read", theaterID, err)
	names, err := load(ctx)
	if err != nil {
		return nil, err
	}
	set = make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set, nil
}

// validate runs every check that needs no I/O and returns the seats in
// canonical order.
func (o *Orchestrator) validate(req Request) ([]seat.ID, error) {
	verr := &ValidationError{}
	for field, tag := range utils.ValidationFields(utils.Validate.Struct(req)) {
		verr.add(field, tagMessage(tag), nil)
	}

	var ids []seat.ID
	seen := make(map[seat.ID]struct{})
	addSeat := func(id seat.ID) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	for _, tok := range req.Seats {
		id, err := seat.Parse(tok)
		if err != nil {
			verr.add("seats", err.Error(), err)
			continue
		}
		addSeat(id)
	}
	if req.Selection != nil {
		if err := req.Selection.Validate(); err != nil {
			verr.add("selection", err.Error(), err)
		}
		for _, id := range req.Selection.Selected {
			addSeat(id)
		}
	}

	switch req.QRType {
	case model.QRTypeScreen:
		if len(ids) == 0 && verr.Fields["seats"] == "" {
			verr.add("seats", "select at least one seat for a screen code", nil)
		}
		if limit := o.Settings.MaxSeats; limit > 0 && len(ids) > limit {
			verr.add("seats", fmt.Sprintf("%d seats selected; a batch may hold at most %d", len(ids), limit), ErrOversizedBatch)
		}
	case model.QRTypeSingle:
		if len(ids) > 0 {
			verr.add("seats", "single codes do not take seats", nil)
		}
	}

	if err := verr.orNil(); err != nil {
		return nil, err
	}
	sort.Slice(ids, func(i, j int) bool { return seat.Compare(ids[i], ids[j]) < 0 })
	return ids, nil
}

func tagMessage(tag string) string {
	switch tag {
	case "required":
		return "required"
	case "oneof":
		return "not an allowed value"
	case "max":
		return "too long"
	case "seat":
		return "invalid seat format"
	}
	return "invalid (" + tag + ")"
}

// resolve loads the theater and checks the name against the eligible set.
func (o *Orchestrator) resolve(ctx context.Context, req Request) (*model.Theater, *model.QRName, error) {
	verr := &ValidationError{}
	theater, err := o.Theaters.GetByID(ctx, req.TheaterID)
	if errors.Is(err, repository.ErrTheaterNotFound) {
		verr.add("theater_id", "unknown theater", err)
		return nil, nil, verr
	}
	if err != nil {
		return nil, nil, err
	}
	if !theater.IsActive {
		verr.add("theater_id", "theater is inactive", nil)
		return nil, nil, verr
	}

	eligible, err := o.Eligible(ctx, req.TheaterID, "")
	if errors.Is(err, ErrNoEligibleNames) {
		verr.add("qr_name", ErrNoEligibleNames.Error(), ErrNoEligibleNames)
		return nil, nil, verr
	}
	if err != nil {
		return nil, nil, err
	}
	for i := range eligible {
		if eligible[i].QRName == req.QRName {
			return theater, &eligible[i], nil
		}
	}
	verr.add("qr_name", fmt.Sprintf("%q is not an eligible QR name for this theater", req.QRName), nil)
	return nil, nil, verr
}

func (o *Orchestrator) logoFor(t model.LogoType, theater *model.Theater) (string, error) {
	switch t {
	case model.LogoTypeNone:
		return "", nil
	case model.LogoTypeTheater:
		if theater.LogoURL == nil || *theater.LogoURL == "" {
			verr := &ValidationError{}
			verr.add("logo_type", "theater has no logo; choose default or none", nil)
			return "", verr
		}
		return *theater.LogoURL, nil
	default:
		return o.Settings.DefaultLogoURL, nil
	}
}

type renderResult struct {
	keys     []string
	failed   []string
	warnings []string
	err      error
}

// render produces and stores every image of code.  Seat failures are
// collected so the operator sees the whole list; on any failure the
// caller removes what was stored.
func (o *Orchestrator) render(ctx context.Context, code *model.ProvisionedCode, seats []seat.ID) renderResult {
	var r renderResult
	warned := make(map[string]bool)
	one := func(seatID string) (string, string, error) {
		url, key, warn, err := RenderAndStore(ctx, o.Renderer, o.Images, o.Settings, code, seatID, o.Settings.ImageSize)
		if warn != nil {
			o.logger().WithFields(logrus.Fields{
				"theater_id": code.TheaterID,
				"qr_name":    code.QRName,
				"seat":       seatID,
				"logo_url":   code.LogoURL,
			}).WithError(warn).Warn("branding unavailable; code rendered without logo")
			if msg := warn.Error(); !warned[msg] {
				warned[msg] = true
				r.warnings = append(r.warnings, msg)
			}
		}
		if key != "" {
			r.keys = append(r.keys, key)
		}
		return url, key, err
	}

	if code.QRType == model.QRTypeSingle {
		url, key, err := one("")
		if err != nil {
			r.err = err
			return r
		}
		code.QRCodeURL = &url
		code.ImageKey = key
		return r
	}

	code.Seats = make([]model.CodeSeat, 0, len(seats))
	for _, id := range seats {
		if err := ctx.Err(); err != nil {
			r.err = err
			r.failed = nil
			return r
		}
		url, key, err := one(id.String())
		if err != nil {
			o.logger().WithFields(logrus.Fields{
				"theater_id": code.TheaterID,
				"qr_name":    code.QRName,
				"seat":       id.String(),
			}).WithError(err).Error("seat code failed")
			r.failed = append(r.failed, id.String())
			if r.err == nil {
				r.err = err
			}
			continue
		}
		code.Seats = append(code.Seats, model.CodeSeat{
			Seat:      id.String(),
			QRCodeURL: url,
			ImageKey:  key,
			IsActive:  true,
		})
	}
	return r
}

// RenderAndStore renders the image of one seat (or of the single code when
// seatID is empty) and uploads it.  warn carries a branding failure that
// did not stop the render.
func RenderAndStore(ctx context.Context, rd Renderer, images ImageStore, s Settings, code *model.ProvisionedCode, seatID string, size int) (url, key string, warn, err error) {
	payload := BuildPayload(s.OrderBaseURL, code.TheaterID, code.QRName, seatID, code.QRType)
	res, err := rd.Composite(ctx, payload, size, brandingOf(code))
	if err != nil {
		return "", "", nil, fmt.Errorf("render: %w", err)
	}
	key = storage.ObjectKey(code.TheaterID, code.QRName, seatID)
	url, err = images.Put(ctx, key, res.PNG, "image/png")
	if err != nil {
		return "", "", res.BrandingErr, fmt.Errorf("upload: %w", err)
	}
	return url, key, res.BrandingErr, nil
}

func (o *Orchestrator) cleanup(ctx context.Context, keys []string) {
	// the request context may be cancelled; removal still has to happen
	ctx = context.WithoutCancel(ctx)
	for _, k := range keys {
		if err := o.Images.Delete(ctx, k); err != nil {
			config.LogError(o.logger(), "provision", "cleanup", "delete orphaned image", k, err)
		}
	}
}

func (o *Orchestrator) fail(out *Outcome, state State, err error) (*Outcome, error) {
	out.State = state
	out.Kind = KindOf(err)
	out.Error = err.Error()
	var verr *ValidationError
	if errors.As(err, &verr) {
		out.Fields = verr.Fields
	}
	if out.Kind == KindInternal {
		config.LogError(o.logger(), "provision", "Submit", "submission failed", out.Request.QRName, err)
	}
	return out, err
}

func sessionKey(req Request) string {
	if req.Session != "" {
		return req.Session
	}
	return fmt.Sprintf("operator:%d", req.OperatorID)
}

func (o *Orchestrator) logger() *logrus.Logger {
	if o.Log != nil {
		return o.Log
	}
	return config.GetLogger()
}

// shared by orchestrators built without a guard
var defaultSessions = NewLocalSessionGuard()

func (o *Orchestrator) sessions() SessionGuard {
	if o.Sessions == nil {
		return defaultSessions
	}
	return o.Sessions
}

func (o *Orchestrator) index() Index {
	if o.Index == nil {
		return noIndex{}
	}
	return o.Index
}

func (o *Orchestrator) events() Events {
	if o.Events == nil {
		return noEvents{}
	}
	return o.Events
}

type noIndex struct{}

func (noIndex) Provisioned(ctx context.Context, _ uint64, load func(context.Context) ([]string, error)) (map[string]struct{}, error) {
	names, err := load(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(names))
	for _, n := range names {
		out[n] = struct{}{}
	}
	return out, nil
}

func (noIndex) Invalidate(context.Context, uint64) error { return nil }

type noEvents struct{}

func (noEvents) CodeProvisioned(context.Context, model.ProvisionedCode)        {}
func (noEvents) CodeDeleted(context.Context, model.ProvisionedCode)            {}
func (noEvents) SeatChanged(context.Context, uint64, uint64, string, string) {}
