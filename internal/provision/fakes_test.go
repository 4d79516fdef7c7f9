package provision

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/iliyamo/theater-qr-provisioning/internal/model"
	"github.com/iliyamo/theater-qr-provisioning/internal/qrimage"
	"github.com/iliyamo/theater-qr-provisioning/internal/repository"
)

type fakeTheaters struct {
	byID  map[uint64]*model.Theater
	calls int
}

func (f *fakeTheaters) GetByID(_ context.Context, id uint64) (*model.Theater, error) {
	f.calls++
	t, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrTheaterNotFound
	}
	cp := *t
	return &cp, nil
}

type fakeNames struct {
	names []model.QRName
	calls int
}

func (f *fakeNames) ListByTheater(_ context.Context, theaterID uint64) ([]model.QRName, error) {
	f.calls++
	var out []model.QRName
	for _, n := range f.names {
		if n.TheaterID == theaterID {
			out = append(out, n)
		}
	}
	return out, nil
}

// fakeCodes is an in-memory CodeStore and SeatStore enforcing the same
// uniqueness rules as the MySQL schema.
type fakeCodes struct {
	mu        sync.Mutex
	nextID    uint64
	codes     map[uint64]*model.ProvisionedCode
	createErr error
	lateErr   error // returned after the code is stored
	creates   int
	nameLists int
}

func newFakeCodes() *fakeCodes {
	return &fakeCodes{codes: make(map[uint64]*model.ProvisionedCode)}
}

func (f *fakeCodes) ListByTheater(_ context.Context, theaterID uint64) ([]model.ProvisionedCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.ProvisionedCode
	for _, c := range f.codes {
		if c.TheaterID == theaterID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeCodes) ProvisionedNames(_ context.Context, theaterID uint64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nameLists++
	var out []string
	for _, c := range f.codes {
		if c.TheaterID == theaterID {
			out = append(out, c.QRName)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeCodes) Create(_ context.Context, c *model.ProvisionedCode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.createErr != nil {
		return f.createErr
	}
	for _, existing := range f.codes {
		if existing.TheaterID == c.TheaterID && existing.QRName == c.QRName {
			return repository.ErrDuplicateName
		}
	}
	f.nextID++
	c.ID = f.nextID
	for i := range c.Seats {
		c.Seats[i].CodeID = c.ID
		c.Seats[i].ID = uint64(i + 1)
	}
	cp := *c
	cp.Seats = append([]model.CodeSeat(nil), c.Seats...)
	f.codes[c.ID] = &cp
	return f.lateErr
}

func (f *fakeCodes) GetByID(_ context.Context, theaterID, codeID uint64) (*model.ProvisionedCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.codes[codeID]
	if !ok || c.TheaterID != theaterID {
		return nil, repository.ErrCodeNotFound
	}
	cp := *c
	cp.Seats = append([]model.CodeSeat(nil), c.Seats...)
	return &cp, nil
}

func (f *fakeCodes) AddSeat(_ context.Context, codeID uint64, s *model.CodeSeat) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.codes[codeID]
	for _, existing := range c.Seats {
		if existing.Seat == s.Seat {
			return repository.ErrDuplicateSeat
		}
	}
	s.CodeID = codeID
	s.ID = uint64(len(c.Seats) + 100)
	c.Seats = append(c.Seats, *s)
	return nil
}

func (f *fakeCodes) UpdateSeat(_ context.Context, codeID uint64, current string, next model.CodeSeat) (*model.CodeSeat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.codes[codeID]
	for i := range c.Seats {
		if c.Seats[i].Seat == current {
			c.Seats[i] = next
			out := next
			return &out, nil
		}
	}
	return nil, repository.ErrSeatNotFound
}

func (f *fakeCodes) DeleteSeat(_ context.Context, codeID uint64, seat string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.codes[codeID]
	for i := range c.Seats {
		if c.Seats[i].Seat == seat {
			c.Seats = append(c.Seats[:i], c.Seats[i+1:]...)
			return nil
		}
	}
	return repository.ErrSeatNotFound
}

func (f *fakeCodes) Delete(_ context.Context, theaterID, codeID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.codes[codeID]
	if !ok || c.TheaterID != theaterID {
		return repository.ErrCodeNotFound
	}
	delete(f.codes, codeID)
	return nil
}

func (f *fakeCodes) IncrementScan(_ context.Context, theaterID uint64, qrName, seat string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.codes {
		if c.TheaterID != theaterID || c.QRName != qrName {
			continue
		}
		if seat == "" {
			c.ScanCount++
			return nil
		}
		for i := range c.Seats {
			if c.Seats[i].Seat == seat {
				if !c.Seats[i].IsActive {
					return repository.ErrSeatInactive
				}
				c.Seats[i].ScanCount++
				return nil
			}
		}
		return repository.ErrSeatNotFound
	}
	return repository.ErrCodeNotFound
}

type fakeImages struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	failFor string // substring of the key that makes Put fail
}

func newFakeImages() *fakeImages { return &fakeImages{objects: make(map[string][]byte)} }

func (f *fakeImages) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor != "" && strings.Contains(key, f.failFor) {
		return "", errors.New("bucket unavailable")
	}
	f.objects[key] = data
	return "/files/" + key, nil
}

func (f *fakeImages) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeImages) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

// fakeRenderer returns the payload as image bytes so tests can see what
// was encoded.
type fakeRenderer struct {
	mu          sync.Mutex
	payloads    []string
	failSeat    string
	err         error // returned for every payload
	brandingErr error
}

func (f *fakeRenderer) Composite(_ context.Context, payload string, size int, b *qrimage.Branding) (*qrimage.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
	if f.err != nil {
		return nil, f.err
	}
	if f.failSeat != "" && strings.Contains(payload, "seat="+f.failSeat+"&") {
		return nil, errors.New("encode failed")
	}
	res := &qrimage.Result{PNG: []byte(payload)}
	if b != nil && f.brandingErr != nil {
		res.BrandingErr = f.brandingErr
	}
	return res, nil
}

type fakeIndex struct {
	invalidated []uint64
}

func (f *fakeIndex) Provisioned(ctx context.Context, _ uint64, load func(context.Context) ([]string, error)) (map[string]struct{}, error) {
	return noIndex{}.Provisioned(ctx, 0, load)
}

func (f *fakeIndex) Invalidate(_ context.Context, theaterID uint64) error {
	f.invalidated = append(f.invalidated, theaterID)
	return nil
}

type recordedEvent struct {
	kind   string
	codeID uint64
	seat   string
}

type fakeEvents struct {
	events []recordedEvent
}

func (f *fakeEvents) CodeProvisioned(_ context.Context, c model.ProvisionedCode) {
	f.events = append(f.events, recordedEvent{kind: "provisioned", codeID: c.ID})
}

func (f *fakeEvents) CodeDeleted(_ context.Context, c model.ProvisionedCode) {
	f.events = append(f.events, recordedEvent{kind: "deleted", codeID: c.ID})
}

func (f *fakeEvents) SeatChanged(_ context.Context, _, codeID uint64, seat, action string) {
	f.events = append(f.events, recordedEvent{kind: action, codeID: codeID, seat: seat})
}
