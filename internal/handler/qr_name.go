package handler

import (
	"context"  // context bounds database calls
	"errors"   // errors matches repository sentinels
	"net/http" // http defines status code constants
	"strings"  // strings trims user input

	"github.com/labstack/echo/v4" // echo framework provides context and JSON helpers

	"github.com/iliyamo/theater-qr-provisioning/internal/config"     // config supplies the logger
	"github.com/iliyamo/theater-qr-provisioning/internal/model"      // model defines QRName
	"github.com/iliyamo/theater-qr-provisioning/internal/provision"  // provision computes eligible names
	"github.com/iliyamo/theater-qr-provisioning/internal/repository" // repository persists names
	"github.com/iliyamo/theater-qr-provisioning/internal/utils"      // utils validates request bodies
)

// QRNameHandler manages the per-theater registry of QR names and lists
// the ones still free to provision.
type QRNameHandler struct {
	Names *repository.QRNameRepo // registry storage
	Orch  *provision.Orchestrator // eligible-name computation
	Index provision.Index         // cached existing codes, may be nil
}

func NewQRNameHandler(names *repository.QRNameRepo, orch *provision.Orchestrator, index provision.Index) *QRNameHandler {
	if names == nil || orch == nil { // the index alone is optional
		panic("nil dependency passed to NewQRNameHandler")
	}
	return &QRNameHandler{Names: names, Orch: orch, Index: index}
}

type qrNameReq struct {
	QRName    string `json:"qr_name" validate:"required,max=100"` // label printed on the code
	SeatClass string `json:"seat_class" validate:"max=50"`       // free-form class such as VIP
	IsActive  *bool  `json:"is_active"`                          // nil keeps or defaults to active
}

// List handles GET /v1/theaters/:theater_id/qr-names.
func (h *QRNameHandler) List(c echo.Context) error {
	theaterID, err := pathID(c, "theater_id")
	if err != nil {
		return badParam(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	items, err := h.Names.ListByTheater(ctx, theaterID) // active and inactive alike
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"theater_id": theaterID, "count": len(items), "items": items})
}

// Eligible handles GET /v1/theaters/:theater_id/qr-names/eligible.  The
// optional editing query keeps the name of the code being edited in the
// list.
func (h *QRNameHandler) Eligible(c echo.Context) error {
	theaterID, err := pathID(c, "theater_id")
	if err != nil {
		return badParam(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	items, err := h.Orch.Eligible(ctx, theaterID, strings.TrimSpace(c.QueryParam("editing")))
	if errors.Is(err, provision.ErrNoEligibleNames) { // every active name already has a code
		return c.JSON(http.StatusNotFound, echo.Map{
			"error": err.Error(),
			"kind":  provision.KindNoEligibleNames,
			"items": []model.QRName{},
		})
	}
	if err != nil {
		config.LogError(config.GetLogger(), "handler", "Eligible", "list eligible names", theaterID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"theater_id": theaterID, "count": len(items), "items": items})
}

// Create handles POST /v1/theaters/:theater_id/qr-names.
func (h *QRNameHandler) Create(c echo.Context) error {
	theaterID, err := pathID(c, "theater_id")
	if err != nil {
		return badParam(c, err)
	}
	var req qrNameReq
	if err := c.Bind(&req); err != nil { // bind incoming JSON
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.QRName = strings.TrimSpace(req.QRName)
	req.SeatClass = strings.TrimSpace(req.SeatClass)
	if err := utils.Validate.Struct(req); err != nil { // run struct validation
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid fields", "fields": utils.ValidationFields(err)})
	}
	n := &model.QRName{TheaterID: theaterID, QRName: req.QRName, SeatClass: req.SeatClass, IsActive: true}
	if req.IsActive != nil {
		n.IsActive = *req.IsActive
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	if err := h.Names.Create(ctx, n); err != nil {
		if errors.Is(err, repository.ErrDuplicateName) { // unique per theater
			return c.JSON(http.StatusConflict, echo.Map{"error": "qr name already registered"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create qr name failed"})
	}
	h.invalidate(ctx, theaterID) // the eligible list changed
	return c.JSON(http.StatusCreated, n)
}

// Update handles PUT /v1/theaters/:theater_id/qr-names/:name_id.  The
// label is fixed; only seat class and active flag change.
func (h *QRNameHandler) Update(c echo.Context) error {
	theaterID, err := pathID(c, "theater_id")
	if err != nil {
		return badParam(c, err)
	}
	id, err := pathID(c, "name_id")
	if err != nil {
		return badParam(c, err)
	}
	var req qrNameReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	n, err := h.Names.GetByID(ctx, theaterID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNameNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "qr name not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	if req.QRName != "" && strings.TrimSpace(req.QRName) != n.QRName { // printed codes carry the label
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "qr_name cannot be renamed"})
	}
	n.SeatClass = strings.TrimSpace(req.SeatClass)
	if req.IsActive != nil {
		n.IsActive = *req.IsActive
	}
	if err := h.Names.Update(ctx, n); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update qr name failed"})
	}
	h.invalidate(ctx, theaterID)
	return c.JSON(http.StatusOK, n)
}

// Delete handles DELETE /v1/theaters/:theater_id/qr-names/:name_id.  A
// name with a provisioned code cannot be removed.
func (h *QRNameHandler) Delete(c echo.Context) error {
	theaterID, err := pathID(c, "theater_id")
	if err != nil {
		return badParam(c, err)
	}
	id, err := pathID(c, "name_id")
	if err != nil {
		return badParam(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Names.Delete(ctx, theaterID, id); err != nil {
		switch {
		case errors.Is(err, repository.ErrNameNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "qr name not found"})
		case errors.Is(err, repository.ErrConflict): // still referenced by a code
			return c.JSON(http.StatusConflict, echo.Map{"error": "qr name has a provisioned code; delete the code first"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete qr name failed"})
	}
	h.invalidate(ctx, theaterID)
	return c.NoContent(http.StatusNoContent)
}

// invalidate drops cached eligible lists of the theater.
func (h *QRNameHandler) invalidate(ctx context.Context, theaterID uint64) {
	if h.Index == nil { // running without Redis
		return
	}
	if err := h.Index.Invalidate(ctx, theaterID); err != nil {
		config.LogError(config.GetLogger(), "handler", "QRName", "invalidate index", theaterID, err)
	}
}
