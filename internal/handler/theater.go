package handler

import (
	"context"  // context bounds database calls
	"errors"   // errors matches repository sentinels
	"net/http" // http defines status code constants
	"strings"  // strings trims user input

	"github.com/labstack/echo/v4" // echo framework provides context and JSON helpers

	"github.com/iliyamo/theater-qr-provisioning/internal/middleware" // middleware exposes role and theater scope
	"github.com/iliyamo/theater-qr-provisioning/internal/model"      // model defines Theater
	"github.com/iliyamo/theater-qr-provisioning/internal/repository" // repository persists theaters
	"github.com/iliyamo/theater-qr-provisioning/internal/utils"      // utils validates request bodies
)

// TheaterHandler exposes the venues an operator may work on.
type TheaterHandler struct {
	Theaters *repository.TheaterRepo // theater persistence
}

func NewTheaterHandler(t *repository.TheaterRepo) *TheaterHandler {
	if t == nil { // the handler is useless without storage
		panic("nil repository passed to NewTheaterHandler")
	}
	return &TheaterHandler{Theaters: t}
}

type theaterReq struct {
	Name     string  `json:"name" validate:"required,max=150"`          // display name
	LogoURL  *string `json:"logo_url" validate:"omitempty,url,max=512"` // optional logo printed on sheets
	IsActive *bool   `json:"is_active"`                                 // nil keeps the current flag
}

// List handles GET /v1/theaters.  Scoped operators only see their venue.
func (h *TheaterHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if scope := middleware.TheaterScope(c); scope != 0 && middleware.Role(c) != model.RoleAdmin { // scoped operator
		t, err := h.Theaters.GetByID(ctx, scope)
		if err != nil {
			if errors.Is(err, repository.ErrTheaterNotFound) { // a deleted venue lists as empty
				return c.JSON(http.StatusOK, echo.Map{"count": 0, "items": []model.Theater{}})
			}
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
		}
		return c.JSON(http.StatusOK, echo.Map{"count": 1, "items": []model.Theater{*t}})
	}
	items, err := h.Theaters.List(ctx) // admins see every venue
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"count": len(items), "items": items})
}

// Get handles GET /v1/theaters/:theater_id.
func (h *TheaterHandler) Get(c echo.Context) error {
	id, err := pathID(c, "theater_id")
	if err != nil {
		return badParam(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	t, err := h.Theaters.GetByID(ctx, id) // the route guard already checked the scope
	if err != nil {
		if errors.Is(err, repository.ErrTheaterNotFound) { // unknown id
			return c.JSON(http.StatusNotFound, echo.Map{"error": "theater not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	return c.JSON(http.StatusOK, t)
}

// Create handles POST /v1/theaters (admins only).
func (h *TheaterHandler) Create(c echo.Context) error {
	var req theaterReq
	if err := c.Bind(&req); err != nil { // bind incoming JSON
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := utils.Validate.Struct(req); err != nil { // run struct validation
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid fields", "fields": utils.ValidationFields(err)})
	}
	t := &model.Theater{Name: req.Name, LogoURL: req.LogoURL, IsActive: true} // new venues start active
	if req.IsActive != nil {
		t.IsActive = *req.IsActive
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	if err := h.Theaters.Create(ctx, t); err != nil { // insert and fill the id
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create theater failed"})
	}
	return c.JSON(http.StatusCreated, t)
}

// Update handles PUT /v1/theaters/:theater_id (admins only).
func (h *TheaterHandler) Update(c echo.Context) error {
	id, err := pathID(c, "theater_id")
	if err != nil {
		return badParam(c, err)
	}
	var req theaterReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := utils.Validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid fields", "fields": utils.ValidationFields(err)})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	t, err := h.Theaters.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrTheaterNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "theater not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	t.Name = req.Name       // apply the new name
	t.LogoURL = req.LogoURL // a missing logo clears it
	if req.IsActive != nil {
		t.IsActive = *req.IsActive
	}
	if err := h.Theaters.Update(ctx, t); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update theater failed"})
	}
	return c.JSON(http.StatusOK, t)
}
