package handler

import (
	"context"  // context bounds database and rendering work
	"fmt"      // fmt formats error messages and headers
	"net/http" // http defines status code constants
	"strconv"  // strconv parses the size query
	"strings"  // strings trims user input
	"time"     // time defines the submit timeout

	"github.com/labstack/echo/v4" // echo framework provides context and JSON helpers

	"github.com/iliyamo/theater-qr-provisioning/internal/config"     // config supplies the logger and image settings
	"github.com/iliyamo/theater-qr-provisioning/internal/export"     // export builds the print sheets
	"github.com/iliyamo/theater-qr-provisioning/internal/middleware" // middleware exposes the caller identity
	"github.com/iliyamo/theater-qr-provisioning/internal/model"      // model defines codes and seat patches
	"github.com/iliyamo/theater-qr-provisioning/internal/provision"  // provision runs submissions and seat edits
	"github.com/iliyamo/theater-qr-provisioning/internal/qrimage"    // qrimage decides the smallest renderable size
	"github.com/iliyamo/theater-qr-provisioning/internal/repository" // repository reads stored codes
	"github.com/iliyamo/theater-qr-provisioning/internal/utils"      // utils validates request bodies
)

// submitTimeout bounds a whole submission: every seat is rendered and
// uploaded before the code is written.
const submitTimeout = 2 * time.Minute

// CodeHandler serves provisioned codes of a theater.
type CodeHandler struct {
	Orch         *provision.Orchestrator // batch submissions
	Seats        *provision.SeatService  // seat edits, deletes and renders
	Codes        *repository.CodeRepo    // plain reads
	ImageSize    int                     // default edge of rendered images
	MaxImageSize int                     // larger requests are clamped to this
	QuietZone    int                     // decides the smallest size worth rendering
}

func NewCodeHandler(orch *provision.Orchestrator, seats *provision.SeatService, codes *repository.CodeRepo, cfg config.ProvisionConfig) *CodeHandler {
	if orch == nil || seats == nil || codes == nil { // every collaborator is required
		panic("nil dependency passed to NewCodeHandler")
	}
	return &CodeHandler{Orch: orch, Seats: seats, Codes: codes, ImageSize: cfg.ImageSize, MaxImageSize: cfg.MaxImageSize, QuietZone: cfg.QuietZone}
}

type addSeatReq struct {
	Seat string `json:"seat" validate:"required,seat"` // canonical seat token such as A1
}

// Submit handles POST /v1/theaters/:theater_id/codes.  The response is the
// full outcome, including the progress trail, on success and on failure.
func (h *CodeHandler) Submit(c echo.Context) error {
	theaterID, err := pathID(c, "theater_id") // theater from the scoped path
	if err != nil {
		return badParam(c, err)
	}
	var req provision.Request
	if err := c.Bind(&req); err != nil { // bind incoming JSON
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.TheaterID = theaterID // the path wins over any body value
	req.QRName = strings.TrimSpace(req.QRName)
	req.OperatorID = middleware.UserID(c)  // who submitted the batch
	req.Session = middleware.SessionKey(c) // one submission in flight per session

	ctx, cancel := context.WithTimeout(c.Request().Context(), submitTimeout)
	defer cancel()

	out, err := h.Orch.Submit(ctx, req, nil) // out is never nil
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError { // do not leak driver or storage errors
			out.Error = "internal error"
		}
		return c.JSON(status, out) // the outcome keeps the request for resubmission
	}
	return c.JSON(http.StatusCreated, out)
}

// List handles GET /v1/theaters/:theater_id/codes.  ?type=single|screen
// narrows the list.
func (h *CodeHandler) List(c echo.Context) error {
	theaterID, err := pathID(c, "theater_id")
	if err != nil {
		return badParam(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	items, err := h.Codes.ListByTheater(ctx, theaterID) // codes with their seats
	if err != nil {
		config.LogError(config.GetLogger(), "handler", "ListCodes", "list codes", theaterID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	if t := model.QRType(c.QueryParam("type")); t.Valid() { // unknown types are ignored
		filtered := make([]model.ProvisionedCode, 0, len(items))
		for _, code := range items {
			if code.QRType == t {
				filtered = append(filtered, code)
			}
		}
		items = filtered
	}
	return c.JSON(http.StatusOK, echo.Map{"theater_id": theaterID, "count": len(items), "items": items})
}

// Get handles GET /v1/theaters/:theater_id/codes/:code_id.
func (h *CodeHandler) Get(c echo.Context) error {
	theaterID, codeID, err := codePath(c)
	if err != nil {
		return badParam(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	code, err := h.Codes.GetByID(ctx, theaterID, codeID) // another theater's code reads as not found
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, code)
}

// Delete handles DELETE /v1/theaters/:theater_id/codes/:code_id.  The code,
// its seats and their images go together.
func (h *CodeHandler) Delete(c echo.Context) error {
	theaterID, codeID, err := codePath(c)
	if err != nil {
		return badParam(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Seats.DeleteCode(ctx, theaterID, codeID); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// AddSeat handles POST /v1/theaters/:theater_id/codes/:code_id/seats.
func (h *CodeHandler) AddSeat(c echo.Context) error {
	theaterID, codeID, err := codePath(c)
	if err != nil {
		return badParam(c, err)
	}
	var req addSeatReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Seat = strings.TrimSpace(req.Seat) // surrounding space only; case is not folded
	if err := utils.Validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":  "invalid fields",
			"kind":   provision.KindInvalidSeatFormat,
			"fields": utils.ValidationFields(err),
		})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), submitTimeout) // renders and uploads one image
	defer cancel()

	cs, err := h.Seats.AddSeat(ctx, theaterID, codeID, req.Seat)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, cs)
}

// UpdateSeat handles PATCH /v1/theaters/:theater_id/codes/:code_id/seats/:seat.
// A rename re-renders the seat's image; toggling is_active does not.
func (h *CodeHandler) UpdateSeat(c echo.Context) error {
	theaterID, codeID, err := codePath(c)
	if err != nil {
		return badParam(c, err)
	}
	var patch model.SeatPatch
	if err := c.Bind(&patch); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if patch.Seat != nil { // trim the new name before validating it
		trimmed := strings.TrimSpace(*patch.Seat)
		patch.Seat = &trimmed
	}
	if err := utils.Validate.Struct(patch); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":  "invalid fields",
			"kind":   provision.KindValidation,
			"fields": utils.ValidationFields(err),
		})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), submitTimeout)
	defer cancel()

	cs, err := h.Seats.UpdateSeat(ctx, theaterID, codeID, c.Param("seat"), patch) // last write wins
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, cs)
}

// DeleteSeat handles DELETE /v1/theaters/:theater_id/codes/:code_id/seats/:seat.
func (h *CodeHandler) DeleteSeat(c echo.Context) error {
	theaterID, codeID, err := codePath(c)
	if err != nil {
		return badParam(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Seats.DeleteSeat(ctx, theaterID, codeID, c.Param("seat")); err != nil { // siblings are untouched
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Image handles GET /v1/theaters/:theater_id/codes/:code_id/image and
// renders a fresh PNG.  seat is required for screen codes.
func (h *CodeHandler) Image(c echo.Context) error {
	theaterID, codeID, err := codePath(c)
	if err != nil {
		return badParam(c, err)
	}
	size, err := h.imageSize(c.QueryParam("size")) // reject sizes the quiet zone would swallow
	if err != nil {
		return badParam(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	png, err := h.Seats.Render(ctx, theaterID, codeID, strings.TrimSpace(c.QueryParam("seat")), size)
	if err != nil {
		return fail(c, err)
	}
	c.Response().Header().Set("Cache-Control", "private, max-age=60") // images are scoped to the caller
	return c.Blob(http.StatusOK, "image/png", png)
}

// ExportPDF handles GET /v1/theaters/:theater_id/codes/:code_id/export.pdf.
func (h *CodeHandler) ExportPDF(c echo.Context) error {
	theaterID, codeID, err := codePath(c)
	if err != nil {
		return badParam(c, err)
	}
	size, err := h.imageSize(c.QueryParam("size"))
	if err != nil {
		return badParam(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), submitTimeout) // one render per seat
	defer cancel()

	code, images, err := h.Seats.RenderSheet(ctx, theaterID, codeID, size)
	if err != nil {
		return fail(c, err)
	}
	doc, err := export.PDF(*code, images) // orientation comes from the code
	if err != nil {
		config.LogError(config.GetLogger(), "handler", "ExportPDF", "build pdf", codeID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "export failed"})
	}
	attachment(c, codeID, "pdf")
	return c.Blob(http.StatusOK, "application/pdf", doc)
}

// ExportXLSX handles GET /v1/theaters/:theater_id/codes/:code_id/export.xlsx.
func (h *CodeHandler) ExportXLSX(c echo.Context) error {
	theaterID, codeID, err := codePath(c)
	if err != nil {
		return badParam(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	code, err := h.Codes.GetByID(ctx, theaterID, codeID) // the manifest needs no rendering
	if err != nil {
		return fail(c, err)
	}
	doc, err := export.XLSX(*code)
	if err != nil {
		config.LogError(config.GetLogger(), "handler", "ExportXLSX", "build xlsx", codeID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "export failed"})
	}
	attachment(c, codeID, "xlsx")
	return c.Blob(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", doc)
}

// imageSize reads the optional size query: default ImageSize, clamped to
// MaxImageSize.  The floor leaves room for the quiet zone on both sides
// plus the matrix itself.
func (h *CodeHandler) imageSize(raw string) (int, error) {
	if raw == "" { // no query: configured default
		return h.ImageSize, nil
	}
	floor := qrimage.MinSize(h.QuietZone)
	n, err := strconv.Atoi(raw)
	if err != nil || n < floor {
		return 0, fmt.Errorf("invalid size: want an integer of at least %d", floor)
	}
	if h.MaxImageSize > 0 && n > h.MaxImageSize { // clamp rather than reject
		n = h.MaxImageSize
	}
	return n, nil
}

// codePath reads :theater_id and :code_id.
func codePath(c echo.Context) (theaterID, codeID uint64, err error) {
	if theaterID, err = pathID(c, "theater_id"); err != nil {
		return 0, 0, err
	}
	if codeID, err = pathID(c, "code_id"); err != nil {
		return 0, 0, err
	}
	return theaterID, codeID, nil
}

// attachment names the download after the code.
func attachment(c echo.Context, codeID uint64, ext string) {
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=\"qr-code-%d.%s\"", codeID, ext))
}
