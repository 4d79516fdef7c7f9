package handler

import (
	"context"  // context bounds the counter write
	"net/http" // http defines status code constants

	"github.com/labstack/echo/v4" // echo framework provides context and JSON helpers

	"github.com/iliyamo/theater-qr-provisioning/internal/provision" // provision parses and records scans
)

// ScanHandler counts scans of printed codes.  It is public: the payload
// query itself names the theater, code and seat.
type ScanHandler struct {
	Store provision.ScanStore // where counters live
}

func NewScanHandler(store provision.ScanStore) *ScanHandler {
	return &ScanHandler{Store: store}
}

// Record handles GET /v1/scan?theater=&qr=&type=&seat=.
func (h *ScanHandler) Record(c echo.Context) error {
	target, err := provision.ParseScan(c.QueryParams()) // same query the printed payload carries
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := provision.RecordScan(ctx, h.Store, target); err != nil { // unknown or inactive seats are refused
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"theater_id": target.TheaterID,
		"qr_name":    target.QRName,
		"qr_type":    target.QRType,
		"seat":       target.Seat,
		"recorded":   true,
	})
}
