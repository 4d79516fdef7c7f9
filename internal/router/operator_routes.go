package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/theater-qr-provisioning/internal/config"
	"github.com/iliyamo/theater-qr-provisioning/internal/handler"
	"github.com/iliyamo/theater-qr-provisioning/internal/middleware"
	"github.com/iliyamo/theater-qr-provisioning/internal/model"
)

// Operator bundles the handlers of the authenticated operator API.
type Operator struct {
	Theaters  *handler.TheaterHandler
	Names     *handler.QRNameHandler
	Selection *handler.SelectionHandler
	Codes     *handler.CodeHandler
}

// RegisterOperator registers the provisioning endpoints under /v1.  Every
// route needs a valid JWT with role ADMIN or OPERATOR.  Routes under
// /v1/theaters/:theater_id additionally pass the theater scope check,
// which runs before the response cache so cached bodies are only served
// to callers allowed to see them.
func RegisterOperator(e *echo.Echo, o Operator, jwtSecret string, rdb *redis.Client, cacheCfg config.CacheConfig, rlCfg config.RateLimitConfig) {
	cache := middleware.NewRedisCache(cacheCfg, rdb, "theater_id")
	submitLimit := middleware.NewSubmitLimiter(rlCfg, rdb)

	g := e.Group("/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin, model.RoleOperator),
	)

	// ---- Seat selection (stateless) ----
	g.POST("/seat-selection/ranges", o.Selection.AddRange)
	g.POST("/seat-selection/rows/delete", o.Selection.DeleteRow)

	// ---- Theaters ----
	g.GET("/theaters", o.Theaters.List)
	g.POST("/theaters", o.Theaters.Create, middleware.RequireRole(model.RoleAdmin))

	t := g.Group("/theaters/:theater_id", middleware.RequireTheaterScope("theater_id"))
	t.GET("", o.Theaters.Get)
	t.PUT("", o.Theaters.Update, middleware.RequireRole(model.RoleAdmin))

	// ---- QR name registry ----
	t.GET("/qr-names", o.Names.List, cache)
	t.GET("/qr-names/eligible", o.Names.Eligible, cache)
	t.POST("/qr-names", o.Names.Create)
	t.PUT("/qr-names/:name_id", o.Names.Update)
	t.DELETE("/qr-names/:name_id", o.Names.Delete)

	// ---- Provisioned codes ----
	t.POST("/codes", o.Codes.Submit, submitLimit)
	t.GET("/codes", o.Codes.List, cache)
	t.GET("/codes/:code_id", o.Codes.Get, cache)
	t.DELETE("/codes/:code_id", o.Codes.Delete)

	// ---- Seats of a screen code ----
	t.POST("/codes/:code_id/seats", o.Codes.AddSeat, submitLimit)
	t.PATCH("/codes/:code_id/seats/:seat", o.Codes.UpdateSeat)
	t.DELETE("/codes/:code_id/seats/:seat", o.Codes.DeleteSeat)

	// ---- Images and print exports ----
	t.GET("/codes/:code_id/image", o.Codes.Image)
	t.GET("/codes/:code_id/export.pdf", o.Codes.ExportPDF)
	t.GET("/codes/:code_id/export.xlsx", o.Codes.ExportXLSX)
}
