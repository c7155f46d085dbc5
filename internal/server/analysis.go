package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/repurpoai/pharmintel/internal/agents"
	"github.com/repurpoai/pharmintel/internal/agents/master"
	"github.com/repurpoai/pharmintel/internal/runtime"
)

// AnalysisHandler runs the comprehensive drug analysis synchronously for
// clients that do not speak WebSocket.
type AnalysisHandler struct {
	Deps agents.Deps
}

func (h *AnalysisHandler) Register(g *echo.Group, secret []byte) {
	g.Use(runtime.EchoAuthMiddleware(secret))
	g.POST("", h.analyze)
}

func (h *AnalysisHandler) analyze(c echo.Context) error {
	var req AnalysisRequestBody
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.DrugName == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "drug_name is required")
	}
	includeTrade := true
	if req.IncludeTrade != nil {
		includeTrade = *req.IncludeTrade
	}
	report := master.ComprehensiveDrugAnalysis(c.Request().Context(), h.Deps, master.AnalysisRequest{
		DrugName:        req.DrugName,
		Condition:       req.Condition,
		IncludeTrade:    includeTrade,
		ExporterCountry: req.ExporterCountry,
	})
	return c.JSON(http.StatusOK, report)
}
