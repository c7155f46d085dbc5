package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/repurpoai/pharmintel/internal/runtime"
	"github.com/repurpoai/pharmintel/internal/store"
)

// DownloadsHandler records and lists generated artifacts per user.
type DownloadsHandler struct {
	Store *store.Store
}

func (h *DownloadsHandler) Register(g *echo.Group, secret []byte) {
	g.Use(runtime.EchoAuthMiddleware(secret))
	g.POST("", h.postDownload)
	g.GET("", h.listDownloads)
}

func (h *DownloadsHandler) postDownload(c echo.Context) error {
	userID := c.Get("user_id").(string)
	var req DownloadCreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Filename == "" || req.URL == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "filename and url are required")
	}
	d, err := h.Store.CreateDownload(c.Request().Context(), userID, req.Filename, req.URL, req.Meta)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, downloadOut(d))
}

func (h *DownloadsHandler) listDownloads(c echo.Context) error {
	userID := c.Get("user_id").(string)
	downloads, err := h.Store.ListDownloads(c.Request().Context(), userID, queryInt(c, "limit", 100))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	out := make([]DownloadOut, 0, len(downloads))
	for _, d := range downloads {
		out = append(out, downloadOut(d))
	}
	return c.JSON(http.StatusOK, out)
}

func downloadOut(d store.Download) DownloadOut {
	return DownloadOut{
		ID:        d.ID,
		UserID:    d.UserID,
		Filename:  d.Filename,
		URL:       d.URL,
		Meta:      d.Meta,
		CreatedAt: d.CreatedAt,
	}
}
