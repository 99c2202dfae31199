package api

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ahplanner/planner-server/internal/planner/sync"
)

type UploadResponse struct {
	UploadID string `json:"upload_id"`
	Items    int    `json:"items"`
}

// UploadSnapshot ingests a price snapshot export. The body is the raw
// export document produced by a scan tool; field spellings vary, so the
// tolerant parser owns the schema.
func (h *Handler) UploadSnapshot(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return badRequest(c, "reading request body failed")
	}

	upload, err := sync.ParseSnapshot(body)
	if err != nil {
		return badRequest(c, err.Error())
	}

	uploadID, err := h.stores.Prices.SaveSnapshot(c.Request().Context(), upload)
	if err != nil {
		return serverError(c)
	}

	return c.JSON(http.StatusCreated, UploadResponse{
		UploadID: uploadID,
		Items:    len(upload.Items),
	})
}
