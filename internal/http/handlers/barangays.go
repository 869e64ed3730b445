package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/civic-report-backend/internal/domain"
)

// ListBarangays godoc
// @ID          listBarangays
// @Summary     List barangays
// @Tags        Barangays
// @Produce     json
// @Success     200  {array}  domain.Barangay
// @Failure     503  {object} handlers.ErrorResponse "Store unavailable"
// @Router      /barangays [get]
func (h *Handlers) ListBarangays(c *gin.Context) {
	out, err := h.barangays.List(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	if out == nil {
		out = []domain.Barangay{}
	}
	ok(c, http.StatusOK, out)
}
