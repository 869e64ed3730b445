package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/civic-report-backend/internal/domain"
)

// ListDepartments godoc
// @ID          listDepartments
// @Summary     List municipal departments
// @Tags        Departments
// @Produce     json
// @Success     200  {array}  domain.Department
// @Failure     503  {object} handlers.ErrorResponse "Store unavailable"
// @Router      /departments [get]
func (h *Handlers) ListDepartments(c *gin.Context) {
	deps, err := h.departments.List(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	if deps == nil {
		deps = []domain.Department{}
	}
	ok(c, http.StatusOK, deps)
}
