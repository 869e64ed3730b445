package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/civic-report-backend/internal/domain"
)

// AddCommentRequest is a comment payload.
type AddCommentRequest struct {
	UserID string `json:"user_id,omitempty" example:"citizen-42"`
	Body   string `json:"body" binding:"required" example:"Still not fixed as of this morning"`
}

// ListCommentsResponse wraps a report's comments, oldest first.
type ListCommentsResponse struct {
	Comments []domain.Comment `json:"comments"`
}

// AddComment godoc
// @ID          addComment
// @Summary     Comment on a report
// @Tags        Comments
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  string  false "Commenting user"
// @Param       token      path    string  true  "Display code or numeric id"
// @Param       body       body    handlers.AddCommentRequest  true  "Comment"
// @Success     201  {object} domain.Comment
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Report not found"
// @Router      /reports/{token}/comments [post]
func (h *Handlers) AddComment(c *gin.Context) {
	var req AddCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "body is required")
		return
	}
	cm, err := h.comments.Add(c.Request.Context(), c.Param("token"), actorUserID(c, req.UserID), req.Body)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, cm)
}

// ListComments godoc
// @ID          listComments
// @Summary     List a report's comments
// @Tags        Comments
// @Produce     json
// @Param       token  path  string  true  "Display code or numeric id"
// @Success     200  {object} handlers.ListCommentsResponse
// @Failure     404  {object} handlers.ErrorResponse "Report not found"
// @Router      /reports/{token}/comments [get]
func (h *Handlers) ListComments(c *gin.Context) {
	items, err := h.comments.List(c.Request.Context(), c.Param("token"))
	if err != nil {
		failErr(c, err)
		return
	}
	if items == nil {
		items = []domain.Comment{}
	}
	ok(c, http.StatusOK, ListCommentsResponse{Comments: items})
}
