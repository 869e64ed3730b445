package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ToggleReactionRequest selects like or dislike.
type ToggleReactionRequest struct {
	UserID   string `json:"user_id,omitempty" example:"citizen-42"`
	Reaction string `json:"reaction" binding:"required" example:"like"`
}

// ToggleReaction godoc
// @ID          toggleReaction
// @Summary     Toggle a like or dislike
// @Description Same reaction twice removes it; the other reaction switches it.
// @Tags        Reactions
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  string  false "Reacting user"
// @Param       token      path    string  true  "Display code or numeric id"
// @Param       body       body    handlers.ToggleReactionRequest  true  "Reaction"
// @Success     200  {object} services.ToggleResult
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Report not found"
// @Router      /reports/{token}/reactions [post]
func (h *Handlers) ToggleReaction(c *gin.Context) {
	var req ToggleReactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "reaction is required")
		return
	}
	res, err := h.reactions.Toggle(c.Request.Context(), c.Param("token"), actorUserID(c, req.UserID), req.Reaction)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// GetReactions godoc
// @ID          getReactions
// @Summary     Like and dislike counts
// @Tags        Reactions
// @Produce     json
// @Param       token  path  string  true  "Display code or numeric id"
// @Success     200  {object} domain.ReactionCounts
// @Failure     404  {object} handlers.ErrorResponse "Report not found"
// @Router      /reports/{token}/reactions [get]
func (h *Handlers) GetReactions(c *gin.Context) {
	counts, err := h.reactions.Counts(c.Request.Context(), c.Param("token"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, counts)
}
