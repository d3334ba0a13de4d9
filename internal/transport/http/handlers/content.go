package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/anjun206/board-app/internal/transport/http/middleware"
	"github.com/anjun206/board-app/internal/usecase"
)

// ContentHandler exposes post, comment, and like endpoints.
type ContentHandler struct {
	content *usecase.ContentService
	auth    *usecase.AuthService
}

// NewContentHandler constructs ContentHandler.
func NewContentHandler(content *usecase.ContentService, auth *usecase.AuthService) *ContentHandler {
	return &ContentHandler{content: content, auth: auth}
}

// RegisterRoutes binds content routes under the given group. Reads are
// public; writes require authentication.
func (h *ContentHandler) RegisterRoutes(r *gin.RouterGroup) {
	requireAuth := middleware.RequireAuth(h.auth)

	r.GET("/posts", h.listPosts)
	r.GET("/posts/count", h.countPosts)
	r.GET("/posts/:id", h.getPost)
	r.POST("/posts", requireAuth, h.createPost)
	r.PUT("/posts/:id", requireAuth, h.updatePost)
	r.DELETE("/posts/:id", requireAuth, h.deletePost)

	r.POST("/posts/:id/likes", requireAuth, h.likePost)
	r.DELETE("/posts/:id/likes", requireAuth, h.unlikePost)
	r.GET("/posts/:id/liked", requireAuth, h.liked)

	r.GET("/posts/:id/comments", h.listComments)
	r.POST("/posts/:id/comments", requireAuth, h.addComment)
	r.DELETE("/posts/:id/comments/:cid", requireAuth, h.deleteComment)
}

func (h *ContentHandler) listPosts(c *gin.Context) {
	skip, limit := pagination(c)

	posts, err := h.content.ListPosts(c.Request.Context(), skip, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to list posts"))
		return
	}

	resp := make([]PostResponse, 0, len(posts))
	for i := range posts {
		resp = append(resp, newPostResponse(&posts[i]))
	}

	c.JSON(http.StatusOK, resp)
}

func (h *ContentHandler) countPosts(c *gin.Context) {
	count, err := h.content.CountPosts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to count posts"))
		return
	}

	c.JSON(http.StatusOK, CountResponse{Total: count})
}

func (h *ContentHandler) getPost(c *gin.Context) {
	post, err := h.content.GetPost(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondContentError(c, err, "failed to get post")
		return
	}

	c.JSON(http.StatusOK, newPostResponse(post))
}

func (h *ContentHandler) createPost(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req PostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid post payload"))
		return
	}

	post, err := h.content.CreatePost(c.Request.Context(), user, usecase.PostInput{
		Title: req.Title,
		Body:  req.Body,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to create post"))
		return
	}

	c.JSON(http.StatusCreated, newPostResponse(post))
}

func (h *ContentHandler) updatePost(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req PostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid post payload"))
		return
	}

	post, err := h.content.UpdatePost(c.Request.Context(), user, c.Param("id"), usecase.PostInput{
		Title: req.Title,
		Body:  req.Body,
	})
	if err != nil {
		h.respondContentError(c, err, "failed to update post")
		return
	}

	c.JSON(http.StatusOK, newPostResponse(post))
}

func (h *ContentHandler) deletePost(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	if err := h.content.DeletePost(c.Request.Context(), user, c.Param("id")); err != nil {
		h.respondContentError(c, err, "failed to delete post")
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *ContentHandler) likePost(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	if err := h.content.LikePost(c.Request.Context(), user, c.Param("id")); err != nil {
		h.respondContentError(c, err, "failed to like post")
		return
	}

	c.JSON(http.StatusOK, OKResponse{OK: true})
}

func (h *ContentHandler) unlikePost(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	if err := h.content.UnlikePost(c.Request.Context(), user, c.Param("id")); err != nil {
		h.respondContentError(c, err, "failed to unlike post")
		return
	}

	c.JSON(http.StatusOK, OKResponse{OK: true})
}

func (h *ContentHandler) liked(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	liked, err := h.content.Liked(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		h.respondContentError(c, err, "failed to check like")
		return
	}

	c.JSON(http.StatusOK, LikedResponse{Liked: liked})
}

func (h *ContentHandler) listComments(c *gin.Context) {
	offset, limit := pagination(c)

	comments, err := h.content.ListComments(c.Request.Context(), c.Param("id"), offset, limit)
	if err != nil {
		h.respondContentError(c, err, "failed to list comments")
		return
	}

	resp := make([]CommentResponse, 0, len(comments))
	for i := range comments {
		resp = append(resp, newCommentResponse(&comments[i]))
	}

	c.JSON(http.StatusOK, resp)
}

func (h *ContentHandler) addComment(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid comment payload"))
		return
	}

	comment, err := h.content.AddComment(c.Request.Context(), user, c.Param("id"), req.Body)
	if err != nil {
		h.respondContentError(c, err, "failed to add comment")
		return
	}

	c.JSON(http.StatusCreated, newCommentResponse(comment))
}

func (h *ContentHandler) deleteComment(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	if err := h.content.DeleteComment(c.Request.Context(), user, c.Param("id"), c.Param("cid")); err != nil {
		h.respondContentError(c, err, "failed to delete comment")
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *ContentHandler) respondContentError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, usecase.ErrPostNotFound):
		c.JSON(http.StatusNotFound, NewErrorResponse(c, "post not found"))
	case errors.Is(err, usecase.ErrCommentNotFound):
		c.JSON(http.StatusNotFound, NewErrorResponse(c, "comment not found"))
	case errors.Is(err, usecase.ErrForbidden):
		c.JSON(http.StatusForbidden, NewErrorResponse(c, "not the owner"))
	default:
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, fallback))
	}
}

// pagination reads skip/limit from the query string. The board clients page
// with skip; offset is accepted as an alias.
func pagination(c *gin.Context) (int, int) {
	raw := c.Query("skip")
	if raw == "" {
		raw = c.DefaultQuery("offset", "0")
	}
	skip, _ := strconv.Atoi(raw)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	return skip, limit
}
