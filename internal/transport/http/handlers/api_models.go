package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/anjun206/board-app/internal/core/domain"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// OKResponse is the simple acknowledgement payload for the start/verify flow.
type OKResponse struct {
	OK bool `json:"ok"`
}

// UserSummary describes the public view of a user.
type UserSummary struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

func newUserSummary(user *domain.User) UserSummary {
	return UserSummary{
		ID:       user.ID,
		Email:    user.Email,
		Username: user.Username,
	}
}

// SignupRequest defines the payload for account creation.
type SignupRequest struct {
	Email    string `json:"email" binding:"required"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// StartRequest defines the payload for issuing a verification code.
type StartRequest struct {
	Email string `json:"email" binding:"required"`
}

// VerifyRequest defines the payload for checking a verification code.
type VerifyRequest struct {
	Email string `json:"email" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

// LoginRequest defines the payload for the JSON login endpoint.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse describes a successful credential exchange.
type TokenResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	User        UserSummary `json:"user"`
}

// PostRequest defines the payload for creating or updating a post.
type PostRequest struct {
	Title string `json:"title" binding:"required"`
	Body  string `json:"body" binding:"required"`
}

// PostResponse describes a post.
type PostResponse struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	AuthorID       string    `json:"author_id"`
	AuthorUsername string    `json:"author_username"`
	CommentsCount  int       `json:"comments_count"`
	LikesCount     int       `json:"likes_count"`
	CreatedAt      time.Time `json:"created_at"`
}

func newPostResponse(post *domain.Post) PostResponse {
	return PostResponse{
		ID:             post.ID,
		Title:          post.Title,
		Body:           post.Body,
		AuthorID:       post.AuthorID,
		AuthorUsername: post.AuthorUsername,
		CommentsCount:  post.CommentsCount,
		LikesCount:     post.LikesCount,
		CreatedAt:      post.CreatedAt,
	}
}

// CommentRequest defines the payload for creating a comment.
type CommentRequest struct {
	Body string `json:"body" binding:"required"`
}

// CommentResponse describes a comment.
type CommentResponse struct {
	ID             string    `json:"id"`
	PostID         string    `json:"post_id"`
	AuthorID       string    `json:"author_id"`
	AuthorUsername string    `json:"author_username"`
	Body           string    `json:"body"`
	CreatedAt      time.Time `json:"created_at"`
}

func newCommentResponse(comment *domain.Comment) CommentResponse {
	return CommentResponse{
		ID:             comment.ID,
		PostID:         comment.PostID,
		AuthorID:       comment.AuthorID,
		AuthorUsername: comment.AuthorUsername,
		Body:           comment.Body,
		CreatedAt:      comment.CreatedAt,
	}
}

// CountResponse carries the total number of matching rows.
type CountResponse struct {
	Total int `json:"total"`
}

// LikedResponse reports whether the caller liked a post.
type LikedResponse struct {
	Liked bool `json:"liked"`
}

// HealthResponse describes the liveness payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}
