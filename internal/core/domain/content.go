package domain

import "time"

// Post is a board article.
type Post struct {
	ID             string
	Title          string
	Body           string
	AuthorID       string
	AuthorUsername string
	CommentsCount  int
	LikesCount     int
	CreatedAt      time.Time
}

// Comment belongs to a post.
type Comment struct {
	ID             string
	PostID         string
	AuthorID       string
	AuthorUsername string
	Body           string
	CreatedAt      time.Time
}
