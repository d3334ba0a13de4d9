package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"github.com/anjun206/board-app/internal/core/domain"
	"github.com/anjun206/board-app/internal/infra/security"
	"github.com/anjun206/board-app/internal/repository"
	"github.com/anjun206/board-app/internal/usecase"
)

type memPostRepo struct {
	mu    sync.Mutex
	posts map[string]*domain.Post
	likes map[string]map[string]bool
}

func newMemPostRepo() *memPostRepo {
	return &memPostRepo{
		posts: make(map[string]*domain.Post),
		likes: make(map[string]map[string]bool),
	}
}

func (r *memPostRepo) Create(_ context.Context, post domain.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := post
	r.posts[p.ID] = &p
	return nil
}

func (r *memPostRepo) GetByID(_ context.Context, id string) (*domain.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.posts[id]; ok {
		copy := *p
		return &copy, nil
	}
	return nil, repository.ErrNotFound
}

func (r *memPostRepo) List(_ context.Context, offset, limit int) ([]domain.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := make([]domain.Post, 0, len(r.posts))
	for _, p := range r.posts {
		all = append(all, *p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r *memPostRepo) Count(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.posts), nil
}

func (r *memPostRepo) Update(_ context.Context, id, title, body string) (*domain.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	p.Title = title
	p.Body = body
	copy := *p
	return &copy, nil
}

func (r *memPostRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.posts[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.posts, id)
	delete(r.likes, id)
	return nil
}

func (r *memPostRepo) AddLike(_ context.Context, postID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[postID]
	if !ok {
		return repository.ErrNotFound
	}
	if r.likes[postID] == nil {
		r.likes[postID] = make(map[string]bool)
	}
	if r.likes[postID][userID] {
		return repository.ErrDuplicate
	}
	r.likes[postID][userID] = true
	p.LikesCount++
	return nil
}

func (r *memPostRepo) RemoveLike(_ context.Context, postID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[postID]
	if !ok {
		return repository.ErrNotFound
	}
	if !r.likes[postID][userID] {
		return repository.ErrNotFound
	}
	delete(r.likes[postID], userID)
	p.LikesCount--
	return nil
}

func (r *memPostRepo) Liked(_ context.Context, postID, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.likes[postID][userID], nil
}

type memCommentRepo struct {
	mu       sync.Mutex
	posts    *memPostRepo
	comments map[string]*domain.Comment
}

func newMemCommentRepo(posts *memPostRepo) *memCommentRepo {
	return &memCommentRepo{posts: posts, comments: make(map[string]*domain.Comment)}
}

func (r *memCommentRepo) Create(_ context.Context, comment domain.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := comment
	r.comments[c.ID] = &c

	r.posts.mu.Lock()
	if p, ok := r.posts.posts[c.PostID]; ok {
		p.CommentsCount++
	}
	r.posts.mu.Unlock()
	return nil
}

func (r *memCommentRepo) GetByID(_ context.Context, id string) (*domain.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.comments[id]; ok {
		copy := *c
		return &copy, nil
	}
	return nil, repository.ErrNotFound
}

func (r *memCommentRepo) ListByPost(_ context.Context, postID string, offset, limit int) ([]domain.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var all []domain.Comment
	for _, c := range r.comments {
		if c.PostID == postID {
			all = append(all, *c)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })

	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r *memCommentRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.comments[id]
	if !ok {
		return repository.ErrNotFound
	}
	delete(r.comments, id)

	r.posts.mu.Lock()
	if p, ok := r.posts.posts[c.PostID]; ok {
		p.CommentsCount--
	}
	r.posts.mu.Unlock()
	return nil
}

func (r *memCommentRepo) DeleteByPost(_ context.Context, postID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed int64
	for id, c := range r.comments {
		if c.PostID == postID {
			delete(r.comments, id)
			removed++
		}
	}
	return removed, nil
}

type contentEnv struct {
	router   *gin.Engine
	posts    *memPostRepo
	comments *memCommentRepo

	aliceToken string
	bobToken   string
	alice      domain.User
	bob        domain.User
}

func newContentEnv(t *testing.T) *contentEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := zaptest.NewLogger(t)
	tokens, err := security.NewTokenService("handler-test-secret", time.Hour, 168*time.Hour, 15*time.Minute)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	alice := domain.User{ID: "u-alice", Email: "alice@example.com", NormalizedEmail: "alice@example.com", Username: "alice"}
	bob := domain.User{ID: "u-bob", Email: "bob@example.com", NormalizedEmail: "bob@example.com", Username: "bob"}

	users := newMemUserRepo()
	users.users[alice.ID] = &alice
	users.users[bob.ID] = &bob

	posts := newMemPostRepo()
	comments := newMemCommentRepo(posts)

	authSvc := usecase.NewAuthService(users, tokens, nopEvents{}, log)
	contentSvc := usecase.NewContentService(posts, comments, log)

	router := gin.New()
	NewContentHandler(contentSvc, authSvc).RegisterRoutes(router.Group(""))

	aliceToken, err := tokens.IssueAccess(alice.ID)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	bobToken, err := tokens.IssueAccess(bob.ID)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	return &contentEnv{
		router:     router,
		posts:      posts,
		comments:   comments,
		aliceToken: aliceToken,
		bobToken:   bobToken,
		alice:      alice,
		bob:        bob,
	}
}

func (e *contentEnv) do(t *testing.T, req request) *httptest.ResponseRecorder {
	t.Helper()
	return (&authEnv{router: e.router}).do(t, req)
}

func (e *contentEnv) createPost(t *testing.T, token, title, body string) PostResponse {
	t.Helper()
	rec := e.do(t, request{
		method: http.MethodPost,
		path:   "/posts",
		json:   PostRequest{Title: title, Body: body},
		bearer: token,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create post status = %d, body %s", rec.Code, rec.Body.String())
	}
	return decodeJSON[PostResponse](t, rec)
}

func TestPostLifecycle(t *testing.T) {
	env := newContentEnv(t)

	post := env.createPost(t, env.aliceToken, "hello", "first post")
	if post.AuthorUsername != "alice" {
		t.Fatalf("author = %q", post.AuthorUsername)
	}

	rec := env.do(t, request{method: http.MethodGet, path: "/posts/" + post.ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	rec = env.do(t, request{
		method: http.MethodPut,
		path:   "/posts/" + post.ID,
		json:   PostRequest{Title: "hello again", Body: "edited"},
		bearer: env.aliceToken,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", rec.Code, rec.Body.String())
	}
	if updated := decodeJSON[PostResponse](t, rec); updated.Title != "hello again" {
		t.Fatalf("updated title = %q", updated.Title)
	}

	rec = env.do(t, request{method: http.MethodDelete, path: "/posts/" + post.ID, bearer: env.aliceToken})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}

	rec = env.do(t, request{method: http.MethodGet, path: "/posts/" + post.ID})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want 404", rec.Code)
	}
}

func TestPostWritesRequireAuth(t *testing.T) {
	env := newContentEnv(t)

	rec := env.do(t, request{method: http.MethodPost, path: "/posts", json: PostRequest{Title: "t", Body: "b"}})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	// Reads stay public.
	rec = env.do(t, request{method: http.MethodGet, path: "/posts"})
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", rec.Code)
	}
}

func TestListPostsSkipPagination(t *testing.T) {
	env := newContentEnv(t)
	for _, title := range []string{"first", "second", "third"} {
		env.createPost(t, env.aliceToken, title, "body")
	}

	rec := env.do(t, request{method: http.MethodGet, path: "/posts?skip=2&limit=20"})
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	if got := decodeJSON[[]PostResponse](t, rec); len(got) != 1 {
		t.Fatalf("skip=2 over 3 posts returned %d posts, want 1", len(got))
	}

	// offset keeps working as an alias.
	rec = env.do(t, request{method: http.MethodGet, path: "/posts?offset=1&limit=20"})
	if got := decodeJSON[[]PostResponse](t, rec); len(got) != 2 {
		t.Fatalf("offset=1 over 3 posts returned %d posts, want 2", len(got))
	}
}

func TestCountPostsReportsTotal(t *testing.T) {
	env := newContentEnv(t)
	env.createPost(t, env.aliceToken, "one", "body")
	env.createPost(t, env.bobToken, "two", "body")

	rec := env.do(t, request{method: http.MethodGet, path: "/posts/count"})
	if rec.Code != http.StatusOK {
		t.Fatalf("count status = %d", rec.Code)
	}

	body := decodeJSON[map[string]int](t, rec)
	total, ok := body["total"]
	if !ok {
		t.Fatalf("count body %s missing total field", rec.Body.String())
	}
	if total != 2 {
		t.Fatalf("total = %d, want 2", total)
	}
}

func TestPostOwnershipEnforced(t *testing.T) {
	env := newContentEnv(t)
	post := env.createPost(t, env.aliceToken, "mine", "alice's post")

	rec := env.do(t, request{
		method: http.MethodPut,
		path:   "/posts/" + post.ID,
		json:   PostRequest{Title: "stolen", Body: "rewritten"},
		bearer: env.bobToken,
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("update status = %d, want 403", rec.Code)
	}

	rec = env.do(t, request{method: http.MethodDelete, path: "/posts/" + post.ID, bearer: env.bobToken})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("delete status = %d, want 403", rec.Code)
	}
}

func TestLikeFlow(t *testing.T) {
	env := newContentEnv(t)
	post := env.createPost(t, env.aliceToken, "likeable", "body")

	rec := env.do(t, request{method: http.MethodPost, path: "/posts/" + post.ID + "/likes", bearer: env.bobToken})
	if rec.Code != http.StatusOK {
		t.Fatalf("like status = %d", rec.Code)
	}

	// Liking again succeeds without adding a second like.
	rec = env.do(t, request{method: http.MethodPost, path: "/posts/" + post.ID + "/likes", bearer: env.bobToken})
	if rec.Code != http.StatusOK {
		t.Fatalf("repeat like status = %d, want 200", rec.Code)
	}

	rec = env.do(t, request{method: http.MethodGet, path: "/posts/" + post.ID + "/liked", bearer: env.bobToken})
	if rec.Code != http.StatusOK {
		t.Fatalf("liked status = %d", rec.Code)
	}
	if resp := decodeJSON[LikedResponse](t, rec); !resp.Liked {
		t.Fatal("expected liked = true")
	}

	rec = env.do(t, request{method: http.MethodGet, path: "/posts/" + post.ID})
	if got := decodeJSON[PostResponse](t, rec); got.LikesCount != 1 {
		t.Fatalf("likes count = %d, want 1", got.LikesCount)
	}

	rec = env.do(t, request{method: http.MethodDelete, path: "/posts/" + post.ID + "/likes", bearer: env.bobToken})
	if rec.Code != http.StatusOK {
		t.Fatalf("unlike status = %d", rec.Code)
	}

	rec = env.do(t, request{method: http.MethodDelete, path: "/posts/" + post.ID + "/likes", bearer: env.bobToken})
	if rec.Code != http.StatusOK {
		t.Fatalf("repeat unlike status = %d, want 200", rec.Code)
	}

	rec = env.do(t, request{method: http.MethodGet, path: "/posts/" + post.ID})
	if got := decodeJSON[PostResponse](t, rec); got.LikesCount != 0 {
		t.Fatalf("likes count after unlike = %d, want 0", got.LikesCount)
	}
}

func TestCommentFlow(t *testing.T) {
	env := newContentEnv(t)
	post := env.createPost(t, env.aliceToken, "commented", "body")

	rec := env.do(t, request{
		method: http.MethodPost,
		path:   "/posts/" + post.ID + "/comments",
		json:   CommentRequest{Body: "nice post"},
		bearer: env.bobToken,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("comment status = %d, body %s", rec.Code, rec.Body.String())
	}
	comment := decodeJSON[CommentResponse](t, rec)
	if comment.AuthorUsername != "bob" || comment.PostID != post.ID {
		t.Fatalf("comment = %+v", comment)
	}

	rec = env.do(t, request{method: http.MethodGet, path: "/posts/" + post.ID + "/comments"})
	if rec.Code != http.StatusOK {
		t.Fatalf("list comments status = %d", rec.Code)
	}
	if listed := decodeJSON[[]CommentResponse](t, rec); len(listed) != 1 {
		t.Fatalf("listed %d comments, want 1", len(listed))
	}

	rec = env.do(t, request{method: http.MethodGet, path: "/posts/" + post.ID})
	if got := decodeJSON[PostResponse](t, rec); got.CommentsCount != 1 {
		t.Fatalf("comments count = %d, want 1", got.CommentsCount)
	}

	// Only the comment author may remove it.
	rec = env.do(t, request{
		method: http.MethodDelete,
		path:   "/posts/" + post.ID + "/comments/" + comment.ID,
		bearer: env.aliceToken,
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("foreign delete status = %d, want 403", rec.Code)
	}

	rec = env.do(t, request{
		method: http.MethodDelete,
		path:   "/posts/" + post.ID + "/comments/" + comment.ID,
		bearer: env.bobToken,
	})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
}

func TestDeletingPostRemovesComments(t *testing.T) {
	env := newContentEnv(t)
	post := env.createPost(t, env.aliceToken, "doomed", "body")

	for i := 0; i < 3; i++ {
		rec := env.do(t, request{
			method: http.MethodPost,
			path:   "/posts/" + post.ID + "/comments",
			json:   CommentRequest{Body: "comment"},
			bearer: env.bobToken,
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("comment %d status = %d", i+1, rec.Code)
		}
	}

	rec := env.do(t, request{method: http.MethodDelete, path: "/posts/" + post.ID, bearer: env.aliceToken})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}

	if remaining := len(env.comments.comments); remaining != 0 {
		t.Fatalf("%d comments survived the post deletion", remaining)
	}
}
