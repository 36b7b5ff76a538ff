package service

import (
	"context"
	"net/http"

	"github.com/Keksclan/rawrcache/cache"
	"github.com/Keksclan/rawrcache/invalidate"
	"github.com/Keksclan/rawrcache/transport"
)

// Posts reads and edits forum posts.
type Posts struct{ base }

// NewPosts creates the posts service over store.
func NewPosts(store *cache.Store, deps Deps) *Posts {
	return &Posts{newBase(store, deps)}
}

// GetByID returns the post with the given id.
func (s *Posts) GetByID(ctx context.Context, postID int64) (Post, error) {
	return fetch[Post](ctx, &s.base, read{
		namespace: "post",
		args:      []any{postID},
		tags:      []string{invalidate.EntityTag("post", postID)},
		req:       transport.Get("/posts/"+id(postID), nil),
	})
}

// List returns one page of all posts, newest first.
func (s *Posts) List(ctx context.Context, page, limit int) (Page[Post], error) {
	page, limit, q := pageQuery(page, limit)
	return fetch[Page[Post]](ctx, &s.base, read{
		namespace: "posts",
		args:      []any{page, limit},
		req:       transport.Get("/posts", q),
	})
}

// ListByUser returns one page of the posts written by userID.
func (s *Posts) ListByUser(ctx context.Context, userID int64, page, limit int) (Page[Post], error) {
	page, limit, q := pageQuery(page, limit)
	return fetch[Page[Post]](ctx, &s.base, read{
		namespace: "user-posts",
		args:      []any{userID, page, limit},
		req:       transport.Get("/users/"+id(userID)+"/posts", q),
	})
}

// Create publishes a new post.
func (s *Posts) Create(ctx context.Context, in PostInput) (Post, error) {
	var out Post
	req := transport.Request{Method: http.MethodPost, URL: "/posts", Body: in}
	err := s.write(ctx, req, &out, invalidate.CreatePost, invalidate.Params{})
	return out, err
}

// Update edits the post with the given id.
func (s *Posts) Update(ctx context.Context, postID int64, in PostInput) (Post, error) {
	var out Post
	req := transport.Request{Method: http.MethodPut, URL: "/posts/" + id(postID), Body: in}
	err := s.write(ctx, req, &out, invalidate.UpdatePost, invalidate.Params{ID: postID})
	return out, err
}

// Delete removes the post with the given id together with its comments.
func (s *Posts) Delete(ctx context.Context, postID int64) error {
	req := transport.Request{Method: http.MethodDelete, URL: "/posts/" + id(postID)}
	return s.write(ctx, req, nil, invalidate.DeletePost, invalidate.Params{ID: postID})
}
