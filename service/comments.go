package service

import (
	"context"
	"net/http"

	"github.com/Keksclan/rawrcache/cache"
	"github.com/Keksclan/rawrcache/invalidate"
	"github.com/Keksclan/rawrcache/transport"
)

// Comments reads and edits the comments of posts.
type Comments struct{ base }

// NewComments creates the comments service over store.
func NewComments(store *cache.Store, deps Deps) *Comments {
	return &Comments{newBase(store, deps)}
}

// List returns one page of the comments on postID.
func (s *Comments) List(ctx context.Context, postID int64, page, limit int) (Page[Comment], error) {
	page, limit, q := pageQuery(page, limit)
	return fetch[Page[Comment]](ctx, &s.base, read{
		namespace: invalidate.CommentsNamespace(postID),
		args:      []any{page, limit},
		req:       transport.Get("/posts/"+id(postID)+"/comments", q),
	})
}

// Create adds a comment to postID.
func (s *Comments) Create(ctx context.Context, postID int64, in CommentInput) (Comment, error) {
	var out Comment
	req := transport.Request{Method: http.MethodPost, URL: "/posts/" + id(postID) + "/comments", Body: in}
	err := s.write(ctx, req, &out, invalidate.CreateComment, invalidate.Params{PostID: postID})
	return out, err
}

// Delete removes comment commentID from postID.
func (s *Comments) Delete(ctx context.Context, postID, commentID int64) error {
	req := transport.Request{Method: http.MethodDelete, URL: "/posts/" + id(postID) + "/comments/" + id(commentID)}
	return s.write(ctx, req, nil, invalidate.DeleteComment, invalidate.Params{ID: commentID, PostID: postID})
}
