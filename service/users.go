package service

import (
	"context"
	"net/http"

	"github.com/Keksclan/rawrcache/cache"
	"github.com/Keksclan/rawrcache/invalidate"
	"github.com/Keksclan/rawrcache/transport"
)

// Users reads and updates user profiles.
type Users struct{ base }

// NewUsers creates the users service over store.
func NewUsers(store *cache.Store, deps Deps) *Users {
	return &Users{newBase(store, deps)}
}

// Get returns the user with the given id.
func (s *Users) Get(ctx context.Context, userID int64) (User, error) {
	return fetch[User](ctx, &s.base, read{
		namespace: "user",
		args:      []any{userID},
		tags:      []string{invalidate.EntityTag("user", userID)},
		req:       transport.Get("/users/"+id(userID), nil),
	})
}

// List returns one page of users.
func (s *Users) List(ctx context.Context, page, limit int) (Page[User], error) {
	page, limit, q := pageQuery(page, limit)
	return fetch[Page[User]](ctx, &s.base, read{
		namespace: "users",
		args:      []any{page, limit},
		req:       transport.Get("/users", q),
	})
}

// Update changes the profile of the given user and returns the stored result.
func (s *Users) Update(ctx context.Context, userID int64, in UserUpdate) (User, error) {
	var out User
	req := transport.Request{Method: http.MethodPut, URL: "/users/" + id(userID), Body: in}
	err := s.write(ctx, req, &out, invalidate.UpdateUser, invalidate.Params{ID: userID})
	return out, err
}
