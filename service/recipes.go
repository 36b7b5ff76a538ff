package service

import (
	"context"
	"net/http"

	"github.com/Keksclan/rawrcache/cache"
	"github.com/Keksclan/rawrcache/invalidate"
	"github.com/Keksclan/rawrcache/transport"
)

// Recipes reads, searches and edits recipes.
type Recipes struct{ base }

// NewRecipes creates the recipes service over store.
func NewRecipes(store *cache.Store, deps Deps) *Recipes {
	return &Recipes{newBase(store, deps)}
}

// Get returns the recipe with the given id.
func (s *Recipes) Get(ctx context.Context, recipeID int64) (Recipe, error) {
	return fetch[Recipe](ctx, &s.base, read{
		namespace: "recipe",
		args:      []any{recipeID},
		tags:      []string{invalidate.EntityTag("recipe", recipeID)},
		req:       transport.Get("/recipes/"+id(recipeID), nil),
	})
}

// List returns one page of recipes.
func (s *Recipes) List(ctx context.Context, page, limit int) (Page[Recipe], error) {
	page, limit, q := pageQuery(page, limit)
	return fetch[Page[Recipe]](ctx, &s.base, read{
		namespace: "recipes",
		args:      []any{page, limit},
		req:       transport.Get("/recipes", q),
	})
}

// Search returns one page of recipes matching query.
func (s *Recipes) Search(ctx context.Context, query string, page, limit int) (Page[Recipe], error) {
	page, limit, q := pageQuery(page, limit)
	q.Set("q", query)
	return fetch[Page[Recipe]](ctx, &s.base, read{
		namespace: "recipes:search",
		args:      []any{query, page, limit},
		req:       transport.Get("/recipes/search", q),
	})
}

// Create stores a new recipe and returns it with its assigned id.
func (s *Recipes) Create(ctx context.Context, in RecipeInput) (Recipe, error) {
	var out Recipe
	req := transport.Request{Method: http.MethodPost, URL: "/recipes", Body: in}
	err := s.write(ctx, req, &out, invalidate.CreateRecipe, invalidate.Params{})
	return out, err
}

// Update replaces the recipe with the given id.
func (s *Recipes) Update(ctx context.Context, recipeID int64, in RecipeInput) (Recipe, error) {
	var out Recipe
	req := transport.Request{Method: http.MethodPut, URL: "/recipes/" + id(recipeID), Body: in}
	err := s.write(ctx, req, &out, invalidate.UpdateRecipe, invalidate.Params{ID: recipeID})
	return out, err
}

// Delete removes the recipe with the given id.
func (s *Recipes) Delete(ctx context.Context, recipeID int64) error {
	req := transport.Request{Method: http.MethodDelete, URL: "/recipes/" + id(recipeID)}
	return s.write(ctx, req, nil, invalidate.DeleteRecipe, invalidate.Params{ID: recipeID})
}
