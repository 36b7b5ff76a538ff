// Package invalidate clears cached reads after a confirmed write. Which
// entries a mutation stales out is static configuration: a [Rules] table
// mapping each [Mutation] to the stores and key families it affects.
package invalidate

import (
	"strconv"
	"strings"

	"github.com/Keksclan/rawrcache/cache"
)

// Mutation identifies a kind of write.
type Mutation string

const (
	CreatePost    Mutation = "create_post"
	UpdatePost    Mutation = "update_post"
	DeletePost    Mutation = "delete_post"
	CreateComment Mutation = "create_comment"
	DeleteComment Mutation = "delete_comment"
	UpdateUser    Mutation = "update_user"
	CreateRecipe  Mutation = "create_recipe"
	UpdateRecipe  Mutation = "update_recipe"
	DeleteRecipe  Mutation = "delete_recipe"
)

// Params carries the entity ids a mutation refers to. Placeholders in rule
// templates are filled from it: {id} from ID and {post_id} from PostID.
type Params struct {
	ID     int64
	PostID int64
}

// Target is one family of entries to clear in one store. Exactly one of
// Prefix, Entity or Tag is set.
type Target struct {
	// Store is the domain name of the store to clear.
	Store string

	// Prefix is a literal key prefix template such as "posts:" or
	// "comments:post:{post_id}:".
	Prefix string

	// Entity names a single-entity namespace. The entry derived from the
	// namespace and Params.ID is deleted, and every entry tagged
	// "<Entity>:<ID>" is invalidated along with it.
	Entity string

	// Tag is a tag template such as "post:{id}".
	Tag string
}

// Rules maps each mutation to the targets it clears.
type Rules map[Mutation][]Target

// DefaultRules is the invalidation table used by the data services.
var DefaultRules = Rules{
	CreatePost: {
		{Store: cache.Posts, Prefix: "posts:"},
	},
	UpdatePost: {
		{Store: cache.Posts, Entity: "post"},
		{Store: cache.Posts, Prefix: "posts:"},
		{Store: cache.Posts, Prefix: "user-posts:"},
	},
	DeletePost: {
		{Store: cache.Posts, Entity: "post"},
		{Store: cache.Posts, Prefix: "posts:"},
		{Store: cache.Posts, Prefix: "user-posts:"},
		{Store: cache.Comments, Prefix: "comments:post:{id}:"},
	},
	CreateComment: {
		{Store: cache.Comments, Prefix: "comments:post:{post_id}:"},
	},
	DeleteComment: {
		{Store: cache.Comments, Prefix: "comments:post:{post_id}:"},
	},
	UpdateUser: {
		{Store: cache.Users, Entity: "user"},
		{Store: cache.Users, Prefix: "users:"},
	},
	CreateRecipe: {
		{Store: cache.Recipes, Prefix: "recipes:"},
	},
	UpdateRecipe: {
		{Store: cache.Recipes, Entity: "recipe"},
		{Store: cache.Recipes, Prefix: "recipes:"},
	},
	DeleteRecipe: {
		{Store: cache.Recipes, Entity: "recipe"},
		{Store: cache.Recipes, Prefix: "recipes:"},
	},
}

// EntityTag returns the tag entries of a single entity are registered under,
// for example EntityTag("post", 7) == "post:7".
func EntityTag(entity string, id int64) string {
	return entity + cache.KeySeparator + strconv.FormatInt(id, 10)
}

// CommentsNamespace returns the namespace under which the comment pages of a
// post are cached. Its keys all start with "comments:post:<id>:".
func CommentsNamespace(postID int64) string {
	return "comments:post:" + strconv.FormatInt(postID, 10)
}

// expand fills the {id} and {post_id} placeholders of tmpl.
func expand(tmpl string, p Params) string {
	if !strings.Contains(tmpl, "{") {
		return tmpl
	}
	r := strings.NewReplacer(
		"{id}", strconv.FormatInt(p.ID, 10),
		"{post_id}", strconv.FormatInt(p.PostID, 10),
	)
	return r.Replace(tmpl)
}
