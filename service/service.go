// Package service implements the per-domain data services. Reads are
// answered from the domain's [cache.Store] while the entry is live and share
// one in-flight API call through the [coalesce.Registry] otherwise. Writes go
// to the API first and invalidate affected entries only once they succeeded.
//
// Values handed out by the services are shared with the cache and must be
// treated as read-only.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/Keksclan/rawrcache/cache"
	"github.com/Keksclan/rawrcache/coalesce"
	"github.com/Keksclan/rawrcache/contextx"
	"github.com/Keksclan/rawrcache/invalidate"
	"github.com/Keksclan/rawrcache/policy"
	"github.com/Keksclan/rawrcache/transport"
)

// Default page geometry for list calls given a non-positive page or limit.
const (
	DefaultPage  = 1
	DefaultLimit = 10
)

// Deps are the collaborators shared by all services.
type Deps struct {
	Transport   transport.Transport
	Registry    *coalesce.Registry
	Invalidator *invalidate.Invalidator
	Logger      *slog.Logger

	// Policies selects per-endpoint TTL, storage and timeout settings by
	// request URL path. Nil applies the store defaults everywhere.
	Policies *policy.Resolver
}

// base is embedded by every service.
type base struct {
	store *cache.Store
	deps  Deps
}

func newBase(store *cache.Store, deps Deps) base {
	if deps.Registry == nil {
		deps.Registry = coalesce.New()
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	return base{store: store, deps: deps}
}

// Store returns the cache the service reads through.
func (b *base) Store() *cache.Store { return b.store }

// read describes one cached read: where the result lives in the store and
// which request produces it.
type read struct {
	namespace string
	args      []any
	tags      []string
	req       transport.Request
}

// fetch answers rd from the store or, on a miss, from a coalesced API call
// whose decoded result is stored before it is returned.
func fetch[T any](ctx context.Context, b *base, rd read) (T, error) {
	var zero T
	pol := b.deps.Policies.Lookup(rd.req.URL)

	if !pol.NoStore && !contextx.CacheBypass(ctx) {
		if v, ok := b.store.Get(rd.namespace, rd.args...); ok {
			if out, ok := v.(T); ok {
				return out, nil
			}
		}
	}

	// Readers only share a call started at the same store generation, so a
	// read issued after an invalidation never joins one issued before it.
	gen := b.store.Generation()
	sig := coalesceKey(rd.req, gen)
	v, err := b.deps.Registry.Run(ctx, sig, func(ctx context.Context) (any, error) {
		if pol.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, pol.Timeout)
			defer cancel()
		}
		out, err := call[T](ctx, b.deps.Transport, rd.req)
		if err != nil {
			return nil, err
		}
		if !pol.NoStore {
			b.store.SetTaggedAt(gen, rd.namespace, out, pol.TTL, rd.tags, rd.args...)
		}
		return out, nil
	})
	if err != nil {
		b.deps.Logger.Debug("api read failed",
			"store", b.store.Name(),
			"signature", sig,
			"error", err,
		)
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("service: unexpected result %T for %s", v, sig)
	}
	return out, nil
}

// coalesceKey is the registry signature of req read at store generation gen.
func coalesceKey(req transport.Request, gen uint64) string {
	return req.Signature() + "@" + strconv.FormatUint(gen, 10)
}

// write performs a mutation and, once the API accepted it, applies m. The
// response body is decoded into out when out is non-nil; a body that fails to
// decode is reported after the cache has been invalidated.
func (b *base) write(ctx context.Context, req transport.Request, out any, m invalidate.Mutation, p invalidate.Params) error {
	body, err := b.deps.Transport.Do(contextx.EnsureRequestID(ctx), req)
	if b.deps.Invalidator != nil {
		err = b.deps.Invalidator.After(err, m, p)
	}
	if err != nil {
		return err
	}
	if out != nil && len(body) > 0 {
		return decode(req, body, out)
	}
	return nil
}

// call performs req and decodes the response body into a T.
func call[T any](ctx context.Context, t transport.Transport, req transport.Request) (T, error) {
	var out T
	body, err := t.Do(contextx.EnsureRequestID(ctx), req)
	if err != nil {
		return out, err
	}
	if err := decode(req, body, &out); err != nil {
		return out, err
	}
	return out, nil
}

func decode(req transport.Request, body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return &transport.Error{Kind: transport.KindDecode, Method: req.Method, URL: req.URL, Err: err}
	}
	return nil
}

func pageQuery(page, limit int) (int, int, url.Values) {
	if page <= 0 {
		page = DefaultPage
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return page, limit, url.Values{
		"page":  {strconv.Itoa(page)},
		"limit": {strconv.Itoa(limit)},
	}
}

func id(v int64) string { return strconv.FormatInt(v, 10) }

// Services bundles the four data services over one set of stores.
type Services struct {
	Users    *Users
	Recipes  *Recipes
	Posts    *Posts
	Comments *Comments
}

// New creates all services. stores must hold one store per [cache.Domains]
// entry.
func New(stores map[string]*cache.Store, deps Deps) (*Services, error) {
	for _, d := range cache.Domains() {
		if stores[d] == nil {
			return nil, fmt.Errorf("service: missing %s store", d)
		}
	}
	return &Services{
		Users:    NewUsers(stores[cache.Users], deps),
		Recipes:  NewRecipes(stores[cache.Recipes], deps),
		Posts:    NewPosts(stores[cache.Posts], deps),
		Comments: NewComments(stores[cache.Comments], deps),
	}, nil
}
