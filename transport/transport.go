// Package transport defines the contract between the data services and the
// REST API: a [Request] value, the [Transport] interface that executes it,
// and the typed [Error] every implementation reports failures with.
package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/goccy/go-json"
)

// Request describes one API call. URL is usually a path relative to the
// transport's base URL.
type Request struct {
	Method string
	URL    string
	Query  url.Values
	Body   any

	// Header carries extra headers such as trace propagation. It does not
	// take part in the signature.
	Header http.Header
}

// Get is shorthand for a GET request without body.
func Get(path string, query url.Values) Request {
	return Request{Method: http.MethodGet, URL: path, Query: query}
}

// Signature identifies "the same request" for coalescing: method, URL,
// query parameters in sorted key order and the JSON encoded body. A body
// that cannot be encoded contributes its %v formatting instead.
func (r Request) Signature() string {
	var sb strings.Builder
	sb.WriteString(strings.ToUpper(r.Method))
	sb.WriteByte(' ')
	sb.WriteString(r.URL)
	if len(r.Query) > 0 {
		sb.WriteByte('?')
		sb.WriteString(encodeQuery(r.Query))
	}
	if r.Body != nil {
		sb.WriteByte(' ')
		if b, err := json.Marshal(r.Body); err == nil {
			sb.Write(b)
		} else {
			fmt.Fprintf(&sb, "%v", r.Body)
		}
	}
	return sb.String()
}

// encodeQuery is url.Values.Encode with values of a repeated key kept in
// their given order.
func encodeQuery(q url.Values) string {
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		for _, v := range q[k] {
			if sb.Len() > 0 {
				sb.WriteByte('&')
			}
			sb.WriteString(url.QueryEscape(k))
			sb.WriteByte('=')
			sb.WriteString(url.QueryEscape(v))
		}
	}
	return sb.String()
}

// Transport executes API requests and returns the raw response body.
// Failures are reported as *[Error].
type Transport interface {
	Do(ctx context.Context, req Request) ([]byte, error)
}

// Func adapts an ordinary function to the [Transport] interface.
type Func func(ctx context.Context, req Request) ([]byte, error)

// Do calls f(ctx, req).
func (f Func) Do(ctx context.Context, req Request) ([]byte, error) {
	return f(ctx, req)
}
