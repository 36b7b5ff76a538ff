package transport

// Middleware decorates a Transport with extra behaviour such as retries,
// rate limiting or tracing.
type Middleware func(Transport) Transport

// Chain composes middlewares from left to right, i.e. Chain(A, B)(t) => A(B(t)).
// The first middleware is the outermost one.
func Chain(mw ...Middleware) Middleware {
	return func(next Transport) Transport {
		for i := len(mw) - 1; i >= 0; i-- {
			next = mw[i](next)
		}
		return next
	}
}

// Wrap applies the middleware chain to t.
func Wrap(t Transport, mw ...Middleware) Transport {
	if len(mw) == 0 {
		return t
	}
	return Chain(mw...)(t)
}
