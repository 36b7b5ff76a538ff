package cache

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// KeySeparator joins a namespace and its encoded arguments.
const KeySeparator = ":"

// DeriveKey builds the cache key for namespace and the positional args.
//
// Without args the key is exactly namespace. Otherwise the args are encoded
// as a JSON array and appended after [KeySeparator], so
// DeriveKey("posts", 1, 10) yields `posts:[1,10]`. Argument order is
// significant. Struct arguments are encoded in field order and maps with
// sorted keys; callers passing equivalent values of different shapes are not
// guaranteed to collide.
func DeriveKey(namespace string, args ...any) string {
	if len(args) == 0 {
		return namespace
	}
	b, err := json.Marshal(args)
	if err != nil {
		return namespace + KeySeparator + formatArgs(args)
	}
	return namespace + KeySeparator + string(b)
}

// formatArgs is used for arguments the JSON encoder rejects (channels,
// functions, cyclic values).
func formatArgs(args []any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprintf("%v", a)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
