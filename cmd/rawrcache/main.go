// Command rawrcache fetches users, recipes, posts and comments from a REST
// API through the cache. It exists to exercise the cache against a live
// backend: repeated reads are answered from memory and the bench command
// shows how concurrent identical reads collapse into one call.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
