// Package main is the entry point for the convoyd binary. It delegates
// immediately to the CLI command tree.
package main

import (
	"context"
	"os"

	"github.com/ahmadsadek12/convoyd/internal/logging"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		logging.Logger().Error("fatal error", "err", err)
		os.Exit(1)
	}
}
