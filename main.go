//go:generate env GOOS=wasip1 GOARCH=wasm go build -o sockets-client.wasm .

// sockets-client connects to a host:port using every resolved address
// in turn and verifies one request/response exchange.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dicej/wasi-sockets-tests/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)

	err := cmd.Execute(ctx, os.Args[1:])
	cancel()
	os.Exit(cmd.Report(err, os.Stderr))
}
