// wbdisplay drives a virtual writeback display: it negotiates output
// modes, commits frames into memory buffers and captures the result.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/frobware/go-wbdisplay/cmd/wbdisplay/cli"
)

func main() {
	var c cli.CLI
	kctx := kong.Parse(&c, cli.KongOptions()...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kctx.BindTo(ctx, (*context.Context)(nil))
	if err := kctx.Run(&c); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
