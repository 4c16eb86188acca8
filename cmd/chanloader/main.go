// Command chanloader loads 4chan boards, catalogs and threads and prints
// them as JSON.
//
// Usage:
//
//	chanloader boards
//	chanloader catalog g
//	chanloader --log-format pretty --debug thread g 12345
//
// Settings come from --config, CHANLOADER_* environment variables and
// flags; see internal/config.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "chanloader:", err)
		}
		os.Exit(1)
	}
}

func usage(fs *pflag.FlagSet, w io.Writer) func() {
	return func() {
		fmt.Fprintln(w, "usage: chanloader [flags] boards | catalog <board> | thread <board> <no>")
		fs.SetOutput(w)
		fs.PrintDefaults()
	}
}
