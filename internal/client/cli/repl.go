package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	Record(ctx context.Context, args []string) error
	Lookup(ctx context.Context, args []string) error
	Stats(ctx context.Context) error
	Sync(ctx context.Context) error
	Reconcile(ctx context.Context, args []string) error
	Purge(ctx context.Context, args []string) error
	Status(ctx context.Context) error
}

const helpText = `Available commands:
  record <number> block [reason]
  record <number> unblock | allow
  record <number> report [category] [severity] [comment]
  record <number> call answered|rejected [duration]
  lookup <number> [refresh]
  stats | status | sync
  reconcile <number>
  purge <number> | purge all
  exit`

// runREPL reads commands line by line and dispatches them to a. The prompt is
// only printed when prompt is true, so piped input produces clean output.
//
// Handler errors are printed and the loop continues. The loop exits on
// scanner EOF, on "exit"/"quit", or when ctx is cancelled.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner, prompt bool) {
	for {
		if ctx.Err() != nil {
			return
		}
		if prompt {
			printlnFn(fmt.Sprintf("callshield %s > ", statusFn()))
		}
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			printlnFn(helpText)
		case "record":
			err = a.Record(ctx, args)
		case "l", "lookup":
			err = a.Lookup(ctx, args)
		case "stats":
			err = a.Stats(ctx)
		case "sync":
			err = a.Sync(ctx)
		case "reconcile":
			err = a.Reconcile(ctx, args)
		case "purge":
			err = a.Purge(ctx, args)
		case "status":
			err = a.Status(ctx)
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			printlnFn("Unknown command:", cmd)
		}
		if err != nil {
			printlnFn("error:", err)
		}
	}
}
