package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// execIface is the command surface the REPL dispatches to.
type execIface interface {
	isLoggedIn() bool
	Login(ctx context.Context) error
	Refresh(ctx context.Context) error
	SignOut(ctx context.Context) error
	Status(ctx context.Context) error
	Ping(ctx context.Context) error
}

// runREPL reads commands from reader until EOF, "exit" or "quit".
//
//	Not logged in: help, login, ping, exit
//	Logged in:     help, refresh, signout, status, ping, exit
//
// Handler errors are printed by the handlers themselves.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader, w io.Writer) {
	for {
		fmt.Fprintf(w, "auth %s> ", statusFn())

		line, err := reader.ReadString('\n')
		parts := strings.Fields(line)
		if len(parts) == 0 {
			if err != nil {
				return
			}
			continue
		}

		switch cmd := parts[0]; cmd {
		case "help":
			if a.isLoggedIn() {
				fmt.Fprintln(w, "Available commands: refresh, signout, status, ping, exit")
			} else {
				fmt.Fprintln(w, "Available commands: login, ping, exit")
			}

		case "login":
			_ = a.Login(ctx)

		case "refresh":
			_ = a.Refresh(ctx)

		case "signout", "logout":
			_ = a.SignOut(ctx)

		case "status":
			_ = a.Status(ctx)

		case "ping":
			_ = a.Ping(ctx)

		case "exit", "quit":
			fmt.Fprintln(w, "Bye!")
			return

		default:
			fmt.Fprintln(w, "Unknown command:", cmd)
		}

		if err != nil {
			return
		}
	}
}
