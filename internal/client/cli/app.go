// Package cli is an interactive client for the session service: log in,
// rotate the refresh token, sign out.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/authsession/internal/client/authclient"
	"github.com/dmitrijs2005/authsession/internal/client/config"
)

// sessionClient is the part of authclient.GRPCClient the CLI uses.
type sessionClient interface {
	Login(ctx context.Context, email, password string) (authclient.Session, error)
	Refresh(ctx context.Context) (authclient.Session, error)
	SignOut(ctx context.Context) error
	Ping(ctx context.Context) error
	Session() authclient.Session
	Close() error
}

type App struct {
	config *config.Config
	client sessionClient
	reader *bufio.Reader
	out    io.Writer
	email  string
}

func NewApp(c *config.Config) (*App, error) {

	apiClient, err := authclient.NewClient(c.ServerEndpointAddr)
	if err != nil {
		return nil, err
	}

	return &App{config: c, client: apiClient, reader: bufio.NewReader(os.Stdin), out: os.Stdout}, nil
}

func (a *App) Run(ctx context.Context) {
	defer a.client.Close()

	fmt.Fprintln(a.out, "authsession CLI (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, a.reader, a.out)
}

func (a *App) isLoggedIn() bool {
	return a.client.Session().RefreshToken != ""
}

func (a *App) getStatus() string {
	if a.email == "" {
		return ""
	}
	return fmt.Sprintf("(%s)", a.email)
}

func (a *App) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, a.config.RequestTimeout)
}
