package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authsession/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Login prompts for credentials and opens a session.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if _, err := a.client.Login(ctx, email, string(password)); err != nil {
		fmt.Fprintln(a.out, "Login failed:", err)
		return err
	}

	a.email = common.NormalizeEmail(email)
	fmt.Fprintln(a.out, "Logged in")
	return nil
}

// Refresh rotates the session's refresh token.
func (a *App) Refresh(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	s, err := a.client.Refresh(ctx)
	if err != nil {
		fmt.Fprintln(a.out, "Refresh failed:", err)
		return err
	}

	fmt.Fprintln(a.out, "Session refreshed, access token valid until", s.AccessExpiry.Format(time.RFC3339))
	return nil
}

// SignOut ends the current session.
func (a *App) SignOut(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.client.SignOut(ctx); err != nil {
		fmt.Fprintln(a.out, "Sign out failed:", err)
		return err
	}

	a.email = ""
	fmt.Fprintln(a.out, "Signed out")
	return nil
}

// Status prints the expiry of the current token pair.
func (a *App) Status(context.Context) error {
	s := a.client.Session()
	if s.RefreshToken == "" {
		fmt.Fprintln(a.out, "Not logged in")
		return nil
	}
	fmt.Fprintln(a.out, "Access token expires: ", s.AccessExpiry.Format(time.RFC3339))
	fmt.Fprintln(a.out, "Refresh token expires:", s.RefreshExpiry.Format(time.RFC3339))
	return nil
}

// Ping checks that the server answers.
func (a *App) Ping(ctx context.Context) error {
	if err := a.client.Ping(ctx); err != nil {
		fmt.Fprintln(a.out, "Server unavailable:", err)
		return err
	}
	fmt.Fprintln(a.out, "OK")
	return nil
}
