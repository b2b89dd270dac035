package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/studiodesk/internal/auth"
	"github.com/wolfeidau/studiodesk/internal/client"
	"golang.org/x/term"
)

// LoginCmd exchanges credentials for a token and stores the session.
type LoginCmd struct {
	Username string `help:"Account email" short:"u" env:"STUDIODESK_USERNAME"`
	Password string `help:"Account password, prompted for when empty" env:"STUDIODESK_PASSWORD"`
	NoSync   bool   `help:"Skip tenant auto-selection for superusers" default:"false"`
}

func (c *LoginCmd) Run(ctx context.Context, globals *Globals) error {
	e, err := openEnv(ctx, globals)
	if err != nil {
		return err
	}
	defer e.Close()

	username := c.Username
	password := c.Password

	if username == "" {
		if username, err = promptLine(os.Stdin, "Email: "); err != nil {
			return err
		}
	}
	if password == "" {
		if password, err = promptPassword("Password: "); err != nil {
			return err
		}
	}

	resp, err := e.api.Login(ctx, client.LoginRequest{Username: username, Password: password})
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			return fmt.Errorf("login failed: %s", apiErr.Message)
		}
		return err
	}

	if err := e.manager.Login(ctx, resp.AccessToken, resp.User); err != nil {
		return err
	}

	snap := e.manager.Snapshot()

	if snap.IsSuperuser() && !c.NoSync {
		if _, err := e.syncer.Sync(ctx); err != nil {
			log.Warn().Err(err).Msg("tenant auto-selection skipped")
		}
		snap = e.manager.Snapshot()
	}

	fmt.Printf("Logged in as %s\n", snap.User.Email)
	fmt.Printf("Superuser: %t\n", snap.IsSuperuser())
	fmt.Printf("Active tenant: %s\n", formatTenant(snap.ActiveTenant))
	fmt.Printf("Token: %s\n", auth.Fingerprint(snap.Token))

	return nil
}

// LogoutCmd removes the stored session.
type LogoutCmd struct{}

func (c *LogoutCmd) Run(ctx context.Context, globals *Globals) error {
	e, err := openEnv(ctx, globals)
	if err != nil {
		return err
	}
	defer e.Close()

	wasLoggedIn := e.manager.Snapshot().IsAuthenticated()

	// always runs so a stale tenant selection is cleared too
	e.manager.Logout(ctx)

	if wasLoggedIn {
		fmt.Println("Logged out.")
	} else {
		fmt.Println("Not logged in.")
	}

	return nil
}

// WhoamiCmd prints the stored session.
type WhoamiCmd struct{}

func (c *WhoamiCmd) Run(ctx context.Context, globals *Globals) error {
	e, err := openEnv(ctx, globals)
	if err != nil {
		return err
	}
	defer e.Close()

	snap := e.manager.Snapshot()
	if err := requireLogin(snap); err != nil {
		return err
	}

	if user := snap.User; user != nil {
		fmt.Printf("Email:         %s\n", user.Email)
		if user.FullName != nil {
			fmt.Printf("Name:          %s\n", *user.FullName)
		}
		if user.ID != nil {
			fmt.Printf("User ID:       %d\n", *user.ID)
		}
	} else {
		fmt.Println("Profile:       unknown")
	}
	fmt.Printf("Superuser:     %t\n", snap.IsSuperuser())
	fmt.Printf("Active tenant: %s\n", formatTenant(snap.ActiveTenant))
	fmt.Printf("Session:       %s\n", snap.ID)
	fmt.Printf("Token:         %s\n", auth.Fingerprint(snap.Token))

	return nil
}

func promptLine(in io.Reader, prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read input: %w", err)
	}

	return strings.TrimSpace(line), nil
}

func promptPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return promptLine(os.Stdin, prompt)
	}

	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	return string(password), nil
}
