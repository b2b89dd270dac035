package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/wolfeidau/studiodesk/internal/auth"
)

// TokenCmd issues a development token whose subject is a numeric user id.
type TokenCmd struct {
	UserID     int64         `arg:"" help:"User id placed in the subject claim"`
	TTL        time.Duration `help:"Token lifetime" default:"1h"`
	SigningKey string        `help:"JWT signing key" required:"" env:"JWT_SIGNING_KEY"`
}

func (t *TokenCmd) Run(ctx context.Context) error {
	token, err := auth.IssueToken(t.SigningKey, t.UserID, t.TTL)
	if err != nil {
		return err
	}

	fmt.Println(token)
	return nil
}
