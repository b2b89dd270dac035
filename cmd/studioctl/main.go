package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/studiodesk/cmd/studioctl/internal/commands"
	"github.com/wolfeidau/studiodesk/internal/logger"
)

var (
	version = "dev"
	cli     struct {
		commands.Globals

		Login     commands.LoginCmd     `cmd:"" help:"Log in and store the session"`
		Logout    commands.LogoutCmd    `cmd:"" help:"Remove the stored session"`
		Whoami    commands.WhoamiCmd    `cmd:"" help:"Show the stored session"`
		Tenants   commands.TenantsCmd   `cmd:"" help:"List, switch or show tenants"`
		API       commands.APICmd       `cmd:"" name:"api" help:"Send an authenticated API request"`
		Dashboard commands.DashboardCmd `cmd:"" help:"Serve the local web dashboard"`
		Token     commands.TokenCmd     `cmd:"" help:"Generate a development JWT"`
		Version   kong.VersionFlag
	}
)

func main() {
	// a missing .env is fine
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := kong.Parse(&cli,
		kong.Name("studioctl"),
		kong.Description("Studio management client with tenant scoped sessions."),
		kong.Vars{
			"version": version,
		},
		kong.UsageOnError(),
	)

	log.Logger = logger.Setup(cli.Debug)
	ctx = log.Logger.WithContext(ctx)
	cmd.BindTo(ctx, (*context.Context)(nil))

	cli.Globals.Version = version
	err := cmd.Run(&cli.Globals)
	cmd.FatalIfErrorf(err)
}
