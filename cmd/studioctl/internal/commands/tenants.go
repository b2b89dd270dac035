package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wolfeidau/studiodesk/internal/session"
)

type TenantsCmd struct {
	List    TenantsListCmd    `cmd:"" default:"1" help:"List tenants (superuser only)"`
	Switch  TenantsSwitchCmd  `cmd:"" help:"Switch the active tenant (superuser only)"`
	Current TenantsCurrentCmd `cmd:"" help:"Show the active tenant"`
}

type TenantsListCmd struct{}

func (c *TenantsListCmd) Run(ctx context.Context, globals *Globals) error {
	e, err := openEnv(ctx, globals)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := requireLogin(e.manager.Snapshot()); err != nil {
		return err
	}

	list, err := e.syncer.Sync(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tenants: %w", err)
	}

	active := e.manager.Snapshot().ActiveTenant

	if len(list) == 0 {
		fmt.Println("No tenants found.")
		return nil
	}

	fmt.Printf("%-2s %-8s %-30s %-20s %-20s\n", "", "ID", "Name", "Slug", "City")
	fmt.Println(strings.Repeat("─", 84))

	for _, t := range list {
		marker := ""
		if active != nil && *active == t.ID {
			marker = "*"
		}

		name := t.Name
		if len(name) > 30 {
			name = name[:27] + "..."
		}

		city := ""
		if t.City != nil {
			city = *t.City
		}

		fmt.Printf("%-2s %-8d %-30s %-20s %-20s\n", marker, t.ID, name, t.Slug, city)
	}

	fmt.Printf("\nTotal tenants: %d\n", len(list))

	return nil
}

type TenantsSwitchCmd struct {
	ID    int64 `arg:"" optional:"" help:"Tenant ID to make active"`
	Clear bool  `help:"Clear the active tenant instead" default:"false"`
}

func (c *TenantsSwitchCmd) Run(ctx context.Context, globals *Globals) error {
	if !c.Clear && c.ID <= 0 {
		return errors.New("a tenant ID or --clear is required")
	}

	e, err := openEnv(ctx, globals)
	if err != nil {
		return err
	}
	defer e.Close()

	var tenantID *int64
	if !c.Clear {
		tenantID = &c.ID
	}

	if err := e.manager.SwitchTenant(ctx, tenantID); err != nil {
		if errors.Is(err, session.ErrNotSuperuser) {
			return errors.New("only superusers can switch tenants, regular users are bound to their own")
		}
		return err
	}

	fmt.Printf("Active tenant: %s\n", formatTenant(e.manager.Snapshot().ActiveTenant))

	return nil
}

type TenantsCurrentCmd struct{}

func (c *TenantsCurrentCmd) Run(ctx context.Context, globals *Globals) error {
	e, err := openEnv(ctx, globals)
	if err != nil {
		return err
	}
	defer e.Close()

	snap := e.manager.Snapshot()
	if err := requireLogin(snap); err != nil {
		return err
	}

	if snap.ActiveTenant == nil {
		fmt.Println("No active tenant.")
		return nil
	}

	t, err := e.api.CurrentTenant(ctx, *snap.ActiveTenant)
	if err != nil {
		return err
	}

	fmt.Printf("ID:      %d\n", t.ID)
	fmt.Printf("Name:    %s\n", t.Name)
	fmt.Printf("Slug:    %s\n", t.Slug)
	if t.ContactEmail != nil {
		fmt.Printf("Contact: %s\n", *t.ContactEmail)
	}
	if t.City != nil {
		fmt.Printf("City:    %s\n", *t.City)
	}

	return nil
}
