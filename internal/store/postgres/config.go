package postgres

import (
	"errors"
	"fmt"
	"time"
)

// PoolConfig sizes the connection pool. A CLI or dashboard process only ever
// needs a couple of connections, so the defaults are deliberately small.
type PoolConfig struct {
	// ConnString is a postgres:// URL or a libpq keyword string.
	ConnString string

	MaxConns        int32
	MinConns        int32
	MaxConnIdleTime time.Duration
	ConnectTimeout  time.Duration

	// ApplicationName is reported in pg_stat_activity.
	ApplicationName string
}

func (c *PoolConfig) ApplyDefaults() {
	if c.MaxConns == 0 {
		c.MaxConns = 4
	}
	c.MinConns = min(c.MinConns, c.MaxConns)
	if c.MaxConnIdleTime == 0 {
		c.MaxConnIdleTime = 5 * time.Minute
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.ApplicationName == "" {
		c.ApplicationName = "studiodesk"
	}
}

func (c *PoolConfig) Validate() error {
	if c.ConnString == "" {
		return errors.New("connection string is required")
	}
	return nil
}

// KVConfig controls how the store lays out its rows.
type KVConfig struct {
	// Namespace partitions keys so several clients can share one table.
	Namespace string

	// AutoMigrate creates the client_state table when the store is opened.
	AutoMigrate bool

	// QueryTimeout bounds each statement, zero leaves it to the caller's context.
	QueryTimeout time.Duration
}

func (c *KVConfig) ApplyDefaults() {
	if c.Namespace == "" {
		c.Namespace = "default"
	}
	if c.QueryTimeout == 0 {
		c.QueryTimeout = 5 * time.Second
	}
}

func (c *KVConfig) Validate() error {
	if n := len(c.Namespace); n > 64 {
		return fmt.Errorf("namespace is %d characters, at most 64 allowed", n)
	}
	return nil
}
