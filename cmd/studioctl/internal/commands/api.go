package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/wolfeidau/studiodesk/internal/client"
)

// APICmd sends an authenticated request to the API and prints the response.
type APICmd struct {
	Method   string   `arg:"" help:"HTTP method" enum:"GET,POST,PUT,PATCH,DELETE,get,post,put,patch,delete"`
	Path     string   `arg:"" help:"Path relative to the server URL, e.g. /api/pms/bookings"`
	Data     string   `help:"JSON request body, @file reads it from a file" short:"d"`
	Header   []string `help:"Extra request header as Name:Value" short:"H"`
	NoTenant bool     `help:"Do not send the tenant header" default:"false"`
}

func (c *APICmd) Run(ctx context.Context, globals *Globals) error {
	e, err := openEnv(ctx, globals)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := requireLogin(e.manager.Snapshot()); err != nil {
		return err
	}

	body, err := c.body()
	if err != nil {
		return err
	}

	header, err := parseHeaders(c.Header)
	if err != nil {
		return err
	}

	if c.NoTenant {
		ctx = client.WithoutTenant(ctx)
	}

	resp, err := e.api.Raw(ctx, strings.ToUpper(c.Method), c.Path, body, header)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var pretty bytes.Buffer
	if json.Indent(&pretty, data, "", "  ") == nil {
		data = pretty.Bytes()
	}

	if len(data) > 0 {
		fmt.Println(string(data))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("request failed: %s", resp.Status)
	}

	return nil
}

func (c *APICmd) body() (io.Reader, error) {
	switch {
	case c.Data == "":
		return nil, nil
	case strings.HasPrefix(c.Data, "@"):
		data, err := os.ReadFile(strings.TrimPrefix(c.Data, "@"))
		if err != nil {
			return nil, fmt.Errorf("failed to read body: %w", err)
		}
		return bytes.NewReader(data), nil
	default:
		return strings.NewReader(c.Data), nil
	}
}

func parseHeaders(values []string) (http.Header, error) {
	header := http.Header{}
	for _, v := range values {
		name, value, ok := strings.Cut(v, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid header %q, expected Name:Value", v)
		}
		header.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}
	return header, nil
}
