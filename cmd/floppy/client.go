package main

import (
	"context"
	"fmt"
	"time"

	"floppy/internal/api"
	"floppy/internal/config"
)

const pingTimeout = 2 * time.Second

// withClient checks that a server answers at cfg.APIURL before running fn,
// so connection problems surface before any upload body is sent.
func withClient(cfg *config.Config, fn func(*api.Client) error) error {
	client := api.NewClient(cfg.APIURL)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		return fmt.Errorf("reach %s: %w", cfg.APIURL, err)
	}
	return fn(client)
}
