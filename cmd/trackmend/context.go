package main

import (
	"context"
	"strings"
	"sync"

	"github.com/sydlexius/trackmend/internal/config"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		c.config, c.configErr = config.Load(path)
	})
	return c.config, c.configErr
}

// withApp opens the application for a one-shot command, logging to stderr so
// stdout carries only command output.
func (c *commandContext) withApp(ctx context.Context, fn func(*app) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg, "stderr")
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck
	return fn(a)
}
