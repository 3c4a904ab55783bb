package main

import (
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"lectern/internal/api"
	"lectern/internal/config"
	"lectern/internal/logging"
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
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) newLogger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return logging.New(logging.Options{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		OutputPaths: []string{filepath.Join(cfg.Paths.LogDir, "lectern.log")},
	})
}

// withEngine opens the fully wired engine for the duration of one command.
func (c *commandContext) withEngine(fn func(*api.Engine) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.newLogger()
	if err != nil {
		return err
	}
	engine, err := api.Open(cfg, logger)
	if err != nil {
		return err
	}
	defer engine.Close()
	return fn(engine)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
