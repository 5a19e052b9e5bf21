package main

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"postforge/internal/config"
)

// commandContext resolves shared CLI state lazily: the config file loads
// once, the API base URL derives from flag, environment, then config.
type commandContext struct {
	apiFlag    *string
	configFlag *string

	once sync.Once
	cfg  *config.Config
	err  error
}

func newCommandContext(apiFlag, configFlag *string) *commandContext {
	return &commandContext{apiFlag: apiFlag, configFlag: configFlag}
}

func (c *commandContext) loadConfig() (*config.Config, error) {
	c.once.Do(func() {
		path := ""
		if c.configFlag != nil {
			path = *c.configFlag
		}
		c.cfg, _, _, c.err = config.Load(path)
	})
	return c.cfg, c.err
}

// apiBase resolves the daemon endpoint. Explicit flag wins, then
// POSTFORGE_API, then the configured bind address.
func (c *commandContext) apiBase() (string, error) {
	if c.apiFlag != nil && strings.TrimSpace(*c.apiFlag) != "" {
		return normalizeBase(*c.apiFlag), nil
	}
	if env := strings.TrimSpace(os.Getenv("POSTFORGE_API")); env != "" {
		return normalizeBase(env), nil
	}
	cfg, err := c.loadConfig()
	if err != nil {
		return "", fmt.Errorf("load config: %w", err)
	}
	return normalizeBase(cfg.Paths.APIBind), nil
}

func (c *commandContext) client() (*apiClient, error) {
	base, err := c.apiBase()
	if err != nil {
		return nil, err
	}
	return newAPIClient(base), nil
}

func normalizeBase(value string) string {
	value = strings.TrimRight(strings.TrimSpace(value), "/")
	if !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") {
		value = "http://" + value
	}
	return value
}
