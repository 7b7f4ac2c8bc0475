// Copyright © 2024 The ELPS authors

package cmd

import (
	"github.com/luthersystems/typecov/config"
	"github.com/luthersystems/typecov/coverage"
	"github.com/luthersystems/typecov/hack"
	"github.com/luthersystems/typecov/servicehub"
)

// Option configures an exported command factory (LSPCommand, CheckCommand).
type Option func(*cmdConfig)

type cmdConfig struct {
	providers []coverage.Provider
	hub       *servicehub.Hub
}

// WithProviders replaces the default hh_client provider. Embedders use it
// to serve coverage for their own grammars.
func WithProviders(providers ...coverage.Provider) Option {
	return func(c *cmdConfig) { c.providers = append(c.providers, providers...) }
}

// WithHub makes the language server register its diagnostics provider in
// hub instead of a private one.
func WithHub(hub *servicehub.Hub) Option {
	return func(c *cmdConfig) { c.hub = hub }
}

func newCmdConfig(opts ...Option) *cmdConfig {
	var c cmdConfig
	for _, o := range opts {
		o(&c)
	}
	return &c
}

// resolveProviders returns the injected providers, falling back to an
// hh_client provider configured from cfg.
func (c *cmdConfig) resolveProviders(cfg config.Config) []coverage.Provider {
	if len(c.providers) > 0 {
		return c.providers
	}
	return []coverage.Provider{hack.NewProvider(cfg.Hack.ClientPath, cfg.Hack.Timeout)}
}

// resolveHub returns the injected hub or a fresh one.
func (c *cmdConfig) resolveHub() *servicehub.Hub {
	if c.hub != nil {
		return c.hub
	}
	return servicehub.New()
}
