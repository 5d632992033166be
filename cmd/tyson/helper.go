package main

import (
	"fmt"

	"github.com/harunnryd/tyson/internal/agent"
	"github.com/harunnryd/tyson/internal/config"
	"github.com/harunnryd/tyson/internal/model"
	"github.com/harunnryd/tyson/internal/session"
	"github.com/harunnryd/tyson/internal/tool"
	"github.com/harunnryd/tyson/internal/tool/builtin"
)

// components bundles everything a surface needs to run turns.
type components struct {
	Agent    *agent.Agent
	Store    *session.Store
	Registry *tool.Registry
}

func buildComponents(cfg *config.Config) (*components, error) {
	router, err := model.NewRouter(cfg.Models)
	if err != nil {
		return nil, fmt.Errorf("init model router: %w", err)
	}

	registry := tool.NewRegistry()
	registry.Register(builtin.NewCalculateTool())
	registry.Register(builtin.NewTimeTool())

	webTimeout, _ := config.DurationOrDefault(cfg.Tools.Web.Timeout, config.DefaultWebToolTimeout)
	registry.Register(builtin.NewWebSearchTool(cfg.Tools.Web.BaseURL, webTimeout, cfg.Tools.Web.MaxResults))

	invokeTimeout, _ := config.DurationOrDefault(cfg.Tools.InvokeTimeout, config.DefaultToolInvokeTimeout)
	runner := tool.NewRunner(registry, invokeTimeout)

	lockTimeout, _ := config.DurationOrDefault(cfg.Store.LockTimeout, config.DefaultStoreLockTimeout)
	lockRetry, _ := config.DurationOrDefault(cfg.Store.LockRetry, config.DefaultStoreLockRetry)
	store, err := session.NewStore(cfg.Store.PathOrDefault(), &session.FileLockConfig{
		Timeout:  lockTimeout,
		Retry:    lockRetry,
		MaxRetry: cfg.Store.LockMaxRetry,
	})
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	a := agent.New(router, runner, agent.OptionsFromConfig(cfg))

	return &components{
		Agent:    a,
		Store:    store,
		Registry: registry,
	}, nil
}

func (c *components) Close() {
	if c.Store != nil {
		c.Store.Close()
	}
}
