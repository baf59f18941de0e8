// Package dependency wires the relay's services using go.uber.org/dig.
package dependency

import (
	"context"
	"fmt"
	"log/slog"

	"go.uber.org/dig"

	"github.com/toolrelay/toolrelay/internal/config"
	"github.com/toolrelay/toolrelay/internal/execution"
	"github.com/toolrelay/toolrelay/internal/gateway"
	"github.com/toolrelay/toolrelay/internal/handler"
	"github.com/toolrelay/toolrelay/internal/hub"
	"github.com/toolrelay/toolrelay/internal/metrics"
	"github.com/toolrelay/toolrelay/internal/protocol"
	"github.com/toolrelay/toolrelay/internal/registry"
	"github.com/toolrelay/toolrelay/internal/router"
	"github.com/toolrelay/toolrelay/internal/store"
)

// Container holds the resolved service singletons.
// Callers use the typed getter methods; they never need to import dig directly.
type Container struct {
	tools   *registry.Registry
	coord   *execution.Coordinator
	janitor *execution.Janitor
	gateway *gateway.Server
	store   *store.SQLite
}

func (c *Container) Registry() *registry.Registry        { return c.tools }
func (c *Container) Coordinator() *execution.Coordinator { return c.coord }
func (c *Container) Janitor() *execution.Janitor         { return c.janitor }
func (c *Container) Gateway() *gateway.Server            { return c.gateway }

// Close releases the tool store, if one was opened.
func (c *Container) Close() error {
	if c.store == nil {
		return nil
	}
	return c.store.Close()
}

// New builds and wires all services from cfg.
func New(cfg *config.Config) (*Container, error) {
	d := dig.New()

	for _, ctor := range []any{
		func() *config.Config { return cfg },
		metrics.New,
		newStore,
		newLocalTools,
		newRegistry,
		newHub,
		newCoordinator,
		newJanitor,
		newDispatcher,
		newRouter,
		newGateway,
	} {
		if err := d.Provide(ctor); err != nil {
			return nil, err
		}
	}

	var result *Container
	err := d.Invoke(func(
		tools *registry.Registry,
		coord *execution.Coordinator,
		janitor *execution.Janitor,
		gw *gateway.Server,
		s *store.SQLite,
	) {
		result = &Container{
			tools:   tools,
			coord:   coord,
			janitor: janitor,
			gateway: gw,
			store:   s,
		}
	})
	if err != nil {
		return nil, dig.RootCause(err)
	}
	return result, nil
}

// newStore opens the tool store, or returns nil when persistence is off.
func newStore(cfg *config.Config) (*store.SQLite, error) {
	if cfg.Store.DSN == "" {
		return nil, nil
	}
	s, err := store.Open(cfg.Store.DSN)
	if err != nil {
		return nil, fmt.Errorf("open tool store: %w", err)
	}
	return s, nil
}

func newLocalTools(cfg *config.Config) *handler.Local {
	if !cfg.Tools.Builtins {
		return handler.NewLocal()
	}
	return handler.NewLocal(handler.Builtins()...)
}

func newRegistry(s *store.SQLite, local *handler.Local) (*registry.Registry, error) {
	ctx := context.Background()

	var reg *registry.Registry
	if s != nil {
		reg = registry.New(s)
	} else {
		reg = registry.New(nil)
	}

	descs, err := local.Descriptors()
	if err != nil {
		return nil, fmt.Errorf("builtin tools: %w", err)
	}
	for _, desc := range descs {
		if _, err := reg.Register(ctx, desc); err != nil {
			return nil, fmt.Errorf("register builtin %s: %w", desc.Name, err)
		}
	}

	if s != nil {
		n, err := reg.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("load tools: %w", err)
		}
		slog.Info("dependency: tools restored", "count", n)
	}
	return reg, nil
}

func newHub(m *metrics.Collector) *hub.Hub {
	h := hub.New()
	h.OnDrop(func(string) { m.Dropped() })
	return h
}

func newCoordinator(cfg *config.Config, reg *registry.Registry) *execution.Coordinator {
	return execution.NewCoordinator(reg, execution.Options{
		Timeout:   cfg.Execution.Timeout(),
		Retention: cfg.Execution.Retention(),
	})
}

func newJanitor(cfg *config.Config, coord *execution.Coordinator) *execution.Janitor {
	return execution.NewJanitor(coord, cfg.Execution.SweepInterval())
}

func newDispatcher(local *handler.Local, peers *hub.Hub) handler.Handler {
	return &handler.Dispatcher{Local: local, Remote: handler.NewRemote(peers)}
}

func newRouter(
	cfg *config.Config,
	reg *registry.Registry,
	coord *execution.Coordinator,
	peers *hub.Hub,
	h handler.Handler,
	m *metrics.Collector,
) *router.Router {
	r := router.New(protocol.ServerInfo{
		Name:         cfg.Server.Name,
		Version:      cfg.Server.Version,
		Capabilities: cfg.Server.Capabilities,
	}, reg, coord, peers, h, m)
	coord.SetNotifier(r.Relay)
	return r
}

func newGateway(
	cfg *config.Config,
	r *router.Router,
	reg *registry.Registry,
	coord *execution.Coordinator,
	peers *hub.Hub,
	m *metrics.Collector,
) *gateway.Server {
	return gateway.New(cfg.Gateway, r, reg, coord, peers, m)
}
