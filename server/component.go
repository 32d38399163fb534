package server

import (
	"context"
	"fmt"
	"sort"

	"github.com/kbukum/queuekit/component"
)

const componentName = "http-server"

var (
	_ component.Component     = (*Component)(nil)
	_ component.Describable   = (*Component)(nil)
	_ component.RouteProvider = (*Component)(nil)
)

// Component adapts a Server to the component lifecycle.
type Component struct {
	server *Server
}

// NewComponent returns a lifecycle component backed by s.
func NewComponent(s *Server) *Component {
	return &Component{server: s}
}

// Name returns the component name used for registration.
func (sc *Component) Name() string { return componentName }

// Start starts the underlying HTTP server.
func (sc *Component) Start(ctx context.Context) error {
	return sc.server.Start(ctx)
}

// Stop gracefully shuts down the underlying HTTP server.
func (sc *Component) Stop(ctx context.Context) error {
	return sc.server.Stop(ctx)
}

// Health reports healthy while the listener is bound.
func (sc *Component) Health(_ context.Context) component.Health {
	if sc.server.listening() {
		return component.Health{Name: componentName, Status: component.StatusHealthy}
	}
	return component.Health{
		Name:    componentName,
		Status:  component.StatusUnhealthy,
		Message: "not listening",
	}
}

// Describe summarizes the server for the startup log.
func (sc *Component) Describe() component.Description {
	return component.Description{
		Name:    "HTTP Server",
		Type:    "server",
		Details: fmt.Sprintf("%s h2c", sc.server.Addr()),
		Port:    sc.server.config.Port,
	}
}

// Routes lists registered routes, API routes first.
func (sc *Component) Routes() []component.Route {
	ginRoutes := sc.server.engine.Routes()
	sort.Slice(ginRoutes, func(i, j int) bool {
		iSys, jSys := systemPaths[ginRoutes[i].Path], systemPaths[ginRoutes[j].Path]
		if iSys != jSys {
			return !iSys
		}
		if ginRoutes[i].Path != ginRoutes[j].Path {
			return ginRoutes[i].Path < ginRoutes[j].Path
		}
		return methodOrder(ginRoutes[i].Method) < methodOrder(ginRoutes[j].Method)
	})

	routes := make([]component.Route, 0, len(ginRoutes))
	for _, r := range ginRoutes {
		routes = append(routes, component.Route{
			Method:  r.Method,
			Path:    r.Path,
			Handler: formatHandlerName(r.Handler),
		})
	}
	return routes
}
