// Package router assembles the storefront HTTP API.
package router

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultAPIVersion = "v1"

// Route is one endpoint of a Group
type Route struct {
	Method   string
	Path     string
	Handlers []gin.HandlerFunc
}

func get(path string, handlers ...gin.HandlerFunc) Route {
	return Route{Method: http.MethodGet, Path: path, Handlers: handlers}
}

func post(path string, handlers ...gin.HandlerFunc) Route {
	return Route{Method: http.MethodPost, Path: path, Handlers: handlers}
}

func patch(path string, handlers ...gin.HandlerFunc) Route {
	return Route{Method: http.MethodPatch, Path: path, Handlers: handlers}
}

func del(path string, handlers ...gin.HandlerFunc) Route {
	return Route{Method: http.MethodDelete, Path: path, Handlers: handlers}
}

// Group is the route table of one resource. Middleware runs in front of
// every route of the group.
type Group struct {
	Name       string
	Prefix     string
	Middleware []gin.HandlerFunc
	Routes     []Route
}

// Mount registers the group under parent
func (g Group) Mount(parent gin.IRouter) {
	rg := parent.Group(g.Prefix, g.Middleware...)
	for _, route := range g.Routes {
		rg.Handle(route.Method, route.Path, route.Handlers...)
	}
}

// API is the versioned set of groups served under /api/<version>
type API struct {
	version string
	groups  []Group
	logger  *zap.Logger
}

// NewAPI creates an API for version; an empty version means v1
func NewAPI(version string, log *zap.Logger) *API {
	version = strings.Trim(strings.TrimSpace(version), "/")
	if version == "" {
		version = defaultAPIVersion
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &API{version: version, logger: log}
}

// Prefix returns the path every group is mounted under
func (a *API) Prefix() string {
	return "/api/" + a.version
}

// Add appends groups to the API
func (a *API) Add(groups ...Group) *API {
	a.groups = append(a.groups, groups...)
	return a
}

// Mount registers every group on engine
func (a *API) Mount(engine gin.IRouter) {
	api := engine.Group(a.Prefix())
	for _, g := range a.groups {
		g.Mount(api)
		a.logger.Debug("Route group registered",
			zap.String("group", g.Name),
			zap.String("prefix", a.Prefix()+g.Prefix),
			zap.Int("routes", len(g.Routes)),
		)
	}
}
