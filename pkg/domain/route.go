package domain

import (
	"fmt"
	"net/http"
	"path"
	"sort"
	"strings"
)

// Route maps an HTTP method and path pattern to a service action.
// Path parameters use the ":name" syntax, e.g. "/api/products/:id".
type Route struct {
	Method  string `json:"method" yaml:"method"`
	Path    string `json:"path" yaml:"path"`
	Service string `json:"service" yaml:"service"`
	Action  string `json:"action" yaml:"action"`
}

func (r Route) String() string {
	return fmt.Sprintf("%s %s -> %s.%s", r.Method, r.Path, r.Service, r.Action)
}

// Target returns the "service.action" name of the route.
func (r Route) Target() string {
	return r.Service + "." + r.Action
}

// PathParams returns the parameter names of the path pattern in order.
func (r Route) PathParams() []string {
	var names []string
	for _, seg := range strings.Split(r.Path, "/") {
		if strings.HasPrefix(seg, ":") && len(seg) > 1 {
			names = append(names, seg[1:])
		}
	}
	return names
}

var knownMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// ParseTarget splits "service.action".
func ParseTarget(target string) (service, action string, err error) {
	service, action, ok := strings.Cut(strings.TrimSpace(target), ".")
	if !ok || service == "" || action == "" {
		return "", "", fmt.Errorf("invalid action name %q: expected service.action", target)
	}
	return service, action, nil
}

// ParseAlias builds a Route from an alias such as "GET /products/:id" and a
// target such as "products.findProduct", mounted under base (e.g. "/api").
func ParseAlias(base, alias, target string) (Route, error) {
	method, rest, ok := strings.Cut(strings.TrimSpace(alias), " ")
	if !ok {
		return Route{}, fmt.Errorf("invalid alias %q: expected \"METHOD /path\"", alias)
	}
	method = strings.ToUpper(method)
	if !knownMethods[method] {
		return Route{}, fmt.Errorf("invalid alias %q: unsupported method %s", alias, method)
	}
	service, action, err := ParseTarget(target)
	if err != nil {
		return Route{}, err
	}
	full := path.Join("/", base, strings.TrimSpace(rest))
	return Route{Method: method, Path: full, Service: service, Action: action}, nil
}

// DefaultRoutes returns the product API served by the gateway.
func DefaultRoutes() []Route {
	return []Route{
		{Method: http.MethodGet, Path: "/api/products", Service: "products", Action: "listProducts"},
		{Method: http.MethodGet, Path: "/api/products/:id", Service: "products", Action: "findProduct"},
		{Method: http.MethodPost, Path: "/api/products", Service: "products", Action: "createProduct"},
		{Method: http.MethodPut, Path: "/api/products/:id", Service: "products", Action: "updateProduct"},
		{Method: http.MethodDelete, Path: "/api/products/:id", Service: "products", Action: "deleteProduct"},
		{Method: http.MethodPost, Path: "/api/products/seed", Service: "products", Action: "seedProducts"},
	}
}

// SortRoutes orders routes by path, then method.
func SortRoutes(routes []Route) {
	sort.SliceStable(routes, func(i, j int) bool {
		if routes[i].Path != routes[j].Path {
			return routes[i].Path < routes[j].Path
		}
		return routes[i].Method < routes[j].Method
	})
}
