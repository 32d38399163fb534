package server

import "strings"

// systemPaths are the probe and metadata routes registered by
// RegisterDefaultEndpoints.
var systemPaths = map[string]bool{
	"/health":  true,
	"/alive":   true,
	"/ready":   true,
	"/info":    true,
	"/version": true,
}

// formatHandlerName shortens a Gin handler name such as
// "github.com/kbukum/queuekit/server/endpoint.Runs.func1" to "endpoint.Runs".
func formatHandlerName(full string) string {
	name := strings.TrimSuffix(full, "-fm")
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	name = strings.ReplaceAll(name, "(*", "")
	name = strings.ReplaceAll(name, ")", "")

	parts := strings.Split(name, ".")
	for len(parts) > 1 && strings.HasPrefix(parts[len(parts)-1], "func") {
		parts = parts[:len(parts)-1]
	}
	return strings.Join(parts, ".")
}

func methodOrder(method string) int {
	switch method {
	case "GET":
		return 0
	case "POST":
		return 1
	case "PUT":
		return 2
	case "PATCH":
		return 3
	case "DELETE":
		return 4
	default:
		return 5
	}
}
