package audit

import (
	"net/http"
	"strings"
)

// ActionResource holds action and resource derived from an HTTP route.
type ActionResource struct {
	Action   string
	Resource string
}

const apiPrefix = "/api/v1/"

// routeOverrides names routes whose derived action would read poorly.
var routeOverrides = map[string]ActionResource{
	http.MethodDelete + " /api/v1/registration":               {Action: "abandon", Resource: ResourceRegistration},
	http.MethodPut + " /api/v1/registration/interview/:field": {Action: "interview_answer", Resource: ResourceRegistration},
}

// ParseRoute returns action and resource for a route template as reported by gin's FullPath
// (e.g. POST /api/v1/registration/otp/send -> otp_send on registration).
// Path parameters are dropped. A route with no sub-path maps the HTTP method to a verb.
func ParseRoute(method, fullPath string) ActionResource {
	if ar, ok := routeOverrides[method+" "+fullPath]; ok {
		return ar
	}
	if !strings.HasPrefix(fullPath, apiPrefix) {
		return ActionResource{Action: "unknown", Resource: "unknown"}
	}
	var parts []string
	for _, p := range strings.Split(strings.TrimPrefix(fullPath, apiPrefix), "/") {
		if p == "" || strings.HasPrefix(p, ":") || strings.HasPrefix(p, "*") {
			continue
		}
		parts = append(parts, strings.ReplaceAll(p, "-", "_"))
	}
	if len(parts) == 0 {
		return ActionResource{Action: "unknown", Resource: "unknown"}
	}
	resource := parts[0]
	if len(parts) == 1 {
		return ActionResource{Action: methodToAction(method), Resource: resource}
	}
	return ActionResource{Action: strings.Join(parts[1:], "_"), Resource: resource}
}

func methodToAction(method string) string {
	switch method {
	case http.MethodGet:
		return "get"
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return strings.ToLower(method)
	}
}
