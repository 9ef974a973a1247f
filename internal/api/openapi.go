package api

import (
	"net/http"
	"strings"

	"github.com/mattjoyce/vestabridge/internal/auth"
)

// route is one authenticated /v1 endpoint. The table drives both the
// router and the OpenAPI document.
type route struct {
	Method    string
	Pattern   string
	Summary   string
	Scope     string
	Body      bool
	Responses map[string]string
	fn        func(*Server, http.ResponseWriter, *http.Request)
}

func (rt route) handler(s *Server) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { rt.fn(s, w, r) })
}

var routes = []route{
	{
		Method: http.MethodPost, Pattern: "/message", Scope: auth.Write("board"), Body: true,
		Summary:   "Show a message now, or queue it behind the rate limit",
		Responses: map[string]string{"202": "Accepted", "400": "Bad payload", "502": "Board write failed"},
		fn:        (*Server).handleMessage,
	},
	{
		Method: http.MethodPost, Pattern: "/timed-message", Scope: auth.Write("timers"), Body: true,
		Summary:   "Show a message for a while, then restore the board",
		Responses: map[string]string{"201": "Timer scheduled", "400": "Bad payload"},
		fn:        (*Server).handleTimedMessage,
	},
	{
		Method: http.MethodGet, Pattern: "/timers", Scope: auth.Read("timers"),
		Summary:   "List registered timers",
		Responses: map[string]string{"200": "Timer list"},
		fn:        (*Server).handleListTimers,
	},
	{
		Method: http.MethodDelete, Pattern: "/timers/{id}", Scope: auth.Write("timers"),
		Summary:   "Cancel a pending timer without restoring",
		Responses: map[string]string{"200": "Cancelled", "404": "Unknown or already firing"},
		fn:        (*Server).handleCancelTimer,
	},
	{
		Method: http.MethodGet, Pattern: "/slots", Scope: auth.Read("slots"),
		Summary:   "List saved slots, newest first",
		Responses: map[string]string{"200": "Slot list"},
		fn:        (*Server).handleListSlots,
	},
	{
		Method: http.MethodPost, Pattern: "/slots/{slot}/save", Scope: auth.Write("slots"),
		Summary:   "Save what the board shows into a slot",
		Responses: map[string]string{"201": "Saved", "400": "Bad slot name", "502": "Board unreadable"},
		fn:        (*Server).handleSaveSlot,
	},
	{
		Method: http.MethodPost, Pattern: "/slots/{slot}/restore", Scope: auth.Write("slots"), Body: true,
		Summary:   "Write a saved slot back to the board",
		Responses: map[string]string{"202": "Accepted", "404": "No such slot", "502": "Board write failed"},
		fn:        (*Server).handleRestoreSlot,
	},
	{
		Method: http.MethodDelete, Pattern: "/slots/{slot}", Scope: auth.Write("slots"),
		Summary:   "Delete a saved slot",
		Responses: map[string]string{"200": "Deleted", "404": "No such slot"},
		fn:        (*Server).handleDeleteSlot,
	},
}

// buildOpenAPIDoc returns an OpenAPI 3.1 document for the /v1 routes.
func buildOpenAPIDoc() map[string]any {
	paths := map[string]any{}

	for _, rt := range routes {
		responses := map[string]any{
			"401": map[string]any{"description": "Missing or invalid token"},
			"403": map[string]any{"description": "Insufficient scope"},
		}
		for code, desc := range rt.Responses {
			responses[code] = map[string]any{"description": desc}
		}

		operation := map[string]any{
			"operationId": operationID(rt),
			"summary":     rt.Summary,
			"tags":        []string{strings.Split(strings.TrimPrefix(rt.Pattern, "/"), "/")[0]},
			"responses":   responses,
			"security":    []any{map[string]any{"BearerAuth": []string{rt.Scope}}},
		}
		if rt.Body {
			operation["requestBody"] = map[string]any{
				"required": rt.Pattern != "/slots/{slot}/restore",
				"content": map[string]any{
					"application/json": map[string]any{"schema": map[string]any{}},
				},
			}
		}

		path := "/v1" + rt.Pattern
		item, _ := paths[path].(map[string]any)
		if item == nil {
			item = map[string]any{}
			paths[path] = item
		}
		item[strings.ToLower(rt.Method)] = operation
	}

	return map[string]any{
		"openapi": "3.1.0",
		"info": map[string]any{
			"title":   "Vestabridge",
			"version": "1.0",
		},
		"paths": paths,
		"components": map[string]any{
			"securitySchemes": map[string]any{
				"BearerAuth": map[string]any{
					"type":   "http",
					"scheme": "bearer",
				},
			},
		},
	}
}

// operationID turns "POST /slots/{slot}/save" into "post_slots_slot_save".
func operationID(rt route) string {
	r := strings.NewReplacer("/", "_", "{", "", "}", "", "-", "_")
	return strings.ToLower(rt.Method) + r.Replace(rt.Pattern)
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, buildOpenAPIDoc())
}
