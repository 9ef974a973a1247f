package api

import (
	"encoding/json"
	"net/http"
	"testing"
)

func TestBuildOpenAPIDoc(t *testing.T) {
	doc := buildOpenAPIDoc()

	if doc["openapi"] != "3.1.0" {
		t.Errorf("expected openapi 3.1.0, got %v", doc["openapi"])
	}
	paths := doc["paths"].(map[string]any)
	if len(paths) != 8 {
		t.Fatalf("expected 8 paths, got %d", len(paths))
	}

	slot, ok := paths["/v1/slots/{slot}"].(map[string]any)
	if !ok {
		t.Fatal("expected /v1/slots/{slot} path")
	}
	del := slot["delete"].(map[string]any)
	if del["operationId"] != "delete_slots_slot" {
		t.Errorf("expected operationId delete_slots_slot, got %v", del["operationId"])
	}

	timed := paths["/v1/timed-message"].(map[string]any)["post"].(map[string]any)
	if _, ok := timed["requestBody"]; !ok {
		t.Error("expected a request body on POST /v1/timed-message")
	}
	security := timed["security"].([]any)[0].(map[string]any)
	if scopes := security["BearerAuth"].([]string); len(scopes) != 1 || scopes[0] != "timers:rw" {
		t.Errorf("expected timers:rw scope, got %v", scopes)
	}
}

func TestHandleOpenAPI_NoAuth(t *testing.T) {
	rr := do(t, newTestServer(&mockService{}, nil), http.MethodGet, "/openapi.json", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var doc map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&doc); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if doc["info"].(map[string]any)["title"] != "Vestabridge" {
		t.Errorf("unexpected title: %v", doc["info"])
	}
}
