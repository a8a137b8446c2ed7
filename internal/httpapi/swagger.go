//go:build swagger

package httpapi

import (
	"github.com/go-chi/chi/v5"
	"github.com/swaggo/swag"

	httpSwagger "github.com/swaggo/http-swagger"
)

// swaggerDoc describes the HTTP surface for the swagger UI.
const swaggerDoc = `{
  "swagger": "2.0",
  "info": {"title": "{{.Title}}", "description": "{{escape .Description}}", "version": "{{.Version}}"},
  "basePath": "{{.BasePath}}",
  "schemes": {{ marshal .Schemes }},
  "paths": {
    "/status": {"get": {"summary": "Aggregate model, monitor and queue status", "produces": ["application/json"], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/StatusResponse"}}}}},
    "/model/{op}": {"post": {"summary": "Request a model lifecycle operation", "parameters": [{"name": "op", "in": "path", "required": true, "type": "string", "enum": ["download", "load", "unload"]}], "responses": {"202": {"description": "Accepted", "schema": {"$ref": "#/definitions/OpResponse"}}, "409": {"description": "Transition rejected", "schema": {"$ref": "#/definitions/ErrorResponse"}}}}},
    "/monitor/{op}": {"post": {"summary": "Enable or disable selection monitoring", "parameters": [{"name": "op", "in": "path", "required": true, "type": "string", "enum": ["enable", "disable"]}], "responses": {"200": {"description": "OK"}}}},
    "/completions": {"post": {"summary": "Request a completion for explicit text", "consumes": ["application/json"], "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CompletionRequest"}}], "responses": {"202": {"description": "Accepted", "schema": {"$ref": "#/definitions/CompletionAccepted"}}, "422": {"description": "Unsupported context"}, "503": {"description": "Model not ready"}}}},
    "/completions/stream": {"get": {"summary": "NDJSON stream of completion results", "produces": ["application/x-ndjson"], "responses": {"200": {"description": "One CompletionResult per line", "schema": {"$ref": "#/definitions/CompletionResult"}}}}},
    "/events/stream": {"get": {"summary": "NDJSON stream of model lifecycle changes", "produces": ["application/x-ndjson"], "responses": {"200": {"description": "One StatusEvent per line", "schema": {"$ref": "#/definitions/StatusEvent"}}}}},
    "/healthz": {"get": {"summary": "Liveness", "responses": {"200": {"description": "ok"}}}},
    "/readyz": {"get": {"summary": "Model readiness", "responses": {"200": {"description": "ready"}, "503": {"description": "model not ready"}}}}
  },
  "definitions": {
    "ErrorResponse": {"type": "object", "properties": {"error": {"type": "string"}, "code": {"type": "integer"}}},
    "OpResponse": {"type": "object", "properties": {"op_id": {"type": "string", "example": "op-3"}}},
    "ModelStatus": {"type": "object", "properties": {"state": {"type": "string"}, "progress": {"type": "number"}, "tier": {"type": "string"}, "model_id": {"type": "string"}, "installed": {"type": "boolean"}, "runtime": {"type": "string"}, "error": {"type": "string"}}},
    "StatusResponse": {"type": "object", "properties": {"model": {"$ref": "#/definitions/ModelStatus"}, "desktop": {"type": "string"}, "last_skip": {"type": "string"}, "uptime_seconds": {"type": "integer"}}},
    "CompletionRequest": {"type": "object", "properties": {"text": {"type": "string"}, "app_name": {"type": "string"}, "window_title": {"type": "string"}, "file_extension": {"type": "string"}}},
    "CompletionAccepted": {"type": "object", "properties": {"request_id": {"type": "integer"}, "label": {"type": "string"}}},
    "CompletionResult": {"type": "object", "properties": {"request_id": {"type": "integer"}, "label": {"type": "string"}, "text": {"type": "string"}, "kind": {"type": "string"}, "error": {"type": "string"}}},
    "StatusEvent": {"type": "object", "properties": {"event": {"type": "string"}, "model": {"$ref": "#/definitions/ModelStatus"}}}
  }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "overlayd API",
	Description:      "Local HTTP surface of the selection overlay daemon.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  swaggerDoc,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

// MountSwagger serves the swagger UI under /swagger/.
func MountSwagger(r chi.Router) {
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
}

// SwaggerEnabled reports whether the swagger UI is compiled in.
func SwaggerEnabled() bool { return true }
