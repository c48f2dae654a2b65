// Package api embeds the OpenAPI description of the public HTTP API.
package api

import _ "embed"

// OpenAPISpec is the OpenAPI 3 document served at /api/openapi.yaml.
//
//go:embed openapi/openapi.yaml
var OpenAPISpec []byte
