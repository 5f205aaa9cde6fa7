// Package spec serves the embedded OpenAPI document.
package spec

import (
	_ "embed"
	"net/http"
)

//go:embed openapi.yaml
var openAPI []byte

func OpenAPIHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openAPI)
}
