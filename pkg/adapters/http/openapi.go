package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aretw0/teller/api"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"
)

const maxBodyBytes = 64 << 10

// newSpecRouter matches requests against the embedded OpenAPI document.
func newSpecRouter(ctx context.Context) (routers.Router, error) {
	doc, err := api.Load(ctx)
	if err != nil {
		return nil, err
	}
	return legacy.NewRouter(doc)
}

// validateRequest rejects requests whose parameters or body do not match the
// OpenAPI document. Routes the document does not describe pass through.
// Responses are not validated so NDJSON streams are written as they run.
func (s *Server) validateRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route, params, err := s.spec.FindRoute(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		}
		err = openapi3filter.ValidateRequest(r.Context(), &openapi3filter.RequestValidationInput{
			Request:    r,
			PathParams: params,
			Route:      route,
			Options:    &openapi3filter.Options{AuthenticationFunc: openapi3filter.NoopAuthenticationFunc},
		})
		if err != nil {
			s.logger.DebugContext(r.Context(), "request rejected", "route", route.Path, "err", err)
			writeError(w, http.StatusBadRequest, "invalid request", describeRequestError(err))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// describeRequestError keeps the schema reason and drops the schema dump
// kin-openapi appends to SchemaError.Error.
func describeRequestError(err error) string {
	var schemaErr *openapi3.SchemaError
	if errors.As(err, &schemaErr) {
		reason := schemaErr.Reason
		if reason == "" {
			reason = fmt.Sprintf("does not match %q", schemaErr.SchemaField)
		}
		if path := schemaErr.JSONPointer(); len(path) > 0 {
			return strings.Join(path, ".") + ": " + reason
		}
		return reason
	}
	var reqErr *openapi3filter.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.Parameter != nil {
			return fmt.Sprintf("parameter %q: %s", reqErr.Parameter.Name, reqErr.Reason)
		}
		if reqErr.Reason != "" {
			return reqErr.Reason
		}
	}
	return err.Error()
}

func (s *Server) openapiSpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(api.Spec())
}

func (s *Server) swagger(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(swaggerHTML))
}

const swaggerHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>Teller API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`
