package http

import (
	"net/http"

	"github.com/aretw0/meshwork/pkg/domain"
	"github.com/getkin/kin-openapi/openapi3"
)

// Document describes the gateway routes as an OpenAPI 3 document. Each route
// becomes one operation whose id is "service.action".
func Document(routes []domain.Route, version string) *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:   "meshwork gateway",
			Version: version,
		},
		Paths: openapi3.NewPaths(),
	}

	for _, route := range routes {
		op := openapi3.NewOperation()
		op.OperationID = route.Target()
		op.Summary = route.String()
		op.Tags = []string{route.Service}

		for _, name := range route.PathParams() {
			op.AddParameter(openapi3.NewPathParameter(name).WithSchema(openapi3.NewStringSchema()))
		}
		if route.Method == http.MethodPost || route.Method == http.MethodPut || route.Method == http.MethodPatch {
			body := openapi3.NewRequestBody().WithJSONSchema(
				openapi3.NewObjectSchema().WithAnyAdditionalProperties(),
			)
			op.RequestBody = &openapi3.RequestBodyRef{Value: body}
		}

		op.Responses = openapi3.NewResponses(
			openapi3.WithStatus(http.StatusOK, &openapi3.ResponseRef{
				Value: openapi3.NewResponse().WithDescription("Action result"),
			}),
			openapi3.WithName("default", openapi3.NewResponse().
				WithDescription("Call failure").
				WithJSONSchema(errorSchema())),
		)
		doc.AddOperation(chiPattern(route.Path), route.Method, op)
	}
	return doc
}

func errorSchema() *openapi3.Schema {
	return openapi3.NewObjectSchema().
		WithProperty("code", openapi3.NewIntegerSchema()).
		WithProperty("type", openapi3.NewStringSchema()).
		WithProperty("message", openapi3.NewStringSchema())
}
