package otel

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
)

func newResource(serviceName string) *resource.Resource {
	if serviceName == "" {
		serviceName = "medical-coder-api"
	}
	return resource.NewSchemaless(attribute.String("service.name", serviceName))
}
