// Package requestid carries the request correlation id through contexts so
// service logs and pass records can be matched with the HTTP request.
package requestid

import (
	"context"

	"github.com/google/uuid"
)

type contextKey struct{}

// Header is read from incoming requests and echoed on responses.
const Header = "X-Request-Id"

func Generate() string {
	return uuid.NewString()
}

func ToContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns an empty string when ctx carries no id.
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}
