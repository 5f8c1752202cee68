package fakeapi

import (
	"context"
	"net/http"
)

type bodyKey struct{}

func withBody(ctx context.Context, body map[string]any) context.Context {
	return context.WithValue(ctx, bodyKey{}, body)
}

// bodyOf returns the decoded JSON body of r (empty when there was none)
func bodyOf(r *http.Request) map[string]any {
	if b, ok := r.Context().Value(bodyKey{}).(map[string]any); ok && b != nil {
		return b
	}
	return map[string]any{}
}
