package api

import (
	"context"

	"github.com/Chandra-cc/personalized-learning/internal/models"
)

type ctxKey int

const clientKey ctxKey = iota

// ClientFromContext returns the authenticated API client, or nil
func ClientFromContext(ctx context.Context) *models.ApiClient {
	client, _ := ctx.Value(clientKey).(*models.ApiClient)
	return client
}

// ContextWithClient stores the authenticated API client
func ContextWithClient(ctx context.Context, client *models.ApiClient) context.Context {
	return context.WithValue(ctx, clientKey, client)
}

// clientName is used as a log attribute; anonymous for public routes
func clientName(ctx context.Context) string {
	if c := ClientFromContext(ctx); c != nil {
		return c.Name
	}
	return "anonymous"
}
