package integrations

import (
	"context"
	"log"

	"imbackend/clients"
	"imbackend/db"
	"imbackend/models"
)

// PersistRotatedTokens writes an adapter's rotated tokens back into the
// integration's stored credentials, so the next adapter built from storage
// does not authenticate with a refresh token the provider already retired.
// No-op for adapters that do not rotate. Failures are logged, never
// propagated: the operation that rotated the token already succeeded.
func PersistRotatedTokens(
	ctx context.Context,
	repo IntegrationsRepository,
	integration *models.Integration,
	client any,
) {
	rotator, ok := client.(clients.TokenRotator)
	if !ok {
		return
	}

	accessToken, refreshToken := rotator.Tokens()
	accessChanged := accessToken != "" && accessToken != integration.Credentials["accessToken"]
	refreshChanged := refreshToken != "" && refreshToken != integration.Credentials["refreshToken"]
	if !accessChanged && !refreshChanged {
		return
	}

	credentials := models.SecretMap{}
	for key, value := range integration.Credentials {
		credentials[key] = value
	}
	if accessToken != "" {
		credentials["accessToken"] = accessToken
	}
	if refreshToken != "" {
		credentials["refreshToken"] = refreshToken
	}

	if _, err := repo.UpdateIntegration(
		ctx, integration.ID, db.IntegrationUpdate{Credentials: &credentials},
	); err != nil {
		log.Printf("📋 Failed to persist rotated tokens for integration %s: %v", integration.ID, err)
	}
}
