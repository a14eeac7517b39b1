package config

import "context"

// SecretProvider resolves secret values by key. SSMProvider serves deployed
// environments; EnvVarProvider serves local runs and tests.
type SecretProvider interface {
	// GetParametersBatch returns key -> plaintext for every key it could
	// resolve. Unresolved keys are simply absent from the map.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
