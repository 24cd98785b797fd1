// Package vault reads secrets from a HashiCorp Vault KV v2 engine.
package vault

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/vault/api"

	"chandabaz/internal/config"
)

// ErrSecretMissing is returned when the secret or its field does not exist
var ErrSecretMissing = errors.New("vault secret not found")

// Client wraps HashiCorp Vault API
type Client struct {
	client *api.Client
	mount  string
}

// NewClient creates a new Vault client for the configured KV mount
func NewClient(cfg *config.VaultConfig) (*Client, error) {
	apiConfig := api.DefaultConfig()
	apiConfig.Address = cfg.Address

	client, err := api.NewClient(apiConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(cfg.Token)

	mount := cfg.KVMount
	if mount == "" {
		mount = "secret"
	}
	return &Client{client: client, mount: mount}, nil
}

// ReadField returns one string field of the latest version of a KV secret
func (c *Client) ReadField(ctx context.Context, path, field string) (string, error) {
	secret, err := c.client.KVv2(c.mount).Get(ctx, path)
	if err != nil {
		if errors.Is(err, api.ErrSecretNotFound) {
			return "", fmt.Errorf("%w: %s/%s", ErrSecretMissing, c.mount, path)
		}
		return "", fmt.Errorf("failed to read %s/%s: %w", c.mount, path, err)
	}

	raw, ok := secret.Data[field]
	if !ok {
		return "", fmt.Errorf("%w: field %q in %s/%s", ErrSecretMissing, field, c.mount, path)
	}
	value, ok := raw.(string)
	if !ok || value == "" {
		return "", fmt.Errorf("field %q in %s/%s is not a non-empty string", field, c.mount, path)
	}
	return value, nil
}

// WriteFields stores data as a new version of a KV secret
func (c *Client) WriteFields(ctx context.Context, path string, data map[string]any) error {
	if _, err := c.client.KVv2(c.mount).Put(ctx, path, data); err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", c.mount, path, err)
	}
	return nil
}

// LoadJWTSecret fills cfg.JWT.Secret from Vault when Vault is enabled
func LoadJWTSecret(ctx context.Context, cfg *config.Config) error {
	if !cfg.Vault.Enabled {
		return nil
	}
	client, err := NewClient(&cfg.Vault)
	if err != nil {
		return err
	}
	secret, err := client.ReadField(ctx, cfg.Vault.Path, cfg.Vault.Field)
	if err != nil {
		return fmt.Errorf("failed to load JWT secret from vault: %w", err)
	}
	cfg.JWT.Secret = secret
	return nil
}
