package cli

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/andywolf/ci-buglist/internal/cloud/gcp"
	"github.com/andywolf/ci-buglist/internal/config"
	"github.com/andywolf/ci-buglist/internal/launchpad"
)

// secretFetcherFactory opens a Secret Manager connection.
type secretFetcherFactory func(ctx context.Context, opts ...option.ClientOption) (gcp.SecretFetcher, error)

func newSecretFetcher(ctx context.Context, opts ...option.ClientOption) (gcp.SecretFetcher, error) {
	client, err := gcp.NewSecretManagerClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// resolveCredentials picks the first configured credential source: a
// Secret Manager secret, an explicit file, then the default file. It
// returns nil credentials when none is available, meaning an anonymous
// login.
func resolveCredentials(ctx context.Context, cfg *config.Config, newFetcher secretFetcherFactory, logger *zap.Logger) (*launchpad.Credentials, error) {
	switch {
	case cfg.Credentials.Secret != "":
		var opts []option.ClientOption
		if cfg.Credentials.GCPCredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.Credentials.GCPCredentialsFile))
		}

		fetcher, err := newFetcher(ctx, opts...)
		if err != nil {
			return nil, err
		}
		defer func() { _ = fetcher.Close() }()

		payload, err := fetcher.FetchSecret(ctx, cfg.Credentials.Secret)
		if err != nil {
			return nil, err
		}

		creds, err := launchpad.ParseCredentials(strings.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("secret %s: %w", cfg.Credentials.Secret, err)
		}
		logger.Debug("using credentials from secret manager", zap.String("secret", cfg.Credentials.Secret))
		return creds, nil

	case cfg.Credentials.File != "":
		creds, err := launchpad.LoadCredentialsFile(cfg.Credentials.File)
		if err != nil {
			return nil, err
		}
		logger.Debug("using credentials file", zap.String("path", cfg.Credentials.File))
		return creds, nil

	default:
		creds, err := launchpad.LoadDefaultCredentials()
		if err != nil {
			return nil, err
		}
		if creds == nil {
			logger.Debug("no credentials configured, logging in anonymously")
		}
		return creds, nil
	}
}
