// Package keystore reads PEM key material for the payment providers from the
// local file system or from S3.
package keystore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// maxObjectSize bounds a single key or certificate read.
const maxObjectSize = 64 * 1024

// ErrEmptyObject is returned when a key file exists but has no content.
var ErrEmptyObject = errors.New("key material is empty")

// Loader reads a named blob of key material.
type Loader interface {
	Load(ctx context.Context, name string) ([]byte, error)
}

// KeyPair is the merchant private key together with the certificate used to
// verify notifications from the provider.
type KeyPair struct {
	PrivateKeyPEM   []byte
	ProviderCertPEM []byte
}

// LoadKeyPair reads the private key and provider certificate concurrently.
func LoadKeyPair(ctx context.Context, loader Loader, privateKeyPath, providerCertPath string, logger zerolog.Logger) (*KeyPair, error) {
	logger = logger.With().Str("component", "keystore").Logger()

	names := []string{privateKeyPath, providerCertPath}
	results, err := loadAll(ctx, loader, names)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load key pair")
		return nil, err
	}

	logger.Info().
		Str("private_key", privateKeyPath).
		Str("provider_cert", providerCertPath).
		Msg("key pair loaded")

	return &KeyPair{
		PrivateKeyPEM:   results[0],
		ProviderCertPEM: results[1],
	}, nil
}

func loadAll(ctx context.Context, loader Loader, names []string) ([][]byte, error) {
	type loadResult struct {
		index int
		data  []byte
		err   error
	}

	resultChan := make(chan loadResult, len(names))
	var wg sync.WaitGroup

	for i, name := range names {
		wg.Add(1)
		go func(index int, name string) {
			defer wg.Done()
			data, err := loader.Load(ctx, name)
			resultChan <- loadResult{index: index, data: data, err: err}
		}(i, name)
	}

	wg.Wait()
	close(resultChan)

	out := make([][]byte, len(names))
	errs := make([]error, len(names))
	for result := range resultChan {
		out[result.index] = result.data
		errs[result.index] = result.err
	}

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", names[i], err)
		}
	}
	return out, nil
}
