package keystore

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

type fileLoader struct {
	logger zerolog.Logger
}

// NewFileLoader creates a loader that reads key material from disk.
func NewFileLoader(logger zerolog.Logger) Loader {
	return &fileLoader{
		logger: logger.With().Str("component", "key-file-loader").Logger(),
	}
}

func (l *fileLoader) Load(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		l.logger.Error().Err(err).Str("file", path).Msg("failed to open key file")
		return nil, fmt.Errorf("failed to open key file %s: %w", path, err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxObjectSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read key file %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyObject)
	}

	l.logger.Debug().Str("file", path).Int("bytes", len(data)).Msg("key file loaded")
	return data, nil
}
