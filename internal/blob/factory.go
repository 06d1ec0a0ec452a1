package blob

import (
	"context"
	"fmt"

	"pepplus/internal/infra/blob/fs"
	"pepplus/internal/infra/blob/memory"
	"pepplus/internal/infra/blob/s3"
)

// Config selects and parameterises a blob backend.
type Config struct {
	Driver Driver
	// FSRoot is the directory used by the fs driver.
	FSRoot string
	S3     s3.Config
}

// Open constructs the backend named by cfg.Driver, defaulting to fs.
func Open(ctx context.Context, cfg Config) (Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverFilesystem
	}
	switch driver {
	case DriverFilesystem:
		store, err := fs.New(cfg.FSRoot)
		if err != nil {
			return nil, err
		}
		return store, nil
	case DriverS3:
		store, err := s3.New(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		return store, nil
	case DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}
