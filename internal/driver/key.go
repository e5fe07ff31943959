package driver

import (
	"os"

	"duplifind/internal/models"
)

// keyFor stats path to build the CacheKey identity triple the cache
// uses as its hit predicate.
func keyFor(path string) (models.CacheKey, error) {
	info, err := os.Stat(path)
	if err != nil {
		return models.CacheKey{}, err
	}
	return models.CacheKey{Path: path, ModTime: info.ModTime(), SizeBytes: info.Size()}, nil
}
