// Package storeopen selects and opens a Store backend from
// configuration. It sits one level above internal/store so the
// mysql/postgres backend packages can each depend on store without a
// cycle back through this factory.
package storeopen

import (
	config "github.com/media-luna/sonora/configs"
	"github.com/media-luna/sonora/internal/store"
	"github.com/media-luna/sonora/internal/store/mysql"
	"github.com/media-luna/sonora/internal/store/postgres"
	"github.com/media-luna/sonora/utils/apierrors"
)

// Open returns a new Store instance for the configured backend type.
func Open(cfg config.DatabaseConfig) (store.Store, error) {
	switch cfg.Type {
	case "mysql":
		return mysql.Open(cfg)
	case "postgres", "":
		return postgres.Open(cfg)
	default:
		return nil, apierrors.InvalidConfigf("unsupported database type: %s", cfg.Type)
	}
}
