// Package postgres is the lib/pq-backed Store implementation.
package postgres

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	config "github.com/media-luna/sonora/configs"
	"github.com/media-luna/sonora/internal/store"
	"github.com/media-luna/sonora/internal/store/sqlstore"
	"github.com/media-luna/sonora/utils/apierrors"
)

type dialect struct{}

func (dialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }
func (dialect) AutoIncrementPK() string { return "BIGSERIAL PRIMARY KEY" }
func (dialect) Name() string { return "postgres" }

// Open connects to a Postgres database per cfg and returns a ready Store.
func Open(cfg config.DatabaseConfig) (store.Store, error) {
	dsn := cfg.DSN
	if dsn == "" {
		sslmode := cfg.SSLMode
		if sslmode == "" {
			sslmode = "disable"
		}
		dsn = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, sslmode)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, apierrors.StoreWritef(err, "opening postgres connection")
	}
	if err := db.Ping(); err != nil {
		return nil, apierrors.StoreWritef(err, "pinging postgres")
	}

	return sqlstore.New(db, dialect{})
}
