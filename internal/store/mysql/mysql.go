// Package mysql is the go-sql-driver/mysql-backed Store implementation.
package mysql

import (
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"

	config "github.com/media-luna/sonora/configs"
	"github.com/media-luna/sonora/internal/store"
	"github.com/media-luna/sonora/internal/store/sqlstore"
	"github.com/media-luna/sonora/utils/apierrors"
)

type dialect struct{}

func (dialect) Placeholder(int) string { return "?" }
func (dialect) AutoIncrementPK() string { return "BIGINT AUTO_INCREMENT PRIMARY KEY" }
func (dialect) Name() string { return "mysql" }

// Open connects to a MySQL database per cfg and returns a ready Store.
func Open(cfg config.DatabaseConfig) (store.Store, error) {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
			cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name)
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, apierrors.StoreWritef(err, "opening mysql connection")
	}
	if err := db.Ping(); err != nil {
		return nil, apierrors.StoreWritef(err, "pinging mysql")
	}

	return sqlstore.New(db, dialect{})
}
