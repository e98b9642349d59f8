// Package database opens the MySQL connection pool and applies the schema.
package database

import (
	"context"
	"database/sql"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Settings identifies the MySQL database to connect to.
type Settings struct {
	User     string
	Password string
	Host     string
	Port     string
	Name     string
}

// DSN renders the driver connection string.  Times are read and written in
// UTC and the session time zone is pinned so UTC_TIMESTAMP() and DATETIME
// columns agree.
func (s Settings) DSN() string {
	cfg := mysql.NewConfig()
	cfg.User = s.User
	cfg.Passwd = s.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(s.Host, s.Port)
	cfg.DBName = s.Name
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.Params = map[string]string{
		"charset":   "utf8mb4",
		"time_zone": "'+00:00'",
	}
	return cfg.FormatDSN()
}

// Open connects to MySQL and verifies the connection.
func Open(s Settings) (*sql.DB, error) {
	db, err := sql.Open("mysql", s.DSN())
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
