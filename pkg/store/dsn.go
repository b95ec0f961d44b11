package store

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Dialect identifies the SQL flavour of a store.
type Dialect string

const (
	MySQL    Dialect = "mysql"
	Postgres Dialect = "postgres"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidTableName reports whether name is safe to splice into SQL.
func ValidTableName(name string) bool {
	return tableNamePattern.MatchString(name)
}

// ParseDSN maps a store DSN to a database/sql driver name and connection
// string. mysql:// and mariadb:// URLs are rewritten into the
// go-sql-driver format; postgres:// URLs are passed to lib/pq unchanged.
// Anything else is treated as a native go-sql-driver DSN.
func ParseDSN(dsn string) (Dialect, string, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		if _, err := url.Parse(dsn); err != nil {
			return "", "", fmt.Errorf("parse dsn: %w", err)
		}
		return Postgres, dsn, nil
	case strings.HasPrefix(dsn, "mysql://"), strings.HasPrefix(dsn, "mariadb://"):
		conn, err := toMySQLDSN(dsn)
		if err != nil {
			return "", "", err
		}
		return MySQL, conn, nil
	default:
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return "", "", fmt.Errorf("parse dsn: %w", err)
		}
		return MySQL, cfg.FormatDSN(), nil
	}
}

func toMySQLDSN(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse dsn: %w", err)
	}

	cfg := mysql.NewConfig()
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Passwd, _ = u.User.Password()
	}
	cfg.Net = "tcp"
	cfg.Addr = u.Host
	cfg.DBName = strings.TrimPrefix(u.Path, "/")
	if cfg.User == "" || cfg.Addr == "" || cfg.DBName == "" {
		return "", fmt.Errorf("incomplete dsn %q: user, host and database are required", u.Redacted())
	}

	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.InterpolateParams = true
	return cfg.FormatDSN(), nil
}

// placeholder returns the n-th (1-based) bind parameter marker.
func (d Dialect) placeholder(n int) string {
	if d == Postgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (d Dialect) placeholders(count int) string {
	marks := make([]string, count)
	for i := range marks {
		marks[i] = d.placeholder(i + 1)
	}
	return strings.Join(marks, ", ")
}
