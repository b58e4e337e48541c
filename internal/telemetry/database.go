package telemetry

import (
	"database/sql"

	"github.com/XSAM/otelsql"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// OpenDB opens a traced connection pool. Spans carry the db.system of the
// driver so Postgres and the SQLite cache are told apart.
func OpenDB(driverName, dsn string) (*sql.DB, error) {
	return otelsql.Open(driverName, dsn,
		otelsql.WithAttributes(dbSystem(driverName)),
	)
}

func dbSystem(driverName string) attribute.KeyValue {
	switch driverName {
	case "sqlite3":
		return semconv.DBSystemSqlite
	case "postgres":
		return semconv.DBSystemPostgreSQL
	default:
		return semconv.DBSystemOtherSQL
	}
}
