package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Querier is the part of *pgxpool.Pool ListTables needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Table is one row of the table listing.
type Table struct {
	Catalog          *string `db:"table_catalog" json:"catalog"`
	Schema           *string `db:"table_schema" json:"schema"`
	TableName        *string `db:"table_name" json:"tableName"`
	TableType        *string `db:"table_type" json:"tableType"`
	StorageType      *string `db:"storage_type" json:"storageType"`
	ID               *string `db:"id" json:"id"`
	TypeName         *string `db:"type_name" json:"typeName"`
	TableClass       *string `db:"table_class" json:"tableClass"`
	RowCountEstimate int64   `db:"row_count_estimate" json:"rowCountEstimate"`
}

// information_schema.tables carries the standard columns only; the rest
// comes from pg_class.
const listTablesSQL = `
	SELECT
		t.table_catalog::text AS table_catalog,
		t.table_schema::text AS table_schema,
		t.table_name::text AS table_name,
		t.table_type::text AS table_type,
		CASE c.relpersistence
			WHEN 'p' THEN 'PERMANENT'
			WHEN 'u' THEN 'UNLOGGED'
			WHEN 't' THEN 'TEMPORARY'
		END AS storage_type,
		c.oid::text AS id,
		ty.typname::text AS type_name,
		c.relkind::text AS table_class,
		COALESCE(GREATEST(c.reltuples, 0), 0)::bigint AS row_count_estimate
	FROM information_schema.tables t
	LEFT JOIN pg_catalog.pg_namespace n ON n.nspname = t.table_schema
	LEFT JOIN pg_catalog.pg_class c ON c.relnamespace = n.oid AND c.relname = t.table_name
	LEFT JOIN pg_catalog.pg_type ty ON ty.oid = c.reltype
	ORDER BY t.table_schema, t.table_name`

// ListTables returns every table visible to the connected role.
func ListTables(ctx context.Context, q Querier) ([]Table, error) {
	rows, err := q.Query(ctx, listTablesSQL)
	if err != nil {
		return nil, fmt.Errorf("ListTables: %w", err)
	}
	// CollectRows closes rows, which hands the connection back to the pool.
	tables, err := pgx.CollectRows(rows, pgx.RowToStructByName[Table])
	if err != nil {
		return nil, fmt.Errorf("ListTables: scan: %w", err)
	}
	if tables == nil {
		tables = []Table{}
	}
	return tables, nil
}
