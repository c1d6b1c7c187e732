package database

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	got := dsn("app", "s3cret", "db", "3306", "memflow")
	require.Equal(t,
		"app:s3cret@tcp(db:3306)/memflow?charset=utf8mb4&parseTime=true&loc=UTC&multiStatements=true&clientFoundRows=true",
		got)

	// Empty password drops the credentials separator entirely.
	got = dsn("app", "", "localhost", "3306", "memflow")
	require.Equal(t,
		"app@tcp(localhost:3306)/memflow?charset=utf8mb4&parseTime=true&loc=UTC&multiStatements=true&clientFoundRows=true",
		got)
}

// Updates that rewrite identical values must still be distinguishable from
// updates that matched nothing: repositories treat RowsAffected()==0 as the
// row being absent, which only holds when the driver reports matched rows.
func TestDSNReportsMatchedRows(t *testing.T) {
	require.Contains(t, dsn("u", "", "h", "3306", "d"), "clientFoundRows=true")
}
