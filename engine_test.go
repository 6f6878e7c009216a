package queryengine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(DuckDBConfig{Enabled: true, DBPath: ":memory:", MaxConnections: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func seedPeopleTable(t *testing.T, e *Engine) string {
	t.Helper()
	ctx := context.Background()
	tableName := "ds_people_test"
	_, err := e.Exec(ctx, `CREATE TABLE `+Quote(tableName)+` (name VARCHAR, age INTEGER, active BOOLEAN)`)
	require.NoError(t, err)
	rows := [][3]any{
		{"alice", 30, true},
		{"bob", 25, false},
		{"carol", nil, true},
		{"dave", 40, true},
	}
	for _, r := range rows {
		_, err := e.Exec(ctx, `INSERT INTO `+Quote(tableName)+` VALUES (?, ?, ?)`, r[0], r[1], r[2])
		require.NoError(t, err)
	}
	return tableName
}

func TestEngineHealthCheck(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.HealthCheck(context.Background()))
}

func TestEngineQueryRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	tableName := seedPeopleTable(t, e)
	rows, err := e.Query(context.Background(), `SELECT COUNT(*) AS n FROM `+Quote(tableName))
	require.NoError(t, err)
	require.Len(t, rows.Values, 1)
	require.Equal(t, int64(4), rows.Values[0][0])
}

func TestEngineRunQueryBindsAndDropsTempView(t *testing.T) {
	e := newTestEngine(t)
	tableName := seedPeopleTable(t, e)
	ctx := context.Background()

	rows, err := e.RunQuery(ctx, tableName, "SELECT COUNT(*) AS n FROM data WHERE active")
	require.NoError(t, err)
	require.Equal(t, int64(3), rows.Values[0][0])

	_, err = e.db.QueryContext(ctx, "SELECT * FROM data")
	require.Error(t, err)
}

func TestDescribeColumnsReflectsSchema(t *testing.T) {
	e := newTestEngine(t)
	tableName := seedPeopleTable(t, e)
	reg, err := e.DescribeColumns(context.Background(), tableName)
	require.NoError(t, err)
	require.Equal(t, []string{"name", "age", "active"}, reg.Order)

	age, ok := reg.Lookup("age")
	require.True(t, ok)
	require.Equal(t, SemanticInteger, age.SemanticType)

	active, ok := reg.Lookup("active")
	require.True(t, ok)
	require.Equal(t, SemanticBoolean, active.SemanticType)
}
