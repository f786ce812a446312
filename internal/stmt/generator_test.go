package stmt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTableScalarColumns(t *testing.T) {
	g := NewGenerator()
	sql, err := g.CreateTable("t", []Column{
		{Name: "id", Type: "INT", PrimaryKey: true},
		{Name: "name", Type: "TEXT", NotNull: true},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, `CREATE TABLE "t" ("id" INT, "name" TEXT NOT NULL, PRIMARY KEY("id"));`, sql)
}

func TestCreateTableIsDeterministic(t *testing.T) {
	g := NewGenerator()
	cols := []Column{{Name: "id", Type: "INT", PrimaryKey: true}}
	a, err := g.CreateTable("t", cols, nil)
	require.NoError(t, err)
	b, err := g.CreateTable("t", cols, nil)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCreateTableQualifiedTableName(t *testing.T) {
	g := NewGenerator()
	sql, err := g.CreateTable("doc.t", []Column{{Name: "id", Type: "INT"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, `CREATE TABLE "doc"."t" ("id" INT);`, sql)
}

func TestCreateTableObjectColumnNested(t *testing.T) {
	g := NewGenerator()
	sql, err := g.CreateTable("t", []Column{
		{
			Name: "payload",
			Type: "OBJECT",
			Mode: ModeStrict,
			Properties: []Column{
				{Name: "a", Type: "INT"},
				{Name: "nested", Type: "OBJECT", Mode: ModeDynamic, Properties: []Column{
					{Name: "b", Type: "TEXT"},
				}},
			},
		},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, `CREATE TABLE "t" ("payload" OBJECT(STRICT) AS ("a" INT, "nested" OBJECT(DYNAMIC) AS ("b" TEXT)));`, sql)
}

func TestCreateTableRejectsDefaultAndGeneratedAlways(t *testing.T) {
	g := NewGenerator()
	_, err := g.CreateTable("t", []Column{
		{Name: "x", Type: "INT", HasDefault: true, DefaultValue: "0", HasGenerated: true, GeneratedAlways: "1+1"},
	}, nil)
	assert.Error(t, err)
}

func TestCreateTableClusteringPartitioningReplicas(t *testing.T) {
	g := NewGenerator()
	sql, err := g.CreateTable("t", []Column{{Name: "id", Type: "INT"}, {Name: "d", Type: "TIMESTAMP"}}, &TableOptions{
		PartitionedBy:       []string{"d"},
		ClusteredBy:         "id",
		ClusteredIntoShards: 4,
		NumberOfReplicas:    "0-1",
	})
	require.NoError(t, err)
	assert.Equal(t, `CREATE TABLE "t" ("id" INT, "d" TIMESTAMP) PARTITIONED BY ("d") CLUSTERED BY ("id") INTO 4 SHARDS WITH (number_of_replicas='0-1');`, sql)
}

func TestInsertOnConflictDoNothing(t *testing.T) {
	g := NewGenerator()
	sql, err := g.Insert("t", []string{"id", "name"}, nil)
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "t" ("id", "name") VALUES (?, ?) ON CONFLICT DO NOTHING;`, sql)
}

func TestInsertEmptyPrimaryKeysEquivalentToNil(t *testing.T) {
	g := NewGenerator()
	withNil, err := g.Insert("t", []string{"id"}, nil)
	require.NoError(t, err)
	withEmpty, err := g.Insert("t", []string{"id"}, []string{})
	require.NoError(t, err)
	assert.Equal(t, withNil, withEmpty)
}

func TestInsertOnConflictDoUpdate(t *testing.T) {
	g := NewGenerator()
	sql, err := g.Insert("t", []string{"id", "name"}, []string{"id"})
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "t" ("id", "name") VALUES (?, ?) ON CONFLICT ("id") DO UPDATE SET "name" = excluded."name";`, sql)
}

func TestUpdate(t *testing.T) {
	g := NewGenerator()
	sql, err := g.Update("t", []string{"name", "age"}, `"id" = 1`)
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "t" SET "name"=?, "age"=? WHERE "id" = 1;`, sql)
}

func TestDelete(t *testing.T) {
	g := NewGenerator()
	assert.Equal(t, `DELETE FROM "t" WHERE "id" = 1;`, g.Delete("t", `"id" = 1`))
}

func TestDropTable(t *testing.T) {
	g := NewGenerator()
	assert.Equal(t, `DROP TABLE IF EXISTS "t";`, g.DropTable("t"))
}

func TestRefresh(t *testing.T) {
	g := NewGenerator()
	assert.Equal(t, `REFRESH TABLE "t";`, g.Refresh("t"))
}

func TestOptimizeWithAndPartition(t *testing.T) {
	g := NewGenerator()
	sql := g.Optimize("t",
		[]KV{{Key: "max_num_segments", Value: 1}},
		[]KV{{Key: "date", Value: "2020-01-01"}})
	assert.Equal(t, `OPTIMIZE TABLE "t" WITH (max_num_segments=1) PARTITION (date='2020-01-01');`, sql)
}

func TestOptimizeNoOptions(t *testing.T) {
	g := NewGenerator()
	assert.Equal(t, `OPTIMIZE TABLE "t";`, g.Optimize("t", nil, nil))
}

func TestPrimaryKeysQueryParams(t *testing.T) {
	g := NewGenerator()
	sql, args := g.PrimaryKeysQuery("doc", "t")
	assert.Contains(t, sql, "information_schema")
	assert.Equal(t, []any{"doc", "t"}, args)
}
