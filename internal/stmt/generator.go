// Package stmt implements the StatementGenerator: a set of pure,
// side-effect-free functions that emit single CrateDB SQL statements.
// Every generator is deterministic — identical inputs yield byte-identical
// output — which is the basis for the package's snapshot-style tests.
package stmt

import (
	"fmt"
	"strconv"
	"strings"
)

// ColumnMode is the strictness mode of an OBJECT column.
type ColumnMode string

const (
	ModeStrict  ColumnMode = "STRICT"
	ModeDynamic ColumnMode = "DYNAMIC"
	ModeIgnored ColumnMode = "IGNORED"
)

// Column describes one column of a CREATE TABLE statement. A column is
// either scalar (Type is anything other than "OBJECT") or an OBJECT column
// with nested Properties.
type Column struct {
	Name            string
	Type            string
	NotNull         bool
	DefaultValue    string
	HasDefault      bool
	GeneratedAlways string
	HasGenerated    bool
	Stored          bool
	PrimaryKey      bool

	// Object-column fields; Type must be "OBJECT" (case-insensitive) for
	// these to apply.
	Mode       ColumnMode
	Properties []Column
}

// KV is an ordered key/value pair, used wherever the spec's options are
// conceptually a map but generator output must still be deterministic —
// Go's map iteration order is randomized, so callers supply order
// explicitly.
type KV struct {
	Key   string
	Value any
}

// TableOptions configures the optional clauses of CREATE TABLE.
type TableOptions struct {
	PartitionedBy       []string
	ClusteredBy         string
	ClusteredIntoShards int
	NumberOfReplicas    string
}

// Generator emits SQL statements for the CrateDB dialect. It carries no
// state; every method is safe for concurrent use.
type Generator struct{}

// NewGenerator returns a ready-to-use Generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// QuoteIdentifier double-quotes a single identifier, escaping embedded
// double quotes.
func (g *Generator) QuoteIdentifier(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// QuoteTable splits table on "." and double-quotes each part, so that
// "doc.t" becomes "doc"."t".
func (g *Generator) QuoteTable(table string) string {
	parts := strings.Split(table, ".")
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = g.QuoteIdentifier(p)
	}
	return strings.Join(quoted, ".")
}

// QuoteString produces a single-quoted SQL string literal, doubling
// embedded single quotes.
func (g *Generator) QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// CreateTable emits a CREATE TABLE statement for table with the given
// ordered columns and options. opts may be nil.
func (g *Generator) CreateTable(table string, columns []Column, opts *TableOptions) (string, error) {
	if len(columns) == 0 {
		return "", fmt.Errorf("stmt: createTable requires at least one column")
	}

	var parts []string
	var primaryKeys []string
	for _, c := range columns {
		def, err := g.columnDefinition(c)
		if err != nil {
			return "", err
		}
		parts = append(parts, def)
		if c.PrimaryKey {
			primaryKeys = append(primaryKeys, c.Name)
		}
	}
	if len(primaryKeys) > 0 {
		quoted := make([]string, len(primaryKeys))
		for i, pk := range primaryKeys {
			quoted[i] = g.QuoteIdentifier(pk)
		}
		parts = append(parts, "PRIMARY KEY("+strings.Join(quoted, ", ")+")")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (%s)", g.QuoteTable(table), strings.Join(parts, ", "))

	if opts != nil {
		if len(opts.PartitionedBy) > 0 {
			quoted := make([]string, len(opts.PartitionedBy))
			for i, col := range opts.PartitionedBy {
				quoted[i] = g.QuoteIdentifier(col)
			}
			fmt.Fprintf(&b, " PARTITIONED BY (%s)", strings.Join(quoted, ", "))
		}
		switch {
		case opts.ClusteredBy != "" && opts.ClusteredIntoShards > 0:
			fmt.Fprintf(&b, " CLUSTERED BY (%s) INTO %d SHARDS", g.QuoteIdentifier(opts.ClusteredBy), opts.ClusteredIntoShards)
		case opts.ClusteredBy != "":
			fmt.Fprintf(&b, " CLUSTERED BY (%s)", g.QuoteIdentifier(opts.ClusteredBy))
		case opts.ClusteredIntoShards > 0:
			fmt.Fprintf(&b, " CLUSTERED INTO %d SHARDS", opts.ClusteredIntoShards)
		}
		if opts.NumberOfReplicas != "" {
			fmt.Fprintf(&b, " WITH (number_of_replicas=%s)", g.QuoteString(opts.NumberOfReplicas))
		}
	}
	b.WriteString(";")
	return b.String(), nil
}

func (g *Generator) columnDefinition(c Column) (string, error) {
	if strings.EqualFold(c.Type, "OBJECT") {
		return g.objectColumnDefinition(c)
	}

	if c.HasDefault && c.HasGenerated {
		return "", fmt.Errorf("stmt: column %q cannot have both a default value and a generated-always expression", c.Name)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", g.QuoteIdentifier(c.Name), c.Type)
	if c.NotNull {
		b.WriteString(" NOT NULL")
	}
	if c.HasDefault {
		fmt.Fprintf(&b, " DEFAULT %s", c.DefaultValue)
	}
	if c.HasGenerated {
		fmt.Fprintf(&b, " GENERATED ALWAYS AS %s", c.GeneratedAlways)
		if c.Stored {
			b.WriteString(" STORED")
		}
	}
	return b.String(), nil
}

func (g *Generator) objectColumnDefinition(c Column) (string, error) {
	var children []string
	for _, child := range c.Properties {
		def, err := g.columnDefinition(child)
		if err != nil {
			return "", err
		}
		children = append(children, def)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s OBJECT", g.QuoteIdentifier(c.Name))
	if c.Mode != "" {
		fmt.Fprintf(&b, "(%s)", c.Mode)
	}
	if len(children) > 0 {
		fmt.Fprintf(&b, " AS (%s)", strings.Join(children, ", "))
	}
	return b.String(), nil
}

// Insert emits an INSERT INTO statement for table with the given ordered
// column keys. When primaryKeys is non-empty the statement upserts via
// ON CONFLICT (...) DO UPDATE; otherwise it is ON CONFLICT DO NOTHING.
func (g *Generator) Insert(table string, keys []string, primaryKeys []string) (string, error) {
	if len(keys) == 0 {
		return "", fmt.Errorf("stmt: insert requires at least one column")
	}

	quotedCols := make([]string, len(keys))
	placeholders := make([]string, len(keys))
	for i, k := range keys {
		quotedCols[i] = g.QuoteIdentifier(k)
		placeholders[i] = "?"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES (%s)",
		g.QuoteTable(table), strings.Join(quotedCols, ", "), strings.Join(placeholders, ", "))

	if len(primaryKeys) > 0 {
		quotedPK := make([]string, len(primaryKeys))
		for i, pk := range primaryKeys {
			quotedPK[i] = g.QuoteIdentifier(pk)
		}
		pkSet := make(map[string]struct{}, len(primaryKeys))
		for _, pk := range primaryKeys {
			pkSet[pk] = struct{}{}
		}
		var updates []string
		for _, k := range keys {
			if _, isPK := pkSet[k]; isPK {
				continue
			}
			q := g.QuoteIdentifier(k)
			updates = append(updates, fmt.Sprintf("%s = excluded.%s", q, q))
		}
		fmt.Fprintf(&b, " ON CONFLICT (%s) DO UPDATE SET %s", strings.Join(quotedPK, ", "), strings.Join(updates, ", "))
	} else {
		b.WriteString(" ON CONFLICT DO NOTHING")
	}
	b.WriteString(";")
	return b.String(), nil
}

// Update emits an UPDATE statement for table, setting each of columns to a
// positional placeholder, filtered by where (passed through verbatim —
// the caller is responsible for its safety, per §9 design note (b)).
func (g *Generator) Update(table string, columns []string, where string) (string, error) {
	if len(columns) == 0 {
		return "", fmt.Errorf("stmt: update requires at least one column")
	}
	assignments := make([]string, len(columns))
	for i, c := range columns {
		assignments[i] = fmt.Sprintf("%s=?", g.QuoteIdentifier(c))
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s;", g.QuoteTable(table), strings.Join(assignments, ", "), where), nil
}

// Delete emits a DELETE statement for table filtered by where (passed
// through verbatim, same caveat as Update).
func (g *Generator) Delete(table string, where string) string {
	return fmt.Sprintf("DELETE FROM %s WHERE %s;", g.QuoteTable(table), where)
}

// DropTable emits a DROP TABLE IF EXISTS statement.
func (g *Generator) DropTable(table string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s;", g.QuoteTable(table))
}

// Refresh emits a REFRESH TABLE statement.
func (g *Generator) Refresh(table string) string {
	return fmt.Sprintf("REFRESH TABLE %s;", g.QuoteTable(table))
}

// Optimize emits an OPTIMIZE TABLE statement with optional WITH and
// PARTITION clauses. String values are single-quoted; numeric values are
// emitted raw.
func (g *Generator) Optimize(table string, options []KV, partitions []KV) string {
	var b strings.Builder
	fmt.Fprintf(&b, "OPTIMIZE TABLE %s", g.QuoteTable(table))
	if len(options) > 0 {
		fmt.Fprintf(&b, " WITH (%s)", g.formatKVList(options))
	}
	if len(partitions) > 0 {
		fmt.Fprintf(&b, " PARTITION (%s)", g.formatKVList(partitions))
	}
	b.WriteString(";")
	return b.String()
}

func (g *Generator) formatKVList(kvs []KV) string {
	parts := make([]string, len(kvs))
	for i, kv := range kvs {
		parts[i] = fmt.Sprintf("%s=%s", kv.Key, g.formatOptionValue(kv.Value))
	}
	return strings.Join(parts, ", ")
}

func (g *Generator) formatOptionValue(v any) string {
	switch t := v.(type) {
	case string:
		return g.QuoteString(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// PrimaryKeysQuery returns the fixed SQL probe against the information
// schema used to introspect a table's primary key columns (returned in
// ordinal_position order), plus its positional arguments (schema, table).
func (g *Generator) PrimaryKeysQuery(schema, table string) (string, []any) {
	const query = `SELECT kcu.column_name
FROM information_schema.key_column_usage kcu
JOIN information_schema.table_constraints tc
  ON tc.constraint_name = kcu.constraint_name
 AND tc.table_schema = kcu.table_schema
 AND tc.table_name = kcu.table_name
WHERE tc.constraint_type = 'PRIMARY KEY'
  AND kcu.table_schema = ?
  AND kcu.table_name = ?
ORDER BY kcu.ordinal_position;`
	return query, []any{schema, table}
}
