// Package cratedb is a client for CrateDB's native HTTP/JSON SQL
// endpoint. It covers parameterized and bulk statement execution,
// server-side cursors for streaming large result sets, a small SQL
// statement builder for common DDL/DML, and typed (de)serialization
// that preserves 64-bit integer precision and converts temporal columns
// using the server's column-type metadata.
//
// A Client is built from a Config (start from DefaultConfig and
// override only what you need):
//
//	cfg := cratedb.DefaultConfig()
//	cfg.Host, cfg.Port = "crate.internal", 4200
//	client, err := cratedb.NewClient(cfg)
//	resp, err := client.Execute(ctx, "SELECT 1", nil)
//
// Cursors and StreamQuery are the right tool for result sets too large
// to hold in memory:
//
//	rows, errc := client.StreamQuery(ctx, "SELECT * FROM big_table", 500)
//	for row := range rows {
//		// ...
//	}
//	if err := <-errc; err != nil {
//		// ...
//	}
package cratedb
