// Package convert drives the conversion of MAT-file variables into tables.
//
// # Overview
//
// Every top-level variable ("record") of a MAT-file passes through the same
// pipeline:
//
//   - records whose name starts with a reserved prefix are skipped
//   - the raw value is normalized into a value.Value tree
//   - the tree is tabularized and written through a sink.Sink
//   - if tabularization or the table write fails, a YAML dump of the tree is
//     written to the same target instead
//
// The pipeline is total: each retained record ends as exactly one
// Tabularized or Fallback outcome, or Failed when even the fallback text
// could not be written. One failing record never stops the others.
//
// # Quick Start
//
//	report, err := convert.ToDir(ctx, "S2_E1_A1.mat", "data")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(report.Tabularized, "tables,", report.Fallback, "text dumps")
//
// # Custom Converter
//
//	conv := convert.New(
//	    convert.WithLogger(logger),
//	    convert.WithReservedPrefixes("__", "tmp_"),
//	    convert.WithWorkers(4),
//	)
//	db, _ := sink.OpenSQLite("out.db")
//	defer db.Close()
//	report, err := conv.Convert(ctx, "S2_E1_A1.mat", db)
//
// # Configuration Options
//
//   - WithLogger(*slog.Logger): custom logging
//   - WithReservedPrefixes(...string): names to skip (default "__")
//   - WithWorkers(int): records converted concurrently (default 1)
//   - WithSinkOptions(...sink.Option): options for the directory sink used by ToDir
//
// Reports list outcomes in file order regardless of the worker count.
package convert
