// Package datasets provides a columnar dataset abstraction with lazy,
// index-based views and a parallel transformation engine.
//
// A dataset couples an immutable columnar storage with an optional index
// mapping, so reordering operations (sort, shuffle, select, shard, split)
// never copy row data, and schema projections (rename, remove, select
// columns) never touch storage at all. Row-level transformations (map,
// filter, batch, cast, flatten) materialize a new storage through a typed
// builder, running user callbacks across shard-parallel workers.
//
// # Quick Start
//
// Build a dataset from columns and transform it:
//
//	storage, err := loader.FromColumns(map[string][]interface{}{
//		"text":  {"good", "bad", "fine"},
//		"label": {int64(1), int64(0), int64(1)},
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	d := dataset.FromStorage(storage)
//
//	shuffled := d.Shuffle(42)
//	train, test, err := shuffled.TrainTestSplit(dataset.DefaultSplitOptions())
//
// Apply a callback over every row in parallel:
//
//	upper, err := d.Map(func(row map[string]interface{}, info dataset.CallInfo) (map[string]interface{}, error) {
//		row["text"] = strings.ToUpper(row["text"].(string))
//		return row, nil
//	}, dataset.MapOptions{})
//
// # Persistence and Exchange
//
// Datasets are saved as Arrow IPC files with a JSON schema sidecar, and can
// be pushed to or pulled from an S3-compatible content store:
//
//	err = persist.Save(train, "out/train", persist.Options{Compress: true})
//	client, err := hub.NewClient(cfg)
//	err = client.Push(ctx, train, "team/reviews")
//
// Row-oriented exports (CSV, line-delimited JSON, Parquet, SQL) live in
// package export.
package datasets
