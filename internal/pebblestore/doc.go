// Package pebblestore keeps sealed slices in a Pebble database.
//
// Each run owns a key range; slices are stored as JSON under big-endian
// indexes so a bounded iterator visits them in seal order:
//
//	db, err := pebblestore.Open(pebblestore.Options{DataDir: "./slices"})
//	if err != nil { /* handle */ }
//	defer db.Close()
//
//	sink, err := db.Sink(runID)
//	// pass sink to engine.New
package pebblestore
