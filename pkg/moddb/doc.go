// Package moddb stores the host's compatibility records for known mods.
//
// A record can mark a mod version as obsolete, as broken (it fails before
// its code is loaded), or as compatible despite using outdated APIs. Records
// live in SQLite and are cached in memory for lookups during validation.
//
//	store, err := moddb.Open(ctx, "moddb.sqlite", logger)
//	if err != nil {
//		return err
//	}
//	defer store.Close()
//	if err := store.Refresh(ctx); err != nil {
//		return err
//	}
//	core, err := host.New(host.Options{DataRecords: store}, logger)
package moddb
