// Package updates checks an update server for newer versions of installed
// mods.
//
// Checks run in the background once every mod is loaded and never block or
// change the load. Answers are cached with an expiry and surface in the load
// report through Checker.Lookup.
//
//	checker := updates.NewChecker(updates.Options{ServerURL: cfg.Updates.ServerURL}, logger)
//	checker.CheckInBackground(ctx, core.Registry().GetAll(true))
//	report := host.BuildReport(core, checker.Lookup)
package updates
