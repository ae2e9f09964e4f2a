// Package excavate lowers an elevation grid so that it reproduces a
// trapezoidal channel bed along every channel of a network.
//
// Responsibilities: the per-cell excavation rule (rule.go), the two-phase
// compute/merge driver (engine.go) and the batch report (report.go).
// Key types: Engine, Config, Result, Report.
//
// Channels are evaluated concurrently against a read-only grid; the
// resulting per-cell targets are merged by a single writer with
// cell = min(cell, target), so excavation never raises terrain and the
// outcome does not depend on channel order.
//
// No file formats or persistence live here; see internal/raster,
// internal/network and internal/store.
package excavate
