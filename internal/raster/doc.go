// Package raster owns the elevation grid data model: a row-major float64
// matrix, the affine transform that places it in world coordinates and its
// nodata sentinel.
//
// The excavation engine mutates Grid.Data in place and never changes the
// grid's shape. ESRI ASCII grid reading and writing live in asc.go; other
// formats are the caller's concern.
package raster
