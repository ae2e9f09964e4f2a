// Package geom holds the planar geometry used by the excavation engine:
// polylines, clamped point-to-segment projection and arc-length positions.
//
// Vectors are gonum r2.Vec values in world coordinates (the grid's
// projected units). Nothing here knows about grids or channels.
package geom
