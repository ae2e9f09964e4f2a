package store

import (
	"bytes"
	"compress/gzip"
	"database/sql"
	"encoding/gob"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/channel.builder/internal/raster"
)

// ErrRunNotFound is returned when a run ID is not in the ledger.
var ErrRunNotFound = errors.New("run not found")

// Run is one recorded excavation batch.
type Run struct {
	RunID        string
	StartedAt    time.Time
	FinishedAt   time.Time
	DEMPath      string
	ChannelsPath string
	ParamsJSON   string // engine and file configuration as applied

	Rows, Cols     int
	ChannelsTotal  int
	ChannelsFailed int
	CellsLowered   int
	CellsFilled    int
	VolumeRemoved  float64

	// Grid, when set on insert, is stored as a compressed snapshot and can
	// be read back with LoadRunGrid. It is never populated by GetRun.
	Grid *raster.Grid

	// Errors are the rejected channels. Populated on insert and by
	// ChannelErrors; GetRun leaves it empty.
	Errors []ChannelError
}

// ChannelError is a rejected channel recorded against a run.
type ChannelError struct {
	Index     int
	ChannelID string
	Reason    string
}

// gridSnapshot is the gob payload of a stored grid.
type gridSnapshot struct {
	Rows, Cols int
	Transform  [6]float64
	NoData     float64
	HasNoData  bool
	Data       []float64
}

// serializeGrid compresses a grid using gob encoding and gzip compression.
func serializeGrid(g *raster.Grid) ([]byte, error) {
	tr := g.Transform
	snap := gridSnapshot{
		Rows:      g.Rows,
		Cols:      g.Cols,
		Transform: [6]float64{tr.A, tr.B, tr.C, tr.D, tr.E, tr.F},
		NoData:    g.NoData,
		HasNoData: g.HasNoData,
		Data:      g.Data,
	}
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	enc := gob.NewEncoder(gz)
	if err := enc.Encode(snap); err != nil {
		gz.Close()
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// deserializeGrid decompresses and decodes a grid from a gob+gzip blob.
func deserializeGrid(blob []byte) (*raster.Grid, error) {
	if len(blob) == 0 {
		return nil, fmt.Errorf("empty grid blob")
	}
	gz, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gz.Close()

	var snap gridSnapshot
	if err := gob.NewDecoder(gz).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode grid: %w", err)
	}
	t := snap.Transform
	g := &raster.Grid{
		Geometry: raster.Geometry{
			Rows:      snap.Rows,
			Cols:      snap.Cols,
			Transform: raster.Affine{A: t[0], B: t[1], C: t[2], D: t[3], E: t[4], F: t[5]},
		},
		Data:      snap.Data,
		NoData:    snap.NoData,
		HasNoData: snap.HasNoData,
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("stored grid is corrupt: %w", err)
	}
	return g, nil
}

// InsertRun records r and its channel errors in one transaction. A new
// run ID is assigned when r.RunID is empty; the ID is returned and also
// set on r. Zero timestamps default to the current time.
func (s *Store) InsertRun(r *Run) (string, error) {
	if r.RunID == "" {
		r.RunID = uuid.NewString()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	if r.FinishedAt.IsZero() {
		r.FinishedAt = r.StartedAt
	}

	var blob []byte
	if r.Grid != nil {
		var err error
		if blob, err = serializeGrid(r.Grid); err != nil {
			return "", fmt.Errorf("failed to serialize grid: %w", err)
		}
		tracef("run %s: grid snapshot %d bytes", r.RunID, len(blob))
	}

	err := retryOnBusy(func() error {
		tx, err := s.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		_, err = tx.Exec(`
			INSERT INTO excavation_runs (
				run_id, started_unix_nanos, finished_unix_nanos, dem_path, channels_path,
				params_json, grid_rows, grid_cols, channels_total, channels_failed,
				cells_lowered, cells_filled, volume_removed, grid_blob
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.RunID, r.StartedAt.UnixNano(), r.FinishedAt.UnixNano(), r.DEMPath, r.ChannelsPath,
			paramsOrEmpty(r.ParamsJSON), r.Rows, r.Cols, r.ChannelsTotal, r.ChannelsFailed,
			r.CellsLowered, r.CellsFilled, r.VolumeRemoved, blob,
		)
		if err != nil {
			return err
		}

		for _, ce := range r.Errors {
			if _, err := tx.Exec(`
				INSERT INTO excavation_channel_errors (run_id, channel_index, channel_id, reason)
				VALUES (?, ?, ?, ?)`,
				r.RunID, ce.Index, ce.ChannelID, ce.Reason,
			); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		opsf("failed to insert run %s: %v", r.RunID, err)
		return "", fmt.Errorf("failed to insert run: %w", err)
	}
	diagf("recorded run %s: %d channels, %d failed, %d cells lowered",
		r.RunID, r.ChannelsTotal, r.ChannelsFailed, r.CellsLowered)
	return r.RunID, nil
}

func paramsOrEmpty(p string) string {
	if p == "" {
		return "{}"
	}
	return p
}

const runColumns = `run_id, started_unix_nanos, finished_unix_nanos, dem_path, channels_path,
	params_json, grid_rows, grid_cols, channels_total, channels_failed,
	cells_lowered, cells_filled, volume_removed`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var r Run
	var started, finished int64
	if err := row.Scan(
		&r.RunID, &started, &finished, &r.DEMPath, &r.ChannelsPath,
		&r.ParamsJSON, &r.Rows, &r.Cols, &r.ChannelsTotal, &r.ChannelsFailed,
		&r.CellsLowered, &r.CellsFilled, &r.VolumeRemoved,
	); err != nil {
		return nil, err
	}
	r.StartedAt = time.Unix(0, started)
	r.FinishedAt = time.Unix(0, finished)
	return &r, nil
}

// GetRun returns the run with the given ID, without its grid or errors.
func (s *Store) GetRun(runID string) (*Run, error) {
	row := s.QueryRow(`SELECT `+runColumns+` FROM excavation_runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return r, nil
}

// ListRuns returns up to limit runs, most recent first. A non-positive
// limit returns every run.
func (s *Store) ListRuns(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.Query(`SELECT `+runColumns+` FROM excavation_runs
		ORDER BY started_unix_nanos DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ChannelErrors returns the rejected channels of a run in input order.
func (s *Store) ChannelErrors(runID string) ([]ChannelError, error) {
	rows, err := s.Query(`
		SELECT channel_index, channel_id, reason
		FROM excavation_channel_errors
		WHERE run_id = ?
		ORDER BY channel_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query channel errors: %w", err)
	}
	defer rows.Close()

	var out []ChannelError
	for rows.Next() {
		var ce ChannelError
		if err := rows.Scan(&ce.Index, &ce.ChannelID, &ce.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan channel error: %w", err)
		}
		out = append(out, ce)
	}
	return out, rows.Err()
}

// LoadRunGrid decodes the grid snapshot stored with a run. It returns
// ErrRunNotFound for an unknown run and an error when the run was stored
// without a snapshot.
func (s *Store) LoadRunGrid(runID string) (*raster.Grid, error) {
	var blob []byte
	err := s.QueryRow(`SELECT grid_blob FROM excavation_runs WHERE run_id = ?`, runID).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load grid: %w", err)
	}
	if len(blob) == 0 {
		return nil, fmt.Errorf("run %s has no grid snapshot", runID)
	}
	return deserializeGrid(blob)
}
