// Package network reads channel networks from GeoJSON.
//
// Each LineString feature is one channel; a MultiLineString feature
// contributes one channel per part. Cross-section attributes are read from
// the feature properties using the shapefile field names BEDLEVELUP,
// BEDLEVELDN, BEDWIDTHUP, BEDWIDTHDN, SLOPEUP and SLOPEDN, matched without
// regard to case. Missing or non-numeric attributes decode as NaN and
// malformed geometries decode with no vertices; both are left for
// channel.New to reject, so one bad feature never fails the whole file.
package network

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/channel.builder/internal/channel"
)

// Attribute property names.
const (
	PropBedLevelUp   = "BEDLEVELUP"
	PropBedLevelDown = "BEDLEVELDN"
	PropBedWidthUp   = "BEDWIDTHUP"
	PropBedWidthDown = "BEDWIDTHDN"
	PropSlopeUp      = "SLOPEUP"
	PropSlopeDown    = "SLOPEDN"
)

// ErrNotGeoJSON is returned when the document is neither a Feature nor a
// FeatureCollection.
var ErrNotGeoJSON = errors.New("not a GeoJSON Feature or FeatureCollection")

// document is either a Feature or a FeatureCollection.
type document struct {
	feature
	Features []feature `json:"features"`
}

type feature struct {
	Type       string          `json:"type"`
	ID         json.RawMessage `json:"id"`
	Geometry   *geometry       `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

type geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// Decode reads a FeatureCollection (or a single Feature) and returns one
// channel.Spec per line, in document order.
func Decode(r io.Reader) ([]channel.Spec, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode geojson: %w", err)
	}

	var features []feature
	switch doc.Type {
	case "FeatureCollection":
		features = doc.Features
	case "Feature":
		features = []feature{doc.feature}
	default:
		return nil, fmt.Errorf("%w: type %q", ErrNotGeoJSON, doc.Type)
	}

	var specs []channel.Spec
	for n, f := range features {
		specs = append(specs, featureSpecs(n, f)...)
	}
	return specs, nil
}

func featureSpecs(n int, f feature) []channel.Spec {
	props := foldKeys(f.Properties)
	attrs := channel.Attributes{
		BedLevelUp:   number(props, PropBedLevelUp),
		BedLevelDown: number(props, PropBedLevelDown),
		BedWidthUp:   number(props, PropBedWidthUp),
		BedWidthDown: number(props, PropBedWidthDown),
		SlopeUp:      number(props, PropSlopeUp),
		SlopeDown:    number(props, PropSlopeDown),
	}
	id := featureID(n, f.ID, props)

	if f.Geometry == nil {
		return []channel.Spec{{ID: id, Attributes: attrs}}
	}
	switch f.Geometry.Type {
	case "LineString":
		var coords [][]float64
		if err := json.Unmarshal(f.Geometry.Coordinates, &coords); err != nil {
			return []channel.Spec{{ID: id, Attributes: attrs}}
		}
		return []channel.Spec{{ID: id, Vertices: vertices(coords), Attributes: attrs}}
	case "MultiLineString":
		var parts [][][]float64
		if err := json.Unmarshal(f.Geometry.Coordinates, &parts); err != nil || len(parts) == 0 {
			return []channel.Spec{{ID: id, Attributes: attrs}}
		}
		specs := make([]channel.Spec, 0, len(parts))
		for i, part := range parts {
			specs = append(specs, channel.Spec{
				ID:         fmt.Sprintf("%s#%d", id, i),
				Vertices:   vertices(part),
				Attributes: attrs,
			})
		}
		return specs
	default:
		return []channel.Spec{{ID: id, Attributes: attrs}}
	}
}

// vertices keeps the first two ordinates of each position. A position with
// fewer than two ordinates invalidates the whole line.
func vertices(coords [][]float64) []r2.Vec {
	out := make([]r2.Vec, 0, len(coords))
	for _, c := range coords {
		if len(c) < 2 {
			return nil
		}
		out = append(out, r2.Vec{X: c[0], Y: c[1]})
	}
	return out
}

func foldKeys(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[strings.ToUpper(k)] = v
	}
	return out
}

func number(props map[string]any, key string) float64 {
	switch v := props[key].(type) {
	case float64:
		return v
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func featureID(n int, raw json.RawMessage, props map[string]any) string {
	if id := rawID(raw); id != "" {
		return id
	}
	for _, key := range []string{"ID", "NAME"} {
		switch v := props[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return fmt.Sprintf("feature-%d", n)
}

func rawID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return ""
}
