package excavate

import (
	"fmt"
	"time"
)

// ChannelStats summarises one applied channel.
type ChannelStats struct {
	ChannelID  string
	Candidates int // cells within the corridor radius
	Footprint  int // candidates inside the channel's own footprint
	Lowered    int // writes this channel won during the merge
}

// ChannelError records a channel rejected before excavation.
type ChannelError struct {
	Index     int
	ChannelID string
	Reason    string
	Err       error
}

func (e ChannelError) Error() string {
	return fmt.Sprintf("channel %d (%q): %s", e.Index, e.ChannelID, e.Reason)
}

func (e ChannelError) Unwrap() error { return e.Err }

// Report is the outcome of one Engine.Run.
type Report struct {
	ChannelsTotal int
	Channels      []ChannelStats // applied channels, input order
	Errors        []ChannelError // rejected channels, input order

	// CellsLowered counts distinct valid cells whose value decreased.
	// CellsFilled counts distinct nodata cells that received a value.
	CellsLowered int
	CellsFilled  int

	Duration time.Duration
}

// Failed returns the number of rejected channels.
func (r *Report) Failed() int { return len(r.Errors) }

// Applied returns the number of channels that were excavated.
func (r *Report) Applied() int { return len(r.Channels) }
