package rundriver

import "time"

const (
	DefaultPollInterval    = 500 * time.Millisecond
	DefaultTimeout         = 2 * time.Minute
	DefaultMaxPolls        = 240
	DefaultMaxActionRounds = 16
)

// cancelTimeout bounds the cancel request sent for an abandoned run.
const cancelTimeout = 10 * time.Second

// SnapshotMode selects where the rows attached to chart metadata come from.
type SnapshotMode int

const (
	// SnapshotReuse attaches the rows the chart handler rendered from.
	SnapshotReuse SnapshotMode = iota
	// SnapshotRequery runs the chart's sql_query against the scratch table a
	// second time, before the handler runs. The two executions may observe
	// different data.
	SnapshotRequery
)

func (m SnapshotMode) String() string {
	if m == SnapshotRequery {
		return "requery"
	}
	return "reuse"
}

// ParseSnapshotMode maps "reuse" and "requery" to a mode; anything else is reuse.
func ParseSnapshotMode(s string) SnapshotMode {
	if s == "requery" {
		return SnapshotRequery
	}
	return SnapshotReuse
}

// Policy bounds one driven run. Zero values take the defaults.
type Policy struct {
	PollInterval    time.Duration
	Timeout         time.Duration
	MaxPolls        int
	MaxActionRounds int
	SnapshotMode    SnapshotMode
}

func (p Policy) withDefaults() Policy {
	if p.PollInterval <= 0 {
		p.PollInterval = DefaultPollInterval
	}
	if p.Timeout <= 0 {
		p.Timeout = DefaultTimeout
	}
	if p.MaxPolls <= 0 {
		p.MaxPolls = DefaultMaxPolls
	}
	if p.MaxActionRounds <= 0 {
		p.MaxActionRounds = DefaultMaxActionRounds
	}
	return p
}
