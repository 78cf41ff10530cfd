package model

// SourceKind identifies which work source variant a node is.
type SourceKind string

const (
	SourceKindGroup     SourceKind = "group"
	SourceKindHTTP      SourceKind = "http"
	SourceKindSynthetic SourceKind = "synthetic"
)

// String returns the string representation of the source kind.
func (k SourceKind) String() string {
	return string(k)
}

// IsGroup returns true if nodes of this kind aggregate child sources.
func (k SourceKind) IsGroup() bool {
	return k == SourceKindGroup
}

// IsLeaf returns true if nodes of this kind fetch work themselves.
func (k SourceKind) IsLeaf() bool {
	switch k {
	case SourceKindHTTP, SourceKindSynthetic:
		return true
	}
	return false
}

// SourceConfig holds the per-node settings of a work source.
// Not every field applies to every kind; Normalize fills defaults and
// Validate rejects configs that make no sense for the given kind.
type SourceConfig struct {
	Name    string `json:"name" yaml:"name"`
	Enabled bool   `json:"enabled" yaml:"enabled"`

	// Priority weights the proportional share of a group's leftover
	// yield budget. Zero is valid (node only gets its throughput
	// credit), so Normalize never rewrites it; DefaultPriority is
	// applied where the config is decoded and absence is knowable.
	Priority float64 `json:"priority" yaml:"priority"`

	// YieldRate is the measured or assumed work production rate of a
	// leaf, in units per second. Supplied externally; groups ignore it.
	YieldRate float64 `json:"yield_rate,omitempty" yaml:"yield_rate,omitempty"`

	// Granularity controls how much total budget a group mints per
	// replenishment tick. Groups only.
	Granularity float64 `json:"granularity,omitempty" yaml:"granularity,omitempty"`

	// BatchUnits is the number of work units one fetch operation is
	// expected to yield. Leaves only.
	BatchUnits float64 `json:"batch_units,omitempty" yaml:"batch_units,omitempty"`

	// MaxFetchers caps concurrent fetch operations on a leaf.
	MaxFetchers int `json:"max_fetchers,omitempty" yaml:"max_fetchers,omitempty"`

	// URL is the upstream endpoint for http leaves.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`
}

// Default values. Normalize applies all but DefaultPriority, which the
// decode boundaries apply only when the field is absent.
const (
	DefaultPriority    = 1.0
	DefaultGranularity = 16.0
	DefaultBatchUnits  = 1.0
	DefaultMaxFetchers = 4
)

// Normalize returns cfg with kind-appropriate defaults applied. It is a
// pure function: the input value is not modified. Priority is left as
// configured: zero carries meaning, unlike the other defaulted fields.
func Normalize(kind SourceKind, cfg SourceConfig) SourceConfig {
	if cfg.Name == "" {
		cfg.Name = "untitled " + kind.String() + " source"
	}
	if kind.IsGroup() {
		if cfg.Granularity <= 0 {
			cfg.Granularity = DefaultGranularity
		}
	} else {
		if cfg.BatchUnits <= 0 {
			cfg.BatchUnits = DefaultBatchUnits
		}
		if cfg.MaxFetchers <= 0 {
			cfg.MaxFetchers = DefaultMaxFetchers
		}
	}
	return cfg
}

// Validate checks cfg for the given kind. Normalize should run first;
// Validate does not apply defaults.
func Validate(kind SourceKind, cfg SourceConfig) error {
	if cfg.Priority < 0 {
		return NewValidationError("priority must be >= 0",
			FieldError{Field: "priority", Message: "negative priority"})
	}
	if kind.IsGroup() && cfg.Granularity <= 0 {
		return NewValidationError("granularity must be > 0",
			FieldError{Field: "granularity", Message: "non-positive granularity"})
	}
	if kind.IsLeaf() && cfg.YieldRate < 0 {
		return NewValidationError("yield_rate must be >= 0",
			FieldError{Field: "yield_rate", Message: "negative yield rate"})
	}
	if kind == SourceKindHTTP && cfg.URL == "" {
		return NewValidationError("http source requires a url",
			FieldError{Field: "url", Message: "missing url"})
	}
	return nil
}

// NodeDescriptor is the persisted shape of one work source node.
// Children are deflated before the node itself, and a group inflates
// them recursively on reconstruction.
type NodeDescriptor struct {
	ID       string           `json:"id"`
	Kind     SourceKind       `json:"kind"`
	Config   SourceConfig     `json:"config"`
	Children []NodeDescriptor `json:"children,omitempty"`
}

// CountNodes returns the number of nodes in the descriptor subtree,
// including the receiver.
func (d *NodeDescriptor) CountNodes() int {
	n := 1
	for i := range d.Children {
		n += d.Children[i].CountNodes()
	}
	return n
}

// SourceStatus is the live view of one node returned by the stats API.
type SourceStatus struct {
	ID           string       `json:"id"`
	Kind         SourceKind   `json:"kind"`
	Config       SourceConfig `json:"config"`
	Fetchers     int          `json:"fetchers"`
	Units        float64      `json:"units"`
	PendingQuota float64      `json:"pending_quota"`
}
