package schema

import "context"

// Normalizer converts model definition documents into SchemaDescriptors.
// Implementations live under internal/schema but satisfy this contract.
type Normalizer interface {
	Normalize(ctx context.Context, doc Document) (SchemaDescriptor, error)
}

// NormalizerOptions collects the guardrails applied while walking a
// definition.
type NormalizerOptions struct {
	// MaxDepth caps nested descriptor recursion, including local reference
	// resolution. Zero applies the default.
	MaxDepth int

	// StrictKinds rejects definitions whose fields carry types outside the
	// descriptor mapping. When false, unmapped leaf types degrade to text.
	// Defaults to true: an unmapped type is an UnsupportedKindError.
	StrictKinds bool
}

// NormalizerOption mutates NormalizerOptions during construction.
type NormalizerOption func(*NormalizerOptions)

// WithMaxDepth caps nesting/reference depth during normalization.
func WithMaxDepth(depth int) NormalizerOption {
	return func(opts *NormalizerOptions) {
		opts.MaxDepth = depth
	}
}

// WithLenientKinds downgrades unmapped leaf types to text instead of failing.
func WithLenientKinds() NormalizerOption {
	return func(opts *NormalizerOptions) {
		opts.StrictKinds = false
	}
}

// NewNormalizerOptions applies NormalizerOption functions over the defaults.
// Implementations under internal/schema call this helper to stay consistent.
func NewNormalizerOptions(options ...NormalizerOption) NormalizerOptions {
	cfg := NormalizerOptions{
		StrictKinds: true,
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}
	return cfg
}

// Construction helpers live in the top-level formflow package to avoid import cycles.
