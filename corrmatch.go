// Package corrmatch is a CPU-only grayscale template-matching library: a
// coarse-to-fine pyramid search over translation and, optionally,
// rotation, scored by ZNCC or SSD, with quadratic subpixel/subangle
// refinement of the winning candidate.
package corrmatch

import (
	"github.com/VitalyVorobyev/corrmatch/internal/corrmatch/anglegrid"
	"github.com/VitalyVorobyev/corrmatch/internal/corrmatch/bank"
	"github.com/VitalyVorobyev/corrmatch/internal/corrmatch/correrr"
	"github.com/VitalyVorobyev/corrmatch/internal/corrmatch/imageview"
	"github.com/VitalyVorobyev/corrmatch/internal/corrmatch/search"
)

// Re-exported error taxonomy: callers unwrap a returned error to *Error
// with errors.As and compare its Kind field against the Err* constants,
// without importing the internal package directly.
type (
	Error     = correrr.Error
	ErrorKind = correrr.Kind
)

const (
	ErrInvalidInput        = correrr.InvalidInput
	ErrInvalidConfig       = correrr.InvalidConfig
	ErrParallelUnavailable = correrr.ParallelUnavailable
	ErrDegenerate          = correrr.Degenerate
	ErrInternal            = correrr.Internal
)

// Metric selects the scoring function used throughout a match.
type Metric = search.Metric

const (
	Zncc = search.Zncc
	Ssd  = search.Ssd
)

// RotationMode selects whether a Matcher searches an angle dimension.
type RotationMode = search.RotationMode

const (
	RotationDisabled = search.RotationDisabled
	RotationEnabled  = search.RotationEnabled
)

// CompileConfig configures Compile: pyramid depth, per-level angle step
// schedule, rotation fill value, and eager coarsest-bank precompute.
type CompileConfig = bank.CompileConfig

// DefaultCompileConfig returns CompileConfig's reference defaults.
func DefaultCompileConfig() CompileConfig { return bank.DefaultCompileConfig() }

// CompileConfigNoRot configures CompileUnrotated: pyramid depth only.
type CompileConfigNoRot = bank.CompileConfigNoRot

// DefaultCompileConfigNoRot returns CompileConfigNoRot's reference default.
func DefaultCompileConfigNoRot() CompileConfigNoRot { return bank.DefaultCompileConfigNoRot() }

// MatchConfig configures a Matcher's coarse-to-fine search.
type MatchConfig = search.MatchConfig

// DefaultMatchConfig returns MatchConfig's reference defaults.
func DefaultMatchConfig() MatchConfig { return search.DefaultMatchConfig() }

// Image is a borrowed grayscale image view: width W, height H, stride
// S >= W, row-major.
type Image = imageview.View

// NewImage builds an Image over data with stride equal to width.
func NewImage(data []byte, width, height int) (Image, error) {
	return imageview.New(data, width, height)
}

// NewImageStrided builds an Image with an explicit stride.
func NewImageStrided(data []byte, width, height, stride int) (Image, error) {
	return imageview.NewStrided(data, width, height, stride)
}

// AngleGrid is a deterministic discretization of a rotation interval,
// exposed for callers inspecting a Template's angle coverage.
type AngleGrid = anglegrid.Grid

// Template is a compiled template: an image pyramid plus, when built
// with rotation search enabled, per-level angle banks of rotated plans.
type Template struct {
	compiled *bank.CompiledTemplate
}

// Compile builds a Template with rotation search enabled.
func Compile(tpl Image, cfg CompileConfig) (*Template, error) {
	compiled, err := bank.Compile(tpl, cfg)
	if err != nil {
		return nil, err
	}
	return &Template{compiled: compiled}, nil
}

// CompileUnrotated builds a Template restricted to the no-rotation fast
// path.
func CompileUnrotated(tpl Image, cfg CompileConfigNoRot) (*Template, error) {
	compiled, err := bank.CompileNoRotation(tpl, cfg)
	if err != nil {
		return nil, err
	}
	return &Template{compiled: compiled}, nil
}

// HasRotation reports whether this Template supports rotation search.
func (t *Template) HasRotation() bool { return t.compiled.HasRotation() }

// NumLevels returns the number of pyramid levels this Template compiled.
func (t *Template) NumLevels() int { return t.compiled.NumLevels() }

// AngleGrid returns the angle grid for a pyramid level, or an error if
// this Template was compiled without rotation support.
func (t *Template) AngleGrid(level int) (*AngleGrid, error) {
	return t.compiled.AngleGrid(level)
}

// NewMatcher builds a Matcher searching this Template with the default
// configuration.
func (t *Template) NewMatcher() *Matcher {
	return &Matcher{inner: search.NewMatcher(t.compiled)}
}

// Match is a resolved placement: full-resolution position, rotation
// angle (0 for a no-rotation search), and score under the configured
// metric.
type Match = search.Match

// Matcher runs the coarse-to-fine search for one compiled Template.
type Matcher struct {
	inner *search.Matcher
}

// NewMatcher builds a Matcher for a compiled Template with the default
// configuration.
func NewMatcher(tpl *Template) *Matcher {
	return tpl.NewMatcher()
}

// WithConfig returns a copy of m using cfg, ignoring validation errors.
// Prefer TryWithConfig when the caller can propagate one.
func (m *Matcher) WithConfig(cfg MatchConfig) *Matcher {
	return &Matcher{inner: m.inner.WithConfig(cfg)}
}

// TryWithConfig returns a copy of m using cfg, or an error if cfg fails
// Validate.
func (m *Matcher) TryWithConfig(cfg MatchConfig) (*Matcher, error) {
	inner, err := m.inner.TryWithConfig(cfg)
	if err != nil {
		return nil, err
	}
	return &Matcher{inner: inner}, nil
}

// MatchImage runs the full coarse-to-fine pipeline and returns the single
// best match.
func (m *Matcher) MatchImage(image Image) (Match, error) {
	return m.inner.MatchImage(image)
}

// MatchImageTopK runs the full coarse-to-fine pipeline and returns up to
// k final matches, best score first.
func (m *Matcher) MatchImageTopK(image Image, k int) ([]Match, error) {
	return m.inner.MatchImageTopK(image, k)
}
