package search

import (
	"github.com/VitalyVorobyev/corrmatch/internal/corrmatch/bank"
	"github.com/VitalyVorobyev/corrmatch/internal/corrmatch/correrr"
	"github.com/VitalyVorobyev/corrmatch/internal/corrmatch/imageview"
)

// Match is a resolved placement: full-resolution position, rotation
// angle (0 for a no-rotation search), and score under the configured
// metric.
type Match struct {
	X, Y     float32
	AngleDeg float32
	Score    float32
}

// Matcher runs the coarse-to-fine search for one compiled template.
type Matcher struct {
	compiled *bank.CompiledTemplate
	cfg      MatchConfig
}

// NewMatcher builds a Matcher with the default configuration.
func NewMatcher(compiled *bank.CompiledTemplate) *Matcher {
	return &Matcher{compiled: compiled, cfg: DefaultMatchConfig()}
}

// WithConfig returns a copy of m using cfg, ignoring validation errors.
// Prefer TryWithConfig when the caller can propagate an error.
func (m *Matcher) WithConfig(cfg MatchConfig) *Matcher {
	next := *m
	next.cfg = cfg
	return &next
}

// TryWithConfig returns a copy of m using cfg, or an error if cfg fails
// Validate.
func (m *Matcher) TryWithConfig(cfg MatchConfig) (*Matcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return m.WithConfig(cfg), nil
}

// MatchImage runs the full coarse-to-fine pipeline and returns the single
// best match.
func (m *Matcher) MatchImage(image imageview.View) (Match, error) {
	matches, err := m.MatchImageTopK(image, 1)
	if err != nil {
		return Match{}, err
	}
	return matches[0], nil
}

// MatchImageTopK runs the full coarse-to-fine pipeline and returns up to
// k final matches, best score first.
func (m *Matcher) MatchImageTopK(image imageview.View, k int) ([]Match, error) {
	if k < 1 {
		return nil, correrr.New(correrr.InvalidInput, "k must be at least 1")
	}
	seeds, err := m.matchCandidates(image)
	if err != nil {
		return nil, err
	}
	if len(seeds) > k {
		seeds = seeds[:k]
	}

	rotationEnabled := m.cfg.Rotation == RotationEnabled
	out := make([]Match, len(seeds))
	for i, seed := range seeds {
		var refined Match
		var rerr error
		if rotationEnabled {
			refined, rerr = refineFinalMatch(image, m.compiled, 0, seed, m.cfg)
		} else {
			refined, rerr = refineFinalMatchUnmasked(image, m.compiled, 0, seed, m.cfg)
		}
		if rerr != nil {
			out[i] = Match{X: float32(seed.X), Y: float32(seed.Y), AngleDeg: float32(seed.AngleDeg), Score: seed.Score}
			continue
		}
		out[i] = refined
	}
	return out, nil
}

// matchCandidates builds an image pyramid, runs the coarse scan at the
// coarsest level shared by the image and the compiled template, then
// walks level by level down to full resolution, refining the surviving
// beam at each step.
func (m *Matcher) matchCandidates(image imageview.View) ([]Candidate, error) {
	rotationEnabled := m.cfg.Rotation == RotationEnabled
	if rotationEnabled && !m.compiled.HasRotation() {
		return nil, correrr.New(correrr.InvalidConfig, "rotation search requested but template was compiled without rotation support")
	}

	pyramid, err := imageview.Build(image, m.cfg.MaxImageLevels)
	if err != nil {
		return nil, err
	}
	numLevels := pyramid.NumLevels()
	if compiledLevels := m.compiled.NumLevels(); compiledLevels < numLevels {
		numLevels = compiledLevels
	}
	if numLevels == 0 {
		return nil, correrr.New(correrr.Degenerate, "no shared pyramid levels between image and compiled template")
	}

	coarsest := numLevels - 1
	coarseView, err := pyramid.Level(coarsest)
	if err != nil {
		return nil, err
	}

	var seeds []Candidate
	switch {
	case rotationEnabled && m.cfg.Parallel:
		seeds, err = coarseSearchLevelParallel(coarseView.View(), m.compiled, coarsest, m.cfg)
	case rotationEnabled:
		seeds, err = coarseSearchLevel(coarseView.View(), m.compiled, coarsest, m.cfg)
	case m.cfg.Parallel:
		seeds, err = coarseSearchLevelUnmaskedParallel(coarseView.View(), m.compiled, coarsest, m.cfg)
	default:
		seeds, err = coarseSearchLevelUnmasked(coarseView.View(), m.compiled, coarsest, m.cfg)
	}
	if err != nil {
		return nil, err
	}
	if len(seeds) == 0 {
		return nil, correrr.New(correrr.Degenerate, "no coarse candidates survived the coarsest level scan")
	}

	for level := coarsest - 1; level >= 0; level-- {
		levelView, err := pyramid.Level(level)
		if err != nil {
			return nil, err
		}
		if rotationEnabled {
			seeds, err = refineToFinerLevel(levelView.View(), m.compiled, level, seeds, m.cfg)
		} else {
			seeds, err = refineToFinerLevelUnmasked(levelView.View(), m.compiled, level, seeds, m.cfg)
		}
		if err != nil {
			return nil, err
		}
		if len(seeds) == 0 {
			return nil, correrr.Newf(correrr.Degenerate, "no candidates survived refinement to level %d", level)
		}
	}
	return seeds, nil
}
