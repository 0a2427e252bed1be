package track

import "fmt"

// Params holds the tracking model parameters. Distances are in the same
// length units as the detection positions; rates are per frame.
type Params struct {
	D    float64 // Diffusion constant (length²/frame)
	Kon  float64 // Per-frame birth probability, in (0,1)
	Koff float64 // Per-frame death probability, in (0,1)
	Rho  float64 // Background birth density

	MaxSpeed                     float64   // Hard speed cap (length/frame); <=0 disables
	MaxPositionDisplacementSigma float64   // Sigma gate for candidate links
	MaxFeatureDisplacementSigma  []float64 // Per-feature sigma gate

	MaxGapCloseFrames      int // Exclusive upper bound on the frame gap when joining tracks
	MinGapCloseTrackLength int // Tracks shorter than this do not participate in gap closing
	// MinFinalTrackLength discards tracks whose length is <= this value after
	// gap closing. The comparison is strict (length must exceed the value);
	// values <= 1 keep every non-empty track.
	MinFinalTrackLength int

	FeatureVar []float64 // Per-feature baseline variance
}

// DefaultParams returns parameters tuned for slow Brownian motion with
// moderate birth/death rates.
func DefaultParams() Params {
	return Params{
		D:                            0.3,
		Kon:                          0.1,
		Koff:                         0.1,
		Rho:                          0.02,
		MaxSpeed:                     0,
		MaxPositionDisplacementSigma: 5.0,
		MaxGapCloseFrames:            20,
		MinGapCloseTrackLength:       1,
		MinFinalTrackLength:          1,
	}
}

// Validate checks that the parameters are in their valid operating ranges.
func (p Params) Validate() error {
	if p.D < 0 {
		return fmt.Errorf("D must be >= 0, got %v: %w", p.D, ErrParameterValue)
	}
	if p.Kon <= 0 || p.Kon >= 1 {
		return fmt.Errorf("kon must be in (0,1), got %v: %w", p.Kon, ErrParameterValue)
	}
	if p.Koff <= 0 || p.Koff >= 1 {
		return fmt.Errorf("koff must be in (0,1), got %v: %w", p.Koff, ErrParameterValue)
	}
	if p.Rho <= 0 {
		return fmt.Errorf("rho must be positive, got %v: %w", p.Rho, ErrParameterValue)
	}
	if p.MaxPositionDisplacementSigma <= 0 {
		return fmt.Errorf("maxPositionDisplacementSigma must be positive, got %v: %w",
			p.MaxPositionDisplacementSigma, ErrParameterValue)
	}
	for f, s := range p.MaxFeatureDisplacementSigma {
		if s <= 0 {
			return fmt.Errorf("maxFeatureDisplacementSigma[%d] must be positive, got %v: %w",
				f, s, ErrParameterValue)
		}
	}
	for f, v := range p.FeatureVar {
		if v < 0 {
			return fmt.Errorf("featureVar[%d] must be >= 0, got %v: %w", f, v, ErrParameterValue)
		}
	}
	if p.MaxGapCloseFrames < 1 {
		return fmt.Errorf("maxGapCloseFrames must be >= 1, got %d: %w", p.MaxGapCloseFrames, ErrParameterValue)
	}
	if p.MinGapCloseTrackLength < 1 {
		return fmt.Errorf("minGapCloseTrackLength must be >= 1, got %d: %w", p.MinGapCloseTrackLength, ErrParameterValue)
	}
	return nil
}
