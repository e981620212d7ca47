// Package gate classifies resolution outcomes. The mapping from match
// quality to ingestion outcome is a pure function of (tier, confidence)
// driven by one threshold table; statuses are never set independently of
// confidence.
package gate

import "github.com/larderhq/larder/pkg/larder/match"

// Status is the terminal state of a resolution.
type Status string

const (
	StatusAutoAccepted      Status = "auto_accepted"
	StatusNeedsConfirmation Status = "needs_confirmation"
	StatusSeeded            Status = "seeded"
	StatusRejected          Status = "rejected"
)

// Decision is what the orchestrator should do next with a mention.
type Decision int

const (
	// DecisionAccept links the chosen item immediately.
	DecisionAccept Decision = iota
	// DecisionConfirm persists a PendingConfirmation with ranked candidates.
	DecisionConfirm
	// DecisionSeed sends the mention to the enrichment/seeding path.
	DecisionSeed
	// DecisionReject drops the mention with a reason.
	DecisionReject
)

// Thresholds is the single configuration table for all confidence cut
// points. The zero value is unusable; use DefaultThresholds.
type Thresholds struct {
	AutoAccept      float64 `yaml:"auto_accept"`      // vector confidence for silent acceptance
	ConfirmFloor    float64 `yaml:"confirm_floor"`    // below this, a vector match is treated as a miss
	SeedFloor       float64 `yaml:"seed_floor"`       // minimum enrichment confidence to seed
	RecipeDuplicate float64 `yaml:"recipe_duplicate"` // recipe embedding similarity treated as duplicate
}

// DefaultThresholds returns the fixed policy constants.
func DefaultThresholds() Thresholds {
	return Thresholds{
		AutoAccept:      0.85,
		ConfirmFloor:    0.50,
		SeedFloor:       0.60,
		RecipeDuplicate: 0.90,
	}
}

// Gate applies the threshold table.
type Gate struct {
	t Thresholds
}

// New creates a Gate with the given thresholds.
func New(t Thresholds) *Gate {
	return &Gate{t: t}
}

// Thresholds returns the gate's threshold table.
func (g *Gate) Thresholds() Thresholds { return g.t }

// ClassifyMatch decides the outcome of a tiered-match hit. Exact and alias
// hits always auto-accept at confidence 1.0; vector hits auto-accept at or
// above AutoAccept, request confirmation down to ConfirmFloor, and fall
// through to seeding below that.
func (g *Gate) ClassifyMatch(tier string, confidence float64) Decision {
	switch tier {
	case match.TierExact, match.TierAlias:
		return DecisionAccept
	case match.TierVector:
		switch {
		case confidence >= g.t.AutoAccept:
			return DecisionAccept
		case confidence >= g.t.ConfirmFloor:
			return DecisionConfirm
		default:
			return DecisionSeed
		}
	default:
		return DecisionSeed
	}
}

// ClassifyEnrichment decides whether an enrichment draft seeds a new
// catalog item. A missing or unparseable confidence arrives here as 0.0
// and fails closed.
func (g *Gate) ClassifyEnrichment(confidence float64) Decision {
	if confidence >= g.t.SeedFloor {
		return DecisionSeed
	}
	return DecisionReject
}
