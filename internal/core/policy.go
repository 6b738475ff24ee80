package core

// DerivationPolicy collects every weighting constant used by the derivation
// stages so the scoring model reads as one reviewable table instead of
// literals scattered through the stage code.
type DerivationPolicy struct {
	// Outcome confidence blends snapshot coverage against recency decay.
	ConfidenceCoverageWeight float64
	ConfidenceRecencyWeight  float64
	// Snapshots older than this many days contribute zero recency.
	ConfidenceFreshnessDays float64

	// Milestones due within this many days can raise the at-risk flag.
	AtRiskHorizonDays float64

	// Engagement health blend (applied to a 0..1 composite, scaled to 100).
	HealthOnTimeWeight     float64
	HealthConfidenceWeight float64
	HealthSentimentWeight  float64
	// Per-incident penalties subtracted from the scaled engagement score.
	HealthOpenHighRiskPenalty   float64
	HealthOverdueInvoicePenalty float64

	// Milestone confidence weights for the engagement health average.
	ConfidenceWeightHigh    float64
	ConfidenceWeightMedium  float64
	ConfidenceWeightLow     float64
	ConfidenceWeightUnknown float64

	// Account health blend.
	AccountEngagementWeight float64
	AccountOnTrackWeight    float64
	AccountSignoffWeight    float64
	AccountSentimentWeight  float64
	// Outcomes at or above this progress count as on track.
	OnTrackProgressThreshold float64

	// Renewal risk accumulators.
	RenewalOpenHighRiskPoints    float64
	RenewalOverdueInvoicePoints  float64
	RenewalSponsorSentimentScale float64
	RenewalNeutralSentiment      float64
	RenewalMissedMilestonePoints float64

	// Segmentation boundaries.
	SegmentHighValueLTV  float64
	SegmentHighRiskScore float64

	// Churn blend over renewal risk and inverted health.
	ChurnRenewalWeight float64
	ChurnHealthWeight  float64
}

// DefaultDerivationPolicy returns the documented scoring model.
func DefaultDerivationPolicy() DerivationPolicy {
	return DerivationPolicy{
		ConfidenceCoverageWeight: 0.6,
		ConfidenceRecencyWeight:  0.4,
		ConfidenceFreshnessDays:  45,

		AtRiskHorizonDays: 14,

		HealthOnTimeWeight:          0.40,
		HealthConfidenceWeight:      0.30,
		HealthSentimentWeight:       0.30,
		HealthOpenHighRiskPenalty:   8,
		HealthOverdueInvoicePenalty: 5,

		ConfidenceWeightHigh:    1.0,
		ConfidenceWeightMedium:  0.6,
		ConfidenceWeightLow:     0.3,
		ConfidenceWeightUnknown: 0.5,

		AccountEngagementWeight: 0.45,
		AccountOnTrackWeight:    20,
		AccountSignoffWeight:    15,
		AccountSentimentWeight:  20,

		OnTrackProgressThreshold: 0.6,

		RenewalOpenHighRiskPoints:    15,
		RenewalOverdueInvoicePoints:  10,
		RenewalSponsorSentimentScale: 30,
		RenewalNeutralSentiment:      0.5,
		RenewalMissedMilestonePoints: 8,

		SegmentHighValueLTV:  5_000_000,
		SegmentHighRiskScore: 60,

		ChurnRenewalWeight: 0.6,
		ChurnHealthWeight:  0.4,
	}
}
