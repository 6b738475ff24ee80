package core

import (
	"math"
	"sort"
	"time"

	"clientpulse/pkg/domain"
)

// accountStage derives the account-level portfolio fields. It reads the
// engagement and outcome values produced by earlier stages from the pass sink.
type accountStage struct{}

func (accountStage) Name() string { return "accounts" }

func (accountStage) Compute(p *Pass) {
	accounts := p.View.ListAccounts()
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
	for _, account := range accounts {
		computeAccountScores(p, account)
	}
}

func computeAccountScores(p *Pass, account Account) {
	engagements := p.Indexes.EngagementsByAccount[account.ID]
	stakeholders := p.Indexes.StakeholdersByAccount[account.ID]

	var healthSum float64
	outcomeCount := 0
	onTrackCount := 0
	milestoneCount := 0
	signedOffCount := 0
	missedCount := 0
	openHighRisks := 0
	overdueInvoices := 0

	for _, engagement := range engagements {
		healthSum += p.Number(domain.EntityEngagement, engagement.ID, domain.FieldEngagementHealth)

		for _, outcome := range p.Indexes.OutcomesByEngagement[engagement.ID] {
			outcomeCount++
			if p.Number(domain.EntityOutcome, outcome.ID, domain.FieldProgressPct) >= p.Policy.OnTrackProgressThreshold {
				onTrackCount++
			}
		}
		for _, m := range engagementMilestones(p, engagement.ID) {
			milestoneCount++
			if m.ClientSignoffDate != nil {
				signedOffCount++
			}
			if m.CompletionDate == nil && m.DueDate.Before(p.Now) {
				missedCount++
			}
		}
		for _, r := range p.Indexes.RisksByEngagement[engagement.ID] {
			if r.Severity == domain.RiskSeverityHigh && r.Status == domain.RiskStatusOpen {
				openHighRisks++
			}
		}
		for _, inv := range p.Indexes.InvoicesByEngagement[engagement.ID] {
			if inv.Overdue(p.Now) {
				overdueInvoices++
			}
		}
	}

	avgHealth := float64(0)
	if len(engagements) > 0 {
		avgHealth = healthSum / float64(len(engagements))
	}
	onTrackShare := float64(0)
	if outcomeCount > 0 {
		onTrackShare = float64(onTrackCount) / float64(outcomeCount)
	}
	signoffShare := float64(0)
	if milestoneCount > 0 {
		signoffShare = float64(signedOffCount) / float64(milestoneCount)
	}
	sentiment := averageSentiment(stakeholders)

	health := roundClamp100(p.Policy.AccountEngagementWeight*avgHealth +
		p.Policy.AccountOnTrackWeight*onTrackShare +
		p.Policy.AccountSignoffWeight*signoffShare +
		p.Policy.AccountSentimentWeight*sentiment)

	p.Emit(domain.EntityAccount, account.ID, domain.FieldAccountHealth, health, Explanation{
		"avg_engagement_health": avgHealth,
		"on_track_share":        onTrackShare,
		"signoff_share":         signoffShare,
		"avg_sentiment":         sentiment,
	})

	sponsorSentiment, sponsorPresent := executiveSponsorSentiment(stakeholders)
	if !sponsorPresent {
		sponsorSentiment = p.Policy.RenewalNeutralSentiment
	}
	renewal := roundClamp100(p.Policy.RenewalOpenHighRiskPoints*float64(openHighRisks) +
		p.Policy.RenewalOverdueInvoicePoints*float64(overdueInvoices) +
		p.Policy.RenewalSponsorSentimentScale*(1-sponsorSentiment) +
		p.Policy.RenewalMissedMilestonePoints*float64(missedCount))

	p.Emit(domain.EntityAccount, account.ID, domain.FieldRenewalRisk, renewal, Explanation{
		"open_high_risks":   float64(openHighRisks),
		"overdue_invoices":  float64(overdueInvoices),
		"sponsor_sentiment": sponsorSentiment,
		"sponsor_present":   sponsorPresent,
		"missed_milestones": float64(missedCount),
	})

	p.Emit(domain.EntityAccount, account.ID, domain.FieldSegmentTag, segmentTag(p.Policy, account.EstimatedLifetimeValue, renewal), Explanation{
		"ltv":           account.EstimatedLifetimeValue,
		"renewal_risk":  renewal,
		"ltv_boundary":  p.Policy.SegmentHighValueLTV,
		"risk_boundary": p.Policy.SegmentHighRiskScore,
	})

	freshness := dataFreshnessDays(p, account, engagements, stakeholders)
	p.Emit(domain.EntityAccount, account.ID, domain.FieldDataFreshnessDays, freshness, Explanation{
		"engagements":  float64(len(engagements)),
		"stakeholders": float64(len(stakeholders)),
	})

	p.Emit(domain.EntityAccount, account.ID, domain.FieldMissingDataFields, missingAccountFields(account), nil)

	churn := roundClamp100(p.Policy.ChurnRenewalWeight*renewal + p.Policy.ChurnHealthWeight*(100-health))
	p.Emit(domain.EntityAccount, account.ID, domain.FieldChurnRisk, churn, Explanation{
		"renewal_risk": renewal,
		"health_score": health,
	})

	p.Emit(domain.EntityAccount, account.ID, domain.FieldLTVAtRisk, account.EstimatedLifetimeValue*churn/100, Explanation{
		"ltv":        account.EstimatedLifetimeValue,
		"churn_risk": churn,
	})
}

func executiveSponsorSentiment(stakeholders []Stakeholder) (float64, bool) {
	var sum float64
	count := 0
	for _, s := range stakeholders {
		if s.Role != domain.RoleExecutiveSponsor {
			continue
		}
		sum += clamp01(s.SentimentScore)
		count++
	}
	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}

func segmentTag(policy DerivationPolicy, ltv, renewalRisk float64) string {
	highValue := ltv > policy.SegmentHighValueLTV
	highRisk := renewalRisk > policy.SegmentHighRiskScore
	switch {
	case highValue && highRisk:
		return "High Value / High Risk"
	case highValue:
		return "High Value / Stable"
	case highRisk:
		return "Growth / High Risk"
	default:
		return "Growth / Stable"
	}
}

// dataFreshnessDays reports whole days since the most recent update across the
// account, its engagements, their milestones, and the account stakeholders.
func dataFreshnessDays(p *Pass, account Account, engagements []Engagement, stakeholders []Stakeholder) float64 {
	latest := account.UpdatedAt
	bump := func(t time.Time) {
		if t.After(latest) {
			latest = t
		}
	}
	for _, e := range engagements {
		bump(e.UpdatedAt)
		for _, m := range engagementMilestones(p, e.ID) {
			bump(m.UpdatedAt)
		}
	}
	for _, s := range stakeholders {
		bump(s.UpdatedAt)
	}
	if latest.IsZero() || latest.After(p.Now) {
		return 0
	}
	return math.Floor(daysBetween(latest, p.Now))
}

// missingAccountFields lists required account fields that are empty, in a
// fixed report order.
func missingAccountFields(account Account) []string {
	missing := make([]string, 0, 4)
	if account.Name == "" {
		missing = append(missing, "name")
	}
	if account.Industry == "" {
		missing = append(missing, "industry")
	}
	if account.Region == "" {
		missing = append(missing, "region")
	}
	if account.RenewalDate == nil {
		missing = append(missing, "renewal_date")
	}
	return missing
}
