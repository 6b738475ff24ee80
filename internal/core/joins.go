package core

import (
	"sort"

	"clientpulse/pkg/domain"
)

// Indexes groups every child collection by its parent foreign key. Slices are
// ordered by CreatedAt then ID so derivation passes are deterministic
// regardless of map iteration order. Missing parents simply have no entry;
// lookups return empty slices.
type Indexes struct {
	EngagementsByAccount    map[string][]Engagement
	WorkstreamsByEngagement map[string][]Workstream
	MilestonesByWorkstream  map[string][]Milestone
	DeliverablesByMilestone map[string][]Deliverable
	OutcomesByEngagement    map[string][]Outcome
	MetricsByOutcome        map[string][]KPIMetric
	SnapshotsByMetric       map[string][]KPISnapshot
	RisksByEngagement       map[string][]RiskIssue
	InvoicesByEngagement    map[string][]Invoice
	StakeholdersByAccount   map[string][]Stakeholder
	// SupportLinks maps outcome ID to the deliverable IDs linked to it.
	SupportLinks map[string][]string
}

// BuildIndexes materializes join indexes from the current view. It is rebuilt
// on every pass; nothing is cached across recomputations.
func BuildIndexes(view RuleView) Indexes {
	idx := Indexes{
		EngagementsByAccount:    map[string][]Engagement{},
		WorkstreamsByEngagement: map[string][]Workstream{},
		MilestonesByWorkstream:  map[string][]Milestone{},
		DeliverablesByMilestone: map[string][]Deliverable{},
		OutcomesByEngagement:    map[string][]Outcome{},
		MetricsByOutcome:        map[string][]KPIMetric{},
		SnapshotsByMetric:       map[string][]KPISnapshot{},
		RisksByEngagement:       map[string][]RiskIssue{},
		InvoicesByEngagement:    map[string][]Invoice{},
		StakeholdersByAccount:   map[string][]Stakeholder{},
		SupportLinks:            map[string][]string{},
	}

	for _, e := range view.ListEngagements() {
		idx.EngagementsByAccount[e.AccountID] = append(idx.EngagementsByAccount[e.AccountID], e)
	}
	for _, w := range view.ListWorkstreams() {
		idx.WorkstreamsByEngagement[w.EngagementID] = append(idx.WorkstreamsByEngagement[w.EngagementID], w)
	}
	for _, m := range view.ListMilestones() {
		idx.MilestonesByWorkstream[m.WorkstreamID] = append(idx.MilestonesByWorkstream[m.WorkstreamID], m)
	}
	for _, d := range view.ListDeliverables() {
		idx.DeliverablesByMilestone[d.MilestoneID] = append(idx.DeliverablesByMilestone[d.MilestoneID], d)
	}
	for _, o := range view.ListOutcomes() {
		idx.OutcomesByEngagement[o.EngagementID] = append(idx.OutcomesByEngagement[o.EngagementID], o)
	}
	for _, m := range view.ListKPIMetrics() {
		idx.MetricsByOutcome[m.OutcomeID] = append(idx.MetricsByOutcome[m.OutcomeID], m)
	}
	for _, s := range view.ListKPISnapshots() {
		idx.SnapshotsByMetric[s.MetricID] = append(idx.SnapshotsByMetric[s.MetricID], s)
	}
	for _, r := range view.ListRiskIssues() {
		idx.RisksByEngagement[r.EngagementID] = append(idx.RisksByEngagement[r.EngagementID], r)
	}
	for _, i := range view.ListInvoices() {
		idx.InvoicesByEngagement[i.EngagementID] = append(idx.InvoicesByEngagement[i.EngagementID], i)
	}
	for _, s := range view.ListStakeholders() {
		idx.StakeholdersByAccount[s.AccountID] = append(idx.StakeholdersByAccount[s.AccountID], s)
	}
	for _, link := range view.ListRelationLinks() {
		if link.LinkType != domain.LinkDeliverableSupportsOutcome {
			continue
		}
		// Links to unknown instances are ignored, not errors.
		if _, ok := view.FindDeliverable(link.FromID); !ok {
			continue
		}
		if _, ok := view.FindOutcome(link.ToID); !ok {
			continue
		}
		idx.SupportLinks[link.ToID] = append(idx.SupportLinks[link.ToID], link.FromID)
	}

	sortByBase(idx.EngagementsByAccount, func(e Engagement) domain.Base { return e.Base })
	sortByBase(idx.WorkstreamsByEngagement, func(w Workstream) domain.Base { return w.Base })
	sortByBase(idx.MilestonesByWorkstream, func(m Milestone) domain.Base { return m.Base })
	sortByBase(idx.DeliverablesByMilestone, func(d Deliverable) domain.Base { return d.Base })
	sortByBase(idx.OutcomesByEngagement, func(o Outcome) domain.Base { return o.Base })
	sortByBase(idx.MetricsByOutcome, func(m KPIMetric) domain.Base { return m.Base })
	sortByBase(idx.SnapshotsByMetric, func(s KPISnapshot) domain.Base { return s.Base })
	sortByBase(idx.RisksByEngagement, func(r RiskIssue) domain.Base { return r.Base })
	sortByBase(idx.InvoicesByEngagement, func(i Invoice) domain.Base { return i.Base })
	sortByBase(idx.StakeholdersByAccount, func(s Stakeholder) domain.Base { return s.Base })
	for _, ids := range idx.SupportLinks {
		sort.Strings(ids)
	}

	return idx
}

func sortByBase[T any](groups map[string][]T, base func(T) domain.Base) {
	for _, group := range groups {
		sort.Slice(group, func(i, j int) bool {
			bi, bj := base(group[i]), base(group[j])
			if !bi.CreatedAt.Equal(bj.CreatedAt) {
				return bi.CreatedAt.Before(bj.CreatedAt)
			}
			return bi.ID < bj.ID
		})
	}
}
