package memory

import "sort"

type memoryState struct {
	accounts     map[string]Account
	engagements  map[string]Engagement
	workstreams  map[string]Workstream
	milestones   map[string]Milestone
	deliverables map[string]Deliverable
	outcomes     map[string]Outcome
	metrics      map[string]KPIMetric
	snapshots    map[string]KPISnapshot
	risks        map[string]RiskIssue
	invoices     map[string]Invoice
	stakeholders map[string]Stakeholder
	links        map[string]RelationLink
	derived      *DerivedStore
}

// Snapshot captures a point-in-time clone of the store state, including the
// derived-value collection so the whole application state persists as one blob.
type Snapshot struct {
	Accounts     map[string]Account     `json:"accounts"`
	Engagements  map[string]Engagement  `json:"engagements"`
	Workstreams  map[string]Workstream  `json:"workstreams"`
	Milestones   map[string]Milestone   `json:"milestones"`
	Deliverables map[string]Deliverable `json:"deliverables"`
	Outcomes     map[string]Outcome     `json:"outcomes"`
	Metrics      map[string]KPIMetric   `json:"kpi_metrics"`
	Snapshots    map[string]KPISnapshot `json:"kpi_snapshots"`
	Risks        map[string]RiskIssue   `json:"risk_issues"`
	Invoices     map[string]Invoice     `json:"invoices"`
	Stakeholders map[string]Stakeholder `json:"stakeholders"`
	Links        []RelationLink         `json:"relation_links"`
	Derived      *DerivedStore          `json:"derived_values"`
}

func newMemoryState() memoryState {
	return memoryState{
		accounts:     make(map[string]Account),
		engagements:  make(map[string]Engagement),
		workstreams:  make(map[string]Workstream),
		milestones:   make(map[string]Milestone),
		deliverables: make(map[string]Deliverable),
		outcomes:     make(map[string]Outcome),
		metrics:      make(map[string]KPIMetric),
		snapshots:    make(map[string]KPISnapshot),
		risks:        make(map[string]RiskIssue),
		invoices:     make(map[string]Invoice),
		stakeholders: make(map[string]Stakeholder),
		links:        make(map[string]RelationLink),
		derived:      domainNewDerivedStore(),
	}
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	s := Snapshot{
		Accounts:     make(map[string]Account, len(state.accounts)),
		Engagements:  make(map[string]Engagement, len(state.engagements)),
		Workstreams:  make(map[string]Workstream, len(state.workstreams)),
		Milestones:   make(map[string]Milestone, len(state.milestones)),
		Deliverables: make(map[string]Deliverable, len(state.deliverables)),
		Outcomes:     make(map[string]Outcome, len(state.outcomes)),
		Metrics:      make(map[string]KPIMetric, len(state.metrics)),
		Snapshots:    make(map[string]KPISnapshot, len(state.snapshots)),
		Risks:        make(map[string]RiskIssue, len(state.risks)),
		Invoices:     make(map[string]Invoice, len(state.invoices)),
		Stakeholders: make(map[string]Stakeholder, len(state.stakeholders)),
		Derived:      state.derived.Clone(),
	}
	for k, v := range state.accounts {
		s.Accounts[k] = v
	}
	for k, v := range state.engagements {
		s.Engagements[k] = v
	}
	for k, v := range state.workstreams {
		s.Workstreams[k] = v
	}
	for k, v := range state.milestones {
		s.Milestones[k] = v
	}
	for k, v := range state.deliverables {
		s.Deliverables[k] = v
	}
	for k, v := range state.outcomes {
		s.Outcomes[k] = v
	}
	for k, v := range state.metrics {
		s.Metrics[k] = v
	}
	for k, v := range state.snapshots {
		s.Snapshots[k] = v
	}
	for k, v := range state.risks {
		s.Risks[k] = v
	}
	for k, v := range state.invoices {
		s.Invoices[k] = v
	}
	for k, v := range state.stakeholders {
		s.Stakeholders[k] = v
	}
	s.Links = sortedLinks(state.links)
	return s
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for k, v := range s.Accounts {
		state.accounts[k] = v
	}
	for k, v := range s.Engagements {
		state.engagements[k] = v
	}
	for k, v := range s.Workstreams {
		state.workstreams[k] = v
	}
	for k, v := range s.Milestones {
		state.milestones[k] = v
	}
	for k, v := range s.Deliverables {
		state.deliverables[k] = v
	}
	for k, v := range s.Outcomes {
		state.outcomes[k] = v
	}
	for k, v := range s.Metrics {
		state.metrics[k] = v
	}
	for k, v := range s.Snapshots {
		state.snapshots[k] = v
	}
	for k, v := range s.Risks {
		state.risks[k] = v
	}
	for k, v := range s.Invoices {
		state.invoices[k] = v
	}
	for k, v := range s.Stakeholders {
		state.stakeholders[k] = v
	}
	for _, link := range s.Links {
		state.links[link.ID] = link
	}
	if s.Derived != nil {
		state.derived = s.Derived.Clone()
	}
	return state
}

// migrateSnapshot normalizes a snapshot loaded from external storage: nil maps
// become empty, children whose parent no longer exists are dropped, and links
// with unknown types or dangling endpoints are removed. The engine is
// permissive about bad records at read time; the migrate pass keeps the store
// itself consistent.
func migrateSnapshot(snapshot Snapshot) Snapshot {
	if snapshot.Accounts == nil {
		snapshot.Accounts = map[string]Account{}
	}
	if snapshot.Engagements == nil {
		snapshot.Engagements = map[string]Engagement{}
	}
	if snapshot.Workstreams == nil {
		snapshot.Workstreams = map[string]Workstream{}
	}
	if snapshot.Milestones == nil {
		snapshot.Milestones = map[string]Milestone{}
	}
	if snapshot.Deliverables == nil {
		snapshot.Deliverables = map[string]Deliverable{}
	}
	if snapshot.Outcomes == nil {
		snapshot.Outcomes = map[string]Outcome{}
	}
	if snapshot.Metrics == nil {
		snapshot.Metrics = map[string]KPIMetric{}
	}
	if snapshot.Snapshots == nil {
		snapshot.Snapshots = map[string]KPISnapshot{}
	}
	if snapshot.Risks == nil {
		snapshot.Risks = map[string]RiskIssue{}
	}
	if snapshot.Invoices == nil {
		snapshot.Invoices = map[string]Invoice{}
	}
	if snapshot.Stakeholders == nil {
		snapshot.Stakeholders = map[string]Stakeholder{}
	}
	if snapshot.Derived == nil {
		snapshot.Derived = domainNewDerivedStore()
	}

	accountExists := func(id string) bool {
		_, ok := snapshot.Accounts[id]
		return ok
	}
	engagementExists := func(id string) bool {
		_, ok := snapshot.Engagements[id]
		return ok
	}
	workstreamExists := func(id string) bool {
		_, ok := snapshot.Workstreams[id]
		return ok
	}
	milestoneExists := func(id string) bool {
		_, ok := snapshot.Milestones[id]
		return ok
	}
	outcomeExists := func(id string) bool {
		_, ok := snapshot.Outcomes[id]
		return ok
	}
	metricExists := func(id string) bool {
		_, ok := snapshot.Metrics[id]
		return ok
	}
	deliverableExists := func(id string) bool {
		_, ok := snapshot.Deliverables[id]
		return ok
	}

	// Orphan removal cascades top-down so grandchildren of a dropped parent
	// are caught in the same pass.
	for id, engagement := range snapshot.Engagements {
		if engagement.AccountID == "" || !accountExists(engagement.AccountID) {
			delete(snapshot.Engagements, id)
		}
	}
	for id, workstream := range snapshot.Workstreams {
		if workstream.EngagementID == "" || !engagementExists(workstream.EngagementID) {
			delete(snapshot.Workstreams, id)
		}
	}
	for id, milestone := range snapshot.Milestones {
		if milestone.WorkstreamID == "" || !workstreamExists(milestone.WorkstreamID) {
			delete(snapshot.Milestones, id)
		}
	}
	for id, deliverable := range snapshot.Deliverables {
		if deliverable.MilestoneID == "" || !milestoneExists(deliverable.MilestoneID) {
			delete(snapshot.Deliverables, id)
		}
	}
	for id, outcome := range snapshot.Outcomes {
		if outcome.EngagementID == "" || !engagementExists(outcome.EngagementID) {
			delete(snapshot.Outcomes, id)
		}
	}
	for id, metric := range snapshot.Metrics {
		if metric.OutcomeID == "" || !outcomeExists(metric.OutcomeID) {
			delete(snapshot.Metrics, id)
		}
	}
	for id, snap := range snapshot.Snapshots {
		if snap.MetricID == "" || !metricExists(snap.MetricID) {
			delete(snapshot.Snapshots, id)
		}
	}
	for id, risk := range snapshot.Risks {
		if risk.EngagementID == "" || !engagementExists(risk.EngagementID) {
			delete(snapshot.Risks, id)
		}
	}
	for id, invoice := range snapshot.Invoices {
		if invoice.EngagementID == "" || !engagementExists(invoice.EngagementID) {
			delete(snapshot.Invoices, id)
		}
	}
	for id, stakeholder := range snapshot.Stakeholders {
		if stakeholder.AccountID == "" || !accountExists(stakeholder.AccountID) {
			delete(snapshot.Stakeholders, id)
		}
	}

	kept := snapshot.Links[:0]
	for _, link := range snapshot.Links {
		fromType, toType := link.LinkType.Endpoints()
		if fromType == "" || toType == "" {
			continue
		}
		if !linkEndpointExists(snapshot, fromType, link.FromID) {
			continue
		}
		if !linkEndpointExists(snapshot, toType, link.ToID) {
			continue
		}
		if fromType == EntityDeliverable && !deliverableExists(link.FromID) {
			continue
		}
		kept = append(kept, link)
	}
	snapshot.Links = kept

	return snapshot
}

func linkEndpointExists(s Snapshot, entity EntityType, id string) bool {
	switch entity {
	case EntityDeliverable:
		_, ok := s.Deliverables[id]
		return ok
	case EntityOutcome:
		_, ok := s.Outcomes[id]
		return ok
	default:
		return false
	}
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for k, v := range s.accounts {
		cloned.accounts[k] = v
	}
	for k, v := range s.engagements {
		cloned.engagements[k] = v
	}
	for k, v := range s.workstreams {
		cloned.workstreams[k] = v
	}
	for k, v := range s.milestones {
		cloned.milestones[k] = v
	}
	for k, v := range s.deliverables {
		cloned.deliverables[k] = v
	}
	for k, v := range s.outcomes {
		cloned.outcomes[k] = v
	}
	for k, v := range s.metrics {
		cloned.metrics[k] = v
	}
	for k, v := range s.snapshots {
		cloned.snapshots[k] = v
	}
	for k, v := range s.risks {
		cloned.risks[k] = v
	}
	for k, v := range s.invoices {
		cloned.invoices[k] = v
	}
	for k, v := range s.stakeholders {
		cloned.stakeholders[k] = v
	}
	for k, v := range s.links {
		cloned.links[k] = v
	}
	cloned.derived = s.derived.Clone()
	return cloned
}

func sortedLinks(links map[string]RelationLink) []RelationLink {
	out := make([]RelationLink, 0, len(links))
	for _, link := range links {
		out = append(out, link)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
