package memory

import (
	"clientpulse/pkg/domain"
	"errors"
	"fmt"
	"time"
)

// transaction represents a mutation set applied to the store state.
type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

// transactionView exposes a read-only snapshot of the transactional state.
type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) RuleView {
	return transactionView{state: state}
}

func (v transactionView) ListAccounts() []Account {
	out := make([]Account, 0, len(v.state.accounts))
	for _, a := range v.state.accounts {
		out = append(out, a)
	}
	return out
}

func (v transactionView) ListEngagements() []Engagement {
	out := make([]Engagement, 0, len(v.state.engagements))
	for _, e := range v.state.engagements {
		out = append(out, e)
	}
	return out
}

func (v transactionView) ListWorkstreams() []Workstream {
	out := make([]Workstream, 0, len(v.state.workstreams))
	for _, w := range v.state.workstreams {
		out = append(out, w)
	}
	return out
}

func (v transactionView) ListMilestones() []Milestone {
	out := make([]Milestone, 0, len(v.state.milestones))
	for _, m := range v.state.milestones {
		out = append(out, m)
	}
	return out
}

func (v transactionView) ListDeliverables() []Deliverable {
	out := make([]Deliverable, 0, len(v.state.deliverables))
	for _, d := range v.state.deliverables {
		out = append(out, d)
	}
	return out
}

func (v transactionView) ListOutcomes() []Outcome {
	out := make([]Outcome, 0, len(v.state.outcomes))
	for _, o := range v.state.outcomes {
		out = append(out, o)
	}
	return out
}

func (v transactionView) ListKPIMetrics() []KPIMetric {
	out := make([]KPIMetric, 0, len(v.state.metrics))
	for _, m := range v.state.metrics {
		out = append(out, m)
	}
	return out
}

func (v transactionView) ListKPISnapshots() []KPISnapshot {
	out := make([]KPISnapshot, 0, len(v.state.snapshots))
	for _, s := range v.state.snapshots {
		out = append(out, s)
	}
	return out
}

func (v transactionView) ListRiskIssues() []RiskIssue {
	out := make([]RiskIssue, 0, len(v.state.risks))
	for _, r := range v.state.risks {
		out = append(out, r)
	}
	return out
}

func (v transactionView) ListInvoices() []Invoice {
	out := make([]Invoice, 0, len(v.state.invoices))
	for _, i := range v.state.invoices {
		out = append(out, i)
	}
	return out
}

func (v transactionView) ListStakeholders() []Stakeholder {
	out := make([]Stakeholder, 0, len(v.state.stakeholders))
	for _, s := range v.state.stakeholders {
		out = append(out, s)
	}
	return out
}

func (v transactionView) ListRelationLinks() []RelationLink {
	return sortedLinks(v.state.links)
}

func (v transactionView) FindAccount(id string) (Account, bool) {
	a, ok := v.state.accounts[id]
	return a, ok
}

func (v transactionView) FindEngagement(id string) (Engagement, bool) {
	e, ok := v.state.engagements[id]
	return e, ok
}

func (v transactionView) FindWorkstream(id string) (Workstream, bool) {
	w, ok := v.state.workstreams[id]
	return w, ok
}

func (v transactionView) FindMilestone(id string) (Milestone, bool) {
	m, ok := v.state.milestones[id]
	return m, ok
}

func (v transactionView) FindDeliverable(id string) (Deliverable, bool) {
	d, ok := v.state.deliverables[id]
	return d, ok
}

func (v transactionView) FindOutcome(id string) (Outcome, bool) {
	o, ok := v.state.outcomes[id]
	return o, ok
}

func (v transactionView) FindKPIMetric(id string) (KPIMetric, bool) {
	m, ok := v.state.metrics[id]
	return m, ok
}

func (v transactionView) FindStakeholder(id string) (Stakeholder, bool) {
	s, ok := v.state.stakeholders[id]
	return s, ok
}

// helper to record and append change entries.
func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() RuleView {
	return newTransactionView(&tx.state)
}

// CreateAccount stores a new client account.
func (tx *transaction) CreateAccount(a Account) (Account, error) {
	if a.ID == "" {
		a.ID = tx.store.newID()
	}
	if _, exists := tx.state.accounts[a.ID]; exists {
		return Account{}, fmt.Errorf("client account %q already exists", a.ID)
	}
	a.CreatedAt = tx.now
	a.UpdatedAt = tx.now
	tx.state.accounts[a.ID] = a
	tx.recordChange(Change{Entity: domain.EntityAccount, Action: domain.ActionCreate, After: a})
	return a, nil
}

// UpdateAccount mutates an account using the provided mutator function.
func (tx *transaction) UpdateAccount(id string, mutator func(*Account) error) (Account, error) {
	current, ok := tx.state.accounts[id]
	if !ok {
		return Account{}, fmt.Errorf("client account %q not found", id)
	}
	before := current
	if err := mutator(&current); err != nil {
		return Account{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.accounts[id] = current
	tx.recordChange(Change{Entity: domain.EntityAccount, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteAccount removes an account; children must be deleted first.
func (tx *transaction) DeleteAccount(id string) error {
	current, ok := tx.state.accounts[id]
	if !ok {
		return fmt.Errorf("client account %q not found", id)
	}
	for _, engagement := range tx.state.engagements {
		if engagement.AccountID == id {
			return fmt.Errorf("client account %q still referenced by engagement %q", id, engagement.ID)
		}
	}
	for _, stakeholder := range tx.state.stakeholders {
		if stakeholder.AccountID == id {
			return fmt.Errorf("client account %q still referenced by stakeholder %q", id, stakeholder.ID)
		}
	}
	delete(tx.state.accounts, id)
	tx.recordChange(Change{Entity: domain.EntityAccount, Action: domain.ActionDelete, Before: current})
	return nil
}

// CreateEngagement stores a new engagement under an existing account.
func (tx *transaction) CreateEngagement(e Engagement) (Engagement, error) {
	if e.ID == "" {
		e.ID = tx.store.newID()
	}
	if _, exists := tx.state.engagements[e.ID]; exists {
		return Engagement{}, fmt.Errorf("engagement %q already exists", e.ID)
	}
	if e.AccountID == "" {
		return Engagement{}, errors.New("engagement requires account id")
	}
	if _, ok := tx.state.accounts[e.AccountID]; !ok {
		return Engagement{}, fmt.Errorf("client account %q not found", e.AccountID)
	}
	e.CreatedAt = tx.now
	e.UpdatedAt = tx.now
	tx.state.engagements[e.ID] = e
	tx.recordChange(Change{Entity: domain.EntityEngagement, Action: domain.ActionCreate, After: e})
	return e, nil
}

// UpdateEngagement mutates an engagement.
func (tx *transaction) UpdateEngagement(id string, mutator func(*Engagement) error) (Engagement, error) {
	current, ok := tx.state.engagements[id]
	if !ok {
		return Engagement{}, fmt.Errorf("engagement %q not found", id)
	}
	before := current
	if err := mutator(&current); err != nil {
		return Engagement{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.engagements[id] = current
	tx.recordChange(Change{Entity: domain.EntityEngagement, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteEngagement removes an engagement; children must be deleted first.
func (tx *transaction) DeleteEngagement(id string) error {
	current, ok := tx.state.engagements[id]
	if !ok {
		return fmt.Errorf("engagement %q not found", id)
	}
	for _, workstream := range tx.state.workstreams {
		if workstream.EngagementID == id {
			return fmt.Errorf("engagement %q still referenced by workstream %q", id, workstream.ID)
		}
	}
	for _, outcome := range tx.state.outcomes {
		if outcome.EngagementID == id {
			return fmt.Errorf("engagement %q still referenced by outcome %q", id, outcome.ID)
		}
	}
	for _, risk := range tx.state.risks {
		if risk.EngagementID == id {
			return fmt.Errorf("engagement %q still referenced by risk %q", id, risk.ID)
		}
	}
	for _, invoice := range tx.state.invoices {
		if invoice.EngagementID == id {
			return fmt.Errorf("engagement %q still referenced by invoice %q", id, invoice.ID)
		}
	}
	delete(tx.state.engagements, id)
	tx.recordChange(Change{Entity: domain.EntityEngagement, Action: domain.ActionDelete, Before: current})
	return nil
}

// CreateWorkstream stores a workstream under an existing engagement.
func (tx *transaction) CreateWorkstream(w Workstream) (Workstream, error) {
	if w.ID == "" {
		w.ID = tx.store.newID()
	}
	if _, exists := tx.state.workstreams[w.ID]; exists {
		return Workstream{}, fmt.Errorf("workstream %q already exists", w.ID)
	}
	if w.EngagementID == "" {
		return Workstream{}, errors.New("workstream requires engagement id")
	}
	if _, ok := tx.state.engagements[w.EngagementID]; !ok {
		return Workstream{}, fmt.Errorf("engagement %q not found", w.EngagementID)
	}
	w.CreatedAt = tx.now
	w.UpdatedAt = tx.now
	tx.state.workstreams[w.ID] = w
	tx.recordChange(Change{Entity: domain.EntityWorkstream, Action: domain.ActionCreate, After: w})
	return w, nil
}

// UpdateWorkstream mutates a workstream.
func (tx *transaction) UpdateWorkstream(id string, mutator func(*Workstream) error) (Workstream, error) {
	current, ok := tx.state.workstreams[id]
	if !ok {
		return Workstream{}, fmt.Errorf("workstream %q not found", id)
	}
	before := current
	if err := mutator(&current); err != nil {
		return Workstream{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.workstreams[id] = current
	tx.recordChange(Change{Entity: domain.EntityWorkstream, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteWorkstream removes a workstream; milestones must be deleted first.
func (tx *transaction) DeleteWorkstream(id string) error {
	current, ok := tx.state.workstreams[id]
	if !ok {
		return fmt.Errorf("workstream %q not found", id)
	}
	for _, milestone := range tx.state.milestones {
		if milestone.WorkstreamID == id {
			return fmt.Errorf("workstream %q still referenced by milestone %q", id, milestone.ID)
		}
	}
	delete(tx.state.workstreams, id)
	tx.recordChange(Change{Entity: domain.EntityWorkstream, Action: domain.ActionDelete, Before: current})
	return nil
}

// CreateMilestone stores a milestone under an existing workstream.
func (tx *transaction) CreateMilestone(m Milestone) (Milestone, error) {
	if m.ID == "" {
		m.ID = tx.store.newID()
	}
	if _, exists := tx.state.milestones[m.ID]; exists {
		return Milestone{}, fmt.Errorf("milestone %q already exists", m.ID)
	}
	if m.WorkstreamID == "" {
		return Milestone{}, errors.New("milestone requires workstream id")
	}
	if _, ok := tx.state.workstreams[m.WorkstreamID]; !ok {
		return Milestone{}, fmt.Errorf("workstream %q not found", m.WorkstreamID)
	}
	m.CreatedAt = tx.now
	m.UpdatedAt = tx.now
	tx.state.milestones[m.ID] = m
	tx.recordChange(Change{Entity: domain.EntityMilestone, Action: domain.ActionCreate, After: m})
	return m, nil
}

// UpdateMilestone mutates a milestone.
func (tx *transaction) UpdateMilestone(id string, mutator func(*Milestone) error) (Milestone, error) {
	current, ok := tx.state.milestones[id]
	if !ok {
		return Milestone{}, fmt.Errorf("milestone %q not found", id)
	}
	before := current
	if err := mutator(&current); err != nil {
		return Milestone{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.milestones[id] = current
	tx.recordChange(Change{Entity: domain.EntityMilestone, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteMilestone removes a milestone; deliverables must be deleted first.
func (tx *transaction) DeleteMilestone(id string) error {
	current, ok := tx.state.milestones[id]
	if !ok {
		return fmt.Errorf("milestone %q not found", id)
	}
	for _, deliverable := range tx.state.deliverables {
		if deliverable.MilestoneID == id {
			return fmt.Errorf("milestone %q still referenced by deliverable %q", id, deliverable.ID)
		}
	}
	delete(tx.state.milestones, id)
	tx.recordChange(Change{Entity: domain.EntityMilestone, Action: domain.ActionDelete, Before: current})
	return nil
}

// CreateDeliverable stores a deliverable under an existing milestone.
func (tx *transaction) CreateDeliverable(d Deliverable) (Deliverable, error) {
	if d.ID == "" {
		d.ID = tx.store.newID()
	}
	if _, exists := tx.state.deliverables[d.ID]; exists {
		return Deliverable{}, fmt.Errorf("deliverable %q already exists", d.ID)
	}
	if d.MilestoneID == "" {
		return Deliverable{}, errors.New("deliverable requires milestone id")
	}
	if _, ok := tx.state.milestones[d.MilestoneID]; !ok {
		return Deliverable{}, fmt.Errorf("milestone %q not found", d.MilestoneID)
	}
	d.CreatedAt = tx.now
	d.UpdatedAt = tx.now
	tx.state.deliverables[d.ID] = d
	tx.recordChange(Change{Entity: domain.EntityDeliverable, Action: domain.ActionCreate, After: d})
	return d, nil
}

// UpdateDeliverable mutates a deliverable.
func (tx *transaction) UpdateDeliverable(id string, mutator func(*Deliverable) error) (Deliverable, error) {
	current, ok := tx.state.deliverables[id]
	if !ok {
		return Deliverable{}, fmt.Errorf("deliverable %q not found", id)
	}
	before := current
	if err := mutator(&current); err != nil {
		return Deliverable{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.deliverables[id] = current
	tx.recordChange(Change{Entity: domain.EntityDeliverable, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteDeliverable removes a deliverable and any relation links touching it.
func (tx *transaction) DeleteDeliverable(id string) error {
	current, ok := tx.state.deliverables[id]
	if !ok {
		return fmt.Errorf("deliverable %q not found", id)
	}
	delete(tx.state.deliverables, id)
	tx.dropLinksTouching(id)
	tx.recordChange(Change{Entity: domain.EntityDeliverable, Action: domain.ActionDelete, Before: current})
	return nil
}

// CreateOutcome stores an outcome under an existing engagement.
func (tx *transaction) CreateOutcome(o Outcome) (Outcome, error) {
	if o.ID == "" {
		o.ID = tx.store.newID()
	}
	if _, exists := tx.state.outcomes[o.ID]; exists {
		return Outcome{}, fmt.Errorf("outcome %q already exists", o.ID)
	}
	if o.EngagementID == "" {
		return Outcome{}, errors.New("outcome requires engagement id")
	}
	if _, ok := tx.state.engagements[o.EngagementID]; !ok {
		return Outcome{}, fmt.Errorf("engagement %q not found", o.EngagementID)
	}
	o.CreatedAt = tx.now
	o.UpdatedAt = tx.now
	tx.state.outcomes[o.ID] = o
	tx.recordChange(Change{Entity: domain.EntityOutcome, Action: domain.ActionCreate, After: o})
	return o, nil
}

// UpdateOutcome mutates an outcome.
func (tx *transaction) UpdateOutcome(id string, mutator func(*Outcome) error) (Outcome, error) {
	current, ok := tx.state.outcomes[id]
	if !ok {
		return Outcome{}, fmt.Errorf("outcome %q not found", id)
	}
	before := current
	if err := mutator(&current); err != nil {
		return Outcome{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.outcomes[id] = current
	tx.recordChange(Change{Entity: domain.EntityOutcome, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteOutcome removes an outcome; metrics must be deleted first. Relation
// links pointing at the outcome are dropped with it.
func (tx *transaction) DeleteOutcome(id string) error {
	current, ok := tx.state.outcomes[id]
	if !ok {
		return fmt.Errorf("outcome %q not found", id)
	}
	for _, metric := range tx.state.metrics {
		if metric.OutcomeID == id {
			return fmt.Errorf("outcome %q still referenced by kpi metric %q", id, metric.ID)
		}
	}
	delete(tx.state.outcomes, id)
	tx.dropLinksTouching(id)
	tx.recordChange(Change{Entity: domain.EntityOutcome, Action: domain.ActionDelete, Before: current})
	return nil
}

// CreateKPIMetric stores a metric definition under an existing outcome.
func (tx *transaction) CreateKPIMetric(m KPIMetric) (KPIMetric, error) {
	if m.ID == "" {
		m.ID = tx.store.newID()
	}
	if _, exists := tx.state.metrics[m.ID]; exists {
		return KPIMetric{}, fmt.Errorf("kpi metric %q already exists", m.ID)
	}
	if m.OutcomeID == "" {
		return KPIMetric{}, errors.New("kpi metric requires outcome id")
	}
	if _, ok := tx.state.outcomes[m.OutcomeID]; !ok {
		return KPIMetric{}, fmt.Errorf("outcome %q not found", m.OutcomeID)
	}
	m.CreatedAt = tx.now
	m.UpdatedAt = tx.now
	tx.state.metrics[m.ID] = m
	tx.recordChange(Change{Entity: domain.EntityKPIMetric, Action: domain.ActionCreate, After: m})
	return m, nil
}

// UpdateKPIMetric mutates a metric definition.
func (tx *transaction) UpdateKPIMetric(id string, mutator func(*KPIMetric) error) (KPIMetric, error) {
	current, ok := tx.state.metrics[id]
	if !ok {
		return KPIMetric{}, fmt.Errorf("kpi metric %q not found", id)
	}
	before := current
	if err := mutator(&current); err != nil {
		return KPIMetric{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.metrics[id] = current
	tx.recordChange(Change{Entity: domain.EntityKPIMetric, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteKPIMetric removes a metric; snapshots must be deleted first.
func (tx *transaction) DeleteKPIMetric(id string) error {
	current, ok := tx.state.metrics[id]
	if !ok {
		return fmt.Errorf("kpi metric %q not found", id)
	}
	for _, snap := range tx.state.snapshots {
		if snap.MetricID == id {
			return fmt.Errorf("kpi metric %q still referenced by snapshot %q", id, snap.ID)
		}
	}
	delete(tx.state.metrics, id)
	tx.recordChange(Change{Entity: domain.EntityKPIMetric, Action: domain.ActionDelete, Before: current})
	return nil
}

// CreateKPISnapshot stores an observation for an existing metric. Snapshots
// are append-only: they record history, so there is no update operation.
func (tx *transaction) CreateKPISnapshot(s KPISnapshot) (KPISnapshot, error) {
	if s.ID == "" {
		s.ID = tx.store.newID()
	}
	if _, exists := tx.state.snapshots[s.ID]; exists {
		return KPISnapshot{}, fmt.Errorf("kpi snapshot %q already exists", s.ID)
	}
	if s.MetricID == "" {
		return KPISnapshot{}, errors.New("kpi snapshot requires metric id")
	}
	if _, ok := tx.state.metrics[s.MetricID]; !ok {
		return KPISnapshot{}, fmt.Errorf("kpi metric %q not found", s.MetricID)
	}
	if s.ObservedAt.IsZero() {
		s.ObservedAt = tx.now
	}
	s.CreatedAt = tx.now
	s.UpdatedAt = tx.now
	tx.state.snapshots[s.ID] = s
	tx.recordChange(Change{Entity: domain.EntityKPISnapshot, Action: domain.ActionCreate, After: s})
	return s, nil
}

// DeleteKPISnapshot removes an observation.
func (tx *transaction) DeleteKPISnapshot(id string) error {
	current, ok := tx.state.snapshots[id]
	if !ok {
		return fmt.Errorf("kpi snapshot %q not found", id)
	}
	delete(tx.state.snapshots, id)
	tx.recordChange(Change{Entity: domain.EntityKPISnapshot, Action: domain.ActionDelete, Before: current})
	return nil
}

// CreateRiskIssue stores a risk under an existing engagement.
func (tx *transaction) CreateRiskIssue(r RiskIssue) (RiskIssue, error) {
	if r.ID == "" {
		r.ID = tx.store.newID()
	}
	if _, exists := tx.state.risks[r.ID]; exists {
		return RiskIssue{}, fmt.Errorf("risk %q already exists", r.ID)
	}
	if r.EngagementID == "" {
		return RiskIssue{}, errors.New("risk requires engagement id")
	}
	if _, ok := tx.state.engagements[r.EngagementID]; !ok {
		return RiskIssue{}, fmt.Errorf("engagement %q not found", r.EngagementID)
	}
	if r.RaisedAt.IsZero() {
		r.RaisedAt = tx.now
	}
	r.CreatedAt = tx.now
	r.UpdatedAt = tx.now
	tx.state.risks[r.ID] = r
	tx.recordChange(Change{Entity: domain.EntityRiskIssue, Action: domain.ActionCreate, After: r})
	return r, nil
}

// UpdateRiskIssue mutates a risk.
func (tx *transaction) UpdateRiskIssue(id string, mutator func(*RiskIssue) error) (RiskIssue, error) {
	current, ok := tx.state.risks[id]
	if !ok {
		return RiskIssue{}, fmt.Errorf("risk %q not found", id)
	}
	before := current
	if err := mutator(&current); err != nil {
		return RiskIssue{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.risks[id] = current
	tx.recordChange(Change{Entity: domain.EntityRiskIssue, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteRiskIssue removes a risk.
func (tx *transaction) DeleteRiskIssue(id string) error {
	current, ok := tx.state.risks[id]
	if !ok {
		return fmt.Errorf("risk %q not found", id)
	}
	delete(tx.state.risks, id)
	tx.recordChange(Change{Entity: domain.EntityRiskIssue, Action: domain.ActionDelete, Before: current})
	return nil
}

// CreateInvoice stores an invoice under an existing engagement.
func (tx *transaction) CreateInvoice(i Invoice) (Invoice, error) {
	if i.ID == "" {
		i.ID = tx.store.newID()
	}
	if _, exists := tx.state.invoices[i.ID]; exists {
		return Invoice{}, fmt.Errorf("invoice %q already exists", i.ID)
	}
	if i.EngagementID == "" {
		return Invoice{}, errors.New("invoice requires engagement id")
	}
	if _, ok := tx.state.engagements[i.EngagementID]; !ok {
		return Invoice{}, fmt.Errorf("engagement %q not found", i.EngagementID)
	}
	if i.IssuedAt.IsZero() {
		i.IssuedAt = tx.now
	}
	i.CreatedAt = tx.now
	i.UpdatedAt = tx.now
	tx.state.invoices[i.ID] = i
	tx.recordChange(Change{Entity: domain.EntityInvoice, Action: domain.ActionCreate, After: i})
	return i, nil
}

// UpdateInvoice mutates an invoice.
func (tx *transaction) UpdateInvoice(id string, mutator func(*Invoice) error) (Invoice, error) {
	current, ok := tx.state.invoices[id]
	if !ok {
		return Invoice{}, fmt.Errorf("invoice %q not found", id)
	}
	before := current
	if err := mutator(&current); err != nil {
		return Invoice{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.invoices[id] = current
	tx.recordChange(Change{Entity: domain.EntityInvoice, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteInvoice removes an invoice.
func (tx *transaction) DeleteInvoice(id string) error {
	current, ok := tx.state.invoices[id]
	if !ok {
		return fmt.Errorf("invoice %q not found", id)
	}
	delete(tx.state.invoices, id)
	tx.recordChange(Change{Entity: domain.EntityInvoice, Action: domain.ActionDelete, Before: current})
	return nil
}

// CreateStakeholder stores a stakeholder under an existing account.
func (tx *transaction) CreateStakeholder(s Stakeholder) (Stakeholder, error) {
	if s.ID == "" {
		s.ID = tx.store.newID()
	}
	if _, exists := tx.state.stakeholders[s.ID]; exists {
		return Stakeholder{}, fmt.Errorf("stakeholder %q already exists", s.ID)
	}
	if s.AccountID == "" {
		return Stakeholder{}, errors.New("stakeholder requires account id")
	}
	if _, ok := tx.state.accounts[s.AccountID]; !ok {
		return Stakeholder{}, fmt.Errorf("client account %q not found", s.AccountID)
	}
	s.CreatedAt = tx.now
	s.UpdatedAt = tx.now
	tx.state.stakeholders[s.ID] = s
	tx.recordChange(Change{Entity: domain.EntityStakeholder, Action: domain.ActionCreate, After: s})
	return s, nil
}

// UpdateStakeholder mutates a stakeholder.
func (tx *transaction) UpdateStakeholder(id string, mutator func(*Stakeholder) error) (Stakeholder, error) {
	current, ok := tx.state.stakeholders[id]
	if !ok {
		return Stakeholder{}, fmt.Errorf("stakeholder %q not found", id)
	}
	before := current
	if err := mutator(&current); err != nil {
		return Stakeholder{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.stakeholders[id] = current
	tx.recordChange(Change{Entity: domain.EntityStakeholder, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteStakeholder removes a stakeholder.
func (tx *transaction) DeleteStakeholder(id string) error {
	current, ok := tx.state.stakeholders[id]
	if !ok {
		return fmt.Errorf("stakeholder %q not found", id)
	}
	delete(tx.state.stakeholders, id)
	tx.recordChange(Change{Entity: domain.EntityStakeholder, Action: domain.ActionDelete, Before: current})
	return nil
}

// CreateRelationLink stores a typed link after validating both endpoints
// against the link type's declared entity types.
func (tx *transaction) CreateRelationLink(l RelationLink) (RelationLink, error) {
	if l.ID == "" {
		l.ID = tx.store.newID()
	}
	if _, exists := tx.state.links[l.ID]; exists {
		return RelationLink{}, fmt.Errorf("relation link %q already exists", l.ID)
	}
	fromType, toType := l.LinkType.Endpoints()
	if fromType == "" || toType == "" {
		return RelationLink{}, fmt.Errorf("unknown link type %q", l.LinkType)
	}
	if !tx.entityExists(fromType, l.FromID) {
		return RelationLink{}, fmt.Errorf("%s %q not found", fromType, l.FromID)
	}
	if !tx.entityExists(toType, l.ToID) {
		return RelationLink{}, fmt.Errorf("%s %q not found", toType, l.ToID)
	}
	tx.state.links[l.ID] = l
	tx.recordChange(Change{Entity: domain.EntityRelationLink, Action: domain.ActionCreate, After: l})
	return l, nil
}

// DeleteRelationLink removes a typed link.
func (tx *transaction) DeleteRelationLink(id string) error {
	current, ok := tx.state.links[id]
	if !ok {
		return fmt.Errorf("relation link %q not found", id)
	}
	delete(tx.state.links, id)
	tx.recordChange(Change{Entity: domain.EntityRelationLink, Action: domain.ActionDelete, Before: current})
	return nil
}

func (tx *transaction) entityExists(entity EntityType, id string) bool {
	switch entity {
	case domain.EntityDeliverable:
		_, ok := tx.state.deliverables[id]
		return ok
	case domain.EntityOutcome:
		_, ok := tx.state.outcomes[id]
		return ok
	default:
		return false
	}
}

func (tx *transaction) dropLinksTouching(entityID string) {
	for id, link := range tx.state.links {
		if link.FromID == entityID || link.ToID == entityID {
			delete(tx.state.links, id)
			tx.recordChange(Change{Entity: domain.EntityRelationLink, Action: domain.ActionDelete, Before: link})
		}
	}
}
