package core

import (
	"sort"

	"clientpulse/pkg/domain"
)

// workstreamStage derives milestone_on_time_rate for every workstream.
type workstreamStage struct{}

func (workstreamStage) Name() string { return "workstreams" }

func (workstreamStage) Compute(p *Pass) {
	workstreams := p.View.ListWorkstreams()
	sort.Slice(workstreams, func(i, j int) bool { return workstreams[i].ID < workstreams[j].ID })
	for _, workstream := range workstreams {
		milestones := p.Indexes.MilestonesByWorkstream[workstream.ID]
		completed := 0
		onTime := 0
		lateIDs := make([]string, 0)
		slippage := make([]float64, 0)
		for _, m := range milestones {
			if m.CompletionDate == nil {
				continue
			}
			completed++
			if !m.CompletionDate.After(m.DueDate) {
				onTime++
				continue
			}
			lateIDs = append(lateIDs, m.ID)
			slippage = append(slippage, daysBetween(m.DueDate, *m.CompletionDate))
		}

		rate := float64(0)
		if completed > 0 {
			rate = float64(onTime) / float64(completed)
		}

		p.Emit(domain.EntityWorkstream, workstream.ID, domain.FieldMilestoneOnTime, rate, Explanation{
			"completed":          float64(completed),
			"on_time":            float64(onTime),
			"late_milestone_ids": lateIDs,
			"slippage_days":      slippage,
		})
	}
}
