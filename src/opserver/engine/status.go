package engine

import (
	"sort"
	"time"

	"github.com/redquill/redquill/src/opserver/types"
)

// BlockedPair is a frontier entry that cannot be scheduled yet: either facts
// are missing or an earlier phase has not produced a success. Blocked is a
// status, not a failure.
type BlockedPair struct {
	AbilityID    string   `json:"abilityId"`
	AgentID      string   `json:"agentId"`
	MissingFacts []string `json:"missingFacts,omitempty"`
	PhaseGated   bool     `json:"phaseGated,omitempty"`
}

// AgentProgress summarizes one participating agent's share of the operation.
type AgentProgress struct {
	AgentID   string `json:"agentId"`
	Platform  string `json:"platform"`
	Status    string `json:"status"`
	Completed int    `json:"completed"`
	Pending   int    `json:"pending"`
}

// OperationStatus is the read-only projection served to reporting consumers.
type OperationStatus struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	ProfileID   string          `json:"profileId"`
	Status      string          `json:"status"`
	StartedAt   time.Time       `json:"startedAt"`
	FinishedAt  *time.Time      `json:"finishedAt,omitempty"`
	FactVersion uint64          `json:"factVersion"`
	LinkCounts  map[string]int  `json:"linkCounts"`
	Agents      []AgentProgress `json:"agents"`
	Blocked     []BlockedPair   `json:"blocked,omitempty"`
	LastError   string          `json:"lastError,omitempty"`
}

// Status snapshots the operation under its lock and returns an independent
// copy; callers can hold it as long as they like without blocking writers.
func (op *Operation) Status() OperationStatus {
	op.mu.Lock()
	defer op.mu.Unlock()

	st := OperationStatus{
		ID:          op.rec.ID,
		Name:        op.rec.Name,
		ProfileID:   op.rec.ProfileID,
		Status:      op.rec.Status,
		StartedAt:   op.rec.StartedAt,
		FinishedAt:  op.rec.FinishedAt,
		FactVersion: op.facts.Version(),
		LinkCounts:  map[string]int{},
		LastError:   op.lastError,
	}

	completed := map[string]int{}
	pending := map[string]int{}
	for _, id := range op.ordered {
		l := op.links[id]
		st.LinkCounts[l.Status]++
		switch l.Status {
		case types.LinkQueued, types.LinkDispatched:
			pending[l.AgentID]++
		case types.LinkSuccess, types.LinkFailure, types.LinkTimeout:
			completed[l.AgentID]++
		}
	}

	agentIDs := make([]string, 0, len(op.agents))
	for id := range op.agents {
		agentIDs = append(agentIDs, id)
	}
	sort.Strings(agentIDs)
	for _, id := range agentIDs {
		a := op.agents[id]
		st.Agents = append(st.Agents, AgentProgress{
			AgentID:   a.ID,
			Platform:  a.Platform,
			Status:    a.Status,
			Completed: completed[id],
			Pending:   pending[id],
		})
	}

	for _, p := range op.frontier {
		blocked := BlockedPair{AbilityID: p.abilityID, AgentID: p.agentID}
		if !op.phaseReady(p.phase) {
			blocked.PhaseGated = true
		}
		if ability, err := op.cat.Ability(p.abilityID); err == nil {
			_, missing := op.facts.Resolve(ability.RequiredFacts())
			blocked.MissingFacts = missing
		}
		st.Blocked = append(st.Blocked, blocked)
	}
	return st
}
