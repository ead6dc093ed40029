package engine

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/redquill/redquill/src/opserver/catalog"
	"github.com/redquill/redquill/src/opserver/types"
)

// buildFrontier materializes every (ability, agent) pair in scope for the
// operation, in deterministic order: phase order, then profile order within
// the phase, then agent id. Pairs whose ability has no applicable platform
// for the agent are permanently skipped. Abilities that yield no pair at all
// are exempted from phase gating so a platform gap cannot deadlock later
// phases.
func (op *Operation) buildFrontier() {
	agentIDs := make([]string, 0, len(op.agents))
	for id := range op.agents {
		agentIDs = append(agentIDs, id)
	}
	sort.Strings(agentIDs)

	for phaseIdx, phase := range op.profile.Phases {
		for _, abilityID := range phase.Abilities {
			if _, seen := op.phaseOf[abilityID]; !seen {
				op.phaseOf[abilityID] = phaseIdx
			}
			ability, err := op.cat.Ability(abilityID)
			if err != nil {
				op.logger.Printf("op %s: profile %s references unknown ability %s, skipping",
					op.rec.ID, op.profile.ID, abilityID)
				continue
			}
			matched := 0
			for _, agentID := range agentIDs {
				if !ability.SupportsPlatform(op.agents[agentID].Platform) {
					continue
				}
				op.frontier = append(op.frontier, pair{phase: phaseIdx, abilityID: abilityID, agentID: agentID})
				matched++
			}
			if matched == 0 {
				op.gateExempt[abilityID] = true
			}
		}
	}
}

// phaseReady reports whether phase gating allows abilities in the given
// phase: every ability in a strictly-earlier non-optional phase must have at
// least one SUCCESS link, unless it never produced a pair to begin with.
func (op *Operation) phaseReady(phaseIdx int) bool {
	for i := 0; i < phaseIdx; i++ {
		ph := op.profile.Phases[i]
		if ph.Optional {
			continue
		}
		for _, abilityID := range ph.Abilities {
			if op.gateExempt[abilityID] {
				continue
			}
			if op.successes[abilityID] == 0 {
				return false
			}
		}
	}
	return true
}

// evaluate walks the frontier and creates a QUEUED link for every pair whose
// required facts now resolve and whose phase gate holds. Eligibility is a
// pure function of the current fact snapshot re-run on every change, so no
// dirty-propagation graph is needed. Returns the number of links created.
// Callers hold the operation lock.
func (op *Operation) evaluate() int {
	created := 0
	kept := op.frontier[:0]
	for _, p := range op.frontier {
		ability, err := op.cat.Ability(p.abilityID)
		if err != nil {
			continue
		}
		if !op.phaseReady(p.phase) {
			kept = append(kept, p)
			continue
		}
		values, missing := op.facts.Resolve(ability.RequiredFacts())
		if len(missing) > 0 {
			kept = append(kept, p)
			continue
		}
		command, err := catalog.Render(ability, values)
		if err != nil {
			// resolve preceded render, so this is a bug worth surfacing
			op.logger.Printf("op %s: render %s: %v", op.rec.ID, p.abilityID, err)
			kept = append(kept, p)
			continue
		}
		link := &types.Link{
			ID:          uuid.NewString(),
			OperationID: op.rec.ID,
			AbilityID:   p.abilityID,
			AgentID:     p.agentID,
			Command:     command,
			Executor:    ability.Executor,
			Status:      types.LinkQueued,
			CreatedAt:   time.Now().UTC(),
		}
		op.links[link.ID] = link
		op.ordered = append(op.ordered, link.ID)
		metricLinksCreated.Inc()
		if err := op.store.SaveLink(link); err != nil {
			_ = op.fatal(err)
			return created
		}
		created++
	}
	op.frontier = kept

	if created > 0 {
		op.emptyEvals = 0
		// a new SUCCESS can gate-open later phases only via reportResult,
		// but a fact commit may have unlocked several phases at once; run to
		// the fixed point in one go
		created += op.evaluate()
	}
	return created
}

// maybeFinish transitions the operation to FINISHED once the frontier is
// empty, no link is QUEUED or DISPATCHED, and two consecutive evaluations
// produced nothing. The double check guards against a transiently empty
// frontier mid-update. Blocked pairs keep the frontier non-empty, so an
// operation with unresolvable requirements stays RUNNING (reported BLOCKED)
// until cancelled.
func (op *Operation) maybeFinish() {
	if op.rec.Status != types.OperationRunning {
		return
	}
	if len(op.frontier) != 0 {
		op.emptyEvals = 0
		return
	}
	for _, id := range op.ordered {
		switch op.links[id].Status {
		case types.LinkQueued, types.LinkDispatched:
			op.emptyEvals = 0
			return
		}
	}
	if op.evaluate() > 0 {
		return
	}
	op.emptyEvals++
	if op.emptyEvals < 2 {
		return
	}
	now := time.Now().UTC()
	op.rec.Status = types.OperationFinished
	op.rec.FinishedAt = &now
	if err := op.store.SaveOperation(&op.rec); err != nil {
		_ = op.fatal(err)
		return
	}
	op.logger.Printf("op %s: finished", op.rec.ID)
	op.emit(EventOperationFinished, "all abilities exhausted")
}
