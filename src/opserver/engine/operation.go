package engine

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/redquill/redquill/src/opserver/catalog"
	"github.com/redquill/redquill/src/opserver/types"
)

// pair is one not-yet-attempted (ability, agent) combination.
type pair struct {
	phase     int
	abilityID string
	agentID   string
}

// Operation drives one running campaign: it owns the fact store, the
// frontier, and the link table, and serializes every mutation under a single
// lock. Reads for status projections copy under the same lock and never
// block writers for long.
type Operation struct {
	mu sync.Mutex

	rec     types.Operation
	profile *catalog.Profile
	cat     *catalog.Catalog
	facts   *FactStore
	store   Store
	logger  *log.Logger

	agents  map[string]types.Agent // snapshot taken at start, owned by op.mu
	links   map[string]*types.Link
	ordered []string // link ids in creation order
	notify  Notifier

	frontier   []pair
	phaseOf    map[string]int // ability id -> first phase index
	successes  map[string]int // ability id -> SUCCESS link count
	gateExempt map[string]bool

	defaultTimeout time.Duration
	emptyEvals     int
	lastError      string
}

func newOperation(rec types.Operation, profile *catalog.Profile, cat *catalog.Catalog,
	agents []types.Agent, store Store, logger *log.Logger, defaultTimeout time.Duration) *Operation {

	op := &Operation{
		rec:            rec,
		profile:        profile,
		cat:            cat,
		facts:          NewFactStore(rec.ID),
		store:          store,
		logger:         logger,
		agents:         map[string]types.Agent{},
		links:          map[string]*types.Link{},
		notify:         nopNotifier{},
		phaseOf:        map[string]int{},
		successes:      map[string]int{},
		gateExempt:     map[string]bool{},
		defaultTimeout: defaultTimeout,
	}
	for _, a := range agents {
		op.agents[a.ID] = a
	}
	op.buildFrontier()
	return op
}

// ID returns the operation id.
func (op *Operation) ID() string {
	return op.rec.ID
}

// hasAgent reports whether the agent participates in this operation. The
// participant set is fixed at start and map keys are never mutated, so no
// lock is needed.
func (op *Operation) hasAgent(agentID string) bool {
	_, ok := op.agents[agentID]
	return ok
}

// seedAndActivate commits operator-provided seed facts and runs the initial
// eligibility evaluation.
func (op *Operation) seedAndActivate(seeds map[string]string) error {
	op.mu.Lock()
	defer op.mu.Unlock()

	if err := op.seed(seeds); err != nil {
		return err
	}
	op.evaluate()
	return nil
}

// seed commits operator-provided facts. Callers hold the operation lock.
func (op *Operation) seed(seeds map[string]string) error {
	keys := make([]string, 0, len(seeds))
	for k := range seeds {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fact := op.facts.Put(k, seeds[k], "")
		metricFacts.Inc()
		if err := op.store.SaveFact(&fact); err != nil {
			return op.fatal(fmt.Errorf("persist seed fact %s: %w", k, err))
		}
	}
	return nil
}

// pickup drains every QUEUED link bound to the agent, marking each
// DISPATCHED. Links come back in the deterministic dispatch order: phase,
// catalog order, creation time. An empty result is normal.
func (op *Operation) pickup(agentID string) ([]types.Link, error) {
	op.mu.Lock()
	defer op.mu.Unlock()

	if op.rec.Status != types.OperationRunning {
		return nil, nil
	}
	var queued []*types.Link
	for _, id := range op.ordered {
		l := op.links[id]
		if l.Status == types.LinkQueued && l.AgentID == agentID {
			queued = append(queued, l)
		}
	}
	sort.SliceStable(queued, func(i, j int) bool {
		a, b := queued[i], queued[j]
		if pa, pb := op.phaseOf[a.AbilityID], op.phaseOf[b.AbilityID]; pa != pb {
			return pa < pb
		}
		if oa, ob := op.cat.Order(a.AbilityID), op.cat.Order(b.AbilityID); oa != ob {
			return oa < ob
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})

	now := time.Now().UTC()
	out := make([]types.Link, 0, len(queued))
	for _, l := range queued {
		l.Status = types.LinkDispatched
		at := now
		l.DispatchedAt = &at
		if err := op.store.SaveLink(l); err != nil {
			return nil, op.fatal(fmt.Errorf("persist dispatch of link %s: %w", l.ID, err))
		}
		out = append(out, *l)
	}
	op.maybeFinish()
	return out, nil
}

// tick drives a periodic re-evaluation. Version-triggered and tick-triggered
// evaluation converge to the same fixed point.
func (op *Operation) tick() {
	op.mu.Lock()
	defer op.mu.Unlock()

	if op.rec.Status != types.OperationRunning {
		return
	}
	op.evaluate()
	op.maybeFinish()
}

// reportResult applies a completed link's output. Repeated reports for an
// already-terminal link are accepted silently; results for unknown links,
// the wrong agent, or never-dispatched links are protocol violations.
func (op *Operation) reportResult(agentID, linkID, output string, success bool) error {
	op.mu.Lock()
	defer op.mu.Unlock()

	link, ok := op.links[linkID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownLink, linkID)
	}
	if link.AgentID != agentID {
		return fmt.Errorf("%w: link %s", ErrWrongAgent, linkID)
	}
	switch link.Status {
	case types.LinkDispatched:
		// the only state a result is valid from
	case types.LinkQueued:
		return fmt.Errorf("%w: link %s", ErrLinkNotSent, linkID)
	default:
		// terminal already: at-least-once delivery tolerated, no mutation
		return nil
	}

	if success {
		return op.succeed(link, output)
	}
	return op.fail(link, output, types.LinkFailure)
}

// succeed terminalizes a link as SUCCESS, commits its parsed facts, and
// re-evaluates eligibility.
func (op *Operation) succeed(link *types.Link, output string) error {
	now := time.Now().UTC()
	link.Status = types.LinkSuccess
	link.CompletedAt = &now
	link.Output = output
	metricLinksTerminal.WithLabelValues(types.LinkSuccess).Inc()
	if err := op.store.SaveLink(link); err != nil {
		return op.fatal(fmt.Errorf("persist link %s: %w", link.ID, err))
	}
	op.successes[link.AbilityID]++

	for _, tuple := range op.cat.Parser(link.AbilityID).Parse(output) {
		fact := op.facts.Put(tuple.Key, tuple.Value, link.ID)
		metricFacts.Inc()
		if err := op.store.SaveFact(&fact); err != nil {
			return op.fatal(fmt.Errorf("persist fact %s: %w", tuple.Key, err))
		}
	}

	op.evaluate()
	op.maybeFinish()
	return nil
}

// fail terminalizes a link as FAILURE or TIMEOUT. Under the ability's retry
// policy a fresh link for the same pair is re-queued until the attempt limit
// is reached. Failed links contribute no facts.
func (op *Operation) fail(link *types.Link, output, status string) error {
	now := time.Now().UTC()
	link.Status = status
	link.CompletedAt = &now
	link.Output = output
	metricLinksTerminal.WithLabelValues(status).Inc()
	if err := op.store.SaveLink(link); err != nil {
		return op.fatal(fmt.Errorf("persist link %s: %w", link.ID, err))
	}

	ability, err := op.cat.Ability(link.AbilityID)
	if err == nil && int(link.Retry)+1 < ability.Attempts() {
		retry := &types.Link{
			ID:          uuid.NewString(),
			OperationID: op.rec.ID,
			AbilityID:   link.AbilityID,
			AgentID:     link.AgentID,
			Command:     link.Command,
			Executor:    link.Executor,
			Status:      types.LinkQueued,
			Retry:       link.Retry + 1,
			CreatedAt:   time.Now().UTC(),
		}
		op.links[retry.ID] = retry
		op.ordered = append(op.ordered, retry.ID)
		metricLinksCreated.Inc()
		if err := op.store.SaveLink(retry); err != nil {
			return op.fatal(fmt.Errorf("persist retry of link %s: %w", link.ID, err))
		}
		op.logger.Printf("op %s: retrying %s on %s (attempt %d/%d)",
			op.rec.ID, link.AbilityID, link.AgentID, retry.Retry+1, ability.Attempts())
	}

	op.maybeFinish()
	return nil
}

// sweepTimeouts expires DISPATCHED links whose agent went silent mid-task.
// TIMEOUT follows the same retry policy as FAILURE.
func (op *Operation) sweepTimeouts(now time.Time) {
	op.mu.Lock()
	defer op.mu.Unlock()

	if op.rec.Status != types.OperationRunning {
		return
	}
	for _, id := range op.ordered {
		l := op.links[id]
		if l.Status != types.LinkDispatched || l.DispatchedAt == nil {
			continue
		}
		timeout := op.defaultTimeout
		if ability, err := op.cat.Ability(l.AbilityID); err == nil {
			timeout = ability.Timeout(op.defaultTimeout)
		}
		if now.Sub(*l.DispatchedAt) >= timeout {
			op.logger.Printf("op %s: link %s (%s on %s) timed out", op.rec.ID, l.ID, l.AbilityID, l.AgentID)
			_ = op.fail(l, "", types.LinkTimeout)
		}
	}
}

// dropAgent discards the agent's non-terminal links and removes its frontier
// pairs. The operation keeps running on the remaining agents.
func (op *Operation) dropAgent(agentID string) {
	op.mu.Lock()
	defer op.mu.Unlock()

	if op.rec.Status != types.OperationRunning {
		return
	}
	if a, ok := op.agents[agentID]; ok {
		a.Status = types.AgentDead
		op.agents[agentID] = a
	}
	for _, id := range op.ordered {
		l := op.links[id]
		if l.AgentID != agentID {
			continue
		}
		if l.Status == types.LinkQueued || l.Status == types.LinkDispatched {
			op.discard(l)
		}
	}
	kept := op.frontier[:0]
	for _, p := range op.frontier {
		if p.agentID != agentID {
			kept = append(kept, p)
		}
	}
	op.frontier = kept
	op.maybeFinish()
}

// cancel discards every non-terminal link and marks the operation CANCELLED.
// Observed by the next beacon/report call.
func (op *Operation) cancel() error {
	op.mu.Lock()
	defer op.mu.Unlock()

	if op.rec.Status != types.OperationRunning {
		return fmt.Errorf("%w: %s", ErrNotRunning, op.rec.ID)
	}
	for _, id := range op.ordered {
		l := op.links[id]
		if l.Status == types.LinkQueued || l.Status == types.LinkDispatched {
			op.discard(l)
		}
	}
	now := time.Now().UTC()
	op.rec.Status = types.OperationCancelled
	op.rec.FinishedAt = &now
	if err := op.store.SaveOperation(&op.rec); err != nil {
		return op.fatal(fmt.Errorf("persist cancel: %w", err))
	}
	op.emit(EventOperationCancelled, "cancelled by operator")
	return nil
}

// emit publishes a lifecycle event without holding up the caller.
func (op *Operation) emit(kind EventKind, detail string) {
	ev := Event{
		Kind:        kind,
		OperationID: op.rec.ID,
		Operation:   op.rec.Name,
		Detail:      detail,
		At:          time.Now().UTC(),
	}
	go op.notify.Notify(ev)
}

func (op *Operation) discard(l *types.Link) {
	now := time.Now().UTC()
	l.Status = types.LinkDiscarded
	l.CompletedAt = &now
	metricLinksTerminal.WithLabelValues(types.LinkDiscarded).Inc()
	if err := op.store.SaveLink(l); err != nil {
		_ = op.fatal(fmt.Errorf("persist discard of link %s: %w", l.ID, err))
	}
}

// fatal transitions the operation to ERROR. Persistence failure is the one
// error class the engine does not absorb: scheduling on top of a store that
// lost writes risks inconsistent decisions.
func (op *Operation) fatal(err error) error {
	op.logger.Printf("op %s: fatal: %v", op.rec.ID, err)
	op.lastError = err.Error()
	if op.rec.Status == types.OperationRunning {
		now := time.Now().UTC()
		op.rec.Status = types.OperationError
		op.rec.FinishedAt = &now
		_ = op.store.SaveOperation(&op.rec)
		op.emit(EventOperationError, err.Error())
	}
	return err
}
