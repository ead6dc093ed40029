package engine

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/redquill/redquill/src/opserver/catalog"
	"github.com/redquill/redquill/src/opserver/types"
)

// Config tunes engine-wide policy.
type Config struct {
	// DefaultLinkTimeout applies to abilities without their own timeout.
	DefaultLinkTimeout time.Duration
	// DeadBeaconWindows is how many expected beacon windows an agent may miss
	// before it is declared DEAD and its in-flight links are discarded.
	DeadBeaconWindows int
}

func (c Config) withDefaults() Config {
	if c.DefaultLinkTimeout <= 0 {
		c.DefaultLinkTimeout = 5 * time.Minute
	}
	if c.DeadBeaconWindows <= 0 {
		c.DeadBeaconWindows = 3
	}
	return c
}

// Manager owns the agent registry and every operation. Cross-operation work
// is fully parallel; each operation serializes its own mutations under its
// own lock, and the manager lock only guards the registry and the operation
// map.
type Manager struct {
	cat    *catalog.Catalog
	store  Store
	logger *log.Logger
	notify Notifier
	cfg    Config

	mu     sync.RWMutex
	agents map[string]*types.Agent
	ops    map[string]*Operation
}

// NewManager returns a manager ready to run operations. notifier may be nil.
func NewManager(cat *catalog.Catalog, store Store, logger *log.Logger, notifier Notifier, cfg Config) *Manager {
	if store == nil {
		store = NopStore{}
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Manager{
		cat:    cat,
		store:  store,
		logger: logger,
		notify: notifier,
		cfg:    cfg.withDefaults(),
		agents: map[string]*types.Agent{},
		ops:    map[string]*Operation{},
	}
}

// BeaconRequest is an agent check-in. Metadata beyond the id is only used at
// first registration.
type BeaconRequest struct {
	AgentID        string
	Platform       string
	Hostname       string
	Group          string
	BeaconInterval uint32
	Jitter         uint32
}

// CommandSpec is one unit of work handed to an agent.
type CommandSpec struct {
	LinkID   string `json:"linkId"`
	Command  string `json:"command"`
	Executor string `json:"executor"`
}

// BeaconResponse carries the agent's identity, its sleep interval, and its
// pending work. An empty command list means no current work, not an error.
type BeaconResponse struct {
	AgentID  string        `json:"id"`
	Sleep    uint32        `json:"sleep"`
	Commands []CommandSpec `json:"commands"`
}

// Beacon handles one agent check-in: registers the agent on first contact,
// refreshes its liveness, and drains its QUEUED links from every running
// operation it participates in. Never blocks on link completion; the agent
// polls again later.
func (m *Manager) Beacon(req BeaconRequest) (*BeaconResponse, error) {
	metricBeacons.Inc()

	agent, err := m.touchAgent(req)
	if err != nil {
		return nil, err
	}

	resp := &BeaconResponse{AgentID: agent.ID, Sleep: agent.BeaconInterval, Commands: []CommandSpec{}}
	for _, op := range m.operations() {
		if !op.hasAgent(agent.ID) {
			continue
		}
		links, err := op.pickup(agent.ID)
		if err != nil {
			// operation went fatal; the beacon surface stays available
			m.logger.Printf("beacon: pickup from op %s: %v", op.ID(), err)
			continue
		}
		for _, l := range links {
			resp.Commands = append(resp.Commands, CommandSpec{LinkID: l.ID, Command: l.Command, Executor: l.Executor})
		}
	}
	return resp, nil
}

// touchAgent registers or refreshes an agent under the registry lock.
func (m *Manager) touchAgent(req BeaconRequest) (*types.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	agent := m.agents[req.AgentID]
	if agent == nil {
		id := req.AgentID
		if id == "" {
			var err error
			if id, err = NewAgentID(); err != nil {
				return nil, fmt.Errorf("engine: generate agent id: %w", err)
			}
		}
		agent = &types.Agent{
			ID:             id,
			Platform:       req.Platform,
			Hostname:       req.Hostname,
			Group:          req.Group,
			BeaconInterval: req.BeaconInterval,
			Jitter:         req.Jitter,
			Status:         types.AgentActive,
			FirstSeen:      now,
		}
		if agent.BeaconInterval == 0 {
			agent.BeaconInterval = 60
		}
		m.agents[agent.ID] = agent
		m.logger.Printf("registered agent %s (%s, %s)", agent.ID, agent.Platform, agent.Hostname)
	}
	agent.LastSeen = now
	agent.Status = types.AgentActive
	if err := m.store.SaveAgent(agent); err != nil {
		m.logger.Printf("persist agent %s: %v", agent.ID, err)
	}
	return agent, nil
}

// SubmitResult routes a completed link's output to the operation that owns
// it. Duplicate reports for terminal links are accepted silently; unknown
// links, wrong agents, and never-dispatched links are rejected.
func (m *Manager) SubmitResult(agentID, linkID, output string, success bool) error {
	m.mu.RLock()
	_, known := m.agents[agentID]
	m.mu.RUnlock()
	if !known {
		return fmt.Errorf("%w: %s", ErrUnknownAgent, agentID)
	}

	for _, op := range m.operations() {
		err := op.reportResult(agentID, linkID, output, success)
		if errors.Is(err, ErrUnknownLink) {
			continue
		}
		return err
	}
	return fmt.Errorf("%w: %s", ErrUnknownLink, linkID)
}

// StartOperation seeds facts, computes the initial frontier, and begins
// scheduling against every live agent in the group (all agents when group is
// empty). The participant set is fixed at start.
func (m *Manager) StartOperation(name, profileID, group string, seeds map[string]string) (OperationStatus, error) {
	profile, err := m.cat.Profile(profileID)
	if err != nil {
		return OperationStatus{}, err
	}

	// copy agent records under the registry lock; the operation owns its own
	// snapshot and never shares agent memory with touchAgent/SweepLiveness
	m.mu.Lock()
	var participants []types.Agent
	for _, a := range m.agents {
		if a.Status == types.AgentDead {
			continue
		}
		if group != "" && a.Group != group {
			continue
		}
		participants = append(participants, *a)
	}
	m.mu.Unlock()
	if len(participants) == 0 {
		return OperationStatus{}, fmt.Errorf("%w: no live agents in group %q", ErrUnknownAgent, group)
	}

	rec := types.Operation{
		ID:         uuid.NewString(),
		Name:       name,
		ProfileID:  profileID,
		AgentGroup: group,
		Status:     types.OperationRunning,
		StartedAt:  time.Now().UTC(),
	}
	if err := m.store.SaveOperation(&rec); err != nil {
		return OperationStatus{}, fmt.Errorf("engine: persist operation: %w", err)
	}

	op := newOperation(rec, profile, m.cat, participants, m.store, m.logger, m.cfg.DefaultLinkTimeout)
	op.notify = m.notify
	if err := op.seedAndActivate(seeds); err != nil {
		return op.Status(), err
	}

	m.mu.Lock()
	m.ops[rec.ID] = op
	m.mu.Unlock()

	m.logger.Printf("op %s (%s): started with %d agents", rec.ID, name, len(participants))
	op.emit(EventOperationStarted, fmt.Sprintf("profile %s, %d agents", profileID, len(participants)))
	return op.Status(), nil
}

// Cancel cancels a running operation. The next beacon or report observes it.
func (m *Manager) Cancel(operationID string) error {
	op, err := m.operation(operationID)
	if err != nil {
		return err
	}
	return op.cancel()
}

// Status returns the read-only projection for one operation.
func (m *Manager) Status(operationID string) (OperationStatus, error) {
	op, err := m.operation(operationID)
	if err != nil {
		return OperationStatus{}, err
	}
	st := op.Status()
	m.overlayLiveness(&st)
	return st, nil
}

// Statuses returns projections for every operation, newest first.
func (m *Manager) Statuses() []OperationStatus {
	ops := m.operations()
	out := make([]OperationStatus, 0, len(ops))
	for _, op := range ops {
		st := op.Status()
		m.overlayLiveness(&st)
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

// overlayLiveness replaces the operation's start-time agent snapshot status
// with the registry's current one, so reporting shows STALE/DEAD as it
// happens.
func (m *Manager) overlayLiveness(st *OperationStatus) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := range st.Agents {
		if a := m.agents[st.Agents[i].AgentID]; a != nil {
			st.Agents[i].Status = a.Status
		}
	}
}

// Agents returns a copy of the agent registry, sorted by id.
func (m *Manager) Agents() []types.Agent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.Agent, 0, len(m.agents))
	for _, a := range m.agents {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SweepTimeouts expires overdue DISPATCHED links across all operations.
func (m *Manager) SweepTimeouts(now time.Time) {
	for _, op := range m.operations() {
		op.sweepTimeouts(now)
		op.tick()
	}
}

// SweepLiveness walks the registry and downgrades agents that stopped
// beaconing: STALE after one missed window, DEAD after the configured count.
// A dead agent's in-flight links are discarded; the operations keep running
// on the remaining agents.
func (m *Manager) SweepLiveness(now time.Time) {
	var died []types.Agent

	m.mu.Lock()
	for _, a := range m.agents {
		if a.Status == types.AgentDead {
			continue
		}
		window := time.Duration(a.BeaconInterval+a.Jitter) * time.Second
		if window <= 0 {
			continue
		}
		missed := now.Sub(a.LastSeen)
		switch {
		case missed >= time.Duration(m.cfg.DeadBeaconWindows)*window:
			a.Status = types.AgentDead
			died = append(died, *a)
		case missed >= window:
			a.Status = types.AgentStale
		default:
			continue
		}
		if err := m.store.SaveAgent(a); err != nil {
			m.logger.Printf("persist agent %s: %v", a.ID, err)
		}
	}
	m.mu.Unlock()

	for _, a := range died {
		m.logger.Printf("agent %s declared dead (last seen %s)", a.ID, a.LastSeen.Format(time.RFC3339))
		for _, op := range m.operations() {
			if op.hasAgent(a.ID) {
				op.dropAgent(a.ID)
				op.emit(EventAgentDead, fmt.Sprintf("agent %s", a.ID))
			}
		}
	}
}

func (m *Manager) operation(id string) (*Operation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	op := m.ops[id]
	if op == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, id)
	}
	return op, nil
}

func (m *Manager) operations() []*Operation {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Operation, 0, len(m.ops))
	for _, op := range m.ops {
		out = append(out, op)
	}
	return out
}
