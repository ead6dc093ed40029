package types

import "time"

// Agent lifecycle states.
const (
	AgentActive = "ACTIVE"
	AgentStale  = "STALE"
	AgentDead   = "DEAD"
)

// Link lifecycle states.
const (
	LinkQueued     = "QUEUED"
	LinkDispatched = "DISPATCHED"
	LinkSuccess    = "SUCCESS"
	LinkFailure    = "FAILURE"
	LinkTimeout    = "TIMEOUT"
	LinkDiscarded  = "DISCARDED"
)

// Operation lifecycle states.
const (
	OperationRunning   = "RUNNING"
	OperationFinished  = "FINISHED"
	OperationCancelled = "CANCELLED"
	OperationError     = "ERROR"
)

// Settings
type Setting struct {
	ID    uint8  `gorm:"primaryKey"`
	Name  string `gorm:"size:32;not null"`
	Value string `gorm:"size:256;not null"`
}

// Registered execution clients. Identity persists across operations.
type Agent struct {
	ID             string `gorm:"primaryKey;size:32"`
	Platform       string `gorm:"size:16;not null"`
	Hostname       string `gorm:"size:128"`
	Group          string `gorm:"size:64;index;column:agent_group"`
	BeaconInterval uint32 `gorm:"default:60"` // seconds
	Jitter         uint32 `gorm:"default:0"`  // seconds
	Status         string `gorm:"size:16;not null"`
	FirstSeen      time.Time
	LastSeen       time.Time
}

// One campaign instance. Archived by explicit retention policy only.
type Operation struct {
	ID         string `gorm:"primaryKey;size:64"`
	Name       string `gorm:"size:128;not null"`
	ProfileID  string `gorm:"size:64;not null"`
	AgentGroup string `gorm:"size:64"`
	Status     string `gorm:"size:16;index;not null"`
	StartedAt  time.Time
	FinishedAt *time.Time
}

// One ability scheduled against one agent within one operation. All
// generations are retained for audit.
type Link struct {
	ID           string `gorm:"primaryKey;size:64"`
	OperationID  string `gorm:"size:64;index;not null"`
	AbilityID    string `gorm:"size:64;not null"`
	AgentID      string `gorm:"size:32;index;not null"`
	Command      string `gorm:"type:text;not null"`
	Executor     string `gorm:"size:32;not null"`
	Status       string `gorm:"size:16;index;not null"`
	Retry        uint8  `gorm:"default:0"`
	CreatedAt    time.Time
	DispatchedAt *time.Time
	CompletedAt  *time.Time
	Output       string `gorm:"type:mediumtext"`
}

// One key/value observation, scoped to an operation. Append-only: a key may
// hold many values over time, each with provenance.
type Fact struct {
	ID          uint64 `gorm:"primaryKey"`
	OperationID string `gorm:"size:64;index;not null"`
	Key         string `gorm:"size:128;not null;column:fact_key"`
	Value       string `gorm:"size:1024;not null;column:fact_value"`
	SourceLink  string `gorm:"size:64"` // empty for operator-seeded facts
	CreatedAt   time.Time
}
