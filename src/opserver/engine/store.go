package engine

import "github.com/redquill/redquill/src/opserver/types"

// Store is the durable mirror of engine state: agent registry, operation
// records, the full link table, and fact rows. The engine treats a Store
// write failure as fatal to the owning operation (the only fatal error
// class); everything else is absorbed locally.
type Store interface {
	SaveAgent(agent *types.Agent) error
	SaveOperation(op *types.Operation) error
	SaveLink(link *types.Link) error
	SaveFact(fact *types.Fact) error
}

// NopStore discards all writes. Used by tests and by callers that run the
// engine without a database.
type NopStore struct{}

func (NopStore) SaveAgent(*types.Agent) error         { return nil }
func (NopStore) SaveOperation(*types.Operation) error { return nil }
func (NopStore) SaveLink(*types.Link) error           { return nil }
func (NopStore) SaveFact(*types.Fact) error           { return nil }
