package data

import (
	"gorm.io/gorm"

	"github.com/redquill/redquill/src/opserver/types"
)

// GormStore is the MySQL-backed implementation of the engine's Store
// interface. Agents, operations, and links upsert by primary key; facts are
// append-only rows.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) SaveAgent(agent *types.Agent) error {
	return s.db.Save(agent).Error
}

func (s *GormStore) SaveOperation(op *types.Operation) error {
	return s.db.Save(op).Error
}

func (s *GormStore) SaveLink(link *types.Link) error {
	return s.db.Save(link).Error
}

func (s *GormStore) SaveFact(fact *types.Fact) error {
	return s.db.Create(fact).Error
}
