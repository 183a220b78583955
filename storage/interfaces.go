package storage

import "rental-pipeline/models"

// RegionStore is the region lookup-or-create surface the resolver needs.
type RegionStore interface {
	FindRegion(name, state string, postcode int) (int64, error)
	CreateRegion(name, state string, postcode int) (int64, error)
}

// Store is the persistence surface the upsert engine drives. Implementations
// must hand out transactions whose commits are the only durability
// checkpoints of a run.
type Store interface {
	ExistingHouseIDs() ([]int64, error)
	SchoolIDs() map[string]int64
	Begin() (Tx, error)
}

// Tx is one upsert batch. MarkRow/RollbackRow bracket a single listing so
// that a failed row is undone without losing the rest of the batch.
type Tx interface {
	MarkRow() error
	RollbackRow() error

	InsertProperty(l *models.Listing) (int64, error)
	UpdateProperty(l *models.Listing) (int64, error)
	DeleteCommute(propertyID, schoolID int64) error
	InsertCommute(propertyID, schoolID int64, minutes *int) error

	Commit() error
	Rollback() error
}
