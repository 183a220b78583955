package services

import (
	"fmt"

	"rental-pipeline/models"
	"rental-pipeline/storage"
	"rental-pipeline/utils"
)

// UpsertEngine merges reconciled listings into the persisted store. It is
// single-threaded: it owns the known business-key set and mutates it as rows
// land. Upsert is idempotent by business key, so a crash-and-restart
// reprocesses already-committed rows as no-op updates.
type UpsertEngine struct {
	store     storage.Store
	logger    *utils.Logger
	batchSize int
	keys      *utils.KeySet
}

// NewUpsertEngine creates an engine committing every batchSize processed rows.
func NewUpsertEngine(store storage.Store, logger *utils.Logger, batchSize int) *UpsertEngine {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &UpsertEngine{
		store:     store,
		logger:    logger,
		batchSize: batchSize,
		keys:      utils.NewKeySet(),
	}
}

// Run persists all listings. A failure on a single row is rolled back to the
// row boundary, logged and counted, and the batch continues; only
// infrastructure failures (begin/commit/savepoint) abort the run.
func (e *UpsertEngine) Run(listings []*models.Listing, report *models.RunReport) error {
	existing, err := e.store.ExistingHouseIDs()
	if err != nil {
		return fmt.Errorf("upsert: preload keys: %w", err)
	}
	for _, id := range existing {
		e.keys.Add(id)
	}
	e.logger.Info("[upsert] %d business keys already in store", e.keys.Size())

	schoolIDs := e.store.SchoolIDs()

	tx, err := e.store.Begin()
	if err != nil {
		return fmt.Errorf("upsert: begin: %w", err)
	}
	rowsInBatch := 0

	for _, l := range listings {
		if err := tx.MarkRow(); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert: savepoint: %w", err)
		}

		if err := e.upsertRow(tx, l, schoolIDs, report); err != nil {
			e.logger.Warn("[upsert] house %d failed: %v", l.HouseID, err)
			report.Errored++
			if rbErr := tx.RollbackRow(); rbErr != nil {
				_ = tx.Rollback()
				return fmt.Errorf("upsert: rollback row: %w", rbErr)
			}
			continue
		}
		rowsInBatch++

		if rowsInBatch == e.batchSize {
			if err := tx.Commit(); err != nil {
				return fmt.Errorf("upsert: commit batch: %w", err)
			}
			e.logger.Info("[upsert] committed batch (new: %d, updated: %d, errored: %d)",
				report.New, report.Updated, report.Errored)
			rowsInBatch = 0
			tx, err = e.store.Begin()
			if err != nil {
				return fmt.Errorf("upsert: begin: %w", err)
			}
		}
	}

	if rowsInBatch > 0 {
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("upsert: commit final batch: %w", err)
		}
	} else if err := tx.Rollback(); err != nil {
		return fmt.Errorf("upsert: close final batch: %w", err)
	}

	e.logger.Info("[upsert] done — new: %d, updated: %d, skipped: %d, errored: %d, commute filled: %d, commute skipped: %d",
		report.New, report.Updated, report.Skipped, report.Errored, report.CommuteFilled, report.CommuteSkipped)
	return nil
}

// upsertRow writes one listing and its commute associations. Counters are
// only updated once the whole row succeeded.
func (e *UpsertEngine) upsertRow(tx storage.Tx, l *models.Listing, schoolIDs map[string]int64, report *models.RunReport) error {
	var (
		propertyID int64
		err        error
		isNew      = !e.keys.Contains(l.HouseID)
	)

	if isNew {
		propertyID, err = tx.InsertProperty(l)
	} else {
		propertyID, err = tx.UpdateProperty(l)
	}
	if err != nil {
		return err
	}

	filled, skipped := 0, 0
	for _, school := range models.Schools {
		schoolID, ok := schoolIDs[school.Name]
		if !ok {
			return fmt.Errorf("unknown school %q", school.Name)
		}

		// delete-then-reinsert so no stale association survives
		if err := tx.DeleteCommute(propertyID, schoolID); err != nil {
			return err
		}
		minutes := l.Commutes[school.Name].Minutes()
		if err := tx.InsertCommute(propertyID, schoolID, minutes); err != nil {
			return err
		}
		if minutes != nil {
			filled++
		} else {
			skipped++
		}
	}

	if isNew {
		e.keys.Add(l.HouseID)
		report.New++
	} else {
		report.Updated++
	}
	report.CommuteFilled += filled
	report.CommuteSkipped += skipped
	return nil
}
