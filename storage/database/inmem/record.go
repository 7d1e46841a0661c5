package inmemdb

import (
	"context"

	"github.com/mzalendo/shule/core/record"
)

type recordRepository struct {
	db *recordTable
}

func NewRecordRepository(db *DB) record.Repository {
	return &recordRepository{db: db.record}
}

func (repo *recordRepository) CreateRecord(_ context.Context, rec record.Record) (record.Record, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.table[rec.ID] = &rec
	repo.db.order = append(repo.db.order, rec.ID)
	return rec, nil
}

func (repo *recordRepository) QueryRecordsByKind(_ context.Context, kind record.Kind) ([]record.Record, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	records := make([]record.Record, 0)
	for _, id := range repo.db.order {
		if rec := repo.db.table[id]; rec.Kind == kind {
			records = append(records, *rec)
		}
	}
	return records, nil
}

func (repo *recordRepository) GetRecordByID(_ context.Context, id string) (record.Record, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if rec, ok := repo.db.table[id]; ok {
		return *rec, nil
	}
	return record.Record{}, record.ErrNotFound
}

func (repo *recordRepository) UpdateRecord(_ context.Context, rec record.Record) (record.Record, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[rec.ID]; !ok {
		return record.Record{}, record.ErrNotFound
	}
	repo.db.table[rec.ID] = &rec
	return rec, nil
}

func (repo *recordRepository) DeleteRecord(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return record.ErrNotFound
	}
	delete(repo.db.table, id)
	for i, oid := range repo.db.order {
		if oid == id {
			repo.db.order = append(repo.db.order[:i], repo.db.order[i+1:]...)
			break
		}
	}
	return nil
}
