// Package inmemdb provides mutex-guarded in-memory repositories used in
// DEV/TEST mode and in package tests.
package inmemdb

import (
	"sync"

	"github.com/mzalendo/shule/core/record"
	"github.com/mzalendo/shule/core/student"
	"github.com/mzalendo/shule/core/user"
)

type (
	identityTable struct {
		mutex sync.RWMutex
		table map[string]*user.Identity
	}

	studentTable struct {
		mutex sync.RWMutex
		table map[string]*student.Student
		order []string // preserves insertion order for stable listings
	}

	recordTable struct {
		mutex sync.RWMutex
		table map[string]*record.Record
		order []string
	}

	DB struct {
		identity *identityTable
		student  *studentTable
		record   *recordTable
	}
)

func Open() (*DB, error) {
	return &DB{
		identity: &identityTable{table: make(map[string]*user.Identity)},
		student:  &studentTable{table: make(map[string]*student.Student)},
		record:   &recordTable{table: make(map[string]*record.Record)},
	}, nil
}
