// Package dummydb provides in-memory repositories for tests.
package dummydb

import (
	"context"
	"sync"

	"github.com/rkabuya/evaldesk/core"
	"github.com/rkabuya/evaldesk/core/hierarchy"
	"github.com/rkabuya/evaldesk/core/participant"
	"github.com/rkabuya/evaldesk/core/user"
)

type (
	DB struct {
		hierarchy   *hierarchyTables
		participant *participantTables
		user        *userTable
		setting     *settingTable
	}

	hierarchyTables struct {
		sync.RWMutex
		axes       map[int]*hierarchy.Axis
		indicators map[int]*hierarchy.Indicator
		measures   map[int]*hierarchy.Measure
	}

	participantTables struct {
		sync.RWMutex
		participants map[string]*participant.Participant
		scores       map[int]*participant.Score
	}

	userTable struct {
		sync.RWMutex
		table map[int]*user.User
	}

	settingTable struct {
		sync.RWMutex
		table map[string]string
	}
)

func Open() (*DB, error) {
	db := &DB{
		hierarchy: &hierarchyTables{
			axes:       make(map[int]*hierarchy.Axis),
			indicators: make(map[int]*hierarchy.Indicator),
			measures:   make(map[int]*hierarchy.Measure),
		},
		participant: &participantTables{
			participants: make(map[string]*participant.Participant),
			scores:       make(map[int]*participant.Score),
		},
		user:    &userTable{table: make(map[int]*user.User)},
		setting: &settingTable{table: make(map[string]string)},
	}
	return db, nil
}

var _ core.DBTransactionner = (*DB)(nil)

// RunInTx satisfies core.DBTransactionner by snapshotting every table and
// restoring the snapshot when fn fails. Not safe for concurrent writers,
// which is fine for tests.
func (db *DB) RunInTx(_ context.Context, fn func(tx core.DBExecutor) error) error {
	snap := db.snapshot()
	if err := fn(nil); err != nil {
		db.restore(snap)
		return err
	}
	return nil
}

type dbSnapshot struct {
	axes         map[int]*hierarchy.Axis
	indicators   map[int]*hierarchy.Indicator
	measures     map[int]*hierarchy.Measure
	participants map[string]*participant.Participant
	scores       map[int]*participant.Score
	users        map[int]*user.User
	settings     map[string]string
}

func (db *DB) snapshot() dbSnapshot {
	db.hierarchy.RLock()
	db.participant.RLock()
	db.user.RLock()
	db.setting.RLock()
	defer db.hierarchy.RUnlock()
	defer db.participant.RUnlock()
	defer db.user.RUnlock()
	defer db.setting.RUnlock()

	snap := dbSnapshot{
		axes:         make(map[int]*hierarchy.Axis, len(db.hierarchy.axes)),
		indicators:   make(map[int]*hierarchy.Indicator, len(db.hierarchy.indicators)),
		measures:     make(map[int]*hierarchy.Measure, len(db.hierarchy.measures)),
		participants: make(map[string]*participant.Participant, len(db.participant.participants)),
		scores:       make(map[int]*participant.Score, len(db.participant.scores)),
		users:        make(map[int]*user.User, len(db.user.table)),
		settings:     make(map[string]string, len(db.setting.table)),
	}
	for k, v := range db.hierarchy.axes {
		val := *v
		snap.axes[k] = &val
	}
	for k, v := range db.hierarchy.indicators {
		val := *v
		snap.indicators[k] = &val
	}
	for k, v := range db.hierarchy.measures {
		val := *v
		snap.measures[k] = &val
	}
	for k, v := range db.participant.participants {
		val := *v
		snap.participants[k] = &val
	}
	for k, v := range db.participant.scores {
		val := *v
		snap.scores[k] = &val
	}
	for k, v := range db.user.table {
		val := *v
		snap.users[k] = &val
	}
	for k, v := range db.setting.table {
		snap.settings[k] = v
	}
	return snap
}

func (db *DB) restore(snap dbSnapshot) {
	db.hierarchy.Lock()
	db.participant.Lock()
	db.user.Lock()
	db.setting.Lock()
	defer db.hierarchy.Unlock()
	defer db.participant.Unlock()
	defer db.user.Unlock()
	defer db.setting.Unlock()

	db.hierarchy.axes = snap.axes
	db.hierarchy.indicators = snap.indicators
	db.hierarchy.measures = snap.measures
	db.participant.participants = snap.participants
	db.participant.scores = snap.scores
	db.user.table = snap.users
	db.setting.table = snap.settings
}
