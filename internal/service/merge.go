package service

import (
	"database/sql"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// MergeResult classifies what an upsert did.
type MergeResult string

const (
	ResultCreated   MergeResult = "created"
	ResultUpdated   MergeResult = "updated"
	ResultUnchanged MergeResult = "unchanged"
	ResultSkipped   MergeResult = "skipped"
)

var resultRank = map[MergeResult]int{ResultSkipped: 0, ResultUnchanged: 1, ResultUpdated: 2, ResultCreated: 3}

// Combine folds results of the entities touched by one record: created
// wins over updated, which wins over unchanged.
func Combine(results ...MergeResult) MergeResult {
	out := ResultSkipped
	for _, r := range results {
		if resultRank[r] > resultRank[out] {
			out = r
		}
	}
	return out
}

// MergeEngine creates or non-destructively updates canonical entities
// matched by natural key. Writes to the same key are serialized.
type MergeEngine struct {
	orgs        OrganizationStore
	people      PersonStore
	positions   PositionStore
	holdings    HoldingStore
	regulations RegulationStore

	locks *keyedMutex
	orgMu sync.Mutex
	now   func() time.Time
	log   *logrus.Entry
}

type MergeStores struct {
	Organizations OrganizationStore
	People        PersonStore
	Positions     PositionStore
	Holdings      HoldingStore
	Regulations   RegulationStore
}

func NewMergeEngine(stores MergeStores, logger *logrus.Logger) *MergeEngine {
	return &MergeEngine{
		orgs:        stores.Organizations,
		people:      stores.People,
		positions:   stores.Positions,
		holdings:    stores.Holdings,
		regulations: stores.Regulations,
		locks:       newKeyedMutex(),
		now:         time.Now,
		log:         logger.WithField("component", "merge"),
	}
}

// keyedMutex hands out one mutex per key and forgets keys nobody holds.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedLock)}
}

// Lock blocks until key is free and returns the matching unlock.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// Field merge helpers. With overwrite set, a non-empty incoming value
// replaces a different current value. Without it, the incoming value only
// fills an empty field. Each reports whether dst changed.

func mergeText[T ~string](dst *T, src T, overwrite bool) bool {
	if src == "" || *dst == src {
		return false
	}
	if *dst != "" && !overwrite {
		return false
	}
	*dst = src
	return true
}

func mergeNullString(dst *sql.NullString, src sql.NullString, overwrite bool) bool {
	if !src.Valid || src.String == "" || (dst.Valid && dst.String == src.String) {
		return false
	}
	if dst.Valid && dst.String != "" && !overwrite {
		return false
	}
	*dst = src
	return true
}

func mergeNullTime(dst *sql.NullTime, src sql.NullTime, overwrite bool) bool {
	if !src.Valid || (dst.Valid && dst.Time.Equal(src.Time)) {
		return false
	}
	if dst.Valid && !overwrite {
		return false
	}
	*dst = src
	return true
}

func mergeNullInt(dst *sql.NullInt64, src sql.NullInt64, overwrite bool) bool {
	if !src.Valid || (dst.Valid && dst.Int64 == src.Int64) {
		return false
	}
	if dst.Valid && !overwrite {
		return false
	}
	*dst = src
	return true
}

func mergeNullUUID(dst *uuid.NullUUID, src uuid.NullUUID, overwrite bool) bool {
	if !src.Valid || (dst.Valid && dst.UUID == src.UUID) {
		return false
	}
	if dst.Valid && !overwrite {
		return false
	}
	*dst = src
	return true
}

func mergeStrings(dst *[]string, src []string, overwrite bool) bool {
	if len(src) == 0 || slices.Equal(*dst, src) {
		return false
	}
	if len(*dst) > 0 && !overwrite {
		return false
	}
	*dst = slices.Clone(src)
	return true
}

// anyChanged reports whether at least one of changes is true. Every merge call
// must run, so callers evaluate them all before folding.
func anyChanged(changes ...bool) bool {
	return slices.Contains(changes, true)
}
