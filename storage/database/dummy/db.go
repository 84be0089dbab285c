package dummydb

import (
	"sync"

	"github.com/nujoom/school/core/points"
)

// Fault names a repository operation that can be made to fail.
type Fault string

const (
	FaultAggregate    Fault = "aggregate"
	FaultDelegated    Fault = "delegated"
	FaultFetch        Fault = "fetch"
	FaultCreate       Fault = "create"
	FaultOwners       Fault = "owners"
	FaultSummaryRead  Fault = "summary-read"
	FaultSummaryWrite Fault = "summary-write"
	FaultRawWrite     Fault = "raw-write"
)

type (
	// DB is an in-memory store for the ledger and the balance summaries.
	DB struct {
		mu     sync.RWMutex
		faults map[Fault]error
		calls  map[Fault]int

		// nullDelegated makes the delegated balance function return NULL.
		nullDelegated bool

		ledger  []points.Transaction
		summary map[string]points.Summary
	}
)

func Open() *DB {
	return &DB{
		faults:  make(map[Fault]error),
		calls:   make(map[Fault]int),
		summary: make(map[string]points.Summary),
	}
}

// Inject makes every later call of op fail with err. A nil err removes the fault.
func (db *DB) Inject(op Fault, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err == nil {
		delete(db.faults, op)
		return
	}
	db.faults[op] = err
}

func (db *DB) NullDelegated(null bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.nullDelegated = null
}

// Calls returns how many times op was called.
func (db *DB) Calls(op Fault) int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.calls[op]
}

// LedgerReads returns the number of ledger reads of any kind.
func (db *DB) LedgerReads() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.calls[FaultAggregate] + db.calls[FaultDelegated] + db.calls[FaultFetch]
}

// call records a call of op and returns its injected fault. Callers hold the lock.
func (db *DB) call(op Fault) error {
	db.calls[op]++
	return db.faults[op]
}
