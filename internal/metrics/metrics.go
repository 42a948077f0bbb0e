package metrics

import (
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

// Metrics tracks pipeline counters for the process lifetime.
type Metrics struct {
	timesheetsApproved int64
	timesheetsRejected int64
	ledgerDebits       int64
	ledgerOverruns     int64
	lockConflicts      int64
	invoicesGenerated  int64
	invoicesCancelled  int64
	publishFailures    int64
}

// Snapshot is the JSON view of Metrics.
type Snapshot struct {
	TimesheetsApproved int64 `json:"timesheetsApproved"`
	TimesheetsRejected int64 `json:"timesheetsRejected"`
	LedgerDebits       int64 `json:"ledgerDebits"`
	LedgerOverruns     int64 `json:"ledgerOverruns"`
	LockConflicts      int64 `json:"lockConflicts"`
	InvoicesGenerated  int64 `json:"invoicesGenerated"`
	InvoicesCancelled  int64 `json:"invoicesCancelled"`
	PublishFailures    int64 `json:"publishFailures"`
}

var global = &Metrics{}

func Get() Snapshot {
	return Snapshot{
		TimesheetsApproved: atomic.LoadInt64(&global.timesheetsApproved),
		TimesheetsRejected: atomic.LoadInt64(&global.timesheetsRejected),
		LedgerDebits:       atomic.LoadInt64(&global.ledgerDebits),
		LedgerOverruns:     atomic.LoadInt64(&global.ledgerOverruns),
		LockConflicts:      atomic.LoadInt64(&global.lockConflicts),
		InvoicesGenerated:  atomic.LoadInt64(&global.invoicesGenerated),
		InvoicesCancelled:  atomic.LoadInt64(&global.invoicesCancelled),
		PublishFailures:    atomic.LoadInt64(&global.publishFailures),
	}
}

// Reset zeroes every counter (useful for testing)
func Reset() {
	atomic.StoreInt64(&global.timesheetsApproved, 0)
	atomic.StoreInt64(&global.timesheetsRejected, 0)
	atomic.StoreInt64(&global.ledgerDebits, 0)
	atomic.StoreInt64(&global.ledgerOverruns, 0)
	atomic.StoreInt64(&global.lockConflicts, 0)
	atomic.StoreInt64(&global.invoicesGenerated, 0)
	atomic.StoreInt64(&global.invoicesCancelled, 0)
	atomic.StoreInt64(&global.publishFailures, 0)
}

func TimesheetApproved() { atomic.AddInt64(&global.timesheetsApproved, 1) }
func TimesheetRejected() { atomic.AddInt64(&global.timesheetsRejected, 1) }
func LedgerDebit(n int) { atomic.AddInt64(&global.ledgerDebits, int64(n)) }
func LedgerOverrun() { atomic.AddInt64(&global.ledgerOverruns, 1) }
func LockConflict() { atomic.AddInt64(&global.lockConflicts, 1) }
func InvoiceGenerated() { atomic.AddInt64(&global.invoicesGenerated, 1) }
func InvoiceCancelled() { atomic.AddInt64(&global.invoicesCancelled, 1) }
func PublishFailed() { atomic.AddInt64(&global.publishFailures, 1) }

// Handler serves the current snapshot.
func Handler(c *gin.Context) {
	c.JSON(http.StatusOK, Get())
}
