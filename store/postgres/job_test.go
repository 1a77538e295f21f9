package postgres

import (
	"strings"
	"testing"
)

// The claim statement must take the queue row and the job row in the
// same locking clause. CancelJob locks the job row first and the queue
// row second; a claim that locked only the queue row before touching the
// job row would wait on a concurrent cancel that is waiting on the
// claim's queue-row lock, and the server would abort one of the two.
// Locking both rows up front lets SKIP LOCKED step over a contested head
// instead.
func TestClaimLocksQueueAndJobRowsTogether(t *testing.T) {
	t.Parallel()

	if !strings.Contains(claimQuery, "FOR UPDATE OF q, j SKIP LOCKED") {
		t.Fatalf("claim query must lock both the queue and job rows with SKIP LOCKED:\n%s", claimQuery)
	}

	// The whole transition is one statement; a second round trip would
	// reopen the window the locking clause closes.
	for _, clause := range []string{"WITH head AS", "DELETE FROM execq_queue", "UPDATE execq_jobs", "RETURNING"} {
		if !strings.Contains(claimQuery, clause) {
			t.Errorf("claim query missing %q", clause)
		}
	}
}
