package resume

import (
	"context"
	"encoding/json"
	"fldoe-standards/lib/osutil"
	"fldoe-standards/services/standards/db"
	"os"
	"time"
)

type StateEntry struct {
	Status       db.Status `json:"status"`
	AttemptCount int64     `json:"attempt_count"`
	LastAttempt  time.Time `json:"last_attempt"`
	Error        string    `json:"error,omitempty"`
}

// StateFile is a read-only snapshot of the ledger for operators and other tools,
// the database stays authoritative.
type StateFile struct {
	ExportedAt time.Time             `json:"exported_at"`
	Ceiling    int                   `json:"ceiling"`
	Benchmarks map[string]StateEntry `json:"benchmarks"`
}

func ReadStateFile(path string) (StateFile, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return StateFile{}, err
	}
	var state StateFile
	err = json.Unmarshal(contents, &state)
	return state, err
}

// Export writes the whole ledger to the state file, it is a no-op if no
// state file was configured.
func (t *Tracker) Export(ctx context.Context) error {
	if t.stateFile == "" {
		return nil
	}
	ctx, span := tracer.Start(ctx, "Export")
	defer span.End()

	statuses, err := t.qry.ListScrapeStatuses(ctx)
	if err != nil {
		return persistenceErr("list statuses", "", err)
	}

	state := StateFile{
		ExportedAt: t.now().UTC(),
		Ceiling:    int(t.ceiling),
		Benchmarks: make(map[string]StateEntry, len(statuses)),
	}
	for _, s := range statuses {
		state.Benchmarks[s.BenchmarkID] = StateEntry{
			Status:       s.Status,
			AttemptCount: s.AttemptCount,
			LastAttempt:  time.Unix(s.LastAttempt, 0).UTC(),
			Error:        s.ErrorMessage,
		}
	}

	contents, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return persistenceErr("encode state file", "", err)
	}
	err = osutil.WriteFileAtomic(t.stateFile, contents, 0o644)
	if err != nil {
		return persistenceErr("write state file", "", err)
	}
	return nil
}
