package pipeline

import (
	"time"

	"github.com/hazyhaar/recolte/internal/faults"
)

// Operation is a transient record of one in-flight ProcessURL call. It is
// diagnostic only — never persisted, never authoritative.
type Operation struct {
	ID       string       `json:"id"`
	URL      string       `json:"url"`
	Stage    faults.Stage `json:"stage"`
	Started  time.Time    `json:"started"`
	Progress int          `json:"progress"` // 0..100
}

// stage progress checkpoints, one per pipeline stage.
var stageProgress = map[faults.Stage]int{
	faults.StageDetect:  10,
	faults.StageFetch:   30,
	faults.StageProcess: 55,
	faults.StageStore:   75,
	faults.StageIndex:   90,
}

func (o *Orchestrator) trackOperation(id, url string) {
	o.opsMu.Lock()
	defer o.opsMu.Unlock()
	o.ops[id] = &Operation{ID: id, URL: url, Started: time.Now()}
}

func (o *Orchestrator) setStage(id string, stage faults.Stage) {
	o.opsMu.Lock()
	defer o.opsMu.Unlock()
	if op, ok := o.ops[id]; ok {
		op.Stage = stage
		op.Progress = stageProgress[stage]
	}
}

func (o *Orchestrator) clearOperation(id string) {
	o.opsMu.Lock()
	defer o.opsMu.Unlock()
	delete(o.ops, id)
}

// Operations returns a snapshot of in-flight operation records.
func (o *Orchestrator) Operations() []Operation {
	o.opsMu.Lock()
	defer o.opsMu.Unlock()
	out := make([]Operation, 0, len(o.ops))
	for _, op := range o.ops {
		out = append(out, *op)
	}
	return out
}

// CancelAll discards in-flight operation bookkeeping and returns how many
// records were dropped. It is bookkeeping only: outstanding fetches and
// writes run to completion or failure in the background. Real cancellation
// is the caller's context.
func (o *Orchestrator) CancelAll() int {
	o.opsMu.Lock()
	defer o.opsMu.Unlock()
	n := len(o.ops)
	o.ops = make(map[string]*Operation)
	return n
}
