package run

// Frame buffers evidence and score submissions for one concurrency domain.
// The root frame writes straight through to the State; frames forked for
// parallel branches and foreach iterations buffer locally and are absorbed
// at the join in branch/index order, which keeps the global evidence order
// deterministic regardless of completion order.
type Frame struct {
	state    *State
	evidence []Evidence
	scores   []ScoreSubmission
}

// RootFrame creates the write-through frame backing the whole run.
func RootFrame(s *State) *Frame {
	return &Frame{state: s}
}

// Fork creates a buffering frame for a concurrent branch or iteration.
func (f *Frame) Fork() *Frame {
	return &Frame{}
}

// Record appends evidence to the frame's domain.
func (f *Frame) Record(ev Evidence) {
	if f.state != nil {
		f.state.Record(ev)
		return
	}
	f.evidence = append(f.evidence, ev)
}

// RecordScore appends a score submission to the frame's domain.
func (f *Frame) RecordScore(sub ScoreSubmission) {
	if f.state != nil {
		f.state.RecordScore(sub)
		return
	}
	f.scores = append(f.scores, sub)
}

// Absorb merges a child frame's buffers into f, preserving their order.
// Callers invoke this at joins, child by child, in deterministic order.
func (f *Frame) Absorb(child *Frame) {
	if child == nil {
		return
	}
	if f.state != nil {
		f.state.RecordBatch(child.evidence)
		f.state.RecordScores(child.scores)
	} else {
		f.evidence = append(f.evidence, child.evidence...)
		f.scores = append(f.scores, child.scores...)
	}
	child.evidence = nil
	child.scores = nil
}

// Buffered reports how many evidence entries are pending absorption.
func (f *Frame) Buffered() int {
	return len(f.evidence)
}
