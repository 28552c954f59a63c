package indexer

// Outcome is what a sync pass did with one file.
type Outcome string

// File outcomes
const (
	OutcomeIndexed Outcome = "indexed"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// Observer receives progress events from a sync pass. Calls happen on the
// goroutine running the pass.
type Observer interface {
	OnPassStart(total int)
	OnFileDone(path string, outcome Outcome)
	OnPassComplete(stats *Statistics)
}

// NopObserver ignores all events.
type NopObserver struct{}

func (NopObserver) OnPassStart(int)            {}
func (NopObserver) OnFileDone(string, Outcome) {}
func (NopObserver) OnPassComplete(*Statistics) {}
