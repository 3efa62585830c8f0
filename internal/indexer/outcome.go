package indexer

import (
	"fmt"
	"time"
)

// Action is the terminal outcome of processing one entry
type Action string

const (
	ActionIndexed            Action = "indexed"
	ActionDeleted            Action = "deleted"
	ActionDeletedAbsent      Action = "deleted_absent"
	ActionSkippedOversize    Action = "skipped_oversize"
	ActionSkippedUnsupported Action = "skipped_unsupported"
	ActionSkippedFresh       Action = "skipped_fresh"
	ActionSkippedCurrent     Action = "skipped_current"
	ActionFailed             Action = "failed"
	ActionPruned             Action = "pruned"
)

// Mode names a kind of sync run
type Mode string

const (
	ModeFull        Mode = "full"
	ModeIncremental Mode = "incremental"
)

// Outcome records what happened to one entry
type Outcome struct {
	Path       string `json:"path"`
	Action     Action `json:"action"`
	DocumentID string `json:"documentId,omitempty"`
	Err        error  `json:"-"`
}

// changed reports whether the outcome modified the index
func (o Outcome) changed() bool {
	switch o.Action {
	case ActionIndexed, ActionDeleted, ActionPruned:
		return true
	}
	return false
}

// Statistics summarizes a sync run
type Statistics struct {
	Mode          Mode           `json:"mode"`
	StartedAt     time.Time      `json:"startedAt"`
	Duration      time.Duration  `json:"duration"`
	Entries       int            `json:"entries"`
	Counts        map[Action]int `json:"counts"`
	Failures      []Outcome      `json:"failures,omitempty"`
	ErrorMessages []string       `json:"errors,omitempty"`
	// FellBack is set when an incremental run was replaced by a full sync
	FellBack bool `json:"fellBack,omitempty"`
}

func newStatistics(mode Mode) *Statistics {
	return &Statistics{
		Mode:          mode,
		StartedAt:     time.Now(),
		Counts:        make(map[Action]int),
		ErrorMessages: make([]string, 0),
	}
}

func (s *Statistics) add(o Outcome) {
	s.Counts[o.Action]++
	if o.Action == ActionFailed {
		s.Failures = append(s.Failures, o)
		s.ErrorMessages = append(s.ErrorMessages, fmt.Sprintf("%s: %v", o.Path, o.Err))
	}
}

// merge folds the counts of other into s
func (s *Statistics) merge(other *Statistics) {
	s.Entries += other.Entries
	for action, n := range other.Counts {
		s.Counts[action] += n
	}
	s.Failures = append(s.Failures, other.Failures...)
	s.ErrorMessages = append(s.ErrorMessages, other.ErrorMessages...)
}

// Changed reports whether the run modified the index
func (s *Statistics) Changed() bool {
	return s.Counts[ActionIndexed]+s.Counts[ActionDeleted]+s.Counts[ActionPruned] > 0
}

// Clone returns a deep copy
func (s *Statistics) Clone() *Statistics {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Counts = make(map[Action]int, len(s.Counts))
	for k, v := range s.Counts {
		cp.Counts[k] = v
	}
	cp.Failures = append([]Outcome(nil), s.Failures...)
	cp.ErrorMessages = append([]string(nil), s.ErrorMessages...)
	return &cp
}
