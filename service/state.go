package service

import (
	"errors"
	"fmt"
	"sync"
)

// State 请求处理状态
type State int

const (
	StateIdle State = iota
	StateLoadingModel
	StateProcessing
	StateComplete
	StateFailed
)

var ErrInvalidTransition = errors.New("invalid state transition")

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoadingModel:
		return "loading-model"
	case StateProcessing:
		return "processing"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal complete 和 failed 之后不再变化
func (s State) Terminal() bool {
	return s == StateComplete || s == StateFailed
}

var transitions = map[State][]State{
	StateIdle:         {StateLoadingModel, StateProcessing, StateFailed},
	StateLoadingModel: {StateProcessing, StateFailed},
	StateProcessing:   {StateComplete, StateFailed},
}

// Tracker 记录单个请求的状态，非法迁移返回 ErrInvalidTransition
type Tracker struct {
	mu       sync.Mutex
	state    State
	onChange func(from, to State)
}

func NewTracker(onChange func(from, to State)) *Tracker {
	return &Tracker{onChange: onChange}
}

func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Tracker) Transition(to State) error {
	t.mu.Lock()
	from := t.state
	allowed := false
	for _, s := range transitions[from] {
		if s == to {
			allowed = true
			break
		}
	}
	if !allowed {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	t.state = to
	t.mu.Unlock()

	if t.onChange != nil {
		t.onChange(from, to)
	}
	return nil
}

// Fail 非终止状态下转入 failed，已终止时不做任何事
func (t *Tracker) Fail() {
	if t.State().Terminal() {
		return
	}
	_ = t.Transition(StateFailed)
}
