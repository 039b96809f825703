package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_ValidPaths(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		path []State
	}{
		{name: "本地策略", path: []State{StateProcessing, StateComplete}},
		{name: "加载模型", path: []State{StateLoadingModel, StateProcessing, StateComplete}},
		{name: "加载失败", path: []State{StateLoadingModel, StateFailed}},
		{name: "处理失败", path: []State{StateProcessing, StateFailed}},
		{name: "排队失败", path: []State{StateFailed}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := &recorder{}
			tr := NewTracker(rec.record)
			for _, s := range tt.path {
				require.NoError(t, tr.Transition(s))
			}
			assert.Equal(t, tt.path, rec.Sequence())
			assert.True(t, tr.State().Terminal())
		})
	}
}

func TestTracker_InvalidTransitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		from []State
		to   State
	}{
		{name: "跳过处理", to: StateComplete},
		{name: "回到空闲", from: []State{StateProcessing}, to: StateIdle},
		{name: "处理后再加载", from: []State{StateProcessing}, to: StateLoadingModel},
		{name: "完成后失败", from: []State{StateProcessing, StateComplete}, to: StateFailed},
		{name: "失败后重试", from: []State{StateFailed}, to: StateProcessing},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tr := NewTracker(nil)
			for _, s := range tt.from {
				require.NoError(t, tr.Transition(s))
			}
			before := tr.State()
			assert.ErrorIs(t, tr.Transition(tt.to), ErrInvalidTransition)
			assert.Equal(t, before, tr.State())
		})
	}
}

func TestTracker_FailIsNoopWhenTerminal(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	tr := NewTracker(rec.record)
	require.NoError(t, tr.Transition(StateProcessing))
	require.NoError(t, tr.Transition(StateComplete))

	tr.Fail()
	assert.Equal(t, StateComplete, tr.State())
	assert.Equal(t, []State{StateProcessing, StateComplete}, rec.Sequence())
}

func TestState_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "loading-model", StateLoadingModel.String())
	assert.Equal(t, "processing", StateProcessing.String())
	assert.Equal(t, "complete", StateComplete.String())
	assert.Equal(t, "failed", StateFailed.String())
}
