package task

import (
	"context"
	"fmt"
	"slices"

	"github.com/icodeforyou/pvsoiling/types"
	"github.com/looplab/fsm"
)

const (
	eventStart   = "start"
	eventSucceed = "succeed"
	eventPartial = "partial"
	eventFail    = "fail"
)

// syncMachine tracks one integration through a single sync attempt.
type syncMachine struct {
	fsm *fsm.FSM
}

func newSyncMachine(last types.SyncStatus, onEnter func(status types.SyncStatus)) *syncMachine {
	done := []string{string(types.SyncSuccess), string(types.SyncPartial), string(types.SyncError)}
	syncing := string(types.SyncSyncing)

	// A run that died half way left the row in syncing, start over from idle.
	initial := string(types.SyncIdle)
	if slices.Contains(done, string(last)) {
		initial = string(last)
	}

	return &syncMachine{
		fsm: fsm.NewFSM(
			initial,
			fsm.Events{
				{Name: eventStart, Src: append([]string{string(types.SyncIdle)}, done...), Dst: syncing},
				{Name: eventSucceed, Src: []string{syncing}, Dst: string(types.SyncSuccess)},
				{Name: eventPartial, Src: []string{syncing}, Dst: string(types.SyncPartial)},
				{Name: eventFail, Src: []string{syncing}, Dst: string(types.SyncError)},
			},
			fsm.Callbacks{
				"enter_state": func(_ context.Context, e *fsm.Event) {
					if onEnter != nil {
						onEnter(types.SyncStatus(e.Dst))
					}
				},
			},
		),
	}
}

func (m *syncMachine) trigger(ctx context.Context, event string) error {
	if err := m.fsm.Event(ctx, event); err != nil {
		return fmt.Errorf("sync state %s, event %s: %w", m.fsm.Current(), event, err)
	}
	return nil
}

func (m *syncMachine) status() types.SyncStatus {
	return types.SyncStatus(m.fsm.Current())
}

// finish moves a syncing machine to the state matching the outcome.
func (m *syncMachine) finish(ctx context.Context, status types.SyncStatus) error {
	switch status {
	case types.SyncSuccess:
		return m.trigger(ctx, eventSucceed)
	case types.SyncPartial:
		return m.trigger(ctx, eventPartial)
	default:
		return m.trigger(ctx, eventFail)
	}
}
