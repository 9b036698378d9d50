// Package progress reports per-file progress of batch runs.
package progress

import (
	"fmt"
	"io"
	"sync/atomic"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// Tracker tracks progress for a single file.
type Tracker interface {
	SetStage(stage string)
	SetProgress(current, total int64)
	Done()
}

// Manager creates trackers for individual files.
type Manager interface {
	NewTracker(index, total int, filename string) Tracker
	Wait()
}

// MPBManager implements Manager using the mpb multi-progress-bar library.
type MPBManager struct {
	container *mpb.Progress
}

// NewMPBManager creates a new mpb-based progress manager writing to out.
func NewMPBManager(out io.Writer) *MPBManager {
	p := mpb.New(mpb.WithWidth(40), mpb.WithOutput(out))
	return &MPBManager{container: p}
}

// NewTracker creates a new progress tracker for a file.
func (m *MPBManager) NewTracker(index, total int, filename string) Tracker {
	stageVal := &atomic.Value{}
	stageVal.Store("")
	bar := m.container.AddBar(100,
		mpb.PrependDecorators(
			decor.Name(fmt.Sprintf("[%d/%d] %s ", index+1, total, filename), decor.WCSyncSpaceR),
		),
		mpb.AppendDecorators(
			decor.Any(func(s decor.Statistics) string {
				return stageVal.Load().(string)
			}),
		),
	)

	return &mpbTracker{bar: bar, stage: stageVal}
}

// Wait waits for all progress bars to finish.
func (m *MPBManager) Wait() {
	m.container.Wait()
}

type mpbTracker struct {
	bar   *mpb.Bar
	stage *atomic.Value
}

func (t *mpbTracker) SetStage(stage string) {
	t.stage.Store(stage)
}

func (t *mpbTracker) SetProgress(current, total int64) {
	if total > 0 {
		t.bar.SetCurrent(current * 100 / total)
	}
}

func (t *mpbTracker) Done() {
	t.bar.SetCurrent(100)
	t.bar.Abort(false) // complete without removing
}

// NoopManager is a no-op progress manager for non-interactive use. It only
// counts trackers, which tests use to confirm every file was visited.
type NoopManager struct {
	Started  int32
	Finished int32
}

func (m *NoopManager) NewTracker(index, total int, filename string) Tracker {
	atomic.AddInt32(&m.Started, 1)
	return &noopTracker{mgr: m}
}

func (m *NoopManager) Wait() {}

type noopTracker struct {
	mgr *NoopManager
}

func (t *noopTracker) SetStage(stage string)            {}
func (t *noopTracker) SetProgress(current, total int64) {}
func (t *noopTracker) Done() {
	atomic.AddInt32(&t.mgr.Finished, 1)
}
