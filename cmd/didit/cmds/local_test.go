package cmds

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxg/didit-sub000/internal/coordinator"
	"github.com/maxg/didit-sub000/internal/types"
)

type countingBuilder struct {
	running atomic.Int32
	peak    atomic.Int32
}

func (b *countingBuilder) Run(_ context.Context, spec types.Spec, onProgress func(types.Progress)) *types.BuildRecord {
	n := b.running.Add(1)
	defer b.running.Add(-1)
	for {
		peak := b.peak.Load()
		if n <= peak || b.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	onProgress(types.Progress{Stage: "compile", Message: "compiling"})
	time.Sleep(20 * time.Millisecond)
	return &types.BuildRecord{Spec: spec, Grade: &types.Score{Score: 1, OutOf: 1}}
}

func TestLocalBuilds(t *testing.T) {
	ctx := context.Background()
	builder := &countingBuilder{}
	builds := newLocalBuilds(builder, 2)

	specs := []types.Spec{
		{Kind: "labs", Proj: "lab1", Users: []string{"alice"}, Rev: "a11ce00"},
		{Kind: "labs", Proj: "lab1", Users: []string{"bob"}, Rev: "b0b0000"},
		{Kind: "labs", Proj: "lab1", Users: []string{"carol"}, Rev: "ca20100"},
	}
	monitors := make([]*coordinator.Monitor, 0, len(specs))
	for _, spec := range specs {
		monitor, err := builds.StartBuild(ctx, spec)
		require.NoError(t, err)
		defer monitor.Cancel()
		monitors = append(monitors, monitor)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	for i, monitor := range monitors {
		ev, err := monitor.Wait(waitCtx)
		require.NoError(t, err)
		assert.Equal(t, types.BuildEventDone, ev.Type)
		assert.Equal(t, specs[i], ev.Record.Spec)
	}

	assert.Equal(t, 0, builds.registry.Len())
	assert.LessOrEqual(t, builder.peak.Load(), int32(2))
}
