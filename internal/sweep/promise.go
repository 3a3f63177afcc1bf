package sweep

import (
	"context"

	"github.com/maxg/didit-sub000/internal/types"
)

// Eventual result of one build
type Promise struct {
	done   chan struct{}
	record *types.BuildRecord
	err    error
}

func pending() *Promise {
	return &Promise{done: make(chan struct{})}
}

func resolved(record *types.BuildRecord, err error) *Promise {
	p := pending()
	p.resolve(record, err)
	return p
}

func (p *Promise) resolve(record *types.BuildRecord, err error) {
	p.record = record
	p.err = err
	close(p.done)
}

// Blocks until the build finishes or ctx ends
func (p *Promise) Wait(ctx context.Context) (*types.BuildRecord, error) {
	select {
	case <-p.done:
		return p.record, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
