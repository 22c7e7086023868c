package editor

import (
	"context"
	"time"

	"github.com/aretw0/proofline/pkg/domain"
)

// Pending is the handle of one admitted analysis.
type Pending struct {
	StartedAt time.Time

	done   chan struct{}
	result *domain.AnalysisResult
	err    error
}

func newPending() *Pending {
	return &Pending{
		StartedAt: time.Now(),
		done:      make(chan struct{}),
	}
}

func (p *Pending) resolve(res *domain.AnalysisResult, err error) {
	p.result = res
	p.err = err
	close(p.done)
}

// Done is closed once the completion event has been applied to the state.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the analysis completes or ctx is done.
// Giving up on ctx does not abort the analysis.
func (p *Pending) Wait(ctx context.Context) (*domain.AnalysisResult, error) {
	select {
	case <-p.done:
		return p.result, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
