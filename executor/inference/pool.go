package inference

import (
	"fmt"
	"sync/atomic"

	"github.com/brensch/atlantis/game"
)

// OnnxPool spreads Predict calls over several OnnxClient sessions, each with
// its own batching loop. A request goes to the session with the shortest
// queue; ties rotate.
type OnnxPool struct {
	clients []*OnnxClient
	next    atomic.Uint64
}

func NewOnnxClientPool(modelPath string, sessions int) (*OnnxPool, error) {
	return NewOnnxClientPoolWithConfig(modelPath, sessions, OnnxClientConfig{})
}

func NewOnnxClientPoolWithConfig(modelPath string, sessions int, cfg OnnxClientConfig) (*OnnxPool, error) {
	sessions = max(sessions, 1)
	p := &OnnxPool{clients: make([]*OnnxClient, 0, sessions)}
	for i := range sessions {
		c, err := NewOnnxClientWithConfig(modelPath, cfg)
		if err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("onnx session %d of %d: %w", i+1, sessions, err)
		}
		p.clients = append(p.clients, c)
	}
	return p, nil
}

// Stats sums the counters of every session. LastBatchSize is the largest
// last batch seen by any session.
func (p *OnnxPool) Stats() RuntimeStats {
	var total RuntimeStats
	for _, c := range p.clients {
		st := c.Stats()
		total.TotalBatches += st.TotalBatches
		total.TotalItems += st.TotalItems
		total.TotalRunNanos += st.TotalRunNanos
		total.QueueLen += st.QueueLen
		total.LastBatchSize = max(total.LastBatchSize, st.LastBatchSize)
	}
	if total.TotalBatches > 0 {
		total.AvgBatchSize = float64(total.TotalItems) / float64(total.TotalBatches)
		total.AvgRunMs = float64(total.TotalRunNanos) / 1e6 / float64(total.TotalBatches)
	}
	return total
}

func (p *OnnxPool) pick() *OnnxClient {
	n := len(p.clients)
	start := int(p.next.Add(1) % uint64(n))
	best := p.clients[start]
	for i := 1; i < n && len(best.requestsChan) > 0; i++ {
		c := p.clients[(start+i)%n]
		if len(c.requestsChan) < len(best.requestsChan) {
			best = c
		}
	}
	return best
}

func (p *OnnxPool) Predict(cfg *game.Config, state *game.State) ([]float32, []float32, error) {
	if len(p.clients) == 0 {
		return nil, nil, fmt.Errorf("onnx pool has no sessions")
	}
	return p.pick().Predict(cfg, state)
}

func (p *OnnxPool) Close() error {
	var firstErr error
	for _, c := range p.clients {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
