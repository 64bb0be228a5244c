package media

import (
	"sync"

	"github.com/pion/mediadevices/pkg/wave"
)

const probeWindow = 2048

// levelProbe keeps a rolling window of normalized time-domain samples
// from the mic pipeline for the meter to read. Lossy by design: the
// meter only needs a recent amplitude estimate.
type levelProbe struct {
	mu  sync.Mutex
	buf []float32
	pos int
}

func newLevelProbe() *levelProbe {
	return &levelProbe{buf: make([]float32, 0, probeWindow)}
}

// Samples returns a copy of the current window, oldest first not
// guaranteed; order is irrelevant for an RMS estimate.
func (p *levelProbe) Samples() []float32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.buf) == 0 {
		return nil
	}
	out := make([]float32, len(p.buf))
	copy(out, p.buf)
	return out
}

func (p *levelProbe) observe(chunk wave.Audio) {
	info := chunk.ChunkInfo()
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := 0; i < info.Len; i++ {
		s := wave.Float32SampleFormat.Convert(chunk.At(i, 0))
		f, ok := s.(wave.Float32Sample)
		if !ok {
			continue
		}
		p.push(float32(f))
	}
}

func (p *levelProbe) observeSilence(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := 0; i < n; i++ {
		p.push(0)
	}
}

func (p *levelProbe) push(v float32) {
	if len(p.buf) < probeWindow {
		p.buf = append(p.buf, v)
		return
	}
	p.buf[p.pos] = v
	p.pos = (p.pos + 1) % probeWindow
}
