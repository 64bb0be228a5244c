package voice

import (
	"math"
	"sync"
	"time"

	"github.com/voxium/client/internal/core"
)

// meterGain scales raw RMS into the displayed 0..1 range. Speaking at
// normal distance from the mic should light most of the bars.
const meterGain = 7.5

const meterInterval = 50 * time.Millisecond

// Meter is the non-authoritative mic level feedback loop. It samples
// the local capture's time-domain amplitude on a fixed cadence and
// renders an RMS-derived level. It never affects voice connectivity:
// a missing sample source degrades to a constant zero reading.
type Meter struct {
	display core.MeterDisplay

	mu   sync.Mutex
	stop chan struct{}
}

func NewMeter(display core.MeterDisplay) *Meter {
	return &Meter{display: display}
}

// Start begins sampling src, rendering through the display until Stop.
// src may be nil; status is polled every tick so mute/deafen flips
// show up immediately.
func (m *Meter) Start(src core.SampleSource, status func() core.MeterStatus) {
	m.Stop()

	m.mu.Lock()
	stop := make(chan struct{})
	m.stop = stop
	m.mu.Unlock()

	go m.run(src, status, stop)
}

// Stop tears the loop down and resets the display to zero.
func (m *Meter) Stop() {
	m.mu.Lock()
	if m.stop != nil {
		close(m.stop)
		m.stop = nil
	}
	m.mu.Unlock()
	m.render(0, core.MeterInactive)
}

func (m *Meter) run(src core.SampleSource, status func() core.MeterStatus, stop chan struct{}) {
	ticker := time.NewTicker(meterInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			st := status()
			if st != core.MeterListening {
				m.render(0, st)
				continue
			}
			var level float64
			if src != nil {
				level = Level(src.Samples())
			}
			m.render(level, st)
		}
	}
}

func (m *Meter) render(level float64, status core.MeterStatus) {
	if m.display != nil {
		m.display.RenderLevel(level, status)
	}
}

// Level converts one window of time-domain samples into a display
// level: RMS amplitude, scaled and clamped to 0..1.
func Level(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, v := range samples {
		f := float64(v)
		sum += f * f
	}
	rms := math.Sqrt(sum / float64(len(samples)))
	return math.Min(1, rms*meterGain)
}
