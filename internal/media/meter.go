package media

import (
	"math"
	"sync"
	"time"
)

const (
	DefaultSpeakingThreshold = 2.5
	DefaultSpeakingInterval  = 120 * time.Millisecond
	frameSize                = 256
)

// RMS of unsigned 8-bit time-domain samples centred on 128.
func RMS(frame []byte) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, b := range frame {
		v := float64(b) - 128
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(frame)))
}

// LevelMeter samples the most recent frame every interval and reports
// speaking transitions. It implements core.AudioAnalyzer.
type LevelMeter struct {
	threshold float64
	interval  time.Duration

	mu       sync.Mutex
	frame    []byte
	speaking bool
	stop     chan struct{}
	done     chan struct{}
}

func NewLevelMeter(threshold float64, interval time.Duration) *LevelMeter {
	if threshold <= 0 {
		threshold = DefaultSpeakingThreshold
	}
	if interval <= 0 {
		interval = DefaultSpeakingInterval
	}
	return &LevelMeter{threshold: threshold, interval: interval, frame: make([]byte, 0, frameSize)}
}

// Feed stores the latest microphone frame; only its tail is kept. Frames come
// from the capture producer that owns the microphone, not from this module.
func (m *LevelMeter) Feed(frame []byte) {
	if len(frame) > frameSize {
		frame = frame[len(frame)-frameSize:]
	}
	m.mu.Lock()
	m.frame = append(m.frame[:0], frame...)
	m.mu.Unlock()
}

func (m *LevelMeter) Start(onChange func(speaking bool)) {
	m.mu.Lock()
	if m.stop != nil {
		m.mu.Unlock()
		return
	}
	stop, done := make(chan struct{}), make(chan struct{})
	m.stop, m.done = stop, done
	m.speaking = false
	m.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if changed, speaking := m.evaluate(); changed && onChange != nil {
					onChange(speaking)
				}
			}
		}
	}()
}

func (m *LevelMeter) evaluate() (changed, speaking bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	active := RMS(m.frame) > m.threshold
	if active == m.speaking {
		return false, active
	}
	m.speaking = active
	return true, active
}

// Stop halts sampling and waits for the ticker goroutine. Start may be called again.
func (m *LevelMeter) Stop() {
	m.mu.Lock()
	stop, done := m.stop, m.done
	m.stop, m.done = nil, nil
	m.frame = m.frame[:0]
	m.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}
