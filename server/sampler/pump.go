package sampler

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/bmharper/ringbuffer"
	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/sonarlog/pkg/sample"
	"github.com/cyclopcam/sonarlog/pkg/samplering"
)

// Number of samples kept in memory for live viewers. Must be a power of 2.
const RecentHistorySize = 256

// Buffered samples per live listener, before we start dropping samples for that listener
const listenerQueueSize = 64

// Pause after a failed read or write, so that a persistent fault doesn't spin
var errorBackoff = time.Second

type PumpStats struct {
	Written   int64     `json:"written"`
	Errors    int64     `json:"errors"`
	LastError string    `json:"lastError,omitempty"`
	LastWrite time.Time `json:"lastWrite"`
	Running   bool      `json:"running"`
}

// Pump moves samples from a Source into a Cache.
// Every sample is also kept in a small in-memory history, and fanned out to live listeners.
type Pump struct {
	log    logs.Log
	source Source
	cache  *samplering.Cache

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	lock           sync.Mutex // Guards everything below
	stats          PumpStats
	recent         ringbuffer.RingP[sample.Sample]
	listeners      map[int64]chan sample.Sample
	nextListenerID int64
}

// source may be nil, if samples only arrive through Ingest
func NewPump(log logs.Log, source Source, cache *samplering.Cache) *Pump {
	return &Pump{
		log:       log,
		source:    source,
		cache:     cache,
		recent:    ringbuffer.NewRingP[sample.Sample](RecentHistorySize),
		listeners: map[int64]chan sample.Sample{},
	}
}

// Start the pump goroutine. Calling Start on a running pump, or a pump without a Source, does nothing.
func (p *Pump) Start() {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.stats.Running || p.source == nil {
		return
	}
	p.stats.Running = true
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.wg.Add(1)
	go p.run(p.ctx)
}

// Stop the pump, wait for its goroutine to exit, and close all listener channels
func (p *Pump) Stop() {
	p.lock.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.lock.Unlock()
	if cancel != nil {
		cancel()
		p.wg.Wait()
	}

	p.lock.Lock()
	defer p.lock.Unlock()
	for id, ch := range p.listeners {
		close(ch)
		delete(p.listeners, id)
	}
}

func (p *Pump) Stats() PumpStats {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.stats
}

// Recent returns up to n of the most recently pumped samples, oldest first.
// This is memory only, so it's empty after a restart, even though the cache is not.
func (p *Pump) Recent(n int) []sample.Sample {
	p.lock.Lock()
	defer p.lock.Unlock()
	n = min(n, p.recent.Len())
	if n <= 0 {
		return []sample.Sample{}
	}
	out := make([]sample.Sample, n)
	first := p.recent.Len() - n
	for i := 0; i < n; i++ {
		out[i] = p.recent.Peek(first + i)
	}
	return out
}

// Listen returns a channel that receives every sample as it is pumped, and a function that
// must be called to stop listening. A listener that falls behind misses samples.
func (p *Pump) Listen() (<-chan sample.Sample, func()) {
	p.lock.Lock()
	defer p.lock.Unlock()
	id := p.nextListenerID
	p.nextListenerID++
	ch := make(chan sample.Sample, listenerQueueSize)
	p.listeners[id] = ch
	return ch, func() {
		p.lock.Lock()
		defer p.lock.Unlock()
		if _, ok := p.listeners[id]; ok {
			delete(p.listeners, id)
			close(ch)
		}
	}
}

// Ingest writes samples that arrived from somewhere other than the pump's Source (eg an HTTP upload).
// They are written to the cache as a single batch, and then published like any other sample.
func (p *Pump) Ingest(samples []sample.Sample) error {
	if err := p.cache.WriteSlice(samples); err != nil {
		return err
	}
	for _, s := range samples {
		p.publish(s)
	}
	return nil
}

func (p *Pump) run(ctx context.Context) {
	defer p.wg.Done()
	defer func() {
		p.lock.Lock()
		p.stats.Running = false
		p.lock.Unlock()
	}()

	for {
		s, err := p.source.Next(ctx)
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, io.EOF) {
			p.log.Infof("Sample source finished")
			return
		} else if err != nil {
			p.recordError(err)
			p.log.Errorf("Failed to read sample: %v", err)
			if !sleepCtx(ctx, errorBackoff) {
				return
			}
			continue
		}

		if err := p.cache.Write(s); err != nil {
			// Keep going. A transient disk problem shouldn't stop the sounder.
			p.recordError(err)
			p.log.Errorf("Failed to write sample to cache: %v", err)
			if !sleepCtx(ctx, errorBackoff) {
				return
			}
			continue
		}
		p.publish(s)
	}
}

func (p *Pump) recordError(err error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.stats.Errors++
	p.stats.LastError = err.Error()
}

func (p *Pump) publish(s sample.Sample) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.stats.Written++
	p.stats.LastWrite = time.Now()
	p.recent.Add(s)
	for _, ch := range p.listeners {
		select {
		case ch <- s:
		default:
		}
	}
}

// Returns false if ctx was cancelled before d elapsed
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
