package poller

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"lpr-dashboard/internal/domain/lpr"
)

// Source is the part of the backend the poller needs.
type Source interface {
	DecodeStatus(ctx context.Context, id int) (lpr.DecodeStatus, error)
	LatestFrame(ctx context.Context, id int) (lpr.Frame, error)
}

// Poller keeps per-camera view state fresh. Every tick it issues a
// decode-status and a latest-frame request for each active camera and
// merges each answer into that camera's view only. Ticks never wait for the
// previous tick; the last response to land wins.
type Poller struct {
	source      Source
	interval    time.Duration
	idleTimeout time.Duration
	log         zerolog.Logger
	now         func() time.Time

	mu       sync.RWMutex
	order    []int
	views    map[int]*lpr.CameraView
	frames   map[int]lpr.Frame
	lastSeen time.Time

	lifecycle sync.Mutex
	stopChan  chan struct{}
	stopped   bool
	wg        sync.WaitGroup
	inflight  sync.WaitGroup
}

type Option func(*Poller)

// WithIdleTimeout suspends polling while nobody has read the state within d.
func WithIdleTimeout(d time.Duration) Option {
	return func(p *Poller) {
		p.idleTimeout = d
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Poller) {
		p.now = now
	}
}

func New(source Source, interval time.Duration, log zerolog.Logger, opts ...Option) *Poller {
	p := &Poller{
		source:   source,
		interval: interval,
		log:      log.With().Str("component", "camera_poller").Logger(),
		now:      time.Now,
		views:    map[int]*lpr.CameraView{},
		frames:   map[int]lpr.Frame{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Replace swaps the whole camera list. Status and snapshot of every camera
// go back to their defaults until the next tick re-establishes them.
func (p *Poller) Replace(cameras []lpr.Camera) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.order = make([]int, 0, len(cameras))
	p.views = make(map[int]*lpr.CameraView, len(cameras))
	p.frames = make(map[int]lpr.Frame, len(cameras))
	for _, c := range cameras {
		view := lpr.NewCameraView(c)
		p.order = append(p.order, c.ID)
		p.views[c.ID] = &view
	}
}

// Update replaces a single camera record in place, keeping its transient
// state unless the camera was deactivated. Unknown ids are ignored.
func (p *Poller) Update(camera lpr.Camera) {
	p.mu.Lock()
	defer p.mu.Unlock()

	view, ok := p.views[camera.ID]
	if !ok {
		return
	}
	if !camera.IsActive {
		*view = lpr.NewCameraView(camera)
		delete(p.frames, camera.ID)
		return
	}
	view.Camera = camera
}

// Views returns a copy of the current view state in list order.
func (p *Poller) Views() []lpr.CameraView {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]lpr.CameraView, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, *p.views[id])
	}
	return out
}

func (p *Poller) Cameras() []lpr.Camera {
	views := p.Views()
	out := make([]lpr.Camera, 0, len(views))
	for _, v := range views {
		out = append(out, v.Camera)
	}
	return out
}

func (p *Poller) View(id int) (lpr.CameraView, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	view, ok := p.views[id]
	if !ok {
		return lpr.CameraView{}, false
	}
	return *view, true
}

// Frame returns the cached snapshot of a camera, if the last fetch succeeded.
func (p *Poller) Frame(id int) (lpr.Frame, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	frame, ok := p.frames[id]
	return frame, ok
}

// Touch records that a page read the camera state.
func (p *Poller) Touch() {
	p.mu.Lock()
	p.lastSeen = p.now()
	p.mu.Unlock()
}

func (p *Poller) idle() bool {
	if p.idleTimeout <= 0 {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.now().Sub(p.lastSeen) > p.idleTimeout
}

// Start arms the ticker. Calling Start on a running or stopped poller is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()

	if p.stopChan != nil || p.stopped {
		return
	}
	p.stopChan = make(chan struct{})

	p.wg.Add(1)
	go p.loop(ctx, p.stopChan)

	p.log.Info().Dur("interval", p.interval).Msg("camera poller started")
}

// Stop releases the ticker and waits for the loop goroutine to exit.
// Requests already in flight are not cancelled; their results are dropped.
func (p *Poller) Stop() {
	p.lifecycle.Lock()
	if p.stopped {
		p.lifecycle.Unlock()
		return
	}
	p.stopped = true
	stopChan := p.stopChan
	p.lifecycle.Unlock()

	if stopChan != nil {
		close(stopChan)
	}
	p.wg.Wait()

	p.log.Info().Msg("camera poller stopped")
}

// Wait blocks until every request started by the poller has returned.
func (p *Poller) Wait() {
	p.inflight.Wait()
}

func (p *Poller) isStopped() bool {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()
	return p.stopped
}

func (p *Poller) loop(ctx context.Context, stop <-chan struct{}) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if p.idle() {
				continue
			}
			p.tick(ctx)
		}
	}
}

// PollOnce runs a single tick and waits for all of its requests.
func (p *Poller) PollOnce(ctx context.Context) {
	p.tick(ctx).Wait()
}

func (p *Poller) activeIDs() []int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ids := make([]int, 0, len(p.order))
	for _, id := range p.order {
		if p.views[id].IsActive {
			ids = append(ids, id)
		}
	}
	return ids
}

func (p *Poller) tick(ctx context.Context) *sync.WaitGroup {
	var wg sync.WaitGroup
	for _, id := range p.activeIDs() {
		wg.Add(2)
		p.inflight.Add(2)
		go func(id int) {
			defer wg.Done()
			defer p.inflight.Done()
			p.pollStatus(ctx, id)
		}(id)
		go func(id int) {
			defer wg.Done()
			defer p.inflight.Done()
			p.pollFrame(ctx, id)
		}(id)
	}
	return &wg
}

func (p *Poller) pollStatus(ctx context.Context, id int) {
	ds, err := p.source.DecodeStatus(ctx, id)
	status := lpr.DeriveStatus(ds)
	if err != nil {
		p.log.Debug().Err(err).Int("camera_id", id).Msg("decode status poll failed")
		status = lpr.StatusError
	}

	p.merge(id, func(view *lpr.CameraView) {
		if view.Status != status {
			p.log.Debug().
				Int("camera_id", id).
				Str("from", string(view.Status)).
				Str("to", string(status)).
				Msg("camera status changed")
		}
		view.Status = status
	})
}

func (p *Poller) pollFrame(ctx context.Context, id int) {
	frame, err := p.source.LatestFrame(ctx, id)
	if err != nil {
		p.log.Debug().Err(err).Int("camera_id", id).Msg("snapshot poll failed")
		p.merge(id, func(view *lpr.CameraView) {
			view.SnapshotURL = ""
			delete(p.frames, id)
		})
		return
	}

	if frame.FetchedAt.IsZero() {
		frame.FetchedAt = p.now()
	}
	p.merge(id, func(view *lpr.CameraView) {
		view.SnapshotURL = lpr.SnapshotPath(id, frame.FetchedAt)
		p.frames[id] = frame
	})
}

// merge applies fn to one camera's view under the write lock. Results for
// cameras no longer listed or no longer active, or arriving after Stop, are
// dropped.
func (p *Poller) merge(id int, fn func(view *lpr.CameraView)) {
	if p.isStopped() {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	view, ok := p.views[id]
	if !ok || !view.IsActive {
		return
	}
	fn(view)
}
