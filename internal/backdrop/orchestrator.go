package backdrop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"backdrop/internal/gradient"
	"backdrop/internal/imageload"
	"backdrop/internal/palette"
)

const defaultLoadTimeout = 15 * time.Second

var (
	ErrInvalidURL = errors.New(`backdrop url must be "none" or a loadable image url`)
	ErrClosed     = errors.New("backdrop orchestrator is closed")
)

type Emitter func(eventName string, payload any)

type ImageLoader interface {
	Load(ctx context.Context, req imageload.Request) *imageload.Pending
}

type Options struct {
	Extract     palette.ExtractOptions
	Layers      []gradient.Layer
	FallbackURL string
	LoadTimeout time.Duration
	Logger      *slog.Logger
}

type slot struct {
	state       SlotState
	token       uint64
	requestGen  uint64
	requestType int
	cancel      context.CancelFunc
	// stale marks an image that stays on screen until its reload is shown.
	stale bool
}

type slotSurface struct {
	state *SlotState
}

func (s slotSurface) SetBackground(css string) {
	s.state.Background = css
}

// Orchestrator alternates between two display slots so the next backdrop can
// load while the current one stays on screen.
type Orchestrator struct {
	mu           sync.Mutex
	loader       ImageLoader
	extractor    *palette.Extractor
	synthesizer  *gradient.Synthesizer
	fallbackURL  string
	loadTimeout  time.Duration
	logger       *slog.Logger
	slots        [slotCount]slot
	active       int
	lastAssigned int
	ground       bool
	url          string
	typ          int
	generation   uint64
	updatedAt    time.Time
	revision     uint64
	published    uint64
	publishMu    sync.Mutex
	closed       bool
	emit         Emitter
	onChange     func(State)
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

func NewOrchestrator(loader ImageLoader, options Options) *Orchestrator {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	loadTimeout := options.LoadTimeout
	if loadTimeout <= 0 {
		loadTimeout = defaultLoadTimeout
	}

	extractOptions := options.Extract
	if extractOptions == (palette.ExtractOptions{}) {
		extractOptions = palette.DefaultExtractOptions()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		loader:       loader,
		extractor:    palette.NewExtractor(extractOptions),
		synthesizer:  gradient.NewSynthesizer(options.Layers),
		fallbackURL:  strings.TrimSpace(options.FallbackURL),
		loadTimeout:  loadTimeout,
		logger:       logger,
		active:       -1,
		lastAssigned: slotCount - 1,
		typ:          -1,
		updatedAt:    time.Now().UTC(),
		ctx:          ctx,
		cancel:       cancel,
	}
}

func (o *Orchestrator) SetEmitter(emitter Emitter) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.emit = emitter
}

func (o *Orchestrator) SetOnChange(callback func(State)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onChange = callback
}

func (o *Orchestrator) GetState() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

func (o *Orchestrator) HandleEvent(event Event) (State, error) {
	return o.SwapBackdrop(event.URL, event.Type)
}

// SwapBackdrop switches to url. Requests equal to the current url and type
// are ignored; the latest request always decides what ends up visible.
func (o *Orchestrator) SwapBackdrop(url string, typ int) (State, error) {
	trimmed := strings.TrimSpace(url)
	if trimmed != URLNone && !imageload.IsLoadable(trimmed) {
		return o.GetState(), fmt.Errorf("%w: %q", ErrInvalidURL, url)
	}

	o.mu.Lock()
	if o.closed {
		state := o.snapshotLocked()
		o.mu.Unlock()
		return state, ErrClosed
	}
	if o.url == trimmed && o.typ == typ {
		state := o.snapshotLocked()
		o.mu.Unlock()
		return state, nil
	}

	o.url = trimmed
	o.typ = typ
	o.applyLocked(trimmed, typ)
	o.revision++
	state := o.snapshotLocked()
	o.mu.Unlock()

	o.publish(state)
	return state, nil
}

// Reload loads the current url again, e.g. after the file behind it changed.
func (o *Orchestrator) Reload() (State, error) {
	o.mu.Lock()
	if o.closed {
		state := o.snapshotLocked()
		o.mu.Unlock()
		return state, ErrClosed
	}
	if o.url == "" || o.url == URLNone {
		state := o.snapshotLocked()
		o.mu.Unlock()
		return state, nil
	}

	for index := range o.slots {
		current := &o.slots[index]
		if current.state.URL == o.url && current.state.Loaded {
			current.stale = true
		}
	}

	o.applyLocked(o.url, o.typ)
	o.revision++
	state := o.snapshotLocked()
	o.mu.Unlock()

	o.publish(state)
	return state, nil
}

// Wait blocks until every started load has been handled.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	for index := range o.slots {
		if o.slots[index].cancel != nil {
			o.slots[index].cancel()
		}
	}
	o.mu.Unlock()

	o.cancel()
	o.wg.Wait()
}

func (o *Orchestrator) applyLocked(url string, typ int) {
	o.generation++
	o.updatedAt = time.Now().UTC()

	if url == URLNone {
		o.hideLocked()
		return
	}

	if index := o.findSlotLocked(url, false); index >= 0 {
		o.showLocked(index, typ)
		return
	}

	if index := o.findSlotLocked(url, true); index >= 0 {
		o.slots[index].requestGen = o.generation
		o.slots[index].requestType = typ
		return
	}

	o.loadLocked(o.nextSlotLocked(), url, typ)
}

func (o *Orchestrator) findSlotLocked(url string, loading bool) int {
	for index := range o.slots {
		current := o.slots[index].state
		if current.URL != url || o.slots[index].stale {
			continue
		}
		if loading && current.Loading {
			return index
		}
		if !loading && current.Loaded {
			return index
		}
	}
	return -1
}

// nextSlotLocked never picks the slot on screen. With nothing on screen it
// picks the slot that was not assigned last.
func (o *Orchestrator) nextSlotLocked() int {
	if o.active >= 0 {
		return otherSlot(o.active)
	}
	return otherSlot(o.lastAssigned)
}

func otherSlot(index int) int {
	return (index + 1) % slotCount
}

func (o *Orchestrator) loadLocked(index int, url string, typ int) {
	target := &o.slots[index]
	if target.cancel != nil {
		target.cancel()
	}

	target.token++
	target.stale = false
	target.requestGen = o.generation
	target.requestType = typ
	target.state.URL = url
	target.state.Source = ""
	target.state.Loading = true
	target.state.Loaded = false
	target.state.UsedFallback = false
	target.state.LastError = ""
	target.state.Palette = nil

	ctx, cancel := context.WithTimeout(o.ctx, o.loadTimeout)
	target.cancel = cancel
	o.lastAssigned = index

	pending := o.loader.Load(ctx, imageload.Request{URL: url, FallbackURL: o.fallbackURL})
	o.logger.Debug("backdrop load started", "slot", index, "url", url, "request", pending.ID())

	o.wg.Add(1)
	go o.awaitLoad(ctx, cancel, index, target.token, url, pending)
}

func (o *Orchestrator) awaitLoad(ctx context.Context, cancel context.CancelFunc, index int, token uint64, url string, pending *imageload.Pending) {
	defer o.wg.Done()
	defer cancel()

	var result imageload.Result
	select {
	case <-pending.Done():
		result = pending.Result()
	case <-ctx.Done():
		result = imageload.Result{Source: url, Err: ctx.Err()}
	}

	var colors []palette.Pixel
	if result.OK() {
		extracted, err := o.extractor.ExtractFromImage(result.Image)
		if err != nil {
			o.logger.Warn("backdrop palette unavailable", "slot", index, "url", url, "error", err)
		} else {
			colors = extracted.Colors
		}
	}

	o.mu.Lock()
	target := &o.slots[index]
	if target.token != token {
		o.mu.Unlock()
		o.logger.Debug("backdrop load superseded", "slot", index, "url", url)
		return
	}

	target.cancel = nil
	target.state.Loading = false
	o.updatedAt = time.Now().UTC()
	o.revision++

	if !result.OK() {
		target.state.URL = ""
		if result.Err != nil {
			target.state.LastError = result.Err.Error()
		}
		state := o.snapshotLocked()
		o.mu.Unlock()

		o.logger.Warn("backdrop load failed", "slot", index, "url", url, "error", result.Err)
		o.publish(state)
		return
	}

	target.state.Loaded = true
	target.state.Source = result.Source
	target.state.UsedFallback = result.UsedFallback
	o.synthesizer.Apply(slotSurface{state: &target.state}, colors)
	if len(colors) > 0 {
		target.state.Palette = palette.PaletteColors(colors)
	}

	if target.requestGen == o.generation {
		o.showLocked(index, target.requestType)
	}
	state := o.snapshotLocked()
	o.mu.Unlock()

	o.publish(state)
}

func (o *Orchestrator) showLocked(index int, typ int) {
	for current := range o.slots {
		o.slots[current].state.Visible = current == index
		if current != index && o.slots[current].stale {
			o.slots[current].stale = false
			o.slots[current].state.URL = ""
			o.slots[current].state.Loaded = false
		}
	}
	o.slots[index].state.ImageVisible = typ != 0
	o.active = index
	o.ground = true
}

func (o *Orchestrator) hideLocked() {
	for current := range o.slots {
		o.slots[current].state.Visible = false
	}
	o.active = -1
	o.ground = false
}

func (o *Orchestrator) snapshotLocked() State {
	slots := make([]SlotState, 0, slotCount)
	for index := range o.slots {
		current := o.slots[index].state
		if current.Palette != nil {
			current.Palette = append([]palette.PaletteColor(nil), current.Palette...)
		}
		slots = append(slots, current)
	}

	return State{
		URL:           o.url,
		Type:          o.typ,
		Active:        o.active,
		GroundVisible: o.ground,
		Slots:         slots,
		Revision:      o.revision,
		UpdatedAt:     o.updatedAt.Format(time.RFC3339),
	}
}

// publish delivers snapshots in revision order; older ones are dropped.
func (o *Orchestrator) publish(state State) {
	o.publishMu.Lock()
	defer o.publishMu.Unlock()
	if state.Revision <= o.published {
		return
	}
	o.published = state.Revision

	o.mu.Lock()
	emitter := o.emit
	onChange := o.onChange
	o.mu.Unlock()

	if emitter != nil {
		emitter(EventStateChanged, state)
	}
	if onChange != nil {
		onChange(state)
	}
}
