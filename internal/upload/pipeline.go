// internal/upload/pipeline.go
package upload

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"fridgetrack-sync/internal/api/scan"
	"fridgetrack-sync/internal/cache"
	apperrors "fridgetrack-sync/internal/common/errors"
	apphttp "fridgetrack-sync/internal/common/http"
	"fridgetrack-sync/internal/common/logger"
	"fridgetrack-sync/internal/common/metrics"
	"fridgetrack-sync/internal/common/observability"
	"fridgetrack-sync/internal/models"
)

// State is a step of the upload state machine.
type State string

const (
	StateEmpty              State = "empty"
	StateDragging           State = "dragging"
	StateValidating         State = "validating"
	StateCompressing        State = "compressing"
	StateTransmitting       State = "transmitting"
	StateAwaitingProcessing State = "awaiting-processing"
	StateSuccess            State = "success"
	StateError              State = "error"
)

const (
	MsgNoItems       = "No items detected. Try a clearer photo with better lighting."
	msgBusy          = "An upload is already in progress."
	msgResetInFlight = "Cannot reset while an upload is in progress."
	octetStream      = "application/octet-stream"
	compressedType   = "image/jpeg"
	compressedExt    = ".jpg"
)

var ErrInFlight = errors.New("upload in progress")

// File is an image picked by the user.
type File = scan.File

// Config bounds what the pipeline accepts and how it prepares uploads.
type Config struct {
	MaxBytes      int64
	MaxWidth      int
	CompressAbove int64
	Quality       int
	Timeout       time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxBytes:      10 * 1024 * 1024,
		MaxWidth:      1920,
		CompressAbove: 1024 * 1024,
		Quality:       80,
		Timeout:       30 * time.Second,
	}
}

// Snapshot is the observable state of the pipeline.
type Snapshot struct {
	State        State
	FileName     string
	OriginalSize int64
	UploadSize   int64
	Compressed   bool
	// Preview holds the bytes that are (or were) sent.
	Preview  []byte
	Progress int
	Result   *models.ScanResult
	Err      *apperrors.StructuredError
}

// Busy reports whether a selection is being processed.
func (s Snapshot) Busy() bool {
	switch s.State {
	case StateValidating, StateCompressing, StateTransmitting, StateAwaitingProcessing:
		return true
	}
	return false
}

// Scanner sends a prepared image to the detection service.
type Scanner interface {
	Upload(ctx context.Context, userID string, file scan.File, progress apphttp.ProgressFunc) (*models.ScanResult, error)
}

// Invalidator refreshes the queries affected by a successful scan.
type Invalidator interface {
	InvalidateUser(userID string) []cache.Key
}

type Option func(*Pipeline)

func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

func WithObservability(o *observability.Observability) Option {
	return func(p *Pipeline) { p.obs = o }
}

type listener struct {
	id uint64
	fn func(Snapshot)
}

// Pipeline drives one image at a time from selection to a scan result.
type Pipeline struct {
	cfg         Config
	scanner     Scanner
	invalidator Invalidator
	logger      logger.Logger
	obs         *observability.Observability

	// emitMu keeps listener calls in transition order.
	emitMu    sync.Mutex
	mu        sync.Mutex
	snap      Snapshot
	run       uint64
	listeners []listener
	nextID    uint64
}

func NewPipeline(cfg Config, scanner Scanner, invalidator Invalidator, opts ...Option) *Pipeline {
	def := DefaultConfig()
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = def.MaxBytes
	}
	if cfg.MaxWidth <= 0 {
		cfg.MaxWidth = def.MaxWidth
	}
	if cfg.CompressAbove <= 0 {
		cfg.CompressAbove = def.CompressAbove
	}
	if cfg.Quality <= 0 || cfg.Quality > 100 {
		cfg.Quality = def.Quality
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	p := &Pipeline{
		cfg:         cfg,
		scanner:     scanner,
		invalidator: invalidator,
		logger:      logger.NewNoOpLogger(),
		snap:        Snapshot{State: StateEmpty},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Subscribe registers fn for every state change. fn runs synchronously and
// must not call methods that change the pipeline.
func (p *Pipeline) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	p.mu.Lock()
	p.nextID++
	id := p.nextID
	p.listeners = append(p.listeners, listener{id: id, fn: fn})
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		for i, l := range p.listeners {
			if l.id == id {
				p.listeners = append(p.listeners[:i:i], p.listeners[i+1:]...)
				return
			}
		}
	}
}

func (p *Pipeline) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap
}

func (p *Pipeline) DragEnter() {
	p.transition(func(s *Snapshot) bool {
		if s.State != StateEmpty {
			return false
		}
		s.State = StateDragging
		return true
	})
}

func (p *Pipeline) DragLeave() {
	p.transition(func(s *Snapshot) bool {
		if s.State != StateDragging {
			return false
		}
		s.State = StateEmpty
		return true
	})
}

// Reset returns every local field to its initial value. It is refused while
// a selection is being processed and never touches server state.
func (p *Pipeline) Reset() error {
	var err error
	p.transition(func(s *Snapshot) bool {
		if s.Busy() {
			err = apperrors.NewValidationError(msgResetInFlight)
			return false
		}
		*s = Snapshot{State: StateEmpty}
		return true
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInFlight, err)
	}
	return nil
}

// Select runs file through validation, compression and transmission. The
// returned error is the same StructuredError the error state carries.
func (p *Pipeline) Select(ctx context.Context, userID string, file File) (*models.ScanResult, error) {
	var (
		run  uint64
		busy bool
	)
	p.transition(func(s *Snapshot) bool {
		if s.Busy() {
			busy = true
			return false
		}
		p.run++
		run = p.run
		*s = Snapshot{
			State:        StateValidating,
			FileName:     file.Name,
			OriginalSize: int64(len(file.Content)),
		}
		return true
	})
	if busy {
		return nil, apperrors.NewValidationError(msgBusy)
	}

	start := time.Now()
	log := p.logger.With(map[string]interface{}{"userId": userID, "file": file.Name})

	mimeType, err := p.validate(file)
	if err != nil {
		return nil, p.fail(ctx, run, start, "rejected", err, log)
	}

	p.transition(func(s *Snapshot) bool {
		s.State = StateCompressing
		return true
	})
	prepared := p.prepare(file, mimeType, log)

	p.transition(func(s *Snapshot) bool {
		s.State = StateTransmitting
		s.Preview = prepared.Content
		s.UploadSize = int64(len(prepared.Content))
		s.Compressed = len(prepared.Content) != len(file.Content) || prepared.ContentType != mimeType
		s.Progress = 0
		return true
	})
	metrics.UploadBytes.Observe(float64(len(prepared.Content)))

	uploadCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()
	result, err := p.scanner.Upload(uploadCtx, userID, prepared, func(percent int) {
		p.progress(run, percent)
	})
	if err != nil {
		se := apperrors.Ensure(err)
		if errors.Is(uploadCtx.Err(), context.DeadlineExceeded) && se.Status != http.StatusRequestTimeout {
			se = apperrors.NewTimeoutError(scan.MsgProcessingTimeout, http.StatusRequestTimeout, se)
		}
		outcome := "failed"
		switch se.Kind {
		case apperrors.KindTimeout:
			outcome = "timeout"
		case apperrors.KindCanceled:
			outcome = "canceled"
		}
		return nil, p.fail(ctx, run, start, outcome, se, log)
	}

	if result == nil || len(result.Items) == 0 {
		return nil, p.fail(ctx, run, start, "no_items", apperrors.NewBusinessRuleError(MsgNoItems, result), log)
	}

	p.transition(func(s *Snapshot) bool {
		s.State = StateSuccess
		s.Progress = 100
		s.Result = result
		return true
	})
	if p.invalidator != nil {
		p.invalidator.InvalidateUser(userID)
	}
	p.finish(ctx, start, "success")
	log.Info("upload succeeded", map[string]interface{}{
		"scanId":     result.ScanID,
		"items":      len(result.Items),
		"uploadSize": len(prepared.Content),
	})
	return result, nil
}

// validate checks size and type before any I/O and returns the MIME type.
func (p *Pipeline) validate(file File) (string, error) {
	size := int64(len(file.Content))
	if size == 0 {
		return "", apperrors.NewValidationError(fmt.Sprintf("%q is empty.", file.Name))
	}

	mimeType := declaredType(file.ContentType)
	if mimeType == "" {
		mimeType = declaredType(mimetype.Detect(file.Content).String())
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return "", apperrors.NewValidationError(fmt.Sprintf(
			"%q is a %s file, not an image. Please choose a JPEG, PNG or WebP photo.", file.Name, mimeType))
	}

	if size > p.cfg.MaxBytes {
		return "", apperrors.NewValidationError(fmt.Sprintf(
			"%q is %s. The maximum size is %s.", file.Name, humanSize(size), humanSize(p.cfg.MaxBytes)))
	}
	return mimeType, nil
}

// prepare compresses the image when worthwhile, falling back to the
// original bytes on any failure.
func (p *Pipeline) prepare(file File, mimeType string, log logger.Logger) File {
	out, ok, err := compress(file.Content, p.cfg)
	if err != nil {
		log.Warn("compression skipped", map[string]interface{}{"error": err.Error()})
	}
	if !ok {
		return File{Name: file.Name, ContentType: mimeType, Content: file.Content}
	}
	log.Debug("image compressed", map[string]interface{}{
		"originalSize":   len(file.Content),
		"compressedSize": len(out),
	})
	name := strings.TrimSuffix(file.Name, filepath.Ext(file.Name)) + compressedExt
	return File{Name: name, ContentType: compressedType, Content: out}
}

func (p *Pipeline) progress(run uint64, percent int) {
	p.transition(func(s *Snapshot) bool {
		if p.run != run || (s.State != StateTransmitting && s.State != StateAwaitingProcessing) {
			return false
		}
		if percent <= s.Progress {
			return false
		}
		s.Progress = percent
		if percent >= 100 {
			s.State = StateAwaitingProcessing
		}
		return true
	})
}

func (p *Pipeline) fail(ctx context.Context, run uint64, start time.Time, outcome string, err error, log logger.Logger) error {
	se := apperrors.Ensure(err)
	p.transition(func(s *Snapshot) bool {
		if p.run != run {
			return false
		}
		s.State = StateError
		s.Err = se
		return true
	})
	p.finish(ctx, start, outcome)
	log.Warn("upload failed", map[string]interface{}{
		"outcome": outcome,
		"status":  se.Status,
		"kind":    string(se.Kind),
		"message": se.Message,
	})
	return se
}

func (p *Pipeline) finish(ctx context.Context, start time.Time, outcome string) {
	metrics.Uploads.WithLabelValues(outcome).Inc()
	p.obs.RecordUpload(ctx, outcome, time.Since(start))
}

// transition applies fn under the state lock and notifies listeners when it
// reports a change.
func (p *Pipeline) transition(fn func(s *Snapshot) bool) {
	p.emitMu.Lock()
	defer p.emitMu.Unlock()

	p.mu.Lock()
	changed := fn(&p.snap)
	snap := p.snap
	ls := append([]listener(nil), p.listeners...)
	p.mu.Unlock()

	if !changed {
		return
	}
	for _, l := range ls {
		l.fn(snap)
	}
}

func declaredType(ct string) string {
	ct = strings.TrimSpace(strings.ToLower(ct))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct == octetStream {
		return ""
	}
	return ct
}

func humanSize(n int64) string {
	const mb = 1024 * 1024
	if n >= mb {
		return fmt.Sprintf("%.1f MB", float64(n)/mb)
	}
	return fmt.Sprintf("%.0f KB", float64(n)/1024)
}
