package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"resume-editor/internal/docpatch"
	"resume-editor/internal/realtime"
	"resume-editor/internal/resumes"
	"resume-editor/internal/shared/metrics"
	"resume-editor/internal/shared/telemetry"
)

const (
	// DefaultDebounce is the quiet period before edits are written back.
	DefaultDebounce = 1500 * time.Millisecond

	storeTimeout   = 15 * time.Second
	publishTimeout = 5 * time.Second
)

// Store is the document store seen by a session. *resumes.Service satisfies it.
type Store interface {
	Get(ctx context.Context, userID, resumeID string) (resumes.Record, error)
	Current(ctx context.Context, userID string) (resumes.Record, bool, error)
	Update(ctx context.Context, userID, resumeID string, content resumes.Document) (resumes.Record, error)
}

// Deps are the collaborators of a session. They are passed explicitly so a
// session never reaches for process-wide clients.
type Deps struct {
	Store    Store
	Channel  realtime.Channel
	Now      func() time.Time
	Debounce time.Duration
}

// OpenRequest selects the resume to edit. An empty ResumeID opens the user's
// current resume, creating it from the template on first visit.
type OpenRequest struct {
	UserID   string
	ResumeID string
}

type cmdKind int

const (
	cmdApply cmdKind = iota
	cmdMerge
	cmdSave
)

type command struct {
	kind    cmdKind
	patches []docpatch.Patch
	merge   []byte
	reply   chan commandResult
	saved   chan error
}

type commandResult struct {
	snap Snapshot
	err  error
}

type saveResult struct {
	rec      resumes.Record
	version  uint64
	content  resumes.Document
	err      error
	duration time.Duration
}

type resyncResult struct {
	rec resumes.Record
	err error
}

// Session is one editor's view of a resume.
type Session struct {
	id     string
	userID string
	deps   Deps

	cmds          chan command
	saveResults   chan saveResult
	resyncResults chan resyncResult
	stop          chan struct{}
	done          chan struct{}
	closeOnce     sync.Once

	snapMu sync.RWMutex
	snap   Snapshot

	watchMu     sync.Mutex
	watchers    map[int]chan Snapshot
	nextWatcher int
	watchClosed bool

	// Owned by the run goroutine.
	resumeID      string
	state         State
	doc           resumes.Document
	version       uint64
	lastModified  time.Time
	savedAt       time.Time
	dirty         bool
	readOnly      bool
	lastErr       string
	saving        bool
	saveRequested bool
	waiters       []chan error
	inflight      []chan error
	sub           realtime.Subscription
	deliveries    <-chan realtime.Delivery
	timer         *time.Timer
	timerC        <-chan time.Time
}

// Open loads the resume and starts the session loop. The returned session is
// Ready; a load failure leaves nothing running and is returned as is.
func Open(ctx context.Context, deps Deps, req OpenRequest) (*Session, error) {
	if deps.Store == nil {
		return nil, errors.New("reconcile: store is required")
	}
	if strings.TrimSpace(req.UserID) == "" {
		return nil, fmt.Errorf("%w: user id is required", resumes.ErrInvalidInput)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Debounce <= 0 {
		deps.Debounce = DefaultDebounce
	}

	s := &Session{
		id:            uuid.NewString(),
		userID:        req.UserID,
		deps:          deps,
		cmds:          make(chan command),
		saveResults:   make(chan saveResult, 1),
		resyncResults: make(chan resyncResult, 1),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
		watchers:      make(map[int]chan Snapshot),
		state:         Idle,
	}

	s.state = Loading
	s.publishSnapshot(SourceLoad)

	var (
		rec     resumes.Record
		created bool
		err     error
	)
	if req.ResumeID != "" {
		rec, err = deps.Store.Get(ctx, req.UserID, req.ResumeID)
	} else {
		rec, created, err = deps.Store.Current(ctx, req.UserID)
	}
	if err != nil {
		s.state = Error
		s.lastErr = err.Error()
		s.publishSnapshot(SourceError)
		return nil, fmt.Errorf("load resume: %w", err)
	}

	s.resumeID = rec.ID
	s.doc = rec.Content
	if s.doc == nil {
		s.doc = resumes.Document{}
	}
	s.lastModified = rec.UpdatedAt
	s.savedAt = rec.UpdatedAt
	s.version = 1

	if deps.Channel != nil {
		sub, err := deps.Channel.Subscribe(ctx, rec.ID)
		if err != nil {
			telemetry.Warn("session.subscribe_failed", s.logFields(map[string]any{"error": err.Error()}))
		} else {
			s.sub = sub
			s.deliveries = sub.Deliveries()
		}
	}

	s.state = Ready
	s.publishSnapshot(SourceLoad)
	metrics.SessionOpened()
	telemetry.Info("session.opened", s.logFields(map[string]any{"created": created}))

	go s.run()
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// UserID returns the user the session edits on behalf of.
func (s *Session) UserID() string { return s.userID }

// ResumeID returns the resume being edited.
func (s *Session) ResumeID() string {
	return s.Snapshot().ResumeID
}

// Snapshot returns the latest view of the session.
func (s *Session) Snapshot() Snapshot {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	return s.snap
}

// Apply applies patches to the working document in order. Either all patches
// apply or none do. The returned snapshot already reflects the edit.
func (s *Session) Apply(ctx context.Context, patches ...docpatch.Patch) (Snapshot, error) {
	if len(patches) == 0 {
		return Snapshot{}, fmt.Errorf("%w: at least one patch is required", resumes.ErrInvalidInput)
	}
	return s.call(ctx, command{kind: cmdApply, patches: patches})
}

// ApplyMerge applies an RFC 7386 merge patch to the working document.
func (s *Session) ApplyMerge(ctx context.Context, mergePatch []byte) (Snapshot, error) {
	return s.call(ctx, command{kind: cmdMerge, merge: mergePatch})
}

// Save writes pending edits now and waits for the outcome. It is the retry
// path after a failed save. With nothing pending it returns nil.
func (s *Session) Save(ctx context.Context) error {
	saved := make(chan error, 1)
	cmd := command{kind: cmdSave, saved: saved}
	select {
	case s.cmds <- cmd:
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-saved:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Watch streams snapshots. Slow readers only see the newest one. The channel
// starts with the current snapshot and is closed with the session or when
// cancel is called.
func (s *Session) Watch() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if s.watchClosed {
		ch <- s.Snapshot()
		close(ch)
		return ch, func() {}
	}
	id := s.nextWatcher
	s.nextWatcher++
	s.watchers[id] = ch
	ch <- s.Snapshot()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.watchMu.Lock()
			defer s.watchMu.Unlock()
			if w, ok := s.watchers[id]; ok {
				delete(s.watchers, id)
				close(w)
			}
		})
	}
}

// Close stops the session. A pending debounced save is dropped; a save that
// is already in flight completes on its own.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.stop)
	})
	<-s.done
}

// Done is closed when the session loop has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) call(ctx context.Context, cmd command) (Snapshot, error) {
	cmd.reply = make(chan commandResult, 1)
	select {
	case s.cmds <- cmd:
	case <-s.done:
		return Snapshot{}, ErrClosed
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
	select {
	case res := <-cmd.reply:
		return res.snap, res.err
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

func (s *Session) run() {
	defer close(s.done)
	for {
		select {
		case <-s.stop:
			s.shutdown()
			return
		case cmd := <-s.cmds:
			s.handleCommand(cmd)
		case d, ok := <-s.deliveries:
			if !ok {
				telemetry.Warn("session.subscription_ended", s.logFields(nil))
				s.deliveries = nil
				continue
			}
			s.handleDelivery(d)
		case <-s.timerC:
			s.timer, s.timerC = nil, nil
			s.flush()
		case res := <-s.saveResults:
			s.handleSaveResult(res)
		case res := <-s.resyncResults:
			s.handleResync(res)
		}
	}
}

func (s *Session) handleCommand(cmd command) {
	switch cmd.kind {
	case cmdApply, cmdMerge:
		snap, err := s.applyLocal(cmd)
		cmd.reply <- commandResult{snap: snap, err: err}
	case cmdSave:
		if s.readOnly {
			cmd.saved <- ErrReadOnly
			return
		}
		if !s.dirty && !s.saving {
			cmd.saved <- nil
			return
		}
		s.waiters = append(s.waiters, cmd.saved)
		s.stopTimer()
		if s.saving {
			s.saveRequested = true
			return
		}
		s.startSave()
	}
}

func (s *Session) applyLocal(cmd command) (Snapshot, error) {
	if s.readOnly {
		return s.Snapshot(), ErrReadOnly
	}
	var (
		next map[string]any
		err  error
	)
	if cmd.kind == cmdMerge {
		next, err = docpatch.Merge(s.doc, cmd.merge)
		if err != nil {
			err = fmt.Errorf("%w: %v", resumes.ErrInvalidInput, err)
		}
	} else {
		next, err = docpatch.ApplyAll(s.doc, cmd.patches...)
	}
	if err != nil {
		return s.Snapshot(), err
	}
	doc := resumes.Document(next)
	if err := doc.Validate(); err != nil {
		return s.Snapshot(), err
	}

	s.doc = doc
	s.version++
	s.dirty = true
	s.lastModified = s.deps.Now().UTC()
	s.armTimer()
	return s.publishSnapshot(SourceLocal), nil
}

func (s *Session) handleDelivery(d realtime.Delivery) {
	if d.Resync {
		metrics.IncResyncs()
		s.startResync()
		return
	}
	ev := d.Event
	if ev == nil || ev.Origin == s.id || ev.ResumeID != s.resumeID {
		return
	}
	if !ev.SourceTimestamp.After(s.lastModified) {
		metrics.IncRemoteDiscarded()
		telemetry.Debug("session.remote_discarded", s.logFields(map[string]any{
			"origin":    ev.Origin,
			"remote_ts": ev.SourceTimestamp,
		}))
		return
	}

	metrics.IncRemoteApplied()
	s.doc = resumes.Document(ev.Content)
	if s.doc == nil {
		s.doc = resumes.Document{}
	}
	s.lastModified = ev.SourceTimestamp
	s.version++
	s.stopTimer()
	// A write still in flight carries older content; persist the adopted
	// document once it lands.
	s.dirty = s.saving
	s.publishSnapshot(SourceRemote)
}

func (s *Session) armTimer() {
	s.stopTimer()
	s.timer = time.NewTimer(s.deps.Debounce)
	s.timerC = s.timer.C
}

func (s *Session) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer, s.timerC = nil, nil
}

func (s *Session) flush() {
	if !s.dirty || s.readOnly {
		return
	}
	if s.saving {
		s.saveRequested = true
		return
	}
	s.startSave()
}

func (s *Session) startSave() {
	s.saving = true
	s.saveRequested = false
	s.state = Saving
	s.inflight = append(s.inflight, s.waiters...)
	s.waiters = nil

	store := s.deps.Store
	userID, resumeID := s.userID, s.resumeID
	content, version := s.doc, s.version
	results := s.saveResults
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		start := time.Now()
		rec, err := store.Update(ctx, userID, resumeID, content)
		results <- saveResult{rec: rec, version: version, content: content, err: err, duration: time.Since(start)}
	}()
	s.publishSnapshot(SourceSave)
}

func (s *Session) handleSaveResult(res saveResult) {
	s.saving = false
	metrics.ObserveSaveDurationMs(float64(res.duration.Microseconds()) / 1000.0)
	waiters := s.inflight
	s.inflight = nil

	if res.err != nil {
		metrics.IncSaveFailures()
		s.state = Error
		s.lastErr = res.err.Error()
		if errors.Is(res.err, resumes.ErrForbidden) {
			s.readOnly = true
			s.stopTimer()
		}
		telemetry.Error("session.save_failed", s.logFields(map[string]any{
			"error":     res.err.Error(),
			"version":   res.version,
			"read_only": s.readOnly,
		}))
		for _, w := range append(waiters, s.waiters...) {
			w <- res.err
		}
		s.waiters = nil
		s.saveRequested = false
		s.publishSnapshot(SourceError)
		return
	}

	metrics.IncSaves()
	telemetry.Debug("session.saved", s.logFields(map[string]any{
		"version":     res.version,
		"duration_ms": float64(res.duration.Microseconds()) / 1000.0,
	}))
	s.state = Ready
	s.lastErr = ""
	s.savedAt = res.rec.UpdatedAt
	if res.version == s.version {
		s.dirty = false
		if res.rec.UpdatedAt.After(s.lastModified) {
			s.lastModified = res.rec.UpdatedAt
		}
		s.publishRemote(res.content, s.lastModified)
	}
	for _, w := range waiters {
		w <- nil
	}

	// Saves requested while this write was in flight are satisfied by it
	// when no edits arrived since.
	if !s.dirty {
		for _, w := range s.waiters {
			w <- nil
		}
		s.waiters = nil
		s.saveRequested = false
	}

	if s.dirty {
		if s.saveRequested || len(s.waiters) > 0 {
			s.startSave()
			return
		}
		if s.timer == nil {
			s.armTimer()
		}
	}
	s.publishSnapshot(SourceSave)
}

func (s *Session) publishRemote(content resumes.Document, ts time.Time) {
	ch := s.deps.Channel
	if ch == nil {
		return
	}
	ev := realtime.Event{
		ResumeID:        s.resumeID,
		Content:         content,
		SourceTimestamp: ts,
		Origin:          s.id,
	}
	fields := s.logFields(nil)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := ch.Publish(ctx, ev); err != nil {
			fields["error"] = err.Error()
			telemetry.Warn("session.publish_failed", fields)
		}
	}()
}

func (s *Session) startResync() {
	store := s.deps.Store
	userID, resumeID := s.userID, s.resumeID
	results := s.resyncResults
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		rec, err := store.Get(ctx, userID, resumeID)
		select {
		case results <- resyncResult{rec: rec, err: err}:
		default:
		}
	}()
}

func (s *Session) handleResync(res resyncResult) {
	if res.err != nil {
		telemetry.Warn("session.resync_failed", s.logFields(map[string]any{"error": res.err.Error()}))
		return
	}
	if s.dirty || s.saving || !res.rec.UpdatedAt.After(s.lastModified) {
		return
	}
	s.doc = res.rec.Content
	if s.doc == nil {
		s.doc = resumes.Document{}
	}
	s.lastModified = res.rec.UpdatedAt
	s.savedAt = res.rec.UpdatedAt
	s.version++
	s.publishSnapshot(SourceResync)
}

func (s *Session) shutdown() {
	s.stopTimer()
	if s.sub != nil {
		_ = s.sub.Close()
	}
	for _, w := range s.waiters {
		w <- ErrClosed
	}
	s.waiters = nil
	// In-flight waiters are released so callers do not hang on a save whose
	// result nobody will read.
	for _, w := range s.inflight {
		w <- ErrClosed
	}
	s.inflight = nil

	snap := s.publishSnapshot(SourceClosed)
	s.watchMu.Lock()
	for id, ch := range s.watchers {
		close(ch)
		delete(s.watchers, id)
	}
	s.watchClosed = true
	s.watchMu.Unlock()

	metrics.SessionClosed()
	telemetry.Info("session.closed", s.logFields(map[string]any{
		"dirty":   snap.Dirty,
		"version": snap.Version,
	}))
}

// publishSnapshot records the current state and fans it out to watchers.
// Only the constructor and the run goroutine call it.
func (s *Session) publishSnapshot(source string) Snapshot {
	snap := Snapshot{
		SessionID:    s.id,
		ResumeID:     s.resumeID,
		UserID:       s.userID,
		State:        s.state,
		Document:     s.doc,
		Version:      s.version,
		LastModified: s.lastModified,
		SavedAt:      s.savedAt,
		Dirty:        s.dirty,
		ReadOnly:     s.readOnly,
		LastError:    s.lastErr,
		Source:       source,
	}
	s.snapMu.Lock()
	s.snap = snap
	s.snapMu.Unlock()

	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	for _, ch := range s.watchers {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
	return snap
}

func (s *Session) logFields(extra map[string]any) map[string]any {
	fields := map[string]any{
		"session_id": s.id,
		"resume_id":  s.resumeID,
		"user_id":    s.userID,
	}
	for k, v := range extra {
		fields[k] = v
	}
	return fields
}
