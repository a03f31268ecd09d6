// Package monitor runs the detection loop: detect, persist, react, sleep.
package monitor

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/user/nsmon/internal/eventlog"
	"github.com/user/nsmon/internal/model"
	"github.com/user/nsmon/internal/probes"
	"github.com/user/nsmon/internal/stats"
	"github.com/user/nsmon/internal/storage"
	"github.com/user/nsmon/internal/util"
)

// Loop timing.
const (
	ReloadEvery    = 10 * time.Second
	StaleAfter     = 30 * time.Second
	MinSleep       = 500 * time.Millisecond
	RecoverySleep  = 5 * time.Second
	safeMultiplier = 2
)

// ConfigSource provides configuration snapshots. *util.ConfigStore
// satisfies it.
type ConfigSource interface {
	Current() *util.Config
	Reload() (old, cur *util.Config, warnings []string)
}

// Detector runs one detection plan. *probes.Engine satisfies it.
type Detector interface {
	Detect(ctx context.Context, plan probes.Plan) model.DetectionResult
}

// StatusWriter persists the status snapshot.
type StatusWriter interface {
	Save(rec model.StatusRecord) error
}

// SessionRecorder stores session history.
type SessionRecorder interface {
	Start(method model.Method, startedAt time.Time) (*model.Session, error)
	End(id string, endedAt time.Time) (*model.Session, error)
}

// EventRecorder stores monitor events.
type EventRecorder interface {
	Record(eventType, description string, at time.Time) error
}

// Options wires a Loop. Sessions, Events and Notifier are optional.
type Options struct {
	Config   ConfigSource
	Engine   Detector
	Tracker  *stats.Tracker
	Buffer   *eventlog.Buffer
	Status   StatusWriter
	Sessions SessionRecorder
	Events   EventRecorder
	Notifier Notifier

	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// State is the live status visible to other goroutines.
type State struct {
	Connected     bool
	LastCheck     time.Time
	Method        model.Method
	Signals       model.Signals
	CheckDuration time.Duration
	Ticks         uint64
}

// Loop is the monitor state machine. Tick is not safe for concurrent use;
// State is.
type Loop struct {
	opts Options
	cfg  *util.Config

	previous   *bool
	lastCheck  time.Time
	lastReload time.Time
	session    *model.Session
	ticks      uint64

	state atomic.Pointer[State]
}

// New creates a loop from opts.
func New(opts Options) *Loop {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	if opts.Notifier == nil {
		opts.Notifier = NopNotifier{}
	}

	l := &Loop{
		opts: opts,
		cfg:  opts.Config.Current(),
	}
	l.lastReload = opts.Now()
	l.state.Store(&State{Method: l.cfg.Method()})
	return l
}

// State returns the latest published state.
func (l *Loop) State() State {
	return *l.state.Load()
}

// Run ticks until ctx is cancelled. A failed tick is logged and followed
// by RecoverySleep.
func (l *Loop) Run(ctx context.Context) {
	util.Info("Monitor started (method: %s, interval: %ds)", l.cfg.Method(), l.cfg.ScanInterval)

	for ctx.Err() == nil {
		next, err := l.Tick(ctx)
		if err != nil {
			util.Error("Monitor tick failed: %v", err)
			next = RecoverySleep
		}
		if err := l.opts.Sleep(ctx, next); err != nil {
			break
		}
	}

	util.Info("Monitor stopped")
}

// Tick runs one detect, persist, react cycle and returns how long to
// sleep before the next one.
func (l *Loop) Tick(ctx context.Context) (next time.Duration, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in monitor tick: %v", r)
		}
	}()

	now := l.opts.Now()
	if now.Sub(l.lastReload) >= ReloadEvery {
		l.reload(now)
	}
	cfg := l.cfg

	start := l.opts.Now()
	res := l.opts.Engine.Detect(ctx, probes.PlanFor(cfg))
	checked := l.opts.Now()
	checkDuration := checked.Sub(start)

	prevCheck := l.lastCheck
	l.lastCheck = checked
	if err := l.opts.Status.Save(storage.NewStatusRecord(res.Connected, checked, res.Method, checked)); err != nil {
		util.Warn("Failed to save status: %v", err)
	}

	previous := l.previous != nil && *l.previous
	changed := res.Connected != previous
	stale := prevCheck.IsZero() || now.Sub(prevCheck) > StaleAfter

	l.ticks++
	l.state.Store(&State{
		Connected:     res.Connected,
		LastCheck:     checked,
		Method:        res.Method,
		Signals:       res.Signals,
		CheckDuration: checkDuration,
		Ticks:         l.ticks,
	})

	if changed || stale {
		l.opts.Buffer.Append(describe(res, checkDuration))
		transition := l.opts.Tracker.OnTick(res.Connected, previous)
		l.recordTransition(transition, res, checked)
		if changed {
			l.notify(cfg, res, checked)
		}
	}

	connected := res.Connected
	l.previous = &connected

	return NextSleep(cfg.ScanEvery(), res.Connected, checkDuration), nil
}

// Close ends an open session at the current time.
func (l *Loop) Close() {
	if l.session == nil || l.opts.Sessions == nil {
		return
	}
	if _, err := l.opts.Sessions.End(l.session.ID, l.opts.Now()); err != nil {
		util.Warn("Failed to close session %s: %v", l.session.ID, err)
	}
	l.session = nil
}

// NextSleep is the adaptive delay: the scan interval while connected,
// twice that otherwise, minus the time the check took, never below MinSleep.
func NextSleep(scanInterval time.Duration, connected bool, checkDuration time.Duration) time.Duration {
	interval := scanInterval
	if !connected {
		interval *= safeMultiplier
	}
	if d := interval - checkDuration; d > MinSleep {
		return d
	}
	return MinSleep
}

func (l *Loop) reload(now time.Time) {
	l.lastReload = now
	old, cur, warnings := l.opts.Config.Reload()
	for _, w := range warnings {
		util.Warn("Config: %s", w)
	}

	if old.Method() != cur.Method() {
		msg := fmt.Sprintf("Detection method changed: %s -> %s", old.Method(), cur.Method())
		util.Info("%s", msg)
		l.opts.Buffer.Append(msg)
		l.recordEvent(model.EventConfig, msg, now)
	}
	if old.ScanInterval != cur.ScanInterval {
		msg := fmt.Sprintf("Scan interval changed: %ds -> %ds", old.ScanInterval, cur.ScanInterval)
		util.Info("%s", msg)
		l.opts.Buffer.Append(msg)
		l.recordEvent(model.EventConfig, msg, now)
	}

	l.opts.Buffer.SetPolicy(eventlog.PolicyFor(cur))
	l.cfg = cur
}

func (l *Loop) recordTransition(t stats.Transition, res model.DetectionResult, at time.Time) {
	switch t {
	case stats.SessionStarted:
		l.recordEvent(model.EventConnected, "Connection detected via "+res.Method.String()+signalSuffix(res.Signals), at)
		if l.opts.Sessions == nil {
			return
		}
		session, err := l.opts.Sessions.Start(res.Method, at)
		if err != nil {
			util.Warn("Failed to record session start: %v", err)
			return
		}
		l.session = session

	case stats.SessionEnded:
		desc := "Connection ended"
		if l.session != nil && l.opts.Sessions != nil {
			ended, err := l.opts.Sessions.End(l.session.ID, at)
			if err != nil {
				util.Warn("Failed to record session end: %v", err)
			} else {
				desc = fmt.Sprintf("Connection ended after %s", time.Duration(ended.DurationSeconds*float64(time.Second)).Round(time.Second))
			}
			l.session = nil
		}
		l.recordEvent(model.EventDisconnected, desc, at)
	}
}

func (l *Loop) notify(cfg *util.Config, res model.DetectionResult, at time.Time) {
	if !cfg.NotificationsEnabled() {
		return
	}

	n := Notification{
		Connected: res.Connected,
		At:        at,
	}
	if res.Connected {
		n.Title = "Remote connection detected"
		n.Message = "A NetSupport session is active on this computer" + signalSuffix(res.Signals)
	} else {
		n.Title = "Remote connection ended"
		n.Message = "No NetSupport session is active"
	}

	l.opts.Notifier.Notify(n)
	l.recordEvent(model.EventNotification, n.Title, at)
}

func (l *Loop) recordEvent(eventType, description string, at time.Time) {
	if l.opts.Events == nil {
		return
	}
	if err := l.opts.Events.Record(eventType, description, at); err != nil {
		util.Warn("Failed to record %s event: %v", eventType, err)
	}
}

// describe formats the event log line for a check.
func describe(res model.DetectionResult, checkDuration time.Duration) string {
	status := "SAFE - no connection"
	if res.Connected {
		status = "CONNECTED - remote session detected"
	}
	return fmt.Sprintf("%s (method: %s%s, check: %.3fs)",
		status, res.Method, signalSuffix(res.Signals), checkDuration.Seconds())
}

func signalSuffix(s model.Signals) string {
	var parts []string
	if len(s.Processes) > 0 {
		parts = append(parts, "process="+strings.Join(s.Processes, ","))
	}
	if s.Port {
		parts = append(parts, "port")
	}
	if s.Registry {
		parts = append(parts, "registry")
	}
	if len(parts) == 0 {
		return ""
	}
	return " [" + strings.Join(parts, " ") + "]"
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
