// Package rotation corre los cuatro triggers del ciclo de vida de claves
// (generate, deprecate, purge, status-log) sobre cron.
//
// Cada trigger es independiente: un panic o error se loguea y queda en el estado
// de ese trigger, sin afectar a los otros. Un trigger no se solapa consigo mismo.
package rotation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dropDatabas3/civicauth/internal/jwt"
	"github.com/dropDatabas3/civicauth/internal/metrics"
	"github.com/dropDatabas3/civicauth/internal/observability/logger"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	TaskGenerate  = "generate"
	TaskDeprecate = "deprecate"
	TaskPurge     = "purge"
	TaskStatusLog = "status-log"

	minThresholdDays = 30
)

// Defaults: generar el 1ro de cada mes, deprecar a diario, purgar los domingos,
// log de estado a diario. Expresiones de 6 campos (con segundos).
const (
	DefaultGenerateSchedule  = "0 0 2 1 * ?"
	DefaultDeprecateSchedule = "0 0 3 * * ?"
	DefaultPurgeSchedule     = "0 0 4 * * SUN"
	DefaultStatusLogSchedule = "0 0 9 * * ?"
)

var (
	ErrTaskNotFound = errors.New("rotation: task not found")
	ErrTaskRunning  = errors.New("rotation: task already running")
)

// KeyManager es la parte del KeyStore que muta el scheduler.
type KeyManager interface {
	GenerateKey() (string, error)
	Deprecate(olderThan time.Time) []string
	Purge() []string
	Keys() []jwt.KeyInfo
	CurrentSigningKeyID() string
}

type Config struct {
	Enabled bool

	GenerateSchedule  string
	DeprecateSchedule string
	PurgeSchedule     string
	StatusLogSchedule string

	// RefreshTTL define el umbral de deprecación.
	RefreshTTL time.Duration

	Location *time.Location
}

func (c *Config) applyDefaults() {
	if c.GenerateSchedule == "" {
		c.GenerateSchedule = DefaultGenerateSchedule
	}
	if c.DeprecateSchedule == "" {
		c.DeprecateSchedule = DefaultDeprecateSchedule
	}
	if c.PurgeSchedule == "" {
		c.PurgeSchedule = DefaultPurgeSchedule
	}
	if c.StatusLogSchedule == "" {
		c.StatusLogSchedule = DefaultStatusLogSchedule
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
}

// DeprecationThresholdDays = max(30, ceil(refreshDays * 1.5)), con refreshDays en días
// enteros. Una clave no se depreca antes de que todo refresh token que firmó haya
// podido expirar con margen.
func DeprecationThresholdDays(refreshTTL time.Duration) int {
	days := int(refreshTTL / (24 * time.Hour))
	t := int(math.Ceil(float64(days) * 1.5))
	if t < minThresholdDays {
		return minThresholdDays
	}
	return t
}

// TaskStatus es la foto de un trigger para el admin API.
type TaskStatus struct {
	Name      string    `json:"name"`
	Schedule  string    `json:"schedule"`
	Running   bool      `json:"running"`
	LastRun   time.Time `json:"last_run,omitempty"`
	LastError string    `json:"last_error,omitempty"`
	NextRun   time.Time `json:"next_run,omitempty"`
	Runs      int       `json:"runs"`
	Failures  int       `json:"failures"`
}

type task struct {
	name     string
	schedule string
	fn       func(ctx context.Context) error
	entry    cron.EntryID

	running atomic.Bool

	mu       sync.Mutex
	lastRun  time.Time
	lastErr  error
	runs     int
	failures int
}

// run ejecuta el trigger si no está corriendo ya. Los panics se convierten en error.
func (t *task) run(ctx context.Context, log *zap.Logger) (err error) {
	if !t.running.CompareAndSwap(false, true) {
		metrics.ObserveRotation(t.name, "skipped", 0)
		return ErrTaskRunning
	}
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in task %s: %v", t.name, r)
		}
		d := time.Since(start)

		t.mu.Lock()
		t.lastRun = start
		t.lastErr = err
		t.runs++
		if err != nil {
			t.failures++
		}
		t.mu.Unlock()
		t.running.Store(false)

		if err != nil {
			metrics.ObserveRotation(t.name, "error", d)
			log.Error("rotation task failed", logger.Task(t.name), logger.Err(err), logger.Duration(d))
			return
		}
		metrics.ObserveRotation(t.name, "ok", d)
	}()
	return t.fn(ctx)
}

// Scheduler orquesta los triggers. Es seguro para uso concurrente.
type Scheduler struct {
	cfg   Config
	keys  KeyManager
	cron  *cron.Cron
	tasks map[string]*task
	log   *zap.Logger
	now   func() time.Time

	started atomic.Bool
}

// Option ajusta el Scheduler.
type Option func(*Scheduler)

// WithClock fija el reloj usado para calcular el corte de deprecación.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New valida las expresiones cron y arma los cuatro triggers. No arranca nada.
func New(cfg Config, keys KeyManager, opts ...Option) (*Scheduler, error) {
	cfg.applyDefaults()
	s := &Scheduler{
		cfg:   cfg,
		keys:  keys,
		tasks: make(map[string]*task, 4),
		log:   logger.L().With(logger.Component("rotation")),
		now:   time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	s.cron = cron.New(
		cron.WithSeconds(),
		cron.WithLocation(cfg.Location),
		cron.WithLogger(cronLogger{s.log.Sugar()}),
	)

	defs := []struct {
		name, spec string
		fn         func(context.Context) error
	}{
		{TaskGenerate, cfg.GenerateSchedule, s.generate},
		{TaskDeprecate, cfg.DeprecateSchedule, s.deprecate},
		{TaskPurge, cfg.PurgeSchedule, s.purge},
		{TaskStatusLog, cfg.StatusLogSchedule, s.statusLog},
	}
	for _, d := range defs {
		t := &task{name: d.name, schedule: d.spec, fn: d.fn}
		id, err := s.cron.AddFunc(d.spec, func() {
			// ErrTaskRunning = la corrida anterior sigue en curso, se saltea
			_ = t.run(logger.ToContext(context.Background(), s.log), s.log)
		})
		if err != nil {
			return nil, fmt.Errorf("rotation: invalid schedule for %s (%q): %w", d.name, d.spec, err)
		}
		t.entry = id
		s.tasks[d.name] = t
	}
	return s, nil
}

// Start arranca el cron si la rotación automática está habilitada.
func (s *Scheduler) Start() {
	if !s.cfg.Enabled {
		s.log.Info("automatic key rotation disabled")
		return
	}
	if s.started.CompareAndSwap(false, true) {
		s.cron.Start()
		s.log.Info("automatic key rotation started",
			logger.Int("threshold_days", DeprecationThresholdDays(s.cfg.RefreshTTL)),
			logger.String("generate", s.cfg.GenerateSchedule),
			logger.String("deprecate", s.cfg.DeprecateSchedule),
			logger.String("purge", s.cfg.PurgeSchedule),
		)
	}
}

// Stop detiene el cron y espera a los jobs en curso (o a ctx).
func (s *Scheduler) Stop(ctx context.Context) error {
	if !s.started.CompareAndSwap(true, false) {
		return nil
	}
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Trigger corre un trigger a mano, sincrónicamente.
func (s *Scheduler) Trigger(ctx context.Context, name string) error {
	t, ok := s.tasks[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, name)
	}
	log := logger.From(ctx).With(logger.Component("rotation"), logger.String("trigger", "manual"))
	return t.run(logger.ToContext(ctx, log), log)
}

// Status lista el estado de los triggers ordenados por nombre.
func (s *Scheduler) Status() []TaskStatus {
	out := make([]TaskStatus, 0, len(s.tasks))
	for _, t := range s.tasks {
		st := TaskStatus{Name: t.name, Schedule: t.schedule, Running: t.running.Load()}
		t.mu.Lock()
		st.LastRun = t.lastRun
		st.Runs = t.runs
		st.Failures = t.failures
		if t.lastErr != nil {
			st.LastError = t.lastErr.Error()
		}
		t.mu.Unlock()
		if s.started.Load() {
			st.NextRun = s.cron.Entry(t.entry).Next
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ThresholdDays expone el umbral efectivo de deprecación.
func (s *Scheduler) ThresholdDays() int {
	return DeprecationThresholdDays(s.cfg.RefreshTTL)
}

// DeprecationCutoff es el instante antes del cual una clave se depreca.
func (s *Scheduler) DeprecationCutoff() time.Time {
	return s.now().Add(-time.Duration(s.ThresholdDays()) * 24 * time.Hour)
}

func (s *Scheduler) generate(ctx context.Context) error {
	kid, err := s.keys.GenerateKey()
	if err != nil {
		return err
	}
	logger.From(ctx).Info("signing key generated", logger.Task(TaskGenerate), logger.KeyID(kid))
	return nil
}

func (s *Scheduler) deprecate(ctx context.Context) error {
	cutoff := s.DeprecationCutoff()
	changed := s.keys.Deprecate(cutoff)
	logger.From(ctx).Info("old signing keys deprecated",
		logger.Task(TaskDeprecate),
		logger.Time("older_than", cutoff),
		logger.Count(len(changed)),
		logger.KeyIDs(changed),
	)
	return nil
}

func (s *Scheduler) purge(ctx context.Context) error {
	removed := s.keys.Purge()
	logger.From(ctx).Info("deprecated signing keys purged",
		logger.Task(TaskPurge),
		logger.Count(len(removed)),
		logger.KeyIDs(removed),
	)
	return nil
}

func (s *Scheduler) statusLog(ctx context.Context) error {
	active, deprecated := 0, 0
	for _, k := range s.keys.Keys() {
		switch k.Status {
		case jwt.KeyActive:
			active++
		case jwt.KeyDeprecated:
			deprecated++
		}
	}
	logger.From(ctx).Info("signing key status",
		logger.Task(TaskStatusLog),
		logger.Int("active", active),
		logger.Int("deprecated", deprecated),
		logger.KeyID(s.keys.CurrentSigningKeyID()),
	)
	return nil
}

// cronLogger adapta zap al logger que pide robfig/cron.
type cronLogger struct{ s *zap.SugaredLogger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
