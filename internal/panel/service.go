package panel

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nerrad567/pixelpanel/internal/reference"
	"github.com/nerrad567/pixelpanel/internal/store"
	"github.com/nerrad567/pixelpanel/internal/validation"
)

// Device is the part of the connection manager the service drives.
type Device interface {
	SubmitConfig(ctx context.Context, snapshot map[string]any) error
	IsConnected() bool
}

// Logger defines the logging interface used by the Service.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Domain errors for the panel package.
var (
	// ErrNoChanges is returned when an apply request carries no keys.
	ErrNoChanges = errors.New("panel: no changes")

	// ErrNoProposal is returned by Resubmit when nothing is pending.
	ErrNoProposal = errors.New("panel: no pending proposal")
)

// Result describes an applied change set.
type Result struct {
	// Submitted is the full snapshot sent to the device.
	Submitted store.Snapshot `json:"submitted"`

	// Config is the store config after the device echo.
	Config store.ConfigState `json:"config"`
}

// Service validates, proposes and submits config edits.
type Service struct {
	store     *store.Store
	device    Device
	validator *validation.Validator
	logger    Logger

	// applyMu keeps one submission in flight so proposals and echoes pair up.
	applyMu sync.Mutex
}

// New creates a Service. validator defaults to validation.New().
func New(st *store.Store, device Device, validator *validation.Validator, logger Logger) *Service {
	if validator == nil {
		validator = validation.New()
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Service{store: st, device: device, validator: validator, logger: logger}
}

// Validator returns the rule set in use.
func (s *Service) Validator() *validation.Validator {
	return s.validator
}

// Effective returns the snapshot edits are validated against, and whether
// it came from the device (false means firmware defaults).
func (s *Service) Effective() (store.Snapshot, bool) {
	cfg := s.store.Config()
	switch {
	case cfg.HasProposal:
		return cfg.Proposed, true
	case cfg.Confirmed != nil:
		return cfg.Confirmed, true
	}
	defaults, err := store.Normalize(reference.DefaultConfig())
	if err != nil {
		// DefaultConfig holds JSON-native values only.
		panic(fmt.Sprintf("panel: invalid default config: %v", err))
	}
	return defaults, false
}

// Validate checks changes without touching the store or the device.
// It returns nil or a *validation.Error.
func (s *Service) Validate(changes map[string]any) error {
	base, _ := s.Effective()
	return s.validator.Validate(base, changes)
}

// Propose validates changes and records them as a pending proposal.
func (s *Service) Propose(changes map[string]any) (store.Snapshot, error) {
	if len(changes) == 0 {
		return nil, ErrNoChanges
	}
	if err := s.Validate(changes); err != nil {
		return nil, err
	}
	return s.store.ProposeConfig(changes)
}

// Apply validates changes, records them as a proposal and submits the full
// snapshot to the device, waiting for the config echo.
//
// The firmware applies every key it receives, so nothing is submitted until
// the device (or persistence) has supplied a config to merge into.
//
// Errors: *validation.Error, ErrNoChanges, store.ErrNoConfig, or the
// connection errors (connection.ErrNotConnected, ErrTimeout,
// ErrConnectionLost). When submission fails the proposal stays pending so
// Resubmit can retry it.
func (s *Service) Apply(ctx context.Context, changes map[string]any) (Result, error) {
	if len(changes) == 0 {
		return Result{}, ErrNoChanges
	}

	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	base, fromDevice := s.Effective()
	if !fromDevice {
		s.logger.Warn("config edit refused, device config not known yet", "keys", len(changes))
		return Result{}, store.ErrNoConfig
	}
	if err := s.validator.Validate(base, changes); err != nil {
		return Result{}, err
	}

	snapshot, err := s.store.ProposeConfig(changes)
	if err != nil {
		return Result{}, fmt.Errorf("recording proposal: %w", err)
	}

	if err := s.device.SubmitConfig(ctx, snapshot); err != nil {
		s.logger.Warn("config submission failed", "error", err, "keys", len(changes))
		return Result{Submitted: snapshot}, err
	}

	s.logger.Info("config applied", "keys", len(changes))
	return Result{Submitted: snapshot, Config: s.store.Config()}, nil
}

// Resubmit sends the pending proposal again, e.g. after a timeout. Every
// edit in it was validated when proposed.
func (s *Service) Resubmit(ctx context.Context) (Result, error) {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	cfg := s.store.Config()
	if !cfg.HasProposal {
		return Result{}, ErrNoProposal
	}
	if err := s.device.SubmitConfig(ctx, cfg.Proposed); err != nil {
		return Result{Submitted: cfg.Proposed}, err
	}
	return Result{Submitted: cfg.Proposed, Config: s.store.Config()}, nil
}

// Discard drops the pending proposal. Reports whether one existed.
func (s *Service) Discard() bool {
	discarded := s.store.DiscardProposal()
	if discarded {
		s.logger.Info("config proposal discarded")
	}
	return discarded
}
