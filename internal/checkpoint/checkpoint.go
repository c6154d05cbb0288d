// Package checkpoint tracks training progress in configurable units and
// decides when to evaluate and when to snapshot the model. Snapshots land in
// a fresh per-run directory so repeated runs never clobber each other.
package checkpoint

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// ErrConfig indicates an invalid manager configuration.
var ErrConfig = errors.New("checkpoint: invalid configuration")

// Unit is the counter a Manager advances in.
type Unit int

const (
	// Points counts individual training examples.
	Points Unit = iota
	// Batches counts optimizer updates.
	Batches
	// Epochs counts full passes over the data.
	Epochs
)

// String returns the unit's serialized name.
func (u Unit) String() string {
	switch u {
	case Points:
		return "points"
	case Batches:
		return "batches"
	case Epochs:
		return "epochs"
	}
	return "unknown"
}

// ParseUnit converts a serialized name to a Unit.
func ParseUnit(s string) (Unit, error) {
	switch s {
	case "points":
		return Points, nil
	case "batches":
		return Batches, nil
	case "epochs":
		return Epochs, nil
	}
	return 0, fmt.Errorf("%w: unknown counter unit %q", ErrConfig, s)
}

// Config configures a Manager.
type Config struct {
	// Unit selects what EvaluationFreq is measured in.
	Unit Unit
	// EvaluationFreq is how many units pass between evaluations.
	EvaluationFreq float64
	// CheckpointFactor stretches the evaluation frequency for snapshots: a
	// checkpoint is due every EvaluationFreq*CheckpointFactor units.
	CheckpointFactor float64
	// Dir is the parent directory for run artifacts. Empty disables
	// snapshot persistence but keeps the counters working.
	Dir string
}

// Manager implements the trigger logic. It is not safe for concurrent use.
type Manager struct {
	cfg    Config
	runDir string

	pointsSeen  int
	batchesSeen int
	epochsSeen  int

	evalUnits float64
	ckptUnits float64
	ckptIndex int
}

// NewManager validates cfg and creates the run directory when persistence is
// enabled.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.EvaluationFreq <= 0 {
		return nil, fmt.Errorf("%w: evaluation frequency must be positive, got %v", ErrConfig, cfg.EvaluationFreq)
	}
	if cfg.CheckpointFactor < 1 {
		return nil, fmt.Errorf("%w: checkpoint factor must be >= 1, got %v", ErrConfig, cfg.CheckpointFactor)
	}
	m := &Manager{cfg: cfg}
	if cfg.Dir != "" {
		m.runDir = filepath.Join(cfg.Dir, "run-"+uuid.NewString())
		if err := os.MkdirAll(m.runDir, 0o755); err != nil {
			return nil, fmt.Errorf("checkpoint: create run directory: %w", err)
		}
		slog.Debug("checkpoint run directory created", "dir", m.runDir)
	}
	return m, nil
}

// RunDir returns the run directory, or "" when persistence is disabled.
func (m *Manager) RunDir() string {
	return m.runDir
}

// Update advances the point and batch counters by one batch.
func (m *Manager) Update(batchSize int) {
	m.pointsSeen += batchSize
	m.batchesSeen++
	m.advance(unitDelta(m.cfg.Unit, batchSize, false))
}

// EndEpoch advances the epoch counter.
func (m *Manager) EndEpoch() {
	m.epochsSeen++
	m.advance(unitDelta(m.cfg.Unit, 0, true))
}

func unitDelta(u Unit, batchSize int, epochEnd bool) float64 {
	switch u {
	case Points:
		return float64(batchSize)
	case Batches:
		if epochEnd {
			return 0
		}
		return 1
	case Epochs:
		if epochEnd {
			return 1
		}
		return 0
	}
	return 0
}

func (m *Manager) advance(delta float64) {
	m.evalUnits += delta
	m.ckptUnits += delta
}

// TriggerEvaluation reports whether an evaluation is due and consumes the
// accumulated units when it is.
func (m *Manager) TriggerEvaluation() bool {
	if m.evalUnits < m.cfg.EvaluationFreq {
		return false
	}
	m.evalUnits = 0
	return true
}

// TriggerCheckpointing reports whether a snapshot is due and consumes the
// accumulated units when it is.
func (m *Manager) TriggerCheckpointing() bool {
	if m.ckptUnits < m.cfg.EvaluationFreq*m.cfg.CheckpointFactor {
		return false
	}
	m.ckptUnits = 0
	return true
}

// Reset zeroes every counter. The run directory is kept.
func (m *Manager) Reset() {
	m.pointsSeen = 0
	m.batchesSeen = 0
	m.epochsSeen = 0
	m.evalUnits = 0
	m.ckptUnits = 0
}

// Seen returns the cumulative points, batches, and epochs observed.
func (m *Manager) Seen() (points, batches, epochs int) {
	return m.pointsSeen, m.batchesSeen, m.epochsSeen
}

// Save writes a model snapshot into the run directory and returns its path.
// With persistence disabled it is a no-op.
func (m *Manager) Save(payload []byte) (string, error) {
	if m.runDir == "" {
		return "", nil
	}
	m.ckptIndex++
	path := filepath.Join(m.runDir, fmt.Sprintf("checkpoint_%d.json", m.ckptIndex))
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return "", fmt.Errorf("checkpoint: write snapshot: %w", err)
	}
	slog.Debug("checkpoint written", "path", path, "index", m.ckptIndex)
	return path, nil
}
