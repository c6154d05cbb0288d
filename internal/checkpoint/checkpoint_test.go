package checkpoint

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseUnit(t *testing.T) {
	for _, u := range []Unit{Points, Batches, Epochs} {
		got, err := ParseUnit(u.String())
		if err != nil {
			t.Fatalf("ParseUnit(%q): %v", u.String(), err)
		}
		if got != u {
			t.Errorf("ParseUnit(%q) = %v, want %v", u.String(), got, u)
		}
	}
	if _, err := ParseUnit("steps"); !errors.Is(err, ErrConfig) {
		t.Errorf("ParseUnit(steps) err = %v, want ErrConfig", err)
	}
}

func TestConfigValidation(t *testing.T) {
	if _, err := NewManager(Config{Unit: Epochs, EvaluationFreq: 0, CheckpointFactor: 1}); !errors.Is(err, ErrConfig) {
		t.Errorf("zero freq err = %v, want ErrConfig", err)
	}
	if _, err := NewManager(Config{Unit: Epochs, EvaluationFreq: 1, CheckpointFactor: 0.5}); !errors.Is(err, ErrConfig) {
		t.Errorf("factor below 1 err = %v, want ErrConfig", err)
	}
}

func TestEpochTriggers(t *testing.T) {
	m, err := NewManager(Config{Unit: Epochs, EvaluationFreq: 2, CheckpointFactor: 2})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	var evals, ckpts []int
	for epoch := 1; epoch <= 8; epoch++ {
		m.Update(32)
		m.EndEpoch()
		if m.TriggerEvaluation() {
			evals = append(evals, epoch)
		}
		if m.TriggerCheckpointing() {
			ckpts = append(ckpts, epoch)
		}
	}

	wantEvals := []int{2, 4, 6, 8}
	wantCkpts := []int{4, 8}
	if len(evals) != len(wantEvals) {
		t.Fatalf("evaluations at %v, want %v", evals, wantEvals)
	}
	for i := range wantEvals {
		if evals[i] != wantEvals[i] {
			t.Errorf("evaluations at %v, want %v", evals, wantEvals)
			break
		}
	}
	if len(ckpts) != len(wantCkpts) || ckpts[0] != wantCkpts[0] || ckpts[1] != wantCkpts[1] {
		t.Errorf("checkpoints at %v, want %v", ckpts, wantCkpts)
	}

	points, batches, epochs := m.Seen()
	if points != 256 || batches != 8 || epochs != 8 {
		t.Errorf("Seen() = (%d,%d,%d), want (256,8,8)", points, batches, epochs)
	}
}

func TestPointTriggers(t *testing.T) {
	m, err := NewManager(Config{Unit: Points, EvaluationFreq: 100, CheckpointFactor: 1})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	m.Update(64)
	if m.TriggerEvaluation() {
		t.Error("evaluation triggered after 64 points, want none before 100")
	}
	m.Update(64)
	if !m.TriggerEvaluation() {
		t.Error("evaluation not triggered after 128 points")
	}
	// The counter was consumed by the trigger.
	if m.TriggerEvaluation() {
		t.Error("evaluation triggered twice without new points")
	}
}

func TestReset(t *testing.T) {
	m, err := NewManager(Config{Unit: Batches, EvaluationFreq: 1, CheckpointFactor: 1})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	m.Update(10)
	m.Reset()
	if m.TriggerEvaluation() {
		t.Error("evaluation triggered after reset")
	}
	points, batches, epochs := m.Seen()
	if points != 0 || batches != 0 || epochs != 0 {
		t.Errorf("Seen() after reset = (%d,%d,%d), want zeros", points, batches, epochs)
	}
}

func TestSaveSnapshots(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(Config{Unit: Epochs, EvaluationFreq: 1, CheckpointFactor: 1, Dir: dir})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if m.RunDir() == "" || !strings.HasPrefix(filepath.Base(m.RunDir()), "run-") {
		t.Fatalf("RunDir() = %q, want a run- directory", m.RunDir())
	}

	first, err := m.Save([]byte(`{"a":1}`))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	second, err := m.Save([]byte(`{"a":2}`))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if first == second {
		t.Errorf("snapshots share a path: %q", first)
	}
	data, err := os.ReadFile(second)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != `{"a":2}` {
		t.Errorf("snapshot content = %q", data)
	}
}

func TestSaveWithoutDir(t *testing.T) {
	m, err := NewManager(Config{Unit: Epochs, EvaluationFreq: 1, CheckpointFactor: 1})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	path, err := m.Save([]byte("x"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if path != "" {
		t.Errorf("path = %q, want empty without a directory", path)
	}
}
