package label

import "fmt"

// Optimizer selects the parameter update strategy.
type Optimizer int

const (
	// OptimizerSGD is full-batch gradient descent with momentum.
	OptimizerSGD Optimizer = iota
	// OptimizerLBFGS is L-BFGS with a backtracking line search.
	OptimizerLBFGS
)

// String returns the optimizer name.
func (o Optimizer) String() string {
	switch o {
	case OptimizerSGD:
		return "sgd"
	case OptimizerLBFGS:
		return "lbfgs"
	}
	return "unknown"
}

// ParseOptimizer converts a name to an Optimizer.
func ParseOptimizer(s string) (Optimizer, error) {
	switch s {
	case "sgd":
		return OptimizerSGD, nil
	case "lbfgs":
		return OptimizerLBFGS, nil
	}
	return 0, fmt.Errorf("%w: unknown optimizer %q", ErrConfig, s)
}

// Scheduler selects the learning-rate schedule.
type Scheduler int

const (
	// SchedulerConstant keeps the learning rate fixed.
	SchedulerConstant Scheduler = iota
	// SchedulerExponential multiplies the learning rate by Gamma each epoch.
	SchedulerExponential
)

// String returns the scheduler name.
func (s Scheduler) String() string {
	switch s {
	case SchedulerConstant:
		return "constant"
	case SchedulerExponential:
		return "exponential"
	}
	return "unknown"
}

// ParseScheduler converts a name to a Scheduler.
func ParseScheduler(s string) (Scheduler, error) {
	switch s {
	case "constant":
		return SchedulerConstant, nil
	case "exponential":
		return SchedulerExponential, nil
	}
	return 0, fmt.Errorf("%w: unknown scheduler %q", ErrConfig, s)
}

// SchedulerConfig holds learning-rate schedule settings.
type SchedulerConfig struct {
	Kind  Scheduler
	Gamma float64 // decay factor for the exponential schedule
}

// TrainConfig holds the label model training hyperparameters.
type TrainConfig struct {
	NEpochs   int
	LR        float64
	Momentum  float64
	L2        []float64 // nil: no regularization; len 1: scalar; len d: per column
	PrecInit  []float64 // len 1: scalar; len m: per LF
	Seed      int64
	Tol       float64 // > 0 stops early once the loss drops below it
	Optimizer Optimizer
	Scheduler SchedulerConfig
}

// DefaultTrainConfig returns the default training configuration.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		NEpochs:   100,
		LR:        0.01,
		Momentum:  0.9,
		PrecInit:  []float64{0.7},
		Optimizer: OptimizerSGD,
		Scheduler: SchedulerConfig{Kind: SchedulerConstant, Gamma: 1.0},
	}
}

// MergeConfig overlays a partial update onto base and returns the result.
// base is not mutated. Keys follow the serialized names below; the
// "scheduler" key recurses into a nested map. Unknown keys are rejected.
func MergeConfig(base TrainConfig, updates map[string]any) (TrainConfig, error) {
	out := base
	out.L2 = append([]float64(nil), base.L2...)
	out.PrecInit = append([]float64(nil), base.PrecInit...)

	for key, value := range updates {
		var err error
		switch key {
		case "n_epochs":
			out.NEpochs, err = toInt(key, value)
		case "lr":
			out.LR, err = toFloat(key, value)
		case "momentum":
			out.Momentum, err = toFloat(key, value)
		case "l2":
			out.L2, err = toFloatVector(key, value)
		case "prec_init":
			out.PrecInit, err = toFloatVector(key, value)
		case "seed":
			var n int
			n, err = toInt(key, value)
			out.Seed = int64(n)
		case "tol":
			out.Tol, err = toFloat(key, value)
		case "optimizer":
			s, ok := value.(string)
			if !ok {
				return base, fmt.Errorf("%w: optimizer must be a string", ErrConfig)
			}
			out.Optimizer, err = ParseOptimizer(s)
		case "scheduler":
			nested, ok := value.(map[string]any)
			if !ok {
				return base, fmt.Errorf("%w: scheduler must be a map", ErrConfig)
			}
			out.Scheduler, err = mergeScheduler(out.Scheduler, nested)
		default:
			return base, fmt.Errorf("%w: unknown config key %q", ErrConfig, key)
		}
		if err != nil {
			return base, err
		}
	}
	return out, nil
}

func mergeScheduler(base SchedulerConfig, updates map[string]any) (SchedulerConfig, error) {
	out := base
	for key, value := range updates {
		switch key {
		case "kind":
			s, ok := value.(string)
			if !ok {
				return base, fmt.Errorf("%w: scheduler.kind must be a string", ErrConfig)
			}
			kind, err := ParseScheduler(s)
			if err != nil {
				return base, err
			}
			out.Kind = kind
		case "gamma":
			g, err := toFloat(key, value)
			if err != nil {
				return base, err
			}
			out.Gamma = g
		default:
			return base, fmt.Errorf("%w: unknown config key %q under scheduler", ErrConfig, key)
		}
	}
	return out, nil
}

func toInt(key string, value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("%w: %s must be an integer", ErrConfig, key)
		}
		return int(v), nil
	}
	return 0, fmt.Errorf("%w: %s must be an integer", ErrConfig, key)
}

func toFloat(key string, value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	}
	return 0, fmt.Errorf("%w: %s must be a number", ErrConfig, key)
}

func toFloatVector(key string, value any) ([]float64, error) {
	switch v := value.(type) {
	case float64:
		return []float64{v}, nil
	case int:
		return []float64{float64(v)}, nil
	case []float64:
		return append([]float64(nil), v...), nil
	case []any:
		out := make([]float64, len(v))
		for i, item := range v {
			f, err := toFloat(key, item)
			if err != nil {
				return nil, err
			}
			out[i] = f
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %s must be a number or number list", ErrConfig, key)
}
