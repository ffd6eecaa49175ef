package resilience

import (
	"errors"

	"github.com/crzyc98/planwise-navigator-sub019/internal/types"
)

// Action is the coarse recovery path suggested to the operator after a
// non-retryable failure.
type Action string

const (
	// ActionRetry means rerunning the same command is likely to succeed.
	ActionRetry Action = "RETRY"

	// ActionResume means rerun with --resume to continue from the last
	// completed year.
	ActionResume Action = "RESUME"

	// ActionReconfigure means the configuration or environment must be
	// fixed before rerunning.
	ActionReconfigure Action = "RECONFIGURE"

	// ActionRestore means the database file must be restored from backup or
	// deleted and rebuilt.
	ActionRestore Action = "RESTORE"

	// ActionManual means the failure needs investigation before any rerun.
	ActionManual Action = "MANUAL"
)

// Decision is the recovery guidance attached to error checkpoints and
// surfaced in CLI output.
type Decision struct {
	Action Action `json:"action"`
	Hint   string `json:"hint"`
}

// RecoveryRegistry maps failure classifications to recovery decisions.
type RecoveryRegistry struct {
	classifier *Classifier
	strategies map[types.Category]func(Classification, error) Decision
}

// NewRecoveryRegistry creates a registry with the built-in strategies.
func NewRecoveryRegistry(classifier *Classifier) *RecoveryRegistry {
	if classifier == nil {
		classifier = NewClassifier()
	}

	r := &RecoveryRegistry{
		classifier: classifier,
		strategies: make(map[types.Category]func(Classification, error) Decision),
	}

	r.strategies[types.CategoryDatabase] = func(class Classification, err error) Decision {
		if class.Severity == types.SeverityCritical {
			return Decision{
				Action: ActionRestore,
				Hint:   "the simulation database is corrupt; restore it from backup, or delete the file and rerun init",
			}
		}
		if class.Retryable {
			return Decision{
				Action: ActionRetry,
				Hint:   "the database was busy; close other connections to it and rerun the command",
			}
		}
		return Decision{
			Action: ActionManual,
			Hint:   "inspect the database error, then rerun with --resume",
		}
	}

	r.strategies[types.CategoryConfiguration] = func(class Classification, err error) Decision {
		return Decision{
			Action: ActionReconfigure,
			Hint:   "fix the configuration or environment, then rerun the command",
		}
	}

	r.strategies[types.CategoryDataQuality] = func(class Classification, err error) Decision {
		return Decision{
			Action: ActionManual,
			Hint:   "inspect the flagged tables, correct the seed data or engine models, then rerun with --resume",
		}
	}

	r.strategies[types.CategoryResource] = func(class Classification, err error) Decision {
		return Decision{
			Action: ActionRetry,
			Hint:   "free disk space or memory, then rerun with --resume",
		}
	}

	r.strategies[types.CategoryNetwork] = func(class Classification, err error) Decision {
		return Decision{
			Action: ActionRetry,
			Hint:   "a transient connection failure; rerun the command",
		}
	}

	r.strategies[types.CategoryDependency] = func(class Classification, err error) Decision {
		if class.Retryable {
			return Decision{
				Action: ActionRetry,
				Hint:   "the transformation engine failed transiently; rerun the command",
			}
		}
		return Decision{
			Action: ActionResume,
			Hint:   "rerun with --resume to continue from the last completed year",
		}
	}

	r.strategies[types.CategoryState] = func(class Classification, err error) Decision {
		return Decision{
			Action: ActionManual,
			Hint:   "the recorded run state is inconsistent; inspect checkpoints before rerunning",
		}
	}

	return r
}

// Register replaces the strategy for a category.
func (r *RecoveryRegistry) Register(category types.Category, fn func(Classification, error) Decision) {
	r.strategies[category] = fn
}

// DecisionFor classifies the error and returns the matching recovery
// decision. Retry-exhaustion wrappers are unwrapped so the decision reflects
// the underlying failure, not the wrapper.
func (r *RecoveryRegistry) DecisionFor(err error) Decision {
	if err == nil {
		return Decision{}
	}

	target := err
	if code, ok := types.CodeOf(target); ok && code == types.RETRY_EXHAUSTED {
		var ne *types.NavigatorError
		if errors.As(target, &ne) && ne.Cause != nil {
			target = ne.Cause
		}
	}

	class := r.classifier.Classify(target)
	if strategy, ok := r.strategies[class.Category]; ok {
		return strategy(class, target)
	}

	return Decision{
		Action: ActionManual,
		Hint:   "inspect the error, then rerun with --resume",
	}
}
