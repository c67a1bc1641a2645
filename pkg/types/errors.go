// Copyright DTMBX, 2026. All rights reserved.

package types

import "fmt"

// StageError wraps a collaborator failure with the pipeline stage that
// produced it ("fetch", "generate", "store"). Collaborator failures are
// retryable; the stage name tells the caller which one to retry.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
