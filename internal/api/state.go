package api

import (
	"errors"
	"fmt"

	"github.com/davidahmann/geogate/pkg/types"
)

var (
	ErrTaskSettled    = errors.New("review task already settled")
	ErrNoResolutions  = errors.New("at least one resolution is required")
	ErrUnknownTaskRef = errors.New("unknown task status")
)

// NextTaskStatus moves a review task out of pending. Tasks whose resolutions
// only drop questions are dismissed; anything else resolves them.
func NextTaskStatus(current types.TaskStatus, resolutions []types.HITLResolution) (types.TaskStatus, error) {
	switch current {
	case types.TaskPending:
	case types.TaskResolved, types.TaskDismissed:
		return current, ErrTaskSettled
	default:
		return current, fmt.Errorf("%w: %s", ErrUnknownTaskRef, current)
	}

	if len(resolutions) == 0 {
		return current, ErrNoResolutions
	}
	for _, r := range resolutions {
		if r.Resolution != types.ResolutionDrop {
			return types.TaskResolved, nil
		}
	}
	return types.TaskDismissed, nil
}
