package world

import "errors"

// Rejected edits. The world is unchanged when any of these is returned.
var (
	ErrOverBudget     = errors.New("over budget")
	ErrOccupied       = errors.New("voxel occupied")
	ErrPlayerBlocking = errors.New("player occupies target voxel")
	ErrNotPlaceable   = errors.New("block type cannot be placed")
	ErrSamePole       = errors.New("conductor endpoints share a pole column")
	ErrNotPole        = errors.New("conductor endpoint is not a pole")
	ErrProtected      = errors.New("challenge structure cannot be removed")
	ErrNoBlock        = errors.New("no block at target")
	ErrNoConductor    = errors.New("no such conductor")
	ErrUnknownCommand = errors.New("unknown command")
	ErrBadCommand     = errors.New("command is missing a target")
	ErrNoChallenge    = errors.New("challenge not active")
	ErrNothingToUndo  = errors.New("nothing to undo")
	ErrNothingToRedo  = errors.New("nothing to redo")
)
