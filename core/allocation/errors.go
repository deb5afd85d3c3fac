package allocation

import "errors"

var (
	// ErrInvalidInput marks a run that cannot produce teams: no stations, a
	// non-positive team count or a zero total weight.
	ErrInvalidInput = errors.New("invalid allocation input")

	// ErrInvalidMove is wrapped by every move precondition failure.
	ErrInvalidMove      = errors.New("invalid move")
	ErrSameTeam         = errors.New("source and target team are the same")
	ErrTeamNotFound     = errors.New("team not found")
	ErrStationNotInTeam = errors.New("station is not a member of the source team")

	// ErrLockedTeam is returned by strict moves touching a locked team.
	ErrLockedTeam = errors.New("team is locked")
)
