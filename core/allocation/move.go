package allocation

import (
	"fmt"

	"github.com/kilianp07/teamalloc/core/model"
)

// MoveStation returns a new collection where the station with code has left
// team fromID and joined the end of team toID. Both teams are rebuilt from
// their new membership. The input collection is never modified. Locks are
// not checked; see MoveStationStrict.
func MoveStation(teams []model.Team, code, fromID, toID string) ([]model.Team, error) {
	if fromID == toID {
		return nil, fmt.Errorf("move %s: %w: %w", code, ErrInvalidMove, ErrSameTeam)
	}
	fi := model.FindTeam(teams, fromID)
	if fi < 0 {
		return nil, fmt.Errorf("move %s: %w: %w %q", code, ErrInvalidMove, ErrTeamNotFound, fromID)
	}
	ti := model.FindTeam(teams, toID)
	if ti < 0 {
		return nil, fmt.Errorf("move %s: %w: %w %q", code, ErrInvalidMove, ErrTeamNotFound, toID)
	}
	pos := teams[fi].IndexOf(code)
	if pos < 0 {
		return nil, fmt.Errorf("move %s from %s: %w: %w", code, fromID, ErrInvalidMove, ErrStationNotInTeam)
	}

	out := model.CloneTeams(teams)
	src := out[fi].Members
	station := src[pos]
	remaining := make([]model.Station, 0, len(src)-1)
	remaining = append(remaining, src[:pos]...)
	remaining = append(remaining, src[pos+1:]...)
	out[fi] = out[fi].WithMembers(remaining)
	out[ti] = out[ti].WithMembers(append(out[ti].Members, station))
	return out, nil
}

// MoveStationStrict behaves like MoveStation but refuses to touch a locked
// source or target team.
func MoveStationStrict(teams []model.Team, code, fromID, toID string) ([]model.Team, error) {
	for _, id := range []string{fromID, toID} {
		if i := model.FindTeam(teams, id); i >= 0 && teams[i].Locked {
			return nil, fmt.Errorf("move %s: %w: %s", code, ErrLockedTeam, id)
		}
	}
	return MoveStation(teams, code, fromID, toID)
}

// SetLocked returns a copy of teams with the lock flag of team id set.
func SetLocked(teams []model.Team, id string, locked bool) ([]model.Team, error) {
	i := model.FindTeam(teams, id)
	if i < 0 {
		return nil, fmt.Errorf("lock %q: %w", id, ErrTeamNotFound)
	}
	out := model.CloneTeams(teams)
	out[i].Locked = locked
	return out, nil
}
