package fantasy

import (
	"errors"
	"fmt"
)

var (
	ErrIncompleteLineup  = errors.New("lineup has no full starting eleven")
	ErrMissingPlayerStat = errors.New("live stat missing for picked player")
	ErrNoCaptain         = errors.New("lineup has no captain")
)

const (
	squadSize     = 15
	startersCount = 11
)

// Pick is one slot of a team's 15-man squad. Position runs 1-15; positions
// 1-11 are the starting lineup.
type Pick struct {
	PlayerID      int64
	Position      int
	IsCaptain     bool
	IsViceCaptain bool
}

// PlayerLive is the shared live-stats snapshot row for one player.
type PlayerLive struct {
	Minutes     int
	TotalPoints int
}

func (p PlayerLive) Played() bool {
	return p.Minutes > 0 || p.TotalPoints != 0
}

// TeamScore is the computed gameweek result for one team.
type TeamScore struct {
	TotalPoints   int
	CaptainPoints int
	CaptainID     int64
	ViceCaptainID int64
}

// CalculateTeamScore sums live points over the starting eleven, doubling the
// captain. When the captain did not play and the vice-captain did, the double
// shifts to the vice-captain and the captain counts at face value. Pure:
// identical inputs always produce identical output.
func CalculateTeamScore(picks []Pick, live map[int64]PlayerLive) (TeamScore, error) {
	var captainID, viceCaptainID int64
	starters := make([]Pick, 0, startersCount)
	for _, pick := range picks {
		if pick.IsCaptain {
			captainID = pick.PlayerID
		}
		if pick.IsViceCaptain {
			viceCaptainID = pick.PlayerID
		}
		if pick.Position >= 1 && pick.Position <= startersCount {
			starters = append(starters, pick)
		}
	}

	if len(starters) != startersCount {
		return TeamScore{}, fmt.Errorf("%w: got %d starters from %d picks", ErrIncompleteLineup, len(starters), len(picks))
	}
	if captainID == 0 {
		return TeamScore{}, ErrNoCaptain
	}

	captainStat, captainKnown := live[captainID]
	viceStat, viceKnown := live[viceCaptainID]
	viceGetsDouble := captainKnown && !captainStat.Played() && viceKnown && viceStat.Played()

	result := TeamScore{
		CaptainID:     captainID,
		ViceCaptainID: viceCaptainID,
	}

	for _, pick := range starters {
		stat, ok := live[pick.PlayerID]
		if !ok {
			return TeamScore{}, fmt.Errorf("%w: player=%d", ErrMissingPlayerStat, pick.PlayerID)
		}

		points := stat.TotalPoints
		doubled := (pick.PlayerID == captainID && !viceGetsDouble) ||
			(pick.PlayerID == viceCaptainID && viceGetsDouble)
		if doubled {
			points *= 2
			result.CaptainPoints = points
		}
		result.TotalPoints += points
	}

	return result, nil
}
