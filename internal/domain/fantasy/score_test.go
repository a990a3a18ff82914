package fantasy

import (
	"errors"
	"testing"
)

func fullSquad(captainID, viceID int64) []Pick {
	picks := make([]Pick, 0, squadSize)
	for i := 1; i <= squadSize; i++ {
		id := int64(i)
		picks = append(picks, Pick{
			PlayerID:      id,
			Position:      i,
			IsCaptain:     id == captainID,
			IsViceCaptain: id == viceID,
		})
	}
	return picks
}

func liveFor(picks []Pick, points int) map[int64]PlayerLive {
	live := make(map[int64]PlayerLive, len(picks))
	for _, pick := range picks {
		live[pick.PlayerID] = PlayerLive{Minutes: 90, TotalPoints: points}
	}
	return live
}

func TestCalculateTeamScoreDoublesCaptain(t *testing.T) {
	t.Parallel()

	picks := fullSquad(3, 7)
	live := liveFor(picks, 4)

	score, err := CalculateTeamScore(picks, live)
	if err != nil {
		t.Fatalf("calculate team score: %v", err)
	}
	if score.TotalPoints != 11*4+4 {
		t.Fatalf("expected 48 points, got %d", score.TotalPoints)
	}
	if score.CaptainPoints != 8 {
		t.Fatalf("expected captain points 8, got %d", score.CaptainPoints)
	}
	if score.CaptainID != 3 || score.ViceCaptainID != 7 {
		t.Fatalf("unexpected armband ids: captain=%d vice=%d", score.CaptainID, score.ViceCaptainID)
	}
}

func TestCalculateTeamScoreViceFallback(t *testing.T) {
	t.Parallel()

	picks := fullSquad(3, 7)
	live := liveFor(picks, 2)
	live[3] = PlayerLive{Minutes: 0, TotalPoints: 0}

	score, err := CalculateTeamScore(picks, live)
	if err != nil {
		t.Fatalf("calculate team score: %v", err)
	}
	// 10 starters at 2, captain at 0, vice doubled to 4.
	if score.TotalPoints != 9*2+0+4 {
		t.Fatalf("expected 22 points, got %d", score.TotalPoints)
	}
	if score.CaptainPoints != 4 {
		t.Fatalf("expected doubled vice points 4, got %d", score.CaptainPoints)
	}
}

func TestCalculateTeamScoreNoFallbackWhenViceBenched(t *testing.T) {
	t.Parallel()

	picks := fullSquad(3, 7)
	live := liveFor(picks, 2)
	live[3] = PlayerLive{Minutes: 0, TotalPoints: 0}
	live[7] = PlayerLive{Minutes: 0, TotalPoints: 0}

	score, err := CalculateTeamScore(picks, live)
	if err != nil {
		t.Fatalf("calculate team score: %v", err)
	}
	// Neither armband played so no doubling applies anywhere.
	if score.TotalPoints != 9*2 {
		t.Fatalf("expected 18 points, got %d", score.TotalPoints)
	}
}

func TestCalculateTeamScoreDeterministic(t *testing.T) {
	t.Parallel()

	picks := fullSquad(1, 2)
	live := liveFor(picks, 5)

	first, err := CalculateTeamScore(picks, live)
	if err != nil {
		t.Fatalf("calculate team score: %v", err)
	}
	for i := 0; i < 50; i++ {
		again, err := CalculateTeamScore(picks, live)
		if err != nil {
			t.Fatalf("calculate team score: %v", err)
		}
		if again != first {
			t.Fatalf("score drifted on run %d: %+v vs %+v", i, again, first)
		}
	}
}

func TestCalculateTeamScoreMissingStat(t *testing.T) {
	t.Parallel()

	picks := fullSquad(1, 2)
	live := liveFor(picks, 3)
	delete(live, 5)

	if _, err := CalculateTeamScore(picks, live); !errors.Is(err, ErrMissingPlayerStat) {
		t.Fatalf("expected ErrMissingPlayerStat, got %v", err)
	}
}

func TestCalculateTeamScoreIncompleteLineup(t *testing.T) {
	t.Parallel()

	picks := fullSquad(1, 2)[:8]
	if _, err := CalculateTeamScore(picks, liveFor(picks, 1)); !errors.Is(err, ErrIncompleteLineup) {
		t.Fatalf("expected ErrIncompleteLineup, got %v", err)
	}
}
