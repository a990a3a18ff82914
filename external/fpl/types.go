package fpl

// Wire types for the Fantasy Premier League public API. Only the fields the
// engine consumes are declared; unknown fields are ignored on decode.

type bootstrapEnvelope struct {
	Events []bootstrapEvent `json:"events"`
}

type bootstrapEvent struct {
	ID                int    `json:"id"`
	Name              string `json:"name"`
	DeadlineTime      string `json:"deadline_time"` // RFC3339
	Finished          bool   `json:"finished"`
	DataChecked       bool   `json:"data_checked"`
	IsPrevious        bool   `json:"is_previous"`
	IsCurrent         bool   `json:"is_current"`
	IsNext            bool   `json:"is_next"`
	AverageEntryScore int    `json:"average_entry_score"`
}

type liveEnvelope struct {
	Elements []liveElement `json:"elements"`
}

type liveElement struct {
	ID    int64     `json:"id"`
	Stats liveStats `json:"stats"`
}

type liveStats struct {
	Minutes     int `json:"minutes"`
	GoalsScored int `json:"goals_scored"`
	Assists     int `json:"assists"`
	Bonus       int `json:"bonus"`
	TotalPoints int `json:"total_points"`
}

type picksEnvelope struct {
	EntryHistory picksHistory `json:"entry_history"`
	Picks        []pickItem   `json:"picks"`
}

type picksHistory struct {
	Event int `json:"event"`
}

type pickItem struct {
	Element       int64 `json:"element"`
	Position      int   `json:"position"`
	Multiplier    int   `json:"multiplier"`
	IsCaptain     bool  `json:"is_captain"`
	IsViceCaptain bool  `json:"is_vice_captain"`
}

type fixtureItem struct {
	ID                  int64   `json:"id"`
	Event               *int    `json:"event"` // null when unscheduled
	KickoffTime         *string `json:"kickoff_time"`
	Started             bool    `json:"started"`
	Finished            bool    `json:"finished"`
	FinishedProvisional bool    `json:"finished_provisional"`
	Minutes             int     `json:"minutes"`
	TeamHScore          *int    `json:"team_h_score"`
	TeamAScore          *int    `json:"team_a_score"`
}
