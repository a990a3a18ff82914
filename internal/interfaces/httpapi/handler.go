package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"

	"github.com/riskibarqy/fpl-live-engine/internal/domain/correction"
	"github.com/riskibarqy/fpl-live-engine/internal/domain/entry"
	"github.com/riskibarqy/fpl-live-engine/internal/domain/league"
	"github.com/riskibarqy/fpl-live-engine/internal/platform/logging"
	"github.com/riskibarqy/fpl-live-engine/internal/usecase"
)

const maxRequestBody = 1 << 20

type Handler struct {
	standingsService *usecase.StandingsService
	lifecycleService *usecase.LifecycleService
	leagueRepo       league.Repository
	correctionRepo   correction.Repository
	logger           *logging.Logger
	validator        *validator.Validate
}

func NewHandler(
	standingsService *usecase.StandingsService,
	lifecycleService *usecase.LifecycleService,
	leagueRepo league.Repository,
	correctionRepo correction.Repository,
	logger *logging.Logger,
) *Handler {
	if logger == nil {
		logger = logging.Default()
	}

	return &Handler{
		standingsService: standingsService,
		lifecycleService: lifecycleService,
		leagueRepo:       leagueRepo,
		correctionRepo:   correctionRepo,
		logger:           logger,
		validator:        validator.New(),
	}
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Healthz")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) ListLeagues(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListLeagues")
	defer span.End()

	leagues, err := h.leagueRepo.ListActive(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "list leagues failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	items := make([]leagueDTO, 0, len(leagues))
	for _, lg := range leagues {
		items = append(items, leagueToDTO(lg))
	}

	writeSuccess(ctx, w, http.StatusOK, items)
}

func (h *Handler) GetLeague(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetLeague")
	defer span.End()

	leagueID := r.PathValue("leagueID")
	lg, exists, err := h.leagueRepo.GetByID(ctx, leagueID)
	if err != nil {
		h.logger.ErrorContext(ctx, "get league failed", "league_id", leagueID, "error", err)
		writeError(ctx, w, err)
		return
	}
	if !exists {
		writeError(ctx, w, fmt.Errorf("%w: league %s", usecase.ErrNotFound, leagueID))
		return
	}

	writeSuccess(ctx, w, http.StatusOK, leagueToDTO(lg))
}

func (h *Handler) ListLeagueStandings(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListLeagueStandings")
	defer span.End()

	leagueID := r.PathValue("leagueID")
	entries, err := h.standingsService.ListStandings(ctx, leagueID)
	if err != nil {
		h.logger.WarnContext(ctx, "list standings failed", "league_id", leagueID, "error", err)
		writeError(ctx, w, err)
		return
	}

	items := make([]standingDTO, 0, len(entries))
	for _, e := range entries {
		items = append(items, entryToStandingDTO(e))
	}

	writeSuccess(ctx, w, http.StatusOK, items)
}

func (h *Handler) ListLeagueCorrections(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListLeagueCorrections")
	defer span.End()

	leagueID := r.PathValue("leagueID")
	if _, exists, err := h.leagueRepo.GetByID(ctx, leagueID); err != nil {
		writeError(ctx, w, err)
		return
	} else if !exists {
		writeError(ctx, w, fmt.Errorf("%w: league %s", usecase.ErrNotFound, leagueID))
		return
	}

	events, err := h.correctionRepo.ListByLeague(ctx, leagueID)
	if err != nil {
		h.logger.ErrorContext(ctx, "list corrections failed", "league_id", leagueID, "error", err)
		writeError(ctx, w, err)
		return
	}

	items := make([]correctionDTO, 0, len(events))
	for _, ev := range events {
		items = append(items, correctionToDTO(ev))
	}

	writeSuccess(ctx, w, http.StatusOK, items)
}

type refreshStandingsRequest struct {
	LeagueID string `json:"leagueId" validate:"required"`
}

func (h *Handler) RunRefreshStandingsJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RunRefreshStandingsJob")
	defer span.End()

	var req refreshStandingsRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	result, err := h.standingsService.UpdateLeagueStandings(ctx, req.LeagueID)
	if err != nil {
		h.logger.WarnContext(ctx, "refresh standings job failed", "league_id", req.LeagueID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, refreshResultDTO{
		LeagueID:  result.LeagueID,
		Gameweek:  result.Gameweek,
		Processed: result.Processed,
		Updated:   result.Updated,
		Skipped:   result.Skipped,
		BatchSize: result.BatchSize,
		MsPerTeam: result.MsPerTeam,
	})
}

type lifecycleCheckRequest struct {
	LeagueID string `json:"leagueId" validate:"required"`
}

func (h *Handler) RunLifecycleCheckJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RunLifecycleCheckJob")
	defer span.End()

	var req lifecycleCheckRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	result, err := h.lifecycleService.CheckLeague(ctx, req.LeagueID)
	if err != nil {
		h.logger.WarnContext(ctx, "lifecycle check job failed", "league_id", req.LeagueID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, lifecycleCheckDTO{
		LeagueID:      result.LeagueID,
		Gameweek:      result.Gameweek,
		PreviousState: string(result.PreviousState),
		State:         string(result.State),
		Transitioned:  result.Transitioned,
		StableForSec:  int64(result.StableFor.Seconds()),
		PayoutFired:   result.PayoutFired,
	})
}

func (h *Handler) decodeAndValidate(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return fmt.Errorf("%w: read request body: %v", usecase.ErrInvalidInput, err)
	}
	if len(body) == 0 {
		return fmt.Errorf("%w: request body is required", usecase.ErrInvalidInput)
	}
	if err := sonic.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: decode request body: %v", usecase.ErrInvalidInput, err)
	}
	if err := h.validator.Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", usecase.ErrInvalidInput, err)
	}
	return nil
}

type leagueDTO struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Gameweek          int        `json:"gameweek"`
	PrizePool         int64      `json:"prizePool"`
	State             string     `json:"state"`
	SoftFinalizedAt   *time.Time `json:"softFinalizedAt,omitempty"`
	FinalizedAt       *time.Time `json:"finalizedAt,omitempty"`
	StabilityWindowMn int        `json:"stabilityWindowMinutes"`
}

func leagueToDTO(lg league.League) leagueDTO {
	return leagueDTO{
		ID:                lg.ID,
		Name:              lg.Name,
		Gameweek:          lg.Gameweek,
		PrizePool:         lg.PrizePool,
		State:             string(lg.State),
		SoftFinalizedAt:   lg.SoftFinalizedAt,
		FinalizedAt:       lg.FinalizedAt,
		StabilityWindowMn: lg.StabilityWindowMinutes,
	}
}

type standingDTO struct {
	EntryID        string  `json:"entryId"`
	UserID         string  `json:"userId"`
	TeamName       string  `json:"teamName"`
	TeamExternalID int64   `json:"teamExternalId"`
	Rank           int     `json:"rank"`
	PreviousRank   int     `json:"previousRank,omitempty"`
	GameweekPoints float64 `json:"gameweekPoints"`
	TotalPoints    float64 `json:"totalPoints"`
}

func entryToStandingDTO(e entry.Entry) standingDTO {
	return standingDTO{
		EntryID:        e.ID,
		UserID:         e.UserID,
		TeamName:       e.TeamName,
		TeamExternalID: e.TeamExternalID,
		Rank:           e.Rank,
		PreviousRank:   e.PreviousRank,
		GameweekPoints: e.GameweekPoints,
		TotalPoints:    e.TotalPoints,
	}
}

type correctionDTO struct {
	ID         string    `json:"id"`
	LeagueID   string    `json:"leagueId"`
	Gameweek   int       `json:"gameweek"`
	OldDigest  string    `json:"oldDigest"`
	NewDigest  string    `json:"newDigest"`
	DetectedAt time.Time `json:"detectedAt"`
}

func correctionToDTO(ev correction.Event) correctionDTO {
	return correctionDTO{
		ID:         ev.ID,
		LeagueID:   ev.LeagueID,
		Gameweek:   ev.Gameweek,
		OldDigest:  fmt.Sprintf("%016x", ev.OldDigest),
		NewDigest:  fmt.Sprintf("%016x", ev.NewDigest),
		DetectedAt: ev.DetectedAt,
	}
}

type refreshResultDTO struct {
	LeagueID  string  `json:"leagueId"`
	Gameweek  int     `json:"gameweek"`
	Processed int     `json:"processed"`
	Updated   int     `json:"updated"`
	Skipped   int     `json:"skipped"`
	BatchSize int     `json:"batchSize"`
	MsPerTeam float64 `json:"msPerTeam"`
}

type lifecycleCheckDTO struct {
	LeagueID      string `json:"leagueId"`
	Gameweek      int    `json:"gameweek"`
	PreviousState string `json:"previousState"`
	State         string `json:"state"`
	Transitioned  bool   `json:"transitioned"`
	StableForSec  int64  `json:"stableForSeconds"`
	PayoutFired   bool   `json:"payoutFired"`
}
