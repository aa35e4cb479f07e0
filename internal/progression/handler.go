package progression

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/liftledger/liftledger/internal/telemetry/tracing"
	"github.com/liftledger/liftledger/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const defaultRewardsLimit = 50

type stateRepo interface {
	GetState(ctx context.Context, userID string) (*State, error)
	ListBadges(ctx context.Context, userID string) ([]UnlockedBadge, error)
	ListAudit(ctx context.Context, userID string, limit int) ([]RewardAuditEntry, error)
}

type awarder interface {
	AwardForMeasurement(ctx context.Context, userID, measurementType string, date time.Time) (AwardResult, error)
}

type StateResponse struct {
	State  *State          `json:"state"`
	Level  int             `json:"level"`
	Badges []UnlockedBadge `json:"badges"`
}

type MeasurementRequest struct {
	Type string `json:"type"`
}

type Handler struct {
	repo   stateRepo
	engine awarder
}

func NewHandler(repo stateRepo, engine awarder) *Handler {
	return &Handler{
		repo:   repo,
		engine: engine,
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/users/{userID}/progression", handler.HandleGetState).
		Methods("GET", "OPTIONS").Name("get-progression")
	router.HandleFunc("/users/{userID}/progression/rewards", handler.HandleListRewards).
		Methods("GET", "OPTIONS").Name("list-rewards")
	router.HandleFunc("/users/{userID}/progression/measurement", handler.HandleMeasurement).
		Methods("POST", "OPTIONS").Name("log-measurement")
}

func (handler *Handler) HandleGetState(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.progression.getstate")
	defer span.End()

	userID := mux.Vars(r)["userID"]
	if userID == "" {
		http.Error(w, "error, user id empty", http.StatusBadRequest)
		return
	}

	state, err := handler.repo.GetState(ctx, userID)
	if err != nil {
		log.Errorf("get progression state for user [%s]: %s", userID, err)
		http.Error(w, "failed to get progression state", http.StatusInternalServerError)
		return
	}

	badges, err := handler.repo.ListBadges(ctx, userID)
	if err != nil {
		log.Errorf("list badges for user [%s]: %s", userID, err)
		http.Error(w, "failed to get progression state", http.StatusInternalServerError)
		return
	}

	respJson, err := json.Marshal(StateResponse{
		State:  state,
		Level:  LevelForXP(state.XP),
		Badges: badges,
	})
	if err != nil {
		log.Errorf("marshal progression state response: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, respJson, http.StatusOK)
}

func (handler *Handler) HandleListRewards(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.progression.listrewards")
	defer span.End()

	userID := mux.Vars(r)["userID"]
	if userID == "" {
		http.Error(w, "error, user id empty", http.StatusBadRequest)
		return
	}

	entries, err := handler.repo.ListAudit(ctx, userID, defaultRewardsLimit)
	if err != nil {
		log.Errorf("list rewards for user [%s]: %s", userID, err)
		http.Error(w, "failed to get rewards", http.StatusInternalServerError)
		return
	}

	respJson, err := json.Marshal(entries)
	if err != nil {
		log.Errorf("marshal rewards response: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, respJson, http.StatusOK)
}

func (handler *Handler) HandleMeasurement(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.progression.measurement")
	defer span.End()

	userID := mux.Vars(r)["userID"]
	if userID == "" {
		http.Error(w, "error, user id empty", http.StatusBadRequest)
		return
	}

	var req MeasurementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		log.Warnf("log measurement for user [%s], decode request: %s", userID, err)
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	req.Type = strings.TrimSpace(req.Type)
	if req.Type == "" {
		http.Error(w, "error, measurement type empty", http.StatusBadRequest)
		return
	}

	// duplicate same-day measurement is a policy outcome, not an error:
	// the response carries capReached instead
	award, err := handler.engine.AwardForMeasurement(ctx, userID, req.Type, time.Now())
	if err != nil {
		log.Errorf("award measurement for user [%s]: %s", userID, err)
		http.Error(w, "failed to log measurement", http.StatusInternalServerError)
		return
	}

	respJson, err := json.Marshal(award)
	if err != nil {
		log.Errorf("marshal measurement response: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, respJson, http.StatusOK)
}
