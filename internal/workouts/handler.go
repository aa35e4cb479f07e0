package workouts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/liftledger/liftledger/internal/records"
	"github.com/liftledger/liftledger/internal/telemetry/tracing"
	"github.com/liftledger/liftledger/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

//go:generate mockgen -source=handler.go -destination=handler_mocks_test.go -package=workouts_test

type workoutsService interface {
	LogWorkout(ctx context.Context, newSession NewSession) (*LogResult, error)
	DeleteWorkout(ctx context.Context, userID string, sessionID int64) error
	RenameExercises(ctx context.Context, userID string, renames []records.Rename) (int64, error)
	DeleteRoutine(ctx context.Context, userID, routineID string) (int64, error)
	GetWorkout(ctx context.Context, userID string, sessionID int64) (*Session, error)
	ListWorkouts(ctx context.Context, params ListParams) ([]Session, int, error)
}

type ListResponse struct {
	Sessions []Session `json:"sessions"`
	Total    int       `json:"total"`
}

type RenameRequest struct {
	Renames []records.Rename `json:"renames"`
}

type RenameResponse struct {
	RenamedEntries int64 `json:"renamedEntries"`
}

type DeleteRoutineResponse struct {
	DeletedSessions int64 `json:"deletedSessions"`
}

type Handler struct {
	service workoutsService
}

func NewHandler(service workoutsService) *Handler {
	return &Handler{service: service}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/users/{userID}/workouts", handler.HandleLog).
		Methods("POST", "OPTIONS").Name("log-workout")
	router.HandleFunc("/users/{userID}/workouts/list/page/{page}/size/{size}", handler.HandleListPage).
		Methods("GET", "OPTIONS").Name("list-workouts")
	router.HandleFunc("/users/{userID}/workouts/exercises/rename", handler.HandleRenameExercises).
		Methods("PUT", "OPTIONS").Name("rename-exercises")
	router.HandleFunc("/users/{userID}/workouts/routine/{routineID}", handler.HandleDeleteRoutine).
		Methods("DELETE", "OPTIONS").Name("delete-routine")
	router.HandleFunc("/users/{userID}/workouts/{id}", handler.HandleGet).
		Methods("GET", "OPTIONS").Name("get-workout")
	router.HandleFunc("/users/{userID}/workouts/{id}", handler.HandleDelete).
		Methods("DELETE", "OPTIONS").Name("delete-workout")
}

func (handler *Handler) HandleLog(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.log")
	defer span.End()

	userID := mux.Vars(r)["userID"]
	if userID == "" {
		http.Error(w, "error, user id empty", http.StatusBadRequest)
		return
	}

	var newSession NewSession
	if err := json.NewDecoder(r.Body).Decode(&newSession); err != nil {
		log.Warnf("log workout for user [%s], decode request: %s", userID, err)
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	// the path owns the user, the payload cannot write across users
	newSession.UserID = userID
	if newSession.StartedAt.IsZero() {
		newSession.StartedAt = time.Now()
	}

	result, err := handler.service.LogWorkout(ctx, newSession)
	if err != nil {
		if errors.Is(err, ErrInvalidSession) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Errorf("log workout for user [%s]: %s", userID, err)
		http.Error(w, "failed to log workout", http.StatusInternalServerError)
		return
	}

	respJson, err := json.Marshal(result)
	if err != nil {
		log.Errorf("marshal log workout response: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, respJson, http.StatusCreated)
}

func (handler *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.get")
	defer span.End()

	userID, sessionID, ok := userAndSessionID(w, r)
	if !ok {
		return
	}

	session, err := handler.service.GetWorkout(ctx, userID, sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		http.Error(w, "workout not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Errorf("get workout [%d] for user [%s]: %s", sessionID, userID, err)
		http.Error(w, "failed to get workout", http.StatusInternalServerError)
		return
	}

	respJson, err := json.Marshal(session)
	if err != nil {
		log.Errorf("marshal workout response: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, respJson, http.StatusOK)
}

func (handler *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.delete")
	defer span.End()

	userID, sessionID, ok := userAndSessionID(w, r)
	if !ok {
		return
	}

	err := handler.service.DeleteWorkout(ctx, userID, sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		http.Error(w, "workout not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Errorf("delete workout [%d] for user [%s]: %s", sessionID, userID, err)
		http.Error(w, "failed to delete workout", http.StatusInternalServerError)
		return
	}

	pkg.WriteTextResponseOK(w, fmt.Sprintf("deleted:%d", sessionID))
}

func (handler *Handler) HandleListPage(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.list")
	defer span.End()

	vars := mux.Vars(r)
	userID := vars["userID"]
	if userID == "" {
		http.Error(w, "error, user id empty", http.StatusBadRequest)
		return
	}
	page, err := strconv.Atoi(vars["page"])
	if err != nil {
		http.Error(w, "error, page invalid", http.StatusBadRequest)
		return
	}
	size, err := strconv.Atoi(vars["size"])
	if err != nil {
		http.Error(w, "error, size invalid", http.StatusBadRequest)
		return
	}

	params := ListParams{
		UserID: userID,
		Page:   page,
		Size:   size,
	}
	if from := r.URL.Query().Get("from"); from != "" {
		fromTime, err := time.Parse(time.RFC3339, from)
		if err != nil {
			http.Error(w, "error, from invalid", http.StatusBadRequest)
			return
		}
		params.From = &fromTime
	}
	if to := r.URL.Query().Get("to"); to != "" {
		toTime, err := time.Parse(time.RFC3339, to)
		if err != nil {
			http.Error(w, "error, to invalid", http.StatusBadRequest)
			return
		}
		params.To = &toTime
	}

	sessions, total, err := handler.service.ListWorkouts(ctx, params)
	if err != nil {
		log.Errorf("list workouts for user [%s]: %s", userID, err)
		http.Error(w, "failed to list workouts", http.StatusInternalServerError)
		return
	}

	respJson, err := json.Marshal(ListResponse{
		Sessions: sessions,
		Total:    total,
	})
	if err != nil {
		log.Errorf("marshal workouts response: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, respJson, http.StatusOK)
}

func (handler *Handler) HandleRenameExercises(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.rename")
	defer span.End()

	userID := mux.Vars(r)["userID"]
	if userID == "" {
		http.Error(w, "error, user id empty", http.StatusBadRequest)
		return
	}

	var req RenameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warnf("rename exercises for user [%s], decode request: %s", userID, err)
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if len(req.Renames) == 0 {
		http.Error(w, "error, no renames given", http.StatusBadRequest)
		return
	}
	for _, rename := range req.Renames {
		if rename.OldName == "" || rename.NewName == "" {
			http.Error(w, "error, empty exercise name", http.StatusBadRequest)
			return
		}
	}

	renamed, err := handler.service.RenameExercises(ctx, userID, req.Renames)
	if err != nil {
		log.Errorf("rename exercises for user [%s]: %s", userID, err)
		http.Error(w, "failed to rename exercises", http.StatusInternalServerError)
		return
	}

	respJson, err := json.Marshal(RenameResponse{RenamedEntries: renamed})
	if err != nil {
		log.Errorf("marshal rename response: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, respJson, http.StatusOK)
}

func (handler *Handler) HandleDeleteRoutine(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.deleteroutine")
	defer span.End()

	vars := mux.Vars(r)
	userID := vars["userID"]
	routineID := vars["routineID"]
	if userID == "" || routineID == "" {
		http.Error(w, "error, user id or routine id empty", http.StatusBadRequest)
		return
	}

	deleted, err := handler.service.DeleteRoutine(ctx, userID, routineID)
	if errors.Is(err, ErrRoutineNotFound) {
		http.Error(w, "routine has no sessions", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Errorf("delete routine [%s] for user [%s]: %s", routineID, userID, err)
		http.Error(w, "failed to delete routine", http.StatusInternalServerError)
		return
	}

	respJson, err := json.Marshal(DeleteRoutineResponse{DeletedSessions: deleted})
	if err != nil {
		log.Errorf("marshal delete routine response: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, respJson, http.StatusOK)
}

func userAndSessionID(w http.ResponseWriter, r *http.Request) (string, int64, bool) {
	vars := mux.Vars(r)
	userID := vars["userID"]
	if userID == "" {
		http.Error(w, "error, user id empty", http.StatusBadRequest)
		return "", 0, false
	}
	sessionID, err := strconv.ParseInt(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "error, workout id invalid", http.StatusBadRequest)
		return "", 0, false
	}
	return userID, sessionID, true
}
