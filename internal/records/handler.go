package records

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/liftledger/liftledger/internal/telemetry/tracing"
	"github.com/liftledger/liftledger/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type readRepo interface {
	Get(ctx context.Context, userID, exerciseName string) (*PersonalRecord, error)
	List(ctx context.Context, userID string) ([]PersonalRecord, error)
}

type ListResponse struct {
	Records []PersonalRecord `json:"records"`
	Total   int              `json:"total"`
}

type Handler struct {
	repo  readRepo
	cache *Cache
}

func NewHandler(repo readRepo, cache *Cache) *Handler {
	return &Handler{
		repo:  repo,
		cache: cache,
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/users/{userID}/records", handler.HandleList).
		Methods("GET", "OPTIONS").Name("list-records")
	router.HandleFunc("/users/{userID}/records/exercise/{name}", handler.HandleGet).
		Methods("GET", "OPTIONS").Name("get-record")
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.records.list")
	defer span.End()

	userID := mux.Vars(r)["userID"]
	if userID == "" {
		http.Error(w, "error, user id empty", http.StatusBadRequest)
		return
	}

	records, cached := handler.cache.GetRecords(userID)
	if !cached {
		var err error
		records, err = handler.repo.List(ctx, userID)
		if err != nil {
			log.Errorf("list records for user [%s]: %s", userID, err)
			http.Error(w, "failed to get records", http.StatusInternalServerError)
			return
		}
		handler.cache.SetRecords(userID, records)
	}

	respJson, err := json.Marshal(ListResponse{
		Records: records,
		Total:   len(records),
	})
	if err != nil {
		log.Errorf("marshal records response: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, respJson, http.StatusOK)
}

func (handler *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.records.get")
	defer span.End()

	vars := mux.Vars(r)
	userID := vars["userID"]
	exerciseName := vars["name"]
	if userID == "" || exerciseName == "" {
		http.Error(w, "error, user id or exercise name empty", http.StatusBadRequest)
		return
	}

	record, err := handler.repo.Get(ctx, userID, exerciseName)
	if errors.Is(err, ErrRecordNotFound) {
		http.Error(w, "record not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Errorf("get record [%s] for user [%s]: %s", exerciseName, userID, err)
		http.Error(w, "failed to get record", http.StatusInternalServerError)
		return
	}

	recordJson, err := json.Marshal(record)
	if err != nil {
		log.Errorf("marshal record response: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, recordJson, http.StatusOK)
}
