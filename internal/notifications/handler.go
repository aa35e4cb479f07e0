package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/liftledger/liftledger/internal/telemetry/tracing"
	"github.com/liftledger/liftledger/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type service interface {
	ListPage(ctx context.Context, params ListPageParams) ([]Notification, int, error)
	MarkRead(ctx context.Context, userID string, id int) error
}

type ListResponse struct {
	Notifications []Notification `json:"notifications"`
	Total         int            `json:"total"`
}

type Handler struct {
	service service
}

func NewHandler(service service) *Handler {
	return &Handler{service: service}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/users/{userID}/notifications/page/{page}/size/{size}", handler.HandleListPage).
		Methods("GET", "OPTIONS").Name("list-notifications")
	router.HandleFunc("/users/{userID}/notifications/{id}/read", handler.HandleMarkRead).
		Methods("PUT", "OPTIONS").Name("read-notification")
}

func (handler *Handler) HandleListPage(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.notifications.list")
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
	if page < 1 || size < 1 {
		http.Error(w, "error, page and size must be positive", http.StatusBadRequest)
		return
	}

	notifs, total, err := handler.service.ListPage(ctx, ListPageParams{
		UserID: userID,
		Page:   page,
		Size:   size,
	})
	if err != nil {
		log.Errorf("list notifications for user [%s]: %s", userID, err)
		http.Error(w, "failed to get notifications", http.StatusInternalServerError)
		return
	}

	respJson, err := json.Marshal(ListResponse{
		Notifications: notifs,
		Total:         total,
	})
	if err != nil {
		log.Errorf("marshal notifications response: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, respJson, http.StatusOK)
}

func (handler *Handler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.notifications.markread")
	defer span.End()

	vars := mux.Vars(r)
	userID := vars["userID"]
	if userID == "" {
		http.Error(w, "error, user id empty", http.StatusBadRequest)
		return
	}
	id, err := strconv.Atoi(vars["id"])
	if err != nil {
		http.Error(w, "error, notification id invalid", http.StatusBadRequest)
		return
	}

	err = handler.service.MarkRead(ctx, userID, id)
	if errors.Is(err, ErrNotificationNotFound) {
		http.Error(w, "notification not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Errorf("mark notification [%d] read for user [%s]: %s", id, userID, err)
		http.Error(w, "failed to update notification", http.StatusInternalServerError)
		return
	}

	pkg.WriteTextResponseOK(w, "updated")
}
