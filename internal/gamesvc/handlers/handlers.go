package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/bluff-services/internal/gamesvc/service"
	"github.com/avvvet/bluff-services/internal/table"
)

type Handler struct {
	tokenAuth *jwtauth.JWTAuth
	port      string
	queries   *service.QueryService
	messages  *service.MessageService
}

func NewHandler(port string, queries *service.QueryService, messages *service.MessageService) *Handler {
	return &Handler{port: port, queries: queries, messages: messages}
}

type Response struct {
	Message string      `json:"message"`
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error,omitempty"`
}

func (h *Handler) CreateResponse(w http.ResponseWriter, rsp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rsp.Code)

	if err := json.NewEncoder(w).Encode(rsp); err != nil {
		log.Errorf("Error encoding response %s", err)
	}
}

// fail maps a service error onto a status code.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, table.ErrUnknownGame):
		code = http.StatusNotFound
	case errors.Is(err, table.ErrUnknownPlayer):
		code = http.StatusForbidden
	default:
		log.Errorf("Error [handlers] %s", err)
	}
	h.CreateResponse(w, Response{Message: http.StatusText(code), Code: code, Error: err.Error()})
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	h.CreateResponse(w, Response{
		Message: "game service is running at port " + h.port,
		Code:    http.StatusOK,
	})
}

// HandsHandler lists every claimable hand, weakest first.
func (h *Handler) HandsHandler(w http.ResponseWriter, r *http.Request) {
	h.CreateResponse(w, Response{Message: "ok", Code: http.StatusOK, Data: h.queries.Catalog()})
}

func (h *Handler) GameHandler(w http.ResponseWriter, r *http.Request) {
	gameID, ok := h.gameID(w, r)
	if !ok {
		return
	}
	snap, err := h.queries.Snapshot(r.Context(), gameID)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.CreateResponse(w, Response{Message: "ok", Code: http.StatusOK, Data: snap})
}

func (h *Handler) MessagesHandler(w http.ResponseWriter, r *http.Request) {
	gameID, ok := h.gameID(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	msgs, err := h.messages.History(r.Context(), gameID, limit)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.CreateResponse(w, Response{Message: "ok", Code: http.StatusOK, Data: msgs})
}

func (h *Handler) gameID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "gameID"), 10, 64)
	if err != nil || id <= 0 {
		h.CreateResponse(w, Response{Message: "invalid game id", Code: http.StatusBadRequest, Error: "game id must be a positive integer"})
		return 0, false
	}
	return id, true
}
