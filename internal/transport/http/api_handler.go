package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/SweetVinegar/021up-game/internal/app"
	"github.com/SweetVinegar/021up-game/internal/domain"
)

// APIHandler exposes the non-realtime surface: room creation, snapshot
// reads, receipts, and wallet balance.
type APIHandler struct {
	service *app.GameService
}

func NewAPIHandler(service *app.GameService) *APIHandler {
	return &APIHandler{service: service}
}

// Register mounts the REST routes on mux.
func (h *APIHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /rooms", h.createRoom)
	mux.HandleFunc("GET /rooms/{id}", h.getRoom)
	mux.HandleFunc("GET /rooms/{id}/receipts", h.getReceipts)
	mux.HandleFunc("GET /balance", h.getBalance)
}

type createRoomRequest struct {
	Name              string `json:"name"`
	Organizer         string `json:"organizer"`
	TokenSymbol       string `json:"tokenSymbol"`
	RewardPerQuestion int64  `json:"rewardPerQuestion"`
	Questions         []struct {
		Text         string   `json:"text"`
		Options      []string `json:"options"`
		CorrectIndex int      `json:"correctIndex"`
		TimeLimitSec int      `json:"timeLimitSec"`
	} `json:"questions"`
}

func (h *APIHandler) createRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	spec := app.CreateRoomSpec{
		Name:              req.Name,
		Organizer:         req.Organizer,
		TokenSymbol:       req.TokenSymbol,
		RewardPerQuestion: req.RewardPerQuestion,
	}
	for _, q := range req.Questions {
		spec.Questions = append(spec.Questions, app.QuestionSpec{
			Text:         q.Text,
			Options:      q.Options,
			CorrectIndex: q.CorrectIndex,
			TimeLimitSec: q.TimeLimitSec,
		})
	}

	roomID, err := h.service.CreateRoom(r.Context(), spec)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"roomId": roomID})
}

func (h *APIHandler) getRoom(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.GetRoom(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *APIHandler) getReceipts(w http.ResponseWriter, r *http.Request) {
	receipts, err := h.service.Receipts(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipts)
}

func (h *APIHandler) getBalance(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")
	if address == "" {
		http.Error(w, "missing address", http.StatusBadRequest)
		return
	}
	balance, err := h.service.Balance(r.Context(), address)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"balance": balance})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidRoom),
		errors.Is(err, domain.ErrInsufficientBalance):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrAlreadyJoined),
		errors.Is(err, domain.ErrIsOrganizer),
		errors.Is(err, domain.ErrNotOrganizer),
		errors.Is(err, domain.ErrRoomNotWaiting),
		errors.Is(err, domain.ErrRoomNotActive),
		errors.Is(err, domain.ErrAlreadyAnswered),
		errors.Is(err, domain.ErrQuestionMismatch),
		errors.Is(err, domain.ErrNoParticipants),
		errors.Is(err, domain.ErrUnknownParticipant):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
