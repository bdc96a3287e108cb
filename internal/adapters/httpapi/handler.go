package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	chi "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"tg-challenge-backend/internal/domain"
	"tg-challenge-backend/internal/usecase/challenges"
	"tg-challenge-backend/internal/usecase/profile"
)

// Handler переводит HTTP запросы в вызовы сервисов и обратно.
// Бизнес-логики здесь нет, только маппинг.
type Handler struct {
	challengeUC *challenges.Service
	profileUC   *profile.Service
	log         zerolog.Logger
}

// NewHandler создаёт обработчик API.
func NewHandler(challengeUC *challenges.Service, profileUC *profile.Service, logger zerolog.Logger) *Handler {
	return &Handler{challengeUC: challengeUC, profileUC: profileUC, log: logger}
}

// Register вешает маршруты на роутер.
func (h *Handler) Register(r chi.Router) {
	r.Get("/api/challenges/active", h.handleListActive)
	r.Get("/api/challenges/all", h.handleListAll)
	r.Post("/api/challenges/join", h.handleJoin)
	r.Post("/api/challenges/create", h.handleCreate)
	r.Get("/api/user/profile/{userId}", h.handleProfile)
	r.Post("/api/admin/main-challenge", h.handleCreateMain)
}

type joinRequest struct {
	ChallengeID string `json:"challengeId"`
	UserID      string `json:"userId"`
}

type createRequest struct {
	Title   string   `json:"title"`
	UserID  string   `json:"userId"`
	Friends []string `json:"friends"`
}

type mainChallengeRequest struct {
	UserID string `json:"userId"`
	Title  string `json:"title"`
}

func (h *Handler) handleListActive(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	visible, err := h.challengeUC.ListActive(r.Context(), userID)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, visible)
}

func (h *Handler) handleListAll(w http.ResponseWriter, r *http.Request) {
	all, err := h.challengeUC.ListAll(r.Context())
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, all)
}

func (h *Handler) handleJoin(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "", "noto'g'ri so'rov")
		return
	}
	if req.ChallengeID == "" || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "", "challengeId va userId majburiy")
		return
	}
	if err := h.challengeUC.Join(r.Context(), req.ChallengeID, req.UserID); err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "", "noto'g'ri so'rov")
		return
	}
	if req.Title == "" || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "", "title va userId majburiy")
		return
	}
	id, err := h.challengeUC.Create(r.Context(), req.Title, req.UserID, req.Friends)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"challengeId": id})
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	p, err := h.profileUC.Get(r.Context(), userID)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) handleCreateMain(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var req mainChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "", "noto'g'ri so'rov")
		return
	}
	id, err := h.challengeUC.CreateMain(r.Context(), req.UserID, req.Title)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"challengeId": id})
}

// Статусы отказов по кодам. Отказ — не сбой, пишется наружу как 4xx.
var rejectionStatus = map[domain.RejectionCode]int{
	domain.CodeDeadlinePassed:      http.StatusBadRequest,
	domain.CodePremiumRequired:     http.StatusForbidden,
	domain.CodeJoinLimitExceeded:   http.StatusForbidden,
	domain.CodeCreateLimitExceeded: http.StatusBadRequest,
	domain.CodeNotAdmin:            http.StatusForbidden,
}

func (h *Handler) writeFailure(w http.ResponseWriter, err error) {
	if rej, ok := domain.AsRejection(err); ok {
		status, known := rejectionStatus[rej.Code]
		if !known {
			status = http.StatusBadRequest
		}
		writeError(w, status, string(rej.Code), rej.Message)
		return
	}
	if errors.Is(err, challenges.ErrChallengeNotFound) {
		writeError(w, http.StatusNotFound, "", "Challenge topilmadi")
		return
	}
	h.log.Error().Err(err).Msg("api: внутренняя ошибка")
	writeError(w, http.StatusInternalServerError, "", "ichki xatolik")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	body := map[string]any{"error": msg}
	if code != "" {
		body["code"] = code
	}
	writeJSON(w, status, body)
}
