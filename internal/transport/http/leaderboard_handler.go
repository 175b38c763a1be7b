package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"exam-session-service/internal/app"
)

// LeaderboardHandler serves ranked results as JSON.
type LeaderboardHandler struct {
	service *app.ExamService
}

func NewLeaderboardHandler(service *app.ExamService) *LeaderboardHandler {
	return &LeaderboardHandler{service: service}
}

func (h *LeaderboardHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	group := r.URL.Query().Get("group")
	test := r.URL.Query().Get("test")
	if group == "" || test == "" {
		http.Error(w, "missing group or test", http.StatusBadRequest)
		return
	}
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	lb, err := h.service.Leaderboard(r.Context(), group, test, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(lb)
}
