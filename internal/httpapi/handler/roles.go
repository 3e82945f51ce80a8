package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/vntrieu/voidthreat/internal/games"
	"github.com/vntrieu/voidthreat/internal/roles"
)

// BalanceRequest is the body for POST /api/roles/balance.
type BalanceRequest struct {
	Roles map[string]int `json:"roles"`
}

// BalanceResponse scores a role multiset.
type BalanceResponse struct {
	Score       roles.Score `json:"balance"`
	Balanced    bool        `json:"is_balanced"`
	PlayerCount int         `json:"player_count"`
}

// RolesHandler serves the role catalog and the balance calculator.
type RolesHandler struct {
	rules games.RulesConfig
}

// NewRolesHandler creates a RolesHandler for the given rules.
func NewRolesHandler(rules games.RulesConfig) *RolesHandler {
	return &RolesHandler{rules: rules}
}

// ListRoles handles GET /api/roles.
//
// @Summary      List roles
// @Description  The role catalog in catalog order.
// @Tags         roles
// @Produce      json
// @Success      200  {array}  roles.Definition
// @Router       /api/roles [get]
func (h *RolesHandler) ListRoles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, roles.All())
}

// Balance handles POST /api/roles/balance.
//
// @Summary      Score a role set
// @Description  Returns crew, infiltrator, independent and total scores for a {role: count} map.
// @Tags         roles
// @Accept       json
// @Produce      json
// @Param        body  body      BalanceRequest  true  "Role counts"
// @Success      200   {object}  BalanceResponse
// @Failure      400   {string}  string  "Bad request or unknown role"
// @Router       /api/roles/balance [post]
func (h *RolesHandler) Balance(w http.ResponseWriter, r *http.Request) {
	var body BalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	counts := make(map[roles.Key]int, len(body.Roles))
	n := 0
	for k, c := range body.Roles {
		if !roles.Known(roles.Key(k)) {
			http.Error(w, fmt.Sprintf("unknown role %q", k), http.StatusBadRequest)
			return
		}
		if c < 0 {
			http.Error(w, "role counts must not be negative", http.StatusBadRequest)
			return
		}
		counts[roles.Key(k)] = c
		n += c
	}
	score := roles.ScoreCounts(counts)
	writeJSON(w, r, http.StatusOK, BalanceResponse{
		Score:       score,
		Balanced:    score.Balanced(h.rules.BalanceTolerance),
		PlayerCount: n,
	})
}

// StandardRoles handles GET /api/roles/standard?players=N.
//
// @Summary      Standard assignment
// @Description  The role set the standard rules would deal for N players, before shuffling.
// @Tags         roles
// @Produce      json
// @Param        players  query     int  true  "Player count"
// @Success      200      {object}  games.Assignment
// @Failure      400      {string}  string  "Invalid player count"
// @Router       /api/roles/standard [get]
func (h *RolesHandler) StandardRoles(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(r.URL.Query().Get("players"))
	if err != nil {
		http.Error(w, "players must be a number", http.StatusBadRequest)
		return
	}
	if n > h.rules.MaxPlayers {
		http.Error(w, fmt.Sprintf("players must be at most %d", h.rules.MaxPlayers), http.StatusBadRequest)
		return
	}
	a, err := games.NewAssigner(h.rules).Standard(n)
	if err != nil {
		if errors.Is(err, games.ErrInvalidPlayerCount) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Printf("[%s] standard assignment error: %v", requestID(r), err)
		http.Error(w, "failed to build assignment", http.StatusInternalServerError)
		return
	}
	writeJSON(w, r, http.StatusOK, a)
}
