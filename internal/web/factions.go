package web

import (
	"cmp"
	"encoding/json"
	"net/http"
	"slices"

	"go.uber.org/zap"

	"github.com/peterkuimelis/sanctum/internal/game"
)

// FactionInfo is the JSON representation of a faction for the /api/factions
// endpoint.
type FactionInfo struct {
	Name  string   `json:"name"`
	Cards []string `json:"cards"`
}

func (s *Server) handleFactions(w http.ResponseWriter, r *http.Request) {
	cards, err := s.catalog.Cards(r.Context())
	if err != nil {
		s.diag.Warn("card catalog unavailable", zap.Error(err))
		http.Error(w, "could not load cards from the engine", http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(groupFactions(cards))
}

// groupFactions lists each faction's unique card names, factions sorted by
// name and cards in catalog order.
func groupFactions(cards []*game.Card) []FactionInfo {
	index := make(map[string]int)
	var out []FactionInfo
	seen := make(map[string]bool)
	for _, c := range cards {
		if c.Faction == "" {
			continue
		}
		i, ok := index[c.Faction]
		if !ok {
			i = len(out)
			index[c.Faction] = i
			out = append(out, FactionInfo{Name: c.Faction})
		}
		key := c.Faction + "\x00" + c.Name
		if !seen[key] {
			out[i].Cards = append(out[i].Cards, c.Name)
			seen[key] = true
		}
	}
	slices.SortFunc(out, func(a, b FactionInfo) int { return cmp.Compare(a.Name, b.Name) })
	return out
}
