package triptracker

import (
	"encoding/json"
	"net/http"
	"time"
)

type healthResponse struct {
	Status string `json:"status"`
	Epoch  int64  `json:"epoch"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	resp := healthResponse{
		Status: "ok",
		Epoch:  time.Now().Unix(),
	}
	_ = json.NewEncoder(w).Encode(resp)
}
