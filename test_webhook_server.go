package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// TurnEvent mirrors the JSON body posted by the service for every
// finalized transcript turn.
type TurnEvent struct {
	SessionID   string    `json:"session_id"`
	TurnID      int       `json:"turn_id"`
	Participant int       `json:"participant_id"`
	Text        string    `json:"text"`
	Timestamp   int64     `json:"timestamp"`
	FinalizedAt time.Time `json:"finalized_at"`
}

type ackResponse struct {
	Status     string    `json:"status"`
	SessionID  string    `json:"session_id"`
	TurnID     int       `json:"turn_id"`
	ReceivedAt time.Time `json:"received_at"`
}

func turnHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var event TurnEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		http.Error(w, "Error parsing JSON body", http.StatusBadRequest)
		return
	}

	participant := "user"
	if event.Participant == 0 {
		participant = "agent"
	}

	log.Printf("Received turn: session=%s turn=%d participant=%s text=%q ts=%d",
		event.SessionID, event.TurnID, participant, event.Text, event.Timestamp)

	if auth := r.Header.Get("Authorization"); auth != "" {
		log.Printf("  auth: %s", auth)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ackResponse{
		Status:     "ok",
		SessionID:  event.SessionID,
		TurnID:     event.TurnID,
		ReceivedAt: time.Now().UTC(),
	})
}

func main() {
	http.HandleFunc("/turns", turnHandler)

	addr := ":9090"
	fmt.Printf("Test webhook server listening on %s (POST /turns)\n", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatal(err)
	}
}
