package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/google/uuid"

	"prediction-backend/internal/queue"
)

// Publishes a prediction session message to the worker queue. Intended for
// re-driving sessions that were dropped before reaching the queue.
func main() {
	sessionID := flag.String("session", "", "prediction session id to enqueue")
	flag.Parse()

	if *sessionID == "" {
		log.Fatal("-session is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := queue.NewSQSClient(ctx)
	if err != nil {
		log.Fatalf("queue client: %v", err)
	}

	msg := queue.Message{
		SessionID:  *sessionID,
		RequestID:  uuid.NewString(),
		EnqueuedAt: time.Now().UTC().Format(time.RFC3339),
		Version:    1,
	}
	if err := client.Send(ctx, msg); err != nil {
		log.Fatalf("send: %v", err)
	}
	log.Printf("enqueued session=%s request=%s", msg.SessionID, msg.RequestID)
}
