package main

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"prediction-backend/internal/queue"
	"prediction-backend/internal/sessions"
)

type fakeSQS struct {
	deleted []string
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	_ = ctx
	_ = params
	_ = optFns
	return &sqs.ReceiveMessageOutput{}, nil
}

func (f *fakeSQS) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	_ = ctx
	_ = optFns
	f.deleted = append(f.deleted, aws.ToString(params.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

type fakeExecutor struct {
	result sessions.WorkerResult
	calls  int
}

func (f *fakeExecutor) ExecuteWithRetry(ctx context.Context, sessionID string, maxAttempts int) sessions.WorkerResult {
	_ = ctx
	_ = sessionID
	_ = maxAttempts
	f.calls++
	return f.result
}

func TestWorkerDeletesMessageOnProcessedSession(t *testing.T) {
	client := &fakeSQS{}
	executor := &fakeExecutor{result: sessions.WorkerResult{Success: true, TotalModels: 1, SuccessCount: 1}}
	msgBody, _ := queue.EncodeMessage(queue.Message{SessionID: "session-1", RequestID: "req-1"})
	msg := sqstypes.Message{
		MessageId:     aws.String("m1"),
		ReceiptHandle: aws.String("r1"),
		Body:          aws.String(string(msgBody)),
	}

	handleMessage(context.Background(), client, "queue", executor, 3, msg)

	if executor.calls != 1 {
		t.Fatalf("executor calls = %d, want 1", executor.calls)
	}
	if len(client.deleted) != 1 || client.deleted[0] != "r1" {
		t.Fatalf("deleted = %v, want [r1]", client.deleted)
	}
}

func TestWorkerDeletesMessageOnFailedSession(t *testing.T) {
	// A session that ran and failed is a completed unit of work; the
	// message must still be deleted so it does not replay.
	client := &fakeSQS{}
	executor := &fakeExecutor{result: sessions.WorkerResult{TotalModels: 2, FailureCount: 2, Error: "All 2 models failed to generate predictions"}}
	msgBody, _ := queue.EncodeMessage(queue.Message{SessionID: "session-2"})
	msg := sqstypes.Message{
		MessageId:     aws.String("m2"),
		ReceiptHandle: aws.String("r2"),
		Body:          aws.String(string(msgBody)),
	}

	handleMessage(context.Background(), client, "queue", executor, 3, msg)

	if len(client.deleted) != 1 {
		t.Fatalf("expected delete, got %d", len(client.deleted))
	}
}

func TestWorkerDeletesOnInvalidJSON(t *testing.T) {
	client := &fakeSQS{}
	executor := &fakeExecutor{}
	msg := sqstypes.Message{
		MessageId:     aws.String("m3"),
		ReceiptHandle: aws.String("r3"),
		Body:          aws.String("{bad-json"),
	}

	handleMessage(context.Background(), client, "queue", executor, 3, msg)

	if executor.calls != 0 {
		t.Fatalf("executor called for malformed payload: %d", executor.calls)
	}
	if len(client.deleted) != 1 {
		t.Fatalf("expected delete, got %d", len(client.deleted))
	}
}

func TestWorkerDeletesOnMissingSessionID(t *testing.T) {
	client := &fakeSQS{}
	executor := &fakeExecutor{}
	msgBody, _ := queue.EncodeMessage(queue.Message{RequestID: "req-4"})
	msg := sqstypes.Message{
		MessageId:     aws.String("m4"),
		ReceiptHandle: aws.String("r4"),
		Body:          aws.String(string(msgBody)),
	}

	handleMessage(context.Background(), client, "queue", executor, 3, msg)

	if len(client.deleted) != 1 {
		t.Fatalf("expected delete, got %d", len(client.deleted))
	}
}
