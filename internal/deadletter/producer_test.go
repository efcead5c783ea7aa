package deadletter

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hansika-eng/clockdin/internal/db"
)

type mockSQSClient struct {
	input *sqs.SendMessageInput
	err   error
}

func (m *mockSQSClient) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	m.input = params
	if m.err != nil {
		return nil, m.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("sqs-msg-1")}, nil
}

func TestPublish(t *testing.T) {
	client := &mockSQSClient{}
	p := &Producer{client: client, queueURL: "https://sqs.example/queue", logger: zap.NewNop()}

	rem := &db.Reminder{
		ID:        uuid.New(),
		EventID:   uuid.New(),
		Recipient: "bad@example.com",
		Channel:   "email",
		TriggerAt: time.Now().Add(-time.Hour),
		Attempts:  5,
	}

	if err := p.Publish(context.Background(), rem, "address suppressed"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if client.input == nil {
		t.Fatal("expected SendMessage to be called")
	}
	if got := aws.ToString(client.input.QueueUrl); got != "https://sqs.example/queue" {
		t.Errorf("unexpected queue url: %q", got)
	}

	var msg Message
	if err := json.Unmarshal([]byte(aws.ToString(client.input.MessageBody)), &msg); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if msg.ReminderID != rem.ID.String() {
		t.Errorf("reminder id: got %q", msg.ReminderID)
	}
	if msg.Attempts != 5 {
		t.Errorf("attempts: got %d", msg.Attempts)
	}
	if msg.LastError != "address suppressed" {
		t.Errorf("last error: got %q", msg.LastError)
	}
	if msg.MirroredAt == 0 {
		t.Error("expected mirrored_at set")
	}
}

func TestPublishSQSError(t *testing.T) {
	client := &mockSQSClient{err: errors.New("queue does not exist")}
	p := &Producer{client: client, queueURL: "https://sqs.example/queue", logger: zap.NewNop()}

	rem := &db.Reminder{ID: uuid.New(), EventID: uuid.New()}
	if err := p.Publish(context.Background(), rem, "boom"); err == nil {
		t.Fatal("expected error")
	}
}
