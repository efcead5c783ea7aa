package mailer

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type mockSESClient struct {
	input *ses.SendEmailInput
	err   error
}

func (m *mockSESClient) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	m.input = params
	if m.err != nil {
		return nil, m.err
	}
	return &ses.SendEmailOutput{MessageId: aws.String("msg-123")}, nil
}

func newTestSESSender(client sesAPI) *SESSender {
	return &SESSender{client: client, from: "noreply@clockdin.io", logger: zap.NewNop()}
}

func emailMessage() *Message {
	return &Message{
		ReminderID: uuid.New(),
		Channel:    ChannelEmail,
		Recipient:  "alice@example.com",
		Subject:    "Event Reminder: Go Meetup",
		Body:       "See you there.",
	}
}

func TestSESSenderSend(t *testing.T) {
	client := &mockSESClient{}
	s := newTestSESSender(client)

	if err := s.Send(context.Background(), emailMessage()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if client.input == nil {
		t.Fatal("expected SendEmail to be called")
	}
	if got := aws.ToString(client.input.Source); got != "noreply@clockdin.io" {
		t.Errorf("unexpected source: %q", got)
	}
	if got := client.input.Destination.ToAddresses; len(got) != 1 || got[0] != "alice@example.com" {
		t.Errorf("unexpected destination: %v", got)
	}
	if got := aws.ToString(client.input.Message.Subject.Data); got != "Event Reminder: Go Meetup" {
		t.Errorf("unexpected subject: %q", got)
	}
}

func TestSESSenderRejectsInvalidInput(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Message)
	}{
		{"wrong channel", func(m *Message) { m.Channel = ChannelSMS }},
		{"malformed recipient", func(m *Message) { m.Recipient = "not an address" }},
		{"empty subject", func(m *Message) { m.Subject = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := &mockSESClient{}
			s := newTestSESSender(client)

			msg := emailMessage()
			tc.mutate(msg)

			err := s.Send(context.Background(), msg)
			if err == nil {
				t.Fatal("expected error")
			}
			if !IsPermanent(err) {
				t.Errorf("validation failures are permanent, got %v", err)
			}
			if client.input != nil {
				t.Error("no SES call expected for invalid input")
			}
		})
	}
}

func TestClassifySESError(t *testing.T) {
	cases := []struct {
		name          string
		err           error
		wantPermanent bool
	}{
		{"message rejected", &types.MessageRejected{}, true},
		{"unverified domain", &types.MailFromDomainNotVerifiedException{}, true},
		{"missing config set", &types.ConfigurationSetDoesNotExistException{}, true},
		{"network error", errors.New("dial tcp: timeout"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := &mockSESClient{err: tc.err}
			s := newTestSESSender(client)

			err := s.Send(context.Background(), emailMessage())
			if err == nil {
				t.Fatal("expected error")
			}
			if got := IsPermanent(err); got != tc.wantPermanent {
				t.Errorf("IsPermanent = %v, want %v (err: %v)", got, tc.wantPermanent, err)
			}
		})
	}
}

func TestSESSenderSupportsChannel(t *testing.T) {
	s := newTestSESSender(&mockSESClient{})

	if !s.SupportsChannel(ChannelEmail) {
		t.Error("expected email supported")
	}
	if s.SupportsChannel(ChannelSMS) {
		t.Error("expected sms unsupported")
	}
}
