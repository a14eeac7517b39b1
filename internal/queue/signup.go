// Package queue publishes signup events to SQS for downstream consumers
// (fulfilment, CRM sync). The service itself stores nothing.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"subscribe/internal/config"
)

// EventTypeSubscriptionCreated is the event_type attribute on every message.
const EventTypeSubscriptionCreated = "subscription.created"

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Publisher is what the signup handler depends on.
type Publisher interface {
	Publish(ctx context.Context, evt SignupEvent) error
}

// SignupEvent describes a completed signup. It never carries the payment
// token or the buyer's email.
type SignupEvent struct {
	EventID        string    `json:"event_id"`
	SignupID       string    `json:"signup_id"`
	Plan           string    `json:"plan"`
	CustomerID     string    `json:"customer_id"`
	SubscriptionID string    `json:"subscription_id"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// NewSignupEvent stamps a fresh event id and the current UTC time.
func NewSignupEvent(signupID, plan, customerID, subscriptionID string) SignupEvent {
	return SignupEvent{
		EventID:        uuid.NewString(),
		SignupID:       signupID,
		Plan:           plan,
		CustomerID:     customerID,
		SubscriptionID: subscriptionID,
		OccurredAt:     time.Now().UTC(),
	}
}

// SignupPublisher sends SignupEvents to a single SQS queue.
type SignupPublisher struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
}

var _ Publisher = (*SignupPublisher)(nil)

// NewSignupPublisher reads the queue URL from the AWSConfig.
func NewSignupPublisher(client SQSSender, awsCfg config.AWSConfig, logger *slog.Logger) *SignupPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &SignupPublisher{
		client:   client,
		queueURL: awsCfg.SignupEventsQueue,
		logger:   logger,
	}
}

// Publish serializes evt to JSON and sends it. The message is deduplicated
// downstream by event_id; SQS itself may deliver it more than once.
func (p *SignupPublisher) Publish(ctx context.Context, evt SignupEvent) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal SignupEvent: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"event_type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(EventTypeSubscriptionCreated),
			},
			"plan": {
				DataType:    aws.String("String"),
				StringValue: aws.String(evt.Plan),
			},
		},
	}

	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("queue: failed to send SignupEvent to %s: %w", p.queueURL, err)
	}

	p.logger.InfoContext(ctx, "signup event sent",
		"queue_url", p.queueURL,
		"event_id", evt.EventID,
		"signup_id", evt.SignupID,
		"plan", evt.Plan,
	)
	return nil
}

// NoopPublisher drops events. Used when SQS_SIGNUP_EVENTS is unset.
type NoopPublisher struct{}

var _ Publisher = NoopPublisher{}

func (NoopPublisher) Publish(context.Context, SignupEvent) error { return nil }
