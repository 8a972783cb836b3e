// Package sqs implements the TaskQueue port on Amazon SQS. Visibility
// timeouts, redrive to the dead-letter queue, and at-least-once delivery are
// SQS-native; this adapter only translates between ScanTask JSON bodies and
// the port's receipt-based contract.
package sqs

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/sirupsen/logrus"

	"github.com/design-smith/AWSDataScanner/internal/domain"
	"github.com/design-smith/AWSDataScanner/internal/ports"
)

type Config struct {
	Region string
	// Endpoint overrides the AWS endpoint, for LocalStack.
	Endpoint          string
	QueueURL          string
	DeadLetterURL     string
	VisibilityTimeout time.Duration
}

type Queue struct {
	client *sqs.Client
	cfg    Config
	log    *logrus.Logger
}

func New(ctx context.Context, cfg Config, log *logrus.Logger) (*Queue, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewFromClient(client, cfg, log), nil
}

func NewFromClient(client *sqs.Client, cfg Config, log *logrus.Logger) *Queue {
	if cfg.VisibilityTimeout <= 0 {
		cfg.VisibilityTimeout = 5 * time.Minute
	}
	return &Queue{client: client, cfg: cfg, log: log}
}

func (q *Queue) Enqueue(ctx context.Context, task domain.ScanTask) error {
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.cfg.QueueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("sqs send: %w", err)
	}
	return nil
}

func (q *Queue) Receive(ctx context.Context, max int, wait time.Duration) ([]ports.ReceivedTask, error) {
	if max < 1 {
		max = 1
	}
	if max > 10 {
		max = 10
	}
	out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.cfg.QueueURL),
		MaxNumberOfMessages: int32(max),
		WaitTimeSeconds:     int32(wait / time.Second),
		VisibilityTimeout:   int32(q.cfg.VisibilityTimeout / time.Second),
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{
			types.MessageSystemAttributeNameApproximateReceiveCount,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqs receive: %w", err)
	}

	tasks := make([]ports.ReceivedTask, 0, len(out.Messages))
	for _, msg := range out.Messages {
		var task domain.ScanTask
		if err := json.Unmarshal([]byte(aws.ToString(msg.Body)), &task); err != nil {
			// Malformed bodies would otherwise cycle through redelivery
			// forever; drop them here and rely on the log for forensics.
			q.log.WithFields(logrus.Fields{
				"message_id": aws.ToString(msg.MessageId),
				"error":      err,
			}).Error("dropping malformed task message")
			q.delete(ctx, aws.ToString(msg.ReceiptHandle))
			continue
		}
		receiveCount := 1
		if v, ok := msg.Attributes["ApproximateReceiveCount"]; ok {
			if n, err := strconv.Atoi(v); err == nil {
				receiveCount = n
			}
		}
		tasks = append(tasks, ports.ReceivedTask{
			Task:         task,
			Receipt:      aws.ToString(msg.ReceiptHandle),
			ReceiveCount: receiveCount,
		})
	}
	return tasks, nil
}

func (q *Queue) Ack(ctx context.Context, t ports.ReceivedTask) error {
	return q.delete(ctx, t.Receipt)
}

// Release makes the message immediately visible again instead of waiting out
// the remainder of its visibility timeout.
func (q *Queue) Release(ctx context.Context, t ports.ReceivedTask) error {
	return q.changeVisibility(ctx, t.Receipt, 0)
}

func (q *Queue) Extend(ctx context.Context, t ports.ReceivedTask, d time.Duration) error {
	return q.changeVisibility(ctx, t.Receipt, int32(d/time.Second))
}

// DeadLetters peeks at the redrive queue without consuming: messages are
// received with a zero visibility timeout so they stay available.
func (q *Queue) DeadLetters(ctx context.Context, limit int) ([]domain.ScanTask, error) {
	if q.cfg.DeadLetterURL == "" {
		return nil, nil
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 10 {
		limit = 10
	}
	out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.cfg.DeadLetterURL),
		MaxNumberOfMessages: int32(limit),
		VisibilityTimeout:   0,
	})
	if err != nil {
		return nil, fmt.Errorf("sqs receive dead letters: %w", err)
	}
	tasks := make([]domain.ScanTask, 0, len(out.Messages))
	for _, msg := range out.Messages {
		var task domain.ScanTask
		if err := json.Unmarshal([]byte(aws.ToString(msg.Body)), &task); err != nil {
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func (q *Queue) delete(ctx context.Context, receipt string) error {
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.cfg.QueueURL),
		ReceiptHandle: aws.String(receipt),
	})
	if err != nil {
		return fmt.Errorf("sqs delete: %w", err)
	}
	return nil
}

func (q *Queue) changeVisibility(ctx context.Context, receipt string, seconds int32) error {
	_, err := q.client.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(q.cfg.QueueURL),
		ReceiptHandle:     aws.String(receipt),
		VisibilityTimeout: seconds,
	})
	if err != nil {
		return fmt.Errorf("sqs change visibility: %w", err)
	}
	return nil
}
