package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/hcplus/scheduling-agent/pkg/logging"
)

// sqsAPI is the slice of the SQS client the queue uses, so tests can fake it.
type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// SQSQueue implements queueClient backed by AWS/LocalStack SQS. It owns the
// wire format: turn jobs cross the queue as JSON, and bodies that don't decode
// are dropped and deleted rather than handed to a worker.
type SQSQueue struct {
	client   sqsAPI
	queueURL string
	logger   *logging.Logger
}

// NewSQSQueue creates a queue wrapper around the provided SQS client.
func NewSQSQueue(client sqsAPI, queueURL string, logger *logging.Logger) *SQSQueue {
	if client == nil {
		panic("agent: SQS client cannot be nil")
	}
	if queueURL == "" {
		panic("agent: SQS queueURL cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SQSQueue{
		client:   client,
		queueURL: queueURL,
		logger:   logger,
	}
}

func (q *SQSQueue) Send(ctx context.Context, job turnJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("agent: failed to encode turn job: %w", err)
	}

	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("agent: failed to send SQS message: %w", err)
	}
	return nil
}

func (q *SQSQueue) Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]turnDelivery, error) {
	input := &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: int32(maxMessages),
		WaitTimeSeconds:     int32(waitSeconds),
	}

	output, err := q.client.ReceiveMessage(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("agent: failed to receive SQS messages: %w", err)
	}

	deliveries := make([]turnDelivery, 0, len(output.Messages))
	for _, msg := range output.Messages {
		var job turnJob
		if err := json.Unmarshal([]byte(aws.ToString(msg.Body)), &job); err != nil {
			q.logger.Error("dropping undecodable turn job",
				"error", err,
				"message_id", aws.ToString(msg.MessageId),
			)
			_ = q.Delete(ctx, aws.ToString(msg.ReceiptHandle))
			continue
		}
		deliveries = append(deliveries, turnDelivery{
			Job:           job,
			ReceiptHandle: aws.ToString(msg.ReceiptHandle),
		})
	}

	return deliveries, nil
}

func (q *SQSQueue) Delete(ctx context.Context, receiptHandle string) error {
	if receiptHandle == "" {
		return nil
	}

	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("agent: failed to delete SQS message: %w", err)
	}
	return nil
}
