package jobqueue

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"time"
)

// SQSQueue implements Queue over AWS SQS. The visibility timeout is the
// claim lease: an unacked message reappears for another worker.
type SQSQueue struct {
	client   *sqs.Client
	queueURL string
}

var _ Queue = (*SQSQueue)(nil)

// NewSQSQueue creates a queue from the default AWS config chain.
func NewSQSQueue(ctx context.Context, region, queueURL string) (*SQSQueue, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}
	return &SQSQueue{client: sqs.NewFromConfig(cfg), queueURL: queueURL}, nil
}

// Enqueue sends the job id as a message body.
func (q *SQSQueue) Enqueue(ctx context.Context, jobID string) error {
	_, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(jobID),
	})
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", jobID, err)
	}
	return nil
}

// EnqueueDelayed uses SQS native message delay (capped at 15 minutes).
func (q *SQSQueue) EnqueueDelayed(ctx context.Context, jobID string, delay time.Duration) error {
	seconds := int32(delay.Seconds())
	if seconds > 900 {
		seconds = 900
	}
	_, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:     aws.String(q.queueURL),
		MessageBody:  aws.String(jobID),
		DelaySeconds: seconds,
	})
	if err != nil {
		return fmt.Errorf("enqueue delayed %s: %w", jobID, err)
	}
	return nil
}

// Claim long-polls for one message.
func (q *SQSQueue) Claim(ctx context.Context) (*Delivery, error) {
	out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: 1,
		WaitTimeSeconds:     20,
		VisibilityTimeout:   300, // 5 minutes
	})
	if err != nil {
		return nil, fmt.Errorf("claim: %w", err)
	}
	if len(out.Messages) == 0 {
		return nil, nil
	}

	msg := out.Messages[0]
	receipt := msg.ReceiptHandle
	return &Delivery{
		JobID: aws.ToString(msg.Body),
		Ack: func(ctx context.Context) error {
			_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
				QueueUrl:      aws.String(q.queueURL),
				ReceiptHandle: receipt,
			})
			return err
		},
	}, nil
}
