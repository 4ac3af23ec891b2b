package agent

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hcplus/scheduling-agent/pkg/logging"
)

type fakeSQSAPI struct {
	sentBodies []string
	sendErr    error

	receiveOutput *sqs.ReceiveMessageOutput
	receiveErr    error

	deletedHandles []string
}

func (f *fakeSQSAPI) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sentBodies = append(f.sentBodies, aws.ToString(params.MessageBody))
	return &sqs.SendMessageOutput{}, nil
}

func (f *fakeSQSAPI) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	if f.receiveErr != nil {
		return nil, f.receiveErr
	}
	if f.receiveOutput != nil {
		return f.receiveOutput, nil
	}
	return &sqs.ReceiveMessageOutput{}, nil
}

func (f *fakeSQSAPI) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deletedHandles = append(f.deletedHandles, aws.ToString(params.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func TestSQSQueueSendEncodesJob(t *testing.T) {
	api := &fakeSQSAPI{}
	q := NewSQSQueue(api, "https://sqs.local/turns", logging.Default())

	err := q.Send(context.Background(), turnJob{
		ID:        "job-1",
		SessionID: "sess-1",
		Utterance: "hello",
	})
	require.NoError(t, err)
	require.Len(t, api.sentBodies, 1)

	var job turnJob
	require.NoError(t, json.Unmarshal([]byte(api.sentBodies[0]), &job))
	assert.Equal(t, "job-1", job.ID)
	assert.Equal(t, "sess-1", job.SessionID)
	assert.Equal(t, "hello", job.Utterance)
}

func TestSQSQueueReceiveDecodesJobs(t *testing.T) {
	api := &fakeSQSAPI{
		receiveOutput: &sqs.ReceiveMessageOutput{
			Messages: []sqstypes.Message{
				{
					MessageId:     aws.String("msg-1"),
					Body:          aws.String(`{"id":"job-1","session_id":"sess-1","utterance":"hello"}`),
					ReceiptHandle: aws.String("rh-1"),
				},
			},
		},
	}
	q := NewSQSQueue(api, "https://sqs.local/turns", logging.Default())

	deliveries, err := q.Receive(context.Background(), 5, 2)
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	assert.Equal(t, "job-1", deliveries[0].Job.ID)
	assert.Equal(t, "sess-1", deliveries[0].Job.SessionID)
	assert.Equal(t, "rh-1", deliveries[0].ReceiptHandle)
}

func TestSQSQueueReceiveDropsUndecodableBodies(t *testing.T) {
	api := &fakeSQSAPI{
		receiveOutput: &sqs.ReceiveMessageOutput{
			Messages: []sqstypes.Message{
				{
					MessageId:     aws.String("msg-1"),
					Body:          aws.String("not json"),
					ReceiptHandle: aws.String("rh-bad"),
				},
				{
					MessageId:     aws.String("msg-2"),
					Body:          aws.String(`{"id":"job-2","session_id":"sess-2","utterance":"hi"}`),
					ReceiptHandle: aws.String("rh-2"),
				},
			},
		},
	}
	q := NewSQSQueue(api, "https://sqs.local/turns", logging.Default())

	deliveries, err := q.Receive(context.Background(), 5, 2)
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	assert.Equal(t, "job-2", deliveries[0].Job.ID)
	assert.Equal(t, []string{"rh-bad"}, api.deletedHandles)
}
