package sqs

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/kbukum/remworker/queue"
)

type fakeAPI struct {
	receiveIn  *awssqs.ReceiveMessageInput
	messages   []types.Message
	deleted    []string
	deleteErr  error
	attrsErr   error
	receiveErr error
}

func (f *fakeAPI) ReceiveMessage(_ context.Context, in *awssqs.ReceiveMessageInput, _ ...func(*awssqs.Options)) (*awssqs.ReceiveMessageOutput, error) {
	f.receiveIn = in
	if f.receiveErr != nil {
		return nil, f.receiveErr
	}
	return &awssqs.ReceiveMessageOutput{Messages: f.messages}, nil
}

func (f *fakeAPI) DeleteMessage(_ context.Context, in *awssqs.DeleteMessageInput, _ ...func(*awssqs.Options)) (*awssqs.DeleteMessageOutput, error) {
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	f.deleted = append(f.deleted, aws.ToString(in.ReceiptHandle))
	return &awssqs.DeleteMessageOutput{}, nil
}

func (f *fakeAPI) GetQueueAttributes(_ context.Context, _ *awssqs.GetQueueAttributesInput, _ ...func(*awssqs.Options)) (*awssqs.GetQueueAttributesOutput, error) {
	return &awssqs.GetQueueAttributesOutput{}, f.attrsErr
}

const queueURL = "http://localhost:4566/000000000000/recordings"

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", Config{QueueURL: queueURL}, false},
		{"missing url", Config{}, true},
		{"wait too long", Config{QueueURL: queueURL, WaitTimeSeconds: 25}, true},
		{"visibility too long", Config{QueueURL: queueURL, VisibilityTimeout: 50000}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.ApplyDefaults()
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestReceive(t *testing.T) {
	api := &fakeAPI{messages: []types.Message{{
		MessageId:     aws.String("m1"),
		Body:          aws.String(`{"recordingId":"r1"}`),
		ReceiptHandle: aws.String("rh-1"),
		Attributes:    map[string]string{"ApproximateReceiveCount": "3"},
	}}}
	src, err := New(Config{QueueURL: queueURL}, api)
	if err != nil {
		t.Fatal(err)
	}

	msgs, err := src.Receive(context.Background(), 25)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages", len(msgs))
	}
	got := msgs[0]
	if got.ID != "m1" || got.Receipt != "rh-1" || got.ReceiveCount != 3 || string(got.Body) != `{"recordingId":"r1"}` {
		t.Errorf("message = %+v", got)
	}

	in := api.receiveIn
	if in.MaxNumberOfMessages != 10 || in.WaitTimeSeconds != 20 || in.VisibilityTimeout != 900 {
		t.Errorf("receive input = max %d wait %d vis %d", in.MaxNumberOfMessages, in.WaitTimeSeconds, in.VisibilityTimeout)
	}
	if aws.ToString(in.QueueUrl) != queueURL {
		t.Errorf("queue url = %s", aws.ToString(in.QueueUrl))
	}
}

func TestReceiveError(t *testing.T) {
	src, _ := New(Config{QueueURL: queueURL}, &fakeAPI{receiveErr: errors.New("throttled")})
	if _, err := src.Receive(context.Background(), 1); err == nil {
		t.Error("expected error")
	}
}

func TestAck(t *testing.T) {
	api := &fakeAPI{}
	src, _ := New(Config{QueueURL: queueURL}, api)
	if err := src.Ack(context.Background(), queue.Message{ID: "m1", Receipt: "rh-1"}); err != nil {
		t.Fatal(err)
	}
	if len(api.deleted) != 1 || api.deleted[0] != "rh-1" {
		t.Errorf("deleted = %v", api.deleted)
	}

	api.deleteErr = &types.ReceiptHandleIsInvalid{Message: aws.String("expired")}
	err := src.Ack(context.Background(), queue.Message{ID: "m1", Receipt: "rh-1"})
	if !errors.Is(err, queue.ErrStaleReceipt) {
		t.Errorf("expected ErrStaleReceipt, got %v", err)
	}
}

func TestPing(t *testing.T) {
	api := &fakeAPI{}
	src, _ := New(Config{QueueURL: queueURL}, api)
	if err := src.Ping(context.Background()); err != nil {
		t.Errorf("ping: %v", err)
	}
	api.attrsErr = errors.New("access denied")
	if err := src.Ping(context.Background()); err == nil {
		t.Error("expected ping error")
	}
}
