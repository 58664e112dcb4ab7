// Package dynamostore keeps recording status records in a DynamoDB table
// with PK=userId and SK=recordingId.
package dynamostore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	awsddb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/kbukum/remworker/dynamodb"
	apperrors "github.com/kbukum/remworker/errors"
	"github.com/kbukum/remworker/recording"
)

type item struct {
	PK              string    `dynamodbav:"PK"`
	SK              string    `dynamodbav:"SK"`
	Status          string    `dynamodbav:"status"`
	TranscriptKey   string    `dynamodbav:"transcriptS3Key"`
	Language        string    `dynamodbav:"language"`
	DurationSeconds float64   `dynamodbav:"durationSeconds"`
	UpdatedAt       string    `dynamodbav:"updatedAt"`
	Embedding       []float64 `dynamodbav:"embedding,omitempty"`
	Summary         string    `dynamodbav:"summary,omitempty"`
	Topics          []string  `dynamodbav:"topics,omitempty"`
}

// Store implements recording.StatusStore.
type Store struct {
	api   dynamodb.API
	table string
}

var _ recording.StatusStore = (*Store)(nil)

func New(api dynamodb.API, table string) *Store {
	return &Store{api: api, table: table}
}

func key(userID, recordingID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: userID},
		"SK": &types.AttributeValueMemberS{Value: recordingID},
	}
}

// Update sets the mandatory fields and adds embedding, summary and topics
// only when present, leaving earlier values untouched otherwise.
func (s *Store) Update(ctx context.Context, rec recording.StatusRecord) error {
	expr := "SET #status = :status, transcriptS3Key = :ref, #lang = :lang, durationSeconds = :dur, updatedAt = :now"
	names := map[string]string{"#status": "status", "#lang": "language"}
	values := map[string]types.AttributeValue{
		":status": &types.AttributeValueMemberS{Value: rec.Status},
		":ref":    &types.AttributeValueMemberS{Value: rec.TranscriptRef},
		":lang":   &types.AttributeValueMemberS{Value: rec.Language},
		":dur":    &types.AttributeValueMemberN{Value: strconv.FormatFloat(rec.DurationSeconds, 'f', -1, 64)},
		":now":    &types.AttributeValueMemberS{Value: rec.UpdatedAt.UTC().Format(time.RFC3339Nano)},
	}
	if len(rec.Embedding) > 0 {
		v, err := attributevalue.Marshal(rec.Embedding)
		if err != nil {
			return apperrors.PersistFailed("status record", err)
		}
		expr += ", embedding = :emb"
		values[":emb"] = v
	}
	if rec.Summary != "" {
		expr += ", summary = :summary"
		values[":summary"] = &types.AttributeValueMemberS{Value: rec.Summary}
	}
	if len(rec.Topics) > 0 {
		v, err := attributevalue.Marshal(rec.Topics)
		if err != nil {
			return apperrors.PersistFailed("status record", err)
		}
		expr += ", topics = :topics"
		values[":topics"] = v
	}

	_, err := s.api.UpdateItem(ctx, &awsddb.UpdateItemInput{
		TableName:                 aws.String(s.table),
		Key:                       key(rec.UserID, rec.RecordingID),
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		return apperrors.PersistFailed("status record", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, userID, recordingID string) (*recording.StatusRecord, error) {
	out, err := s.api.GetItem(ctx, &awsddb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       key(userID, recordingID),
	})
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	if len(out.Item) == 0 {
		return nil, apperrors.NotFound("recording", recordingID)
	}
	var it item
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("decode status record: %w", err)
	}
	updated, _ := time.Parse(time.RFC3339Nano, it.UpdatedAt)
	return &recording.StatusRecord{
		UserID:          it.PK,
		RecordingID:     it.SK,
		Status:          it.Status,
		TranscriptRef:   it.TranscriptKey,
		Language:        it.Language,
		DurationSeconds: it.DurationSeconds,
		UpdatedAt:       updated,
		Embedding:       it.Embedding,
		Summary:         it.Summary,
		Topics:          it.Topics,
	}, nil
}
