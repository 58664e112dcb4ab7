// Package dynamostore keeps speaker profiles in a DynamoDB table keyed by
// userId (partition) and speakerId (sort).
package dynamostore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	awsddb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/kbukum/remworker/dynamodb"
	"github.com/kbukum/remworker/speaker"
)

type item struct {
	UserID      string    `dynamodbav:"userId"`
	SpeakerID   string    `dynamodbav:"speakerId"`
	Name        string    `dynamodbav:"name"`
	Embedding   []float64 `dynamodbav:"embedding"`
	SampleCount int       `dynamodbav:"sampleCount"`
	CreatedAt   string    `dynamodbav:"createdAt"`
	UpdatedAt   string    `dynamodbav:"updatedAt"`
}

func (it item) profile() speaker.Profile {
	created, _ := time.Parse(time.RFC3339Nano, it.CreatedAt)
	updated, _ := time.Parse(time.RFC3339Nano, it.UpdatedAt)
	return speaker.Profile{
		UserID:      it.UserID,
		SpeakerID:   it.SpeakerID,
		Name:        it.Name,
		Embedding:   it.Embedding,
		SampleCount: it.SampleCount,
		CreatedAt:   created,
		UpdatedAt:   updated,
	}
}

// Store implements speaker.Store.
type Store struct {
	api   dynamodb.API
	table string
	now   func() time.Time
}

var _ speaker.Store = (*Store)(nil)

func New(api dynamodb.API, table string) *Store {
	return &Store{api: api, table: table, now: time.Now}
}

// ListProfiles pages through the user's partition. Profiles come back
// oldest first.
func (s *Store) ListProfiles(ctx context.Context, userID string) ([]speaker.Profile, error) {
	in := &awsddb.QueryInput{
		TableName:                 aws.String(s.table),
		KeyConditionExpression:    aws.String("userId = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":uid": &types.AttributeValueMemberS{Value: userID}},
	}
	var profiles []speaker.Profile
	for {
		out, err := s.api.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("query speakers: %w", err)
		}
		var items []item
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
			return nil, fmt.Errorf("decode speakers: %w", err)
		}
		for _, it := range items {
			profiles = append(profiles, it.profile())
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
	sort.SliceStable(profiles, func(i, j int) bool {
		return profiles[i].CreatedAt.Before(profiles[j].CreatedAt)
	})
	return profiles, nil
}

// UpsertProfile issues a single UpdateItem; createdAt and a default name
// are only written when absent.
func (s *Store) UpsertProfile(ctx context.Context, u speaker.ProfileUpdate) error {
	now := s.now().UTC().Format(time.RFC3339Nano)
	names := map[string]string{"#name": "name"}
	values := map[string]types.AttributeValue{
		":now": &types.AttributeValueMemberS{Value: now},
	}

	expr := "SET updatedAt = :now, createdAt = if_not_exists(createdAt, :now)"
	if u.Name != "" {
		expr += ", #name = :name"
		values[":name"] = &types.AttributeValueMemberS{Value: u.Name}
	} else {
		expr += ", #name = if_not_exists(#name, :sid)"
		values[":sid"] = &types.AttributeValueMemberS{Value: u.SpeakerID}
	}
	if u.Embedding != nil {
		emb, err := attributevalue.Marshal(u.Embedding)
		if err != nil {
			return fmt.Errorf("encode embedding: %w", err)
		}
		expr += ", embedding = :emb"
		values[":emb"] = emb
	}
	if u.SampleCount > 0 {
		expr += ", sampleCount = :count"
		values[":count"] = &types.AttributeValueMemberN{Value: fmt.Sprint(u.SampleCount)}
	}

	_, err := s.api.UpdateItem(ctx, &awsddb.UpdateItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"userId":    &types.AttributeValueMemberS{Value: u.UserID},
			"speakerId": &types.AttributeValueMemberS{Value: u.SpeakerID},
		},
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		return fmt.Errorf("upsert speaker %s: %w", u.SpeakerID, err)
	}
	return nil
}
