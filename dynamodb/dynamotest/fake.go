// Package dynamotest provides an in-memory stand-in for the DynamoDB API
// that understands the expressions the stores issue: a single equality key
// condition on Query and SET clauses with optional if_not_exists on
// UpdateItem.
package dynamotest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	awsddb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type Item = map[string]types.AttributeValue

// Table is one table with a partition key and an optional sort key.
type Table struct {
	PK, SK string
	items  map[string]Item
	order  []string
}

// Fake implements dynamodb.API.
type Fake struct {
	mu      sync.Mutex
	tables  map[string]*Table
	Updates []*awsddb.UpdateItemInput
	// Err, when set, is returned by every call.
	Err error
}

func New() *Fake {
	return &Fake{tables: make(map[string]*Table)}
}

// CreateTable registers a table; sk may be empty.
func (f *Fake) CreateTable(name, pk, sk string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables[name] = &Table{PK: pk, SK: sk, items: make(map[string]Item)}
}

// Items returns a table's items in insertion order.
func (f *Fake) Items(table string) []Item {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.tables[table]
	if t == nil {
		return nil
	}
	out := make([]Item, 0, len(t.order))
	for _, k := range t.order {
		out = append(out, t.items[k])
	}
	return out
}

func (f *Fake) table(name *string) (*Table, error) {
	if name == nil {
		return nil, fmt.Errorf("table name required")
	}
	t := f.tables[*name]
	if t == nil {
		return nil, &types.ResourceNotFoundException{Message: name}
	}
	return t, nil
}

func (t *Table) keyOf(item Item) (string, error) {
	pk, ok := item[t.PK].(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("missing string key %s", t.PK)
	}
	if t.SK == "" {
		return pk.Value, nil
	}
	sk, ok := item[t.SK].(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("missing string key %s", t.SK)
	}
	return pk.Value + "\x00" + sk.Value, nil
}

func (f *Fake) GetItem(_ context.Context, in *awsddb.GetItemInput, _ ...func(*awsddb.Options)) (*awsddb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	t, err := f.table(in.TableName)
	if err != nil {
		return nil, err
	}
	k, err := t.keyOf(in.Key)
	if err != nil {
		return nil, err
	}
	return &awsddb.GetItemOutput{Item: t.items[k]}, nil
}

func (f *Fake) Query(_ context.Context, in *awsddb.QueryInput, _ ...func(*awsddb.Options)) (*awsddb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	t, err := f.table(in.TableName)
	if err != nil {
		return nil, err
	}
	if in.KeyConditionExpression == nil {
		return nil, fmt.Errorf("key condition required")
	}
	lhs, rhs, ok := strings.Cut(*in.KeyConditionExpression, "=")
	if !ok {
		return nil, fmt.Errorf("unsupported key condition %q", *in.KeyConditionExpression)
	}
	attr := resolveName(strings.TrimSpace(lhs), in.ExpressionAttributeNames)
	want, ok := in.ExpressionAttributeValues[strings.TrimSpace(rhs)].(*types.AttributeValueMemberS)
	if attr != t.PK || !ok {
		return nil, fmt.Errorf("unsupported key condition %q", *in.KeyConditionExpression)
	}
	out := &awsddb.QueryOutput{}
	for _, k := range t.order {
		item := t.items[k]
		if v, ok := item[t.PK].(*types.AttributeValueMemberS); ok && v.Value == want.Value {
			out.Items = append(out.Items, item)
		}
	}
	if t.SK != "" {
		sort.SliceStable(out.Items, func(i, j int) bool {
			a, _ := out.Items[i][t.SK].(*types.AttributeValueMemberS)
			b, _ := out.Items[j][t.SK].(*types.AttributeValueMemberS)
			return a.Value < b.Value
		})
	}
	out.Count = int32(len(out.Items))
	return out, nil
}

func (f *Fake) UpdateItem(_ context.Context, in *awsddb.UpdateItemInput, _ ...func(*awsddb.Options)) (*awsddb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	f.Updates = append(f.Updates, in)
	t, err := f.table(in.TableName)
	if err != nil {
		return nil, err
	}
	k, err := t.keyOf(in.Key)
	if err != nil {
		return nil, err
	}
	item, exists := t.items[k]
	if !exists {
		item = make(Item)
		for name, v := range in.Key {
			item[name] = v
		}
	}
	if in.UpdateExpression == nil || !strings.HasPrefix(*in.UpdateExpression, "SET ") {
		return nil, fmt.Errorf("unsupported update expression")
	}
	for _, clause := range splitTopLevel(strings.TrimPrefix(*in.UpdateExpression, "SET ")) {
		lhs, rhs, ok := strings.Cut(clause, "=")
		if !ok {
			return nil, fmt.Errorf("unsupported clause %q", clause)
		}
		attr := resolveName(strings.TrimSpace(lhs), in.ExpressionAttributeNames)
		rhs = strings.TrimSpace(rhs)
		if inner, ok := strings.CutPrefix(rhs, "if_not_exists("); ok {
			_, placeholder, _ := strings.Cut(strings.TrimSuffix(inner, ")"), ",")
			if _, present := item[attr]; present {
				continue
			}
			rhs = strings.TrimSpace(placeholder)
		}
		v, ok := in.ExpressionAttributeValues[rhs]
		if !ok {
			return nil, fmt.Errorf("missing value %s", rhs)
		}
		item[attr] = v
	}
	if !exists {
		t.order = append(t.order, k)
	}
	t.items[k] = item
	return &awsddb.UpdateItemOutput{}, nil
}

func (f *Fake) DescribeTable(_ context.Context, in *awsddb.DescribeTableInput, _ ...func(*awsddb.Options)) (*awsddb.DescribeTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	if _, err := f.table(in.TableName); err != nil {
		return nil, err
	}
	return &awsddb.DescribeTableOutput{Table: &types.TableDescription{TableName: in.TableName}}, nil
}

func resolveName(s string, names map[string]string) string {
	if strings.HasPrefix(s, "#") {
		if n, ok := names[s]; ok {
			return n
		}
	}
	return s
}

func splitTopLevel(s string) []string {
	var (
		out   []string
		depth int
		start int
	)
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(out, strings.TrimSpace(s[start:]))
}
