package activity

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/nurpe/cnc-service/internal/config"
	"github.com/nurpe/cnc-service/internal/model"
)

// DynamoAPI is the subset of the DynamoDB client the recorder calls.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// eventItem is stored under partition key work_order_id and sort key sk
// ("<RFC3339Nano timestamp>#<event id>").
type eventItem struct {
	WorkOrderID     string `dynamodbav:"work_order_id"`
	SortKey         string `dynamodbav:"sk"`
	ID              string `dynamodbav:"id"`
	Type            string `dynamodbav:"type"`
	Title           string `dynamodbav:"title"`
	Description     string `dynamodbav:"description"`
	Timestamp       string `dynamodbav:"timestamp"`
	VisibleToClient bool   `dynamodbav:"visible_to_client"`
}

type DynamoRecorder struct {
	ddb   DynamoAPI
	table string
}

func NewDynamoRecorder(ddb DynamoAPI, table string) *DynamoRecorder {
	return &DynamoRecorder{ddb: ddb, table: table}
}

// NewDynamoClient builds a client from the activity settings. A custom
// endpoint targets DynamoDB Local, which accepts any static credentials.
func NewDynamoClient(ctx context.Context, cfg config.ActivityConfig) (*dynamodb.Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWSRegion),
	}
	if cfg.DynamoDBEndpoint != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("local", "local", ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.DynamoDBEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoDBEndpoint)
		}
	}), nil
}

func (r *DynamoRecorder) Record(ctx context.Context, event model.ActivityEvent) error {
	av, err := attributevalue.MarshalMap(toEventItem(event))
	if err != nil {
		return err
	}
	_, err = r.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.table),
		Item:      av,
	})
	return err
}

// ListByWorkOrder returns the events of a work order newest first.
func (r *DynamoRecorder) ListByWorkOrder(ctx context.Context, workOrderID string) ([]model.ActivityEvent, error) {
	events := make([]model.ActivityEvent, 0)
	var startKey map[string]types.AttributeValue
	for {
		out, err := r.ddb.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(r.table),
			KeyConditionExpression: aws.String("work_order_id = :wid"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":wid": &types.AttributeValueMemberS{Value: workOrderID},
			},
			ScanIndexForward:  aws.Bool(false),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, err
		}
		for _, raw := range out.Items {
			var it eventItem
			if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
				return nil, err
			}
			events = append(events, fromEventItem(it))
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.After(events[j].Timestamp)
	})
	return events, nil
}

func toEventItem(e model.ActivityEvent) eventItem {
	ts := e.Timestamp.UTC().Format(time.RFC3339Nano)
	return eventItem{
		WorkOrderID:     e.WorkOrderID,
		SortKey:         ts + "#" + e.ID,
		ID:              e.ID,
		Type:            string(e.Type),
		Title:           e.Title,
		Description:     e.Description,
		Timestamp:       ts,
		VisibleToClient: e.VisibleToClient,
	}
}

func fromEventItem(it eventItem) model.ActivityEvent {
	ts, _ := time.Parse(time.RFC3339Nano, it.Timestamp)
	return model.ActivityEvent{
		ID:              it.ID,
		WorkOrderID:     it.WorkOrderID,
		Type:            model.ActivityType(it.Type),
		Title:           it.Title,
		Description:     it.Description,
		Timestamp:       ts,
		VisibleToClient: it.VisibleToClient,
	}
}
