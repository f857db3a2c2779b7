// Package dynamo stores profiles in DynamoDB, one table per variant, keyed by
// email (hash) and subjectId (range). Conditional expressions make create and
// update single atomic requests.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/Appitzr-Project/Backend-Profile/internal/models"
	"github.com/Appitzr-Project/Backend-Profile/internal/storage"
)

// API is the subset of *dynamodb.Client the store uses.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

type Store struct {
	api   API
	table string
	now   func() time.Time
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewClient loads the default AWS configuration for region. A non-empty
// endpoint points the client at DynamoDB Local, which accepts any
// credentials, so static placeholders are used when none are configured.
func NewClient(ctx context.Context, region, endpoint string) (*dynamodb.Client, error) {
	const op = "storage/dynamo/NewClient"

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if endpoint != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			aws.NewCredentialsCache(aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
				return aws.Credentials{AccessKeyID: "local", SecretAccessKey: "local", Source: "dynamodb-local"}, nil
			})),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

func New(api API, table string, opts ...Option) *Store {
	s := &Store{api: api, table: table, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Table() string { return s.table }

// EnsureTable creates the table with on-demand billing when it does not
// exist and waits until it is active.
func (s *Store) EnsureTable(ctx context.Context) error {
	const op = "storage/dynamo/EnsureTable"

	_, err := s.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.table)})
	if err == nil {
		return nil
	}
	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return fmt.Errorf("%s: %w", op, err)
	}

	_, err = s.api.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(s.table),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(models.AttrEmail), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(models.AttrSubjectID), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(models.AttrEmail), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(models.AttrSubjectID), KeyType: types.KeyTypeRange},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	var inUse *types.ResourceInUseException
	if err != nil && !errors.As(err, &inUse) {
		return fmt.Errorf("%s: %w", op, err)
	}

	waiter := dynamodb.NewTableExistsWaiter(s.api)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.table)}, 2*time.Minute); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error { return nil }

func (s *Store) Get(ctx context.Context, key models.OwnerKey) (*models.Record, bool, error) {
	const op = "storage/dynamo/Get"

	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            itemKey(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	if len(out.Item) == 0 {
		return nil, false, nil
	}

	rec, err := toRecord(out.Item)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	return rec, true, nil
}

func (s *Store) CreateIfAbsent(ctx context.Context, rec *models.Record) (storage.WriteResult, error) {
	const op = "storage/dynamo/CreateIfAbsent"

	item, err := toItem(rec)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(#email)"),
		ExpressionAttributeNames: map[string]string{
			"#email": models.AttrEmail,
		},
	})
	if isConditionFailed(err) {
		return storage.AlreadyExists, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return storage.Written, nil
}

func (s *Store) UpdateIfPresent(ctx context.Context, key models.OwnerKey, patch storage.Patch) (models.Attributes, storage.WriteResult, error) {
	const op = "storage/dynamo/UpdateIfPresent"

	if err := patch.Check(); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	names := map[string]string{
		"#email":     models.AttrEmail,
		"#updatedAt": models.AttrUpdatedAt,
	}
	values := map[string]types.AttributeValue{
		":updatedAt": &types.AttributeValueMemberS{Value: formatTime(s.now())},
	}

	fields := make([]string, 0, len(patch))
	for name := range patch {
		fields = append(fields, name)
	}
	sort.Strings(fields)

	expr := "SET "
	for i, name := range fields {
		av, err := attributevalue.Marshal(patch[name])
		if err != nil {
			return nil, 0, fmt.Errorf("%s: %s: %w", op, name, err)
		}
		n, v := fmt.Sprintf("#f%d", i), fmt.Sprintf(":v%d", i)
		names[n] = name
		values[v] = av
		expr += n + " = " + v + ", "
	}
	expr += "#updatedAt = :updatedAt"

	out, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.table),
		Key:                       itemKey(key),
		UpdateExpression:          aws.String(expr),
		ConditionExpression:       aws.String("attribute_exists(#email)"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueUpdatedNew,
	})
	if isConditionFailed(err) {
		return nil, storage.NotFound, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	var raw map[string]any
	if err := attributevalue.UnmarshalMap(out.Attributes, &raw); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	updated := make(models.Attributes, len(raw))
	for k, v := range raw {
		if k == models.AttrUpdatedAt {
			str, _ := v.(string)
			updated[k] = parseTime(str)
			continue
		}
		updated[k] = v
	}
	return updated, storage.Written, nil
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

func itemKey(key models.OwnerKey) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		models.AttrEmail:     &types.AttributeValueMemberS{Value: key.Email},
		models.AttrSubjectID: &types.AttributeValueMemberS{Value: key.SubjectID},
	}
}

func toItem(rec *models.Record) (map[string]types.AttributeValue, error) {
	flat := make(map[string]any, len(rec.Attributes)+6)
	for k, v := range rec.Attributes {
		flat[k] = v
	}
	flat[models.AttrID] = rec.ID
	flat[models.AttrSubjectID] = rec.Owner.SubjectID
	flat[models.AttrEmail] = rec.Owner.Email
	if rec.ProfilePictureURL != "" {
		flat[models.AttrProfilePictureURL] = rec.ProfilePictureURL
	}
	flat[models.AttrCreatedAt] = formatTime(rec.CreatedAt)
	flat[models.AttrUpdatedAt] = formatTime(rec.UpdatedAt)
	return attributevalue.MarshalMap(flat)
}

func toRecord(item map[string]types.AttributeValue) (*models.Record, error) {
	var flat map[string]any
	if err := attributevalue.UnmarshalMap(item, &flat); err != nil {
		return nil, err
	}

	rec := &models.Record{Attributes: models.Attributes{}}
	for k, v := range flat {
		str, _ := v.(string)
		switch k {
		case models.AttrOwnerKey:
		case models.AttrID:
			rec.ID = str
		case models.AttrSubjectID:
			rec.Owner.SubjectID = str
		case models.AttrEmail:
			rec.Owner.Email = str
		case models.AttrProfilePictureURL:
			rec.ProfilePictureURL = str
		case models.AttrCreatedAt:
			rec.CreatedAt = parseTime(str)
		case models.AttrUpdatedAt:
			rec.UpdatedAt = parseTime(str)
		default:
			rec.Attributes[k] = v
		}
	}
	return rec, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

var _ storage.ProfileStore = (*Store)(nil)
