package question

import (
	"context"
	"fmt"

	"question-bot-backend/internal/database"
	"question-bot-backend/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Repository persists question records and their thread linkage.
type Repository interface {
	CreateQuestion(ctx context.Context, item model.QuestionItem) error
	// LinkDestination writes the by-destination index keys after the
	// question has been forwarded. It is the second write of the
	// create-then-link pair.
	LinkDestination(ctx context.Context, userID int64, questionSK string, destChatID int64, destMessageID int) error
	FindByDestination(ctx context.Context, destChatID int64, destMessageID int) (model.QuestionItem, bool, error)
	// MarkAnswered writes the item's status, by-status index key and
	// answer list in a single update so the index stays consistent with
	// the payload.
	MarkAnswered(ctx context.Context, item model.QuestionItem) error
}

type DynamoRepository struct {
	db *database.Database
}

func NewDynamoRepository(db *database.Database) Repository {
	return &DynamoRepository{db: db}
}

func questionKey(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		model.KeyPK: &types.AttributeValueMemberS{Value: pk},
		model.KeySK: &types.AttributeValueMemberS{Value: sk},
	}
}

// CreateQuestion flattens the collected inputs into top-level attributes
// keyed by their flow state names, alongside the marshalled record.
func (r *DynamoRepository) CreateQuestion(ctx context.Context, item model.QuestionItem) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal question item: %w", err)
	}
	for state, value := range item.Inputs {
		av[state] = &types.AttributeValueMemberS{Value: value}
	}
	return r.db.Client.PutItem(ctx, r.db.Table, av)
}

func (r *DynamoRepository) LinkDestination(ctx context.Context, userID int64, questionSK string, destChatID int64, destMessageID int) error {
	return r.db.Client.UpdateAttributes(ctx, r.db.Table,
		questionKey(model.UserPK(userID), questionSK),
		map[string]types.AttributeValue{
			model.KeyGSI2PK: &types.AttributeValueMemberS{Value: model.DestChatPK(destChatID)},
			model.KeyGSI2SK: &types.AttributeValueMemberS{Value: model.DestMessageSK(destMessageID)},
		})
}

func (r *DynamoRepository) FindByDestination(ctx context.Context, destChatID int64, destMessageID int) (model.QuestionItem, bool, error) {
	items, err := r.db.Client.QueryItems(ctx, r.db.Table,
		aws.String(model.IndexByDestination),
		"GSI2_PK = :pk AND GSI2_SK = :sk",
		map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: model.DestChatPK(destChatID)},
			":sk": &types.AttributeValueMemberS{Value: model.DestMessageSK(destMessageID)},
		},
		nil)
	if err != nil {
		return model.QuestionItem{}, false, err
	}
	if len(items) == 0 {
		return model.QuestionItem{}, false, nil
	}

	var question model.QuestionItem
	if err := attributevalue.UnmarshalMap(items[0], &question); err != nil {
		return model.QuestionItem{}, false, fmt.Errorf("unmarshal question item: %w", err)
	}
	return question, true, nil
}

func (r *DynamoRepository) MarkAnswered(ctx context.Context, item model.QuestionItem) error {
	answers, err := attributevalue.Marshal(item.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	return r.db.Client.UpdateAttributes(ctx, r.db.Table,
		questionKey(item.PK, item.SK),
		map[string]types.AttributeValue{
			model.AttrQuestionStatus: &types.AttributeValueMemberS{Value: string(item.QuestionStatus)},
			model.KeyGSI1PK:          &types.AttributeValueMemberS{Value: item.GSI1PK},
			model.AttrAnswers:        answers,
		})
}
