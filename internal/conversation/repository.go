package conversation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"question-bot-backend/internal/database"
	"question-bot-backend/internal/model"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var ErrNotFound = errors.New("conversation repository: not found")

// Repository persists per-user conversation progress. Every write is
// idempotent: replaying an event rewrites the same values.
type Repository interface {
	GetUser(ctx context.Context, userID int64) (model.UserItem, error)
	SetState(ctx context.Context, userID int64, state string) error
	StoreInput(ctx context.Context, userID int64, state, input string) error
	SetDestination(ctx context.Context, userID int64, chatID int64, topicID int) error
	// ClearProgress removes the state, input and destination attributes,
	// returning the user to a blank conversation.
	ClearProgress(ctx context.Context, userID int64) error
}

type DynamoRepository struct {
	db *database.Database
}

func NewDynamoRepository(db *database.Database) Repository {
	return &DynamoRepository{db: db}
}

func userKey(userID int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		model.KeyPK: &types.AttributeValueMemberS{Value: model.UserPK(userID)},
		model.KeySK: &types.AttributeValueMemberS{Value: model.UserSK(userID)},
	}
}

func (r *DynamoRepository) GetUser(ctx context.Context, userID int64) (model.UserItem, error) {
	var user model.UserItem
	err := r.db.Client.GetItem(ctx, r.db.Table, userKey(userID), &user)
	if err != nil {
		if isNotFound(err) {
			return model.UserItem{}, ErrNotFound
		}
		return model.UserItem{}, err
	}
	return user, nil
}

func (r *DynamoRepository) SetState(ctx context.Context, userID int64, state string) error {
	return r.db.Client.UpdateAttributes(ctx, r.db.Table, userKey(userID),
		map[string]types.AttributeValue{
			model.AttrUserState: &types.AttributeValueMemberS{Value: state},
		})
}

// StoreInput rewrites the whole UserInputs map with the new entry merged in.
// Re-delivering the same event writes the same map again.
func (r *DynamoRepository) StoreInput(ctx context.Context, userID int64, state, input string) error {
	user, err := r.GetUser(ctx, userID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	inputs := user.UserInputs
	if inputs == nil {
		inputs = make(map[string]string, 1)
	}
	inputs[state] = input

	av, err := attributevalue.Marshal(inputs)
	if err != nil {
		return fmt.Errorf("marshal user inputs: %w", err)
	}
	return r.db.Client.UpdateAttributes(ctx, r.db.Table, userKey(userID),
		map[string]types.AttributeValue{
			model.AttrUserInputs: av,
		})
}

func (r *DynamoRepository) SetDestination(ctx context.Context, userID int64, chatID int64, topicID int) error {
	return r.db.Client.UpdateAttributes(ctx, r.db.Table, userKey(userID),
		map[string]types.AttributeValue{
			model.AttrDestinationChat:      &types.AttributeValueMemberS{Value: strconv.FormatInt(chatID, 10)},
			model.AttrDestinationChatTopic: &types.AttributeValueMemberS{Value: strconv.Itoa(topicID)},
		})
}

func (r *DynamoRepository) ClearProgress(ctx context.Context, userID int64) error {
	return r.db.Client.DeleteAttributes(ctx, r.db.Table, userKey(userID), []string{
		model.AttrUserInputs,
		model.AttrDestinationChat,
		model.AttrDestinationChatTopic,
		model.AttrUserState,
	})
}

func isNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "item not found")
}
