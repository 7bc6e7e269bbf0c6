package database

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
)

func TestBuildSetExpressionIsDeterministic(t *testing.T) {
	attrs := map[string]types.AttributeValue{
		"UserState": &types.AttributeValueMemberS{Value: "QUESTION"},
		"GSI1_PK":   &types.AttributeValueMemberS{Value: "STATUS#🟢"},
		"Answers":   &types.AttributeValueMemberL{},
	}

	expr, values, names := buildSetExpression(attrs)

	// Attributes are sorted, so placeholders are stable across calls.
	assert.Equal(t, "SET #a0 = :v0, #a1 = :v1, #a2 = :v2", expr)
	assert.Equal(t, "Answers", names["#a0"])
	assert.Equal(t, "GSI1_PK", names["#a1"])
	assert.Equal(t, "UserState", names["#a2"])
	assert.Equal(t, attrs["GSI1_PK"], values[":v1"])
}

func TestBuildSetExpressionSingleAttribute(t *testing.T) {
	expr, values, names := buildSetExpression(map[string]types.AttributeValue{
		"UserState": &types.AttributeValueMemberS{Value: "CHOOSE_SECTION"},
	})
	assert.Equal(t, "SET #a0 = :v0", expr)
	assert.Len(t, values, 1)
	assert.Len(t, names, 1)
}
