package model

import (
	"strconv"
	"strings"
)

// Key schema attribute and index names for the single table. The table acts
// as three logical indexes: by-user (primary), by-question-status (GSI1) and
// by-destination-message (GSI2).
const (
	KeyPK     = "PK"
	KeySK     = "SK"
	KeyGSI1PK = "GSI1_PK"
	KeyGSI1SK = "GSI1_SK"
	KeyGSI2PK = "GSI2_PK"
	KeyGSI2SK = "GSI2_SK"

	IndexByStatus      = "GSI1_PK-GSI1_SK-index"
	IndexByDestination = "GSI2_PK-GSI2_SK-index"
)

// Key prefixes. These must stay byte-for-byte stable: they are the contract
// with every item already stored in the table.
const (
	prefixUserPK      = "USER#"
	prefixUserSK      = "#USER#"
	prefixQuestionSK  = "QUESTION#"
	prefixStatusPK    = "STATUS#"
	prefixDestChatPK  = "DEST_CHAT#"
	prefixDestMsgSK   = "DEST_MESSAGE#"
)

// Item attribute names.
const (
	AttrUserID               = "UserId"
	AttrUserState            = "UserState"
	AttrUserInputs           = "UserInputs"
	AttrDestinationChat      = "DestinationChat"
	AttrDestinationChatTopic = "DestinationChatTopic"
	AttrUserUsername         = "UserUsername"
	AttrUserFirstName        = "UserFirstName"
	AttrUserLastName         = "UserLastName"
	AttrUserFullName         = "UserFullName"
	AttrQuestionID           = "QuestionId"
	AttrQuestionStatus       = "QuestionStatus"
	AttrAnswers              = "Answers"
	AttrEntityType           = "EntityType"
)

const EntityTypeQuestion = "QUESTION"

// QuestionStatus is the status glyph stored on a question and embedded in the
// staff-facing message text.
type QuestionStatus string

const (
	StatusUnanswered QuestionStatus = "🟡"
	StatusAnswered   QuestionStatus = "🟢"
	StatusDeleted    QuestionStatus = "❌"
)

func UserPK(userID int64) string {
	return prefixUserPK + strconv.FormatInt(userID, 10)
}

func UserSK(userID int64) string {
	return prefixUserSK + strconv.FormatInt(userID, 10)
}

func QuestionSK(questionID string) string {
	return prefixQuestionSK + questionID
}

func StatusPK(status QuestionStatus) string {
	return prefixStatusPK + string(status)
}

func DestChatPK(chatID int64) string {
	return prefixDestChatPK + strconv.FormatInt(chatID, 10)
}

func DestMessageSK(messageID int) string {
	return prefixDestMsgSK + strconv.Itoa(messageID)
}

func TrimStatusPK(pk string) QuestionStatus {
	return QuestionStatus(strings.TrimPrefix(pk, prefixStatusPK))
}
