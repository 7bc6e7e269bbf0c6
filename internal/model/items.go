package model

// UserItem is the per-user conversation state record. It shares the user's
// partition with that user's questions; the sort key pins it as the single
// state item. State attributes are removed, not zeroed, when the flow
// restarts, so everything mutable is omitempty.
type UserItem struct {
	PK                   string            `dynamodbav:"PK"`
	SK                   string            `dynamodbav:"SK"`
	UserState            string            `dynamodbav:"UserState,omitempty"`
	UserInputs           map[string]string `dynamodbav:"UserInputs,omitempty"`
	DestinationChat      string            `dynamodbav:"DestinationChat,omitempty"`
	DestinationChatTopic string            `dynamodbav:"DestinationChatTopic,omitempty"`
}

// QuestionItem is one submitted question. GSI1 keys are derived from the
// current status; GSI2 keys are set exactly once after the question has been
// forwarded and are the only path from a staff reply back to the submitter.
//
// Inputs is not marshalled as a nested map: the repository flattens each
// captured input to a top-level attribute keyed by its flow state name.
type QuestionItem struct {
	PK     string `dynamodbav:"PK"`
	SK     string `dynamodbav:"SK"`
	GSI1PK string `dynamodbav:"GSI1_PK"`
	GSI1SK string `dynamodbav:"GSI1_SK"`
	GSI2PK string `dynamodbav:"GSI2_PK,omitempty"`
	GSI2SK string `dynamodbav:"GSI2_SK,omitempty"`

	EntityType     string         `dynamodbav:"EntityType"`
	QuestionID     int            `dynamodbav:"QuestionId"`
	UserID         int64          `dynamodbav:"UserId"`
	UserUsername   string         `dynamodbav:"UserUsername"`
	UserFirstName  string         `dynamodbav:"UserFirstName"`
	UserLastName   string         `dynamodbav:"UserLastName"`
	UserFullName   string         `dynamodbav:"UserFullName"`
	QuestionStatus QuestionStatus `dynamodbav:"QuestionStatus"`
	Answers        []Answer       `dynamodbav:"Answers,omitempty"`

	Inputs map[string]string `dynamodbav:"-"`
}

// Answer is one staff reply, appended to the question's answer list.
type Answer struct {
	Text      string `dynamodbav:"Text"`
	SrcMsgID  int    `dynamodbav:"SrcMsgId"`
	DestMsgID int    `dynamodbav:"DestMsgId"`
	SrcChatID int64  `dynamodbav:"SrcChatId"`
	SenderID  int64  `dynamodbav:"SenderId"`
	Date      string `dynamodbav:"Date"`
	Username  string `dynamodbav:"Username"`
	FirstName string `dynamodbav:"FirstName"`
	LastName  string `dynamodbav:"LastName"`
	TopicID   int    `dynamodbav:"TopicId"`
}
