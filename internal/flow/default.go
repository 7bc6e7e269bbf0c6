package flow

// State names double as storage keys for captured inputs, so they must stay
// stable across deployments.
const (
	StateChooseBatch        = "START_AND_CHOOSE_BATCH"
	StateChooseSection      = "CHOOSE_SECTION"
	StateChooseSubject      = "CHOOSE_SUBJECT"
	StateChooseMaterialType = "CHOOSE_MATERIAL_TYPE"
	StateSeriesName         = "SERIES_NAME"
	StateLecture            = "LECTURE_NAME_OR_NUMBER"
	StateBookName           = "BOOK_NAME"
	StateBookPage           = "BOOK_PAGE_NUMBER"
	StateQuestion           = "QUESTION"
	StateQuestionReceived   = "QUESTION_RECEIVED"
)

// DefaultDestinations carries the staff chat and the per-section forum
// topics used by the built-in flow.
type DefaultDestinations struct {
	ChatID         int64
	ReligiousTopic int
	CulturalTopic  int
}

// Default returns the built-in intake flow: pick a batch, pick a section,
// then a section-specific path down to the question itself. A JSON file via
// FLOW_CONFIG replaces this wholesale.
func Default(dest DefaultDestinations) *Definition {
	religious := "Religious studies"
	cultural := "Cultural studies"

	return &Definition{
		Initial: StateChooseBatch,
		Order: []string{
			StateChooseBatch,
			StateChooseSection,
			StateChooseSubject,
			StateChooseMaterialType,
			StateSeriesName,
			StateLecture,
			StateBookName,
			StateBookPage,
			StateQuestion,
			StateQuestionReceived,
		},
		Steps: map[string]Step{
			StateChooseBatch: {
				Prompt: "Welcome! You can send your questions to the academic committee through this bot.\nPlease select your batch.",
				Input:  InputButton,
				Buttons: [][]Button{
					{{Label: "First batch"}, {Label: "Second batch"}},
					{{Label: "Third batch"}, {Label: "Fourth batch"}},
				},
			},
			StateChooseSection: {
				Prompt: "Please choose the section your question relates to.",
				Input:  InputButton,
				Buttons: [][]Button{
					{
						{Label: religious, Next: StateChooseSubject},
						{Label: cultural, Next: StateChooseMaterialType},
					},
				},
			},
			StateChooseSubject: {
				Prompt:         "Please choose the subject your question relates to.",
				Input:          InputButton,
				ConditionState: StateChooseSection,
				ConditionalButtons: map[string][][]Button{
					religious: {
						{{Label: "Creed", Next: StateQuestion}, {Label: "Quranic sciences", Next: StateQuestion}},
						{{Label: "Hadith", Next: StateQuestion}, {Label: "Jurisprudence", Next: StateQuestion}},
						{{Label: "Principles of jurisprudence", Next: StateQuestion}, {Label: "Arabic language", Next: StateQuestion}},
					},
				},
				Destination: &Destination{ChatID: dest.ChatID, TopicID: dest.ReligiousTopic},
			},
			StateChooseMaterialType: {
				Prompt: "Please choose the kind of material your question is about.",
				Input:  InputButton,
				Buttons: [][]Button{
					{
						{Label: "Book", Next: StateBookName},
						{Label: "Lecture series", Next: StateSeriesName},
					},
				},
				Destination: &Destination{ChatID: dest.ChatID, TopicID: dest.CulturalTopic},
			},
			StateSeriesName: {
				Prompt: "Please send the name of the series.",
				Input:  InputText,
			},
			StateLecture: {
				Prompt: "Please send the name or number of the lecture.",
				Input:  InputText,
				Next:   StateQuestion,
			},
			StateBookName: {
				Prompt: "Please send the name of the book.",
				Input:  InputText,
				Next:   StateBookPage,
			},
			StateBookPage: {
				Prompt: "Please send the page number.",
				Input:  InputText,
				Next:   StateQuestion,
			},
			StateQuestion: {
				Prompt: "Go ahead and send your question.",
				Input:  InputText,
				Next:   StateQuestionReceived,
			},
			StateQuestionReceived: {
				Prompt: "Thank you! We will get back to you with an answer soon.",
				Input:  InputText,
			},
		},
		Labels: map[string]string{
			StateChooseBatch:        "Batch: ",
			StateChooseSection:      "Section: ",
			StateChooseSubject:      "Subject: ",
			StateChooseMaterialType: "Material: ",
			StateSeriesName:         "Series: ",
			StateLecture:            "Lecture: ",
			StateBookName:           "Book: ",
			StateBookPage:           "Page: ",
			StateQuestion:           "Question: ",
		},
	}
}
