package env

import (
	"os"
)

const (
	AWSRegion        = "AWS_REGION"
	AWSID            = "AWS_ID"
	AWSSecret        = "AWS_SECRET"
	AWSToken         = "AWS_TOKEN"
	DynamoDBEndpoint = "DYNAMODB_ENDPOINT"
	DynamoDBTable    = "DYNAMODB_TABLE"
	BotToken         = "BOT_TOKEN"
	MetricsAddr      = "METRICS_ADDR"
	FlowConfig       = "FLOW_CONFIG"
	DestinationChat  = "DESTINATION_CHAT"
	ReligiousTopic   = "RELIGIOUS_SECTION_TOPIC"
	CulturalTopic    = "CULTURAL_SECTION_TOPIC"
)

func Get(key string) string {
	return os.Getenv(key)
}

func GetOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func MustGet(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic("env: required environment variable not set: " + key)
	}
	return val
}
