package constant

// Message types
const (
	MsgTypeText  = "text"
	MsgTypeImage = "image"
	MsgTypeVideo = "video"
	MsgTypeAudio = "audio"
	MsgTypeFile  = "file"
)

// Message delivery status. Transitions only move forward.
const (
	MsgStatusSent      = 1
	MsgStatusDelivered = 2
	MsgStatusRead      = 3
)

// IsMediaType reports whether t is a known media message type
func IsMediaType(t string) bool {
	switch t {
	case MsgTypeImage, MsgTypeVideo, MsgTypeAudio, MsgTypeFile:
		return true
	}
	return false
}

// StatusName converts a delivery status to its wire name
func StatusName(status int32) string {
	switch status {
	case MsgStatusSent:
		return "sent"
	case MsgStatusDelivered:
		return "delivered"
	case MsgStatusRead:
		return "read"
	default:
		return "unknown"
	}
}

// Redis key patterns (without prefix, use RedisKey() to get full key)
const (
	redisKeyOnline = "online:%s" // online:{user_id}
)

// redisKeyPrefix is the global prefix for all Redis keys
var redisKeyPrefix = "whchat:"

// InitRedisKeyPrefix initializes the Redis key prefix from config
func InitRedisKeyPrefix(prefix string) {
	if prefix != "" {
		redisKeyPrefix = prefix
	}
}

// GetRedisKeyPrefix returns the current Redis key prefix
func GetRedisKeyPrefix() string {
	return redisKeyPrefix
}

// Redis key getters with prefix
func RedisKeyOnline() string { return redisKeyPrefix + redisKeyOnline }
