package bridge

// Topic suffixes under the configured prefix.
const (
	TopicMessage        = "message"
	TopicSave           = "save/+"
	TopicRestore        = "restore/+"
	TopicDelete         = "delete/+"
	TopicTimedMessage   = "timed-message"
	TopicCancelTimer    = "cancel-timer/+"
	TopicListTimers     = "list-timers"
	TopicTimersResponse = "timers-response"
)

var subscribed = []string{
	TopicMessage,
	TopicSave,
	TopicRestore,
	TopicDelete,
	TopicTimedMessage,
	TopicCancelTimer,
	TopicListTimers,
}
