package automation

import "time"

// Routing keys on the automation topic exchange.
const (
	KeyTranscription = "automation.transcription"
	KeySentiment     = "automation.sentiment"
	KeyFollowup      = "automation.followup"
)

// Meta identifies one published job.
type Meta struct {
	ID         string    `json:"id"`
	JobType    string    `json:"job_type"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Envelope wraps a job payload with its metadata.
type Envelope struct {
	Meta Meta `json:"meta"`
	Data any  `json:"data"`
}

// TranscriptionJob asks the external transcription worker to process an
// audio message.
type TranscriptionJob struct {
	MessageID string `json:"message_id"`
	MediaURL  string `json:"media_url"`
}

// SentimentJob asks the external analysis worker to score a
// conversation.
type SentimentJob struct {
	ConversationID string `json:"conversation_id"`
	MessageCount   int64  `json:"message_count"`
}

// FollowupJob tells the external follow-up executor that a schedule step
// came due.
type FollowupJob struct {
	ScheduleID     string `json:"schedule_id"`
	ConversationID string `json:"conversation_id"`
	Step           int    `json:"step"`
}
