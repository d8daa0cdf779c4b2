package models

// Channel is the platform the conversation arrived on.
type Channel string

const (
	ChannelSMS      Channel = "SMS"
	ChannelWhatsApp Channel = "WhatsApp"
	ChannelEmail    Channel = "Email"
	ChannelChat     Channel = "Chat"
)

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	switch c {
	case ChannelSMS, ChannelWhatsApp, ChannelEmail, ChannelChat:
		return true
	default:
		return false
	}
}

type Metadata struct {
	Channel  Channel `json:"channel,omitempty"`
	Language string  `json:"language,omitempty"`
	Locale   string  `json:"locale,omitempty"`
}

// Envelope is one validated inbound turn.
type Envelope struct {
	SessionID           string
	Message             Message
	ConversationHistory []Message
	Metadata            Metadata
}

// Response summarizes the session after a turn.
type Response struct {
	Status                string                `json:"status"`
	ScamDetected          bool                  `json:"scamDetected"`
	EngagementMetrics     Metrics               `json:"engagementMetrics"`
	ExtractedIntelligence ExtractedIntelligence `json:"extractedIntelligence"`
	AgentNotes            string                `json:"agentNotes"`
	Reply                 string                `json:"reply,omitempty"`
	EngagementComplete    bool                  `json:"engagementComplete"`
}
