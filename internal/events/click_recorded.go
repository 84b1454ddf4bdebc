package events

// ClickRecorded is emitted for each successful redirect when the durable
// click pipeline is enabled. The raw visitor fields travel with the event so
// classification happens once, at the consumer.
type ClickRecorded struct {
	EventID    string `json:"eventId"`
	Token      string `json:"token"`
	OccurredAt string `json:"occurredAt"`
	IP         string `json:"ip,omitempty"`
	UserAgent  string `json:"userAgent,omitempty"`
}
