package logging

// LogEntry represents a structured log record with fields particularly relevant
// to campaign and oracle operations.
type LogEntry struct {
	// Standard fields
	Time     int64
	Severity Severity
	Message  string
	File     string
	Line     int
	Function string

	// Campaign-specific fields
	CampaignID string     // The campaign this record belongs to
	TokenInfo  *TokenInfo // Oracle token usage information
	Latency    int64      // Operation duration in milliseconds

	// General structured data
	Fields map[string]interface{}
}

// TokenInfo tracks oracle token usage for cost and performance monitoring.
type TokenInfo struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
