package logging

import "context"

type contextKey string

const (
	campaignIDKey contextKey = "campaign_id"
	tokenInfoKey  contextKey = "token_info"
)

// WithCampaignID attaches a campaign identifier to the context so every log
// record produced inside the campaign carries it.
func WithCampaignID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, campaignIDKey, id)
}

// GetCampaignID retrieves the campaign identifier from the context.
func GetCampaignID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(campaignIDKey).(string)
	return id, ok
}

// WithTokenInfo attaches oracle token usage to the context.
func WithTokenInfo(ctx context.Context, info *TokenInfo) context.Context {
	return context.WithValue(ctx, tokenInfoKey, info)
}

// GetTokenInfo retrieves oracle token usage from the context.
func GetTokenInfo(ctx context.Context) (*TokenInfo, bool) {
	info, ok := ctx.Value(tokenInfoKey).(*TokenInfo)
	return info, ok
}
