package services

import (
	"context"
	"log"
	"strconv"
)

// TokenSource resolves a worker's registered push tokens
type TokenSource interface {
	GetFCMTokens(ctx context.Context, userID int64) ([]string, error)
}

// LiveFeed pushes an event onto the worker's live connection, if any
type LiveFeed interface {
	BroadcastToUser(userID string, data interface{})
}

// NotifyService fans a worker notification out to every registered
// device token plus the live websocket feed. All deliveries are best
// effort; a worker with no tokens and no connection simply hears nothing.
type NotifyService struct {
	tokens TokenSource
	fcm    *FCMService // nil when push is disabled
	feed   LiveFeed    // nil when no live feed is wired
}

func NewNotifyService(tokens TokenSource, fcm *FCMService, feed LiveFeed) *NotifyService {
	return &NotifyService{tokens: tokens, fcm: fcm, feed: feed}
}

func (n *NotifyService) NotifyUser(ctx context.Context, userID int64, title, body string, data map[string]string) {
	if n.feed != nil {
		n.feed.BroadcastToUser(strconv.FormatInt(userID, 10), map[string]interface{}{
			"type":  "notification",
			"title": title,
			"body":  body,
			"data":  data,
		})
	}

	if n.fcm == nil {
		return
	}

	tokens, err := n.tokens.GetFCMTokens(ctx, userID)
	if err != nil {
		log.Printf("⚠️  Could not load push tokens for worker %d: %v", userID, err)
		return
	}
	for _, token := range tokens {
		if err := n.fcm.Send(ctx, token, title, body, data); err != nil {
			log.Printf("⚠️  Push to worker %d failed: %v", userID, err)
		}
	}
}
