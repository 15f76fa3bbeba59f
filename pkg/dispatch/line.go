package dispatch

import (
	"context"
	"fmt"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// LineTransport implements Transport on the LINE Messaging API
type LineTransport struct {
	api *messaging_api.MessagingApiAPI
}

// NewLineTransport creates a transport for the given channel access token
func NewLineTransport(channelToken string) (*LineTransport, error) {
	api, err := messaging_api.NewMessagingApiAPI(channelToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create LINE client: %w", err)
	}
	return &LineTransport{api: api}, nil
}

// Reply sends one batch of text messages against a reply token
func (t *LineTransport) Reply(_ context.Context, replyToken string, messages []string) error {
	_, err := t.api.ReplyMessage(&messaging_api.ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages:   textMessages(messages),
	})
	return err
}

// Push sends one batch of text messages to a user, group or room id
func (t *LineTransport) Push(_ context.Context, to string, messages []string) error {
	_, err := t.api.PushMessage(&messaging_api.PushMessageRequest{
		To:       to,
		Messages: textMessages(messages),
	}, "")
	return err
}

func textMessages(texts []string) []messaging_api.MessageInterface {
	messages := make([]messaging_api.MessageInterface, 0, len(texts))
	for _, text := range texts {
		messages = append(messages, messaging_api.TextMessage{Text: text})
	}
	return messages
}
