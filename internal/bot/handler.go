package bot

import (
	"context"
	"errors"
	"net/http"

	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"

	"voomreport/pkg/pipeline"
)

const (
	ackMessage   = "已收到指令，整理中，完成後會再通知您。"
	busyMessage  = "目前還有整理中的任務，請稍後再試。"
	usageMessage = "請輸入「1 <VOOM 連結>」整理晨報，或「2 <VOOM 連結>」整理盤後報告。"
)

// Callback returns the webhook HTTP handler. Signature verification is
// done by the SDK against the channel secret; a bad signature is a 400.
func (b *Bot) Callback() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cb, err := webhook.ParseRequest(b.channelSecret, r)
		if err != nil {
			if errors.Is(err, webhook.ErrInvalidSignature) {
				b.logger.Warn("webhook signature verification failed")
				w.WriteHeader(http.StatusBadRequest)
			} else {
				b.logger.WithError(err).Error("webhook parse failed")
				w.WriteHeader(http.StatusInternalServerError)
			}
			return
		}

		for _, event := range cb.Events {
			b.handleEvent(r.Context(), event)
		}

		w.WriteHeader(http.StatusOK)
	})
}

func (b *Bot) handleEvent(ctx context.Context, event webhook.EventInterface) {
	msgEvent, ok := event.(webhook.MessageEvent)
	if !ok {
		return
	}

	text, ok := msgEvent.Message.(webhook.TextMessageContent)
	if !ok {
		return
	}

	targetID := sourceTarget(msgEvent.Source)
	b.handleCommand(ctx, msgEvent.ReplyToken, targetID, text.Text)
}

// handleCommand parses one text command and either queues a run or
// replies with what went wrong. A bare post link counts as a morning
// report command; text with neither digit nor link is everyday chatter.
func (b *Bot) handleCommand(ctx context.Context, replyToken, targetID, text string) {
	mode, explicit := pipeline.DetectMode(text)
	postURL := pipeline.ExtractURL(text)

	if postURL == "" {
		if explicit {
			b.reply(ctx, replyToken, targetID, usageMessage)
		}
		return
	}
	if !pipeline.AllowedHost(postURL) {
		// complain only when asked: links shared in chat are not commands
		if explicit {
			b.reply(ctx, replyToken, targetID, "這個連結不是 VOOM 貼文，"+usageMessage)
		}
		return
	}

	j := job{mode: mode, postURL: postURL, targetID: targetID, replyToken: replyToken}
	if !b.enqueue(j) {
		b.reply(ctx, replyToken, targetID, busyMessage)
		return
	}

	// without a push target the reply token must stay unconsumed: it is
	// the only way to deliver the finished report
	if targetID != "" {
		b.reply(ctx, replyToken, targetID, ackMessage)
	}
}

func (b *Bot) reply(ctx context.Context, replyToken, targetID, text string) {
	if err := b.dispatcher.ReplyThenPush(ctx, replyToken, targetID, text); err != nil {
		b.logger.WithError(err).Error("reply failed")
	}
}

func sourceTarget(source webhook.SourceInterface) string {
	switch s := source.(type) {
	case webhook.UserSource:
		return s.UserId
	case webhook.GroupSource:
		return s.GroupId
	case webhook.RoomSource:
		return s.RoomId
	default:
		return ""
	}
}
