// Package dispatch delivers result text to the originating conversation over
// the reply and push channels, splitting it into transport-sized segments.
package dispatch

import (
	"context"

	"voomreport/pkg/config"
	errs "voomreport/pkg/errors"
	"voomreport/pkg/logger"
)

// Transport abstracts the messaging channels: Reply is one-shot and
// token-scoped, Push is repeatable and target-scoped. Both take at most the
// transport's batch size of messages per call.
type Transport interface {
	Reply(ctx context.Context, replyToken string, messages []string) error
	Push(ctx context.Context, to string, messages []string) error
}

// Dispatcher segments outbound text and routes it across both channels
type Dispatcher struct {
	transport    Transport
	segmentLimit int
	batchSize    int
	logger       logger.Logger
}

// NewDispatcher creates a dispatcher over the given transport
func NewDispatcher(transport Transport, cfg *config.DispatchConfig, log logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Dispatcher{
		transport:    transport,
		segmentLimit: cfg.SegmentLimit,
		batchSize:    cfg.BatchSize,
		logger:       log,
	}
}

// ReplyThenPush sends the first batch of segments on the reply channel and
// the rest on the push channel, preserving order. Without a target id only
// the reply channel is available and overflow segments are dropped.
func (d *Dispatcher) ReplyThenPush(ctx context.Context, replyToken, targetID, text string) error {
	segments := Segment(text, d.segmentLimit)
	if len(segments) == 0 {
		return nil
	}

	first := segments
	if len(first) > d.batchSize {
		first = first[:d.batchSize]
	}

	if err := d.transport.Reply(ctx, replyToken, first); err != nil {
		return errs.New(errs.ErrorTypeDelivery, "reply failed: %v", err)
	}

	remaining := segments[len(first):]
	if len(remaining) == 0 {
		return nil
	}
	if targetID == "" {
		d.logger.WarnWithFields("no push target, overflow segments dropped", map[string]interface{}{
			"dropped": len(remaining),
		})
		return nil
	}

	return d.pushSegments(ctx, targetID, remaining)
}

// Push sends the whole text on the push channel in order. A missing target
// id is a no-op.
func (d *Dispatcher) Push(ctx context.Context, targetID, text string) error {
	if targetID == "" {
		return nil
	}
	return d.pushSegments(ctx, targetID, Segment(text, d.segmentLimit))
}

func (d *Dispatcher) pushSegments(ctx context.Context, targetID string, segments []string) error {
	for start := 0; start < len(segments); start += d.batchSize {
		end := start + d.batchSize
		if end > len(segments) {
			end = len(segments)
		}
		if err := d.transport.Push(ctx, targetID, segments[start:end]); err != nil {
			return errs.New(errs.ErrorTypeDelivery, "push failed: %v", err)
		}
	}
	return nil
}
