// Package bot receives messaging webhook events, turns report commands
// into pipeline runs and delivers the results. Runs are serialized on a
// single worker because sessions share the browser download directory.
package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"voomreport/pkg/dispatch"
	"voomreport/pkg/journal"
	"voomreport/pkg/logger"
	"voomreport/pkg/pipeline"
)

// repeatWindow is how long a completed post blocks an identical rerun.
// LINE redelivers webhooks after transport hiccups; digesting the same
// post twice in a row just burns analysis quota.
const repeatWindow = 5 * time.Minute

// Runner executes one digest run
type Runner interface {
	Run(ctx context.Context, mode pipeline.Mode, postURL string) (*pipeline.Result, error)
}

// job is one queued pipeline run with its delivery addressing. When the
// webhook source yields no push target, the reply token is the only way
// back to the sender, so it rides along unconsumed.
type job struct {
	mode       pipeline.Mode
	postURL    string
	targetID   string
	replyToken string
}

// Bot owns the command queue and the delivery channel
type Bot struct {
	runner        Runner
	dispatcher    *dispatch.Dispatcher
	channelSecret string
	history       *journal.Journal
	jobs          chan job
	wg            sync.WaitGroup
	logger        logger.Logger
}

// New creates a bot over the given runner and dispatcher. The journal is
// optional; without one, redelivered commands run again.
func New(runner Runner, dispatcher *dispatch.Dispatcher, channelSecret string, history *journal.Journal, log logger.Logger) *Bot {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Bot{
		runner:        runner,
		dispatcher:    dispatcher,
		channelSecret: channelSecret,
		history:       history,
		jobs:          make(chan job, 16),
		logger:        log.WithField("component", "bot"),
	}
}

// Start launches the worker. It returns immediately; the worker drains
// queued jobs until the context is cancelled.
func (b *Bot) Start(ctx context.Context) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case j := <-b.jobs:
				b.process(ctx, j)
			}
		}
	}()
}

// Wait blocks until the worker has exited
func (b *Bot) Wait() {
	b.wg.Wait()
}

// enqueue adds a job without blocking the webhook response. A full queue
// is reported back to the sender instead of stalling the HTTP handler.
func (b *Bot) enqueue(j job) bool {
	select {
	case b.jobs <- j:
		return true
	default:
		return false
	}
}

// process runs one job end to end. Every outcome, including a pipeline
// failure, produces a message to the target.
func (b *Bot) process(ctx context.Context, j job) {
	log := b.logger.WithFields(map[string]interface{}{
		"mode": string(j.mode),
		"url":  j.postURL,
	})
	log.Info("processing report command")

	if b.recentlyDigested(j.postURL) {
		log.Info("post digested recently, skipping rerun")
		b.deliver(ctx, j, "這篇貼文剛整理過，若要重新整理請稍後再送一次指令。")
		return
	}

	result, err := b.runner.Run(ctx, j.mode, j.postURL)
	if err != nil {
		log.WithError(err).Error("pipeline run failed")
		b.deliver(ctx, j, fmt.Sprintf("❌ %s失敗：%v", j.mode.Title(), err))
		return
	}

	b.record(result)
	b.deliver(ctx, j, composeReport(result))
	log.Info("report delivered")
}

func (b *Bot) recentlyDigested(postURL string) bool {
	if b.history == nil {
		return false
	}
	seen, err := b.history.Seen(postURL, repeatWindow)
	if err != nil {
		b.logger.WithError(err).Warn("journal read failed")
		return false
	}
	return seen
}

func (b *Bot) record(result *pipeline.Result) {
	if b.history == nil {
		return
	}
	entry := journal.Entry{
		Mode:        string(result.Mode),
		PostURL:     result.PostURL,
		ImageCount:  result.ImageCount,
		CompletedAt: time.Now(),
	}
	if result.Page != nil {
		entry.PageID = result.Page.ID
		entry.PageURL = result.Page.URL
	}
	if err := b.history.Append(entry); err != nil {
		b.logger.WithError(err).Warn("journal write failed")
	}
}

// deliver sends the outcome back. Without a push target, the held reply
// token is the only channel left.
func (b *Bot) deliver(ctx context.Context, j job, text string) {
	var err error
	if j.targetID != "" {
		err = b.dispatcher.Push(ctx, j.targetID, text)
	} else {
		err = b.dispatcher.ReplyThenPush(ctx, j.replyToken, "", text)
	}
	if err != nil {
		b.logger.WithError(err).Error("delivery failed")
	}
}

// composeReport builds the outbound message. The report text survives a
// failed publish; the header says where the document ended up.
func composeReport(result *pipeline.Result) string {
	var header string
	switch {
	case result.Page != nil && result.Page.URL != "":
		header = fmt.Sprintf("✅ %s完成，已發布至 Notion：\n%s", result.Mode.Title(), result.Page.URL)
	case result.PublishErr != nil:
		header = fmt.Sprintf("⚠️ %s完成，但 Notion 發布失敗，以下為整理內容：", result.Mode.Title())
	default:
		header = fmt.Sprintf("✅ %s完成：", result.Mode.Title())
	}
	return header + "\n\n" + result.Report
}
