package bot

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voomreport/pkg/config"
	"voomreport/pkg/dispatch"
	"voomreport/pkg/journal"
	"voomreport/pkg/notion"
	"voomreport/pkg/pipeline"
)

type recordedSend struct {
	kind     string
	to       string
	token    string
	messages []string
}

// memoryTransport records outbound messages for assertions
type memoryTransport struct {
	mu    sync.Mutex
	sends []recordedSend
}

func (m *memoryTransport) Reply(_ context.Context, replyToken string, messages []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sends = append(m.sends, recordedSend{kind: "reply", token: replyToken, messages: messages})
	return nil
}

func (m *memoryTransport) Push(_ context.Context, to string, messages []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sends = append(m.sends, recordedSend{kind: "push", to: to, messages: messages})
	return nil
}

func (m *memoryTransport) snapshot() []recordedSend {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]recordedSend(nil), m.sends...)
}

type stubRunner struct {
	mu     sync.Mutex
	calls  []string
	result *pipeline.Result
	err    error
}

func (r *stubRunner) Run(_ context.Context, mode pipeline.Mode, postURL string) (*pipeline.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, string(mode)+" "+postURL)
	return r.result, r.err
}

func newTestBot(runner Runner, transport dispatch.Transport) *Bot {
	cfg := &config.DispatchConfig{SegmentLimit: 4900, BatchSize: 5}
	return New(runner, dispatch.NewDispatcher(transport, cfg, nil), "secret", nil, nil)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestWorkerDeliversSuccessfulRun(t *testing.T) {
	transport := &memoryTransport{}
	runner := &stubRunner{result: &pipeline.Result{
		Mode:   pipeline.ModeMorning,
		Report: "# 晨報重點\n- 測試內容",
		Page:   &notion.PageRef{ID: "p1", URL: "https://www.notion.so/p1"},
	}}

	b := newTestBot(runner, transport)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.Start(ctx)

	require.True(t, b.enqueue(job{
		mode:     pipeline.ModeMorning,
		postURL:  "https://voom.line.me/post/1",
		targetID: "U1",
	}))

	waitFor(t, func() bool { return len(transport.snapshot()) > 0 })

	sends := transport.snapshot()
	require.Len(t, sends, 1)
	assert.Equal(t, "push", sends[0].kind)
	assert.Equal(t, "U1", sends[0].to)
	require.Len(t, sends[0].messages, 1)
	assert.Contains(t, sends[0].messages[0], "https://www.notion.so/p1")
	assert.Contains(t, sends[0].messages[0], "測試內容")
}

func TestWorkerReportsPipelineFailure(t *testing.T) {
	transport := &memoryTransport{}
	runner := &stubRunner{err: errors.New("browser crashed")}

	b := newTestBot(runner, transport)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.Start(ctx)

	require.True(t, b.enqueue(job{
		mode:     pipeline.ModeAfterHours,
		postURL:  "https://voom.line.me/post/2",
		targetID: "U2",
	}))

	waitFor(t, func() bool { return len(transport.snapshot()) > 0 })

	sends := transport.snapshot()
	require.Len(t, sends, 1)
	assert.Contains(t, sends[0].messages[0], "❌")
	assert.Contains(t, sends[0].messages[0], "盤後整理")
	assert.Contains(t, sends[0].messages[0], "browser crashed")
}

func TestWorkerDeliversOverReplyWhenNoTarget(t *testing.T) {
	transport := &memoryTransport{}
	runner := &stubRunner{result: &pipeline.Result{
		Mode:    pipeline.ModeMorning,
		PostURL: "https://voom.line.me/post/1",
		Report:  "內容",
	}}

	b := newTestBot(runner, transport)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.Start(ctx)

	require.True(t, b.enqueue(job{
		mode:       pipeline.ModeMorning,
		postURL:    "https://voom.line.me/post/1",
		replyToken: "rt-only-channel",
	}))

	waitFor(t, func() bool { return len(transport.snapshot()) > 0 })

	runner.mu.Lock()
	calls := len(runner.calls)
	runner.mu.Unlock()
	assert.Equal(t, 1, calls)

	sends := transport.snapshot()
	require.Len(t, sends, 1)
	assert.Equal(t, "reply", sends[0].kind)
	assert.Equal(t, "rt-only-channel", sends[0].token)
	assert.Contains(t, sends[0].messages[0], "內容")
}

func TestWorkerStopsOnContextCancel(t *testing.T) {
	b := newTestBot(&stubRunner{}, &memoryTransport{})
	ctx, cancel := context.WithCancel(context.Background())
	b.Start(ctx)
	cancel()
	b.Wait()
}

func TestWorkerSkipsRecentlyDigestedPost(t *testing.T) {
	transport := &memoryTransport{}
	runner := &stubRunner{result: &pipeline.Result{
		Mode:    pipeline.ModeMorning,
		PostURL: "https://voom.line.me/post/1",
		Report:  "內容",
	}}

	history, err := journal.New(filepath.Join(t.TempDir(), "history.json"))
	require.NoError(t, err)

	cfg := &config.DispatchConfig{SegmentLimit: 4900, BatchSize: 5}
	b := New(runner, dispatch.NewDispatcher(transport, cfg, nil), "secret", history, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.Start(ctx)

	j := job{mode: pipeline.ModeMorning, postURL: "https://voom.line.me/post/1", targetID: "U1"}
	require.True(t, b.enqueue(j))
	waitFor(t, func() bool { return len(transport.snapshot()) == 1 })

	require.True(t, b.enqueue(j))
	waitFor(t, func() bool { return len(transport.snapshot()) == 2 })

	runner.mu.Lock()
	calls := len(runner.calls)
	runner.mu.Unlock()
	assert.Equal(t, 1, calls)
	assert.Contains(t, transport.snapshot()[1].messages[0], "剛整理過")
}

func TestComposeReport(t *testing.T) {
	published := &pipeline.Result{
		Mode:   pipeline.ModeMorning,
		Report: "內容",
		Page:   &notion.PageRef{URL: "https://www.notion.so/x"},
	}
	msg := composeReport(published)
	assert.Contains(t, msg, "✅")
	assert.Contains(t, msg, "https://www.notion.so/x")
	assert.Contains(t, msg, "內容")

	unpublished := &pipeline.Result{
		Mode:       pipeline.ModeAfterHours,
		Report:     "內容",
		PublishErr: errors.New("api down"),
	}
	msg = composeReport(unpublished)
	assert.Contains(t, msg, "⚠️")
	assert.Contains(t, msg, "內容")
	assert.NotContains(t, msg, "notion.so")
}
