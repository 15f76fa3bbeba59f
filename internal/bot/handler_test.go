package bot

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voomreport/pkg/pipeline"
)

func TestHandleCommandQueuesAndAcks(t *testing.T) {
	transport := &memoryTransport{}
	b := newTestBot(&stubRunner{}, transport)

	b.handleCommand(context.Background(), "rt-1", "U1", "1 https://voom.line.me/post/1")

	sends := transport.snapshot()
	require.Len(t, sends, 1)
	assert.Equal(t, "reply", sends[0].kind)
	assert.Equal(t, "rt-1", sends[0].token)
	assert.Contains(t, sends[0].messages[0], "已收到")

	require.Len(t, b.jobs, 1)
	j := <-b.jobs
	assert.Equal(t, pipeline.ModeMorning, j.mode)
	assert.Equal(t, "https://voom.line.me/post/1", j.postURL)
	assert.Equal(t, "U1", j.targetID)
}

func TestHandleCommandBareLinkDefaultsToMorning(t *testing.T) {
	transport := &memoryTransport{}
	b := newTestBot(&stubRunner{}, transport)

	b.handleCommand(context.Background(), "rt-1", "U1", "https://voom.line.me/post/7")

	sends := transport.snapshot()
	require.Len(t, sends, 1)
	assert.Contains(t, sends[0].messages[0], "已收到")

	require.Len(t, b.jobs, 1)
	j := <-b.jobs
	assert.Equal(t, pipeline.ModeMorning, j.mode)
	assert.Equal(t, "https://voom.line.me/post/7", j.postURL)
}

func TestHandleCommandWithoutTargetHoldsReplyToken(t *testing.T) {
	transport := &memoryTransport{}
	b := newTestBot(&stubRunner{}, transport)

	b.handleCommand(context.Background(), "rt-1", "", "1 https://voom.line.me/post/1")

	// no ack: the token is saved for the result delivery
	assert.Empty(t, transport.snapshot())

	require.Len(t, b.jobs, 1)
	j := <-b.jobs
	assert.Equal(t, "rt-1", j.replyToken)
	assert.Empty(t, j.targetID)
}

func TestHandleCommandIgnoresChatter(t *testing.T) {
	transport := &memoryTransport{}
	b := newTestBot(&stubRunner{}, transport)

	b.handleCommand(context.Background(), "rt-1", "U1", "早安，今天天氣不錯")

	assert.Empty(t, transport.snapshot())
	assert.Empty(t, b.jobs)
}

func TestHandleCommandMissingURL(t *testing.T) {
	transport := &memoryTransport{}
	b := newTestBot(&stubRunner{}, transport)

	b.handleCommand(context.Background(), "rt-1", "U1", "1 幫我整理")

	sends := transport.snapshot()
	require.Len(t, sends, 1)
	assert.Contains(t, sends[0].messages[0], "VOOM 連結")
	assert.Empty(t, b.jobs)
}

func TestHandleCommandRejectsForeignHost(t *testing.T) {
	transport := &memoryTransport{}
	b := newTestBot(&stubRunner{}, transport)

	b.handleCommand(context.Background(), "rt-1", "U1", "2 https://evil.example/post/1")

	sends := transport.snapshot()
	require.Len(t, sends, 1)
	assert.Contains(t, sends[0].messages[0], "不是 VOOM 貼文")
	assert.Empty(t, b.jobs)
}

func TestHandleCommandIgnoresSharedForeignLink(t *testing.T) {
	transport := &memoryTransport{}
	b := newTestBot(&stubRunner{}, transport)

	b.handleCommand(context.Background(), "rt-1", "U1", "看看這個 https://news.example/article")

	assert.Empty(t, transport.snapshot())
	assert.Empty(t, b.jobs)
}

func TestHandleCommandFullQueue(t *testing.T) {
	transport := &memoryTransport{}
	b := newTestBot(&stubRunner{}, transport)
	for i := 0; i < cap(b.jobs); i++ {
		require.True(t, b.enqueue(job{}))
	}

	b.handleCommand(context.Background(), "rt-1", "U1", "1 https://voom.line.me/post/1")

	sends := transport.snapshot()
	require.Len(t, sends, 1)
	assert.Contains(t, sends[0].messages[0], "稍後再試")
}

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func webhookBody(text string) []byte {
	return []byte(`{
		"destination": "Udeadbeef",
		"events": [{
			"type": "message",
			"mode": "active",
			"timestamp": 1700000000000,
			"webhookEventId": "evt-1",
			"deliveryContext": {"isRedelivery": false},
			"replyToken": "rt-http",
			"source": {"type": "user", "userId": "U-http"},
			"message": {"type": "text", "id": "m1", "quoteToken": "q1", "text": "` + text + `"}
		}]
	}`)
}

func TestCallbackSignedRequest(t *testing.T) {
	transport := &memoryTransport{}
	b := newTestBot(&stubRunner{}, transport)
	srv := httptest.NewServer(b.Callback())
	defer srv.Close()

	body := webhookBody("1 https://voom.line.me/post/1")
	req, err := http.NewRequest(http.MethodPost, srv.URL, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-line-signature", signBody("secret", body))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	sends := transport.snapshot()
	require.Len(t, sends, 1)
	assert.Equal(t, "rt-http", sends[0].token)

	require.Len(t, b.jobs, 1)
	j := <-b.jobs
	assert.Equal(t, "U-http", j.targetID)
}

func TestCallbackBadSignature(t *testing.T) {
	b := newTestBot(&stubRunner{}, &memoryTransport{})
	srv := httptest.NewServer(b.Callback())
	defer srv.Close()

	body := webhookBody("1 https://voom.line.me/post/1")
	req, err := http.NewRequest(http.MethodPost, srv.URL, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("x-line-signature", "bogus")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
