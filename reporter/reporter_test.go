package reporter

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	id, token string
	params    *discordgo.WebhookParams
}

type fakeExecutor struct {
	calls []call
	err   error
}

func (f *fakeExecutor) WebhookExecute(id, token string, _ bool, data *discordgo.WebhookParams, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.calls = append(f.calls, call{id, token, data})
	return &discordgo.Message{}, f.err
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestParseWebhook(t *testing.T) {
	tests := []struct {
		url     string
		want    Webhook
		wantErr bool
	}{
		{"https://discord.com/api/webhooks/123/abc-token", Webhook{"123", "abc-token"}, false},
		{"https://discordapp.com/api/v10/webhooks/9/tok/", Webhook{"9", "tok"}, false},
		{"https://example.com/not/a/hook", Webhook{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, err := ParseWebhook(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReportShortErrorUsesCodeBlock(t *testing.T) {
	exec := &fakeExecutor{}
	r, err := New(exec, "https://discord.com/api/webhooks/1/t", quiet)
	require.NoError(t, err)

	r.Report(context.Background(), errors.New("boom"))

	require.Len(t, exec.calls, 1)
	c := exec.calls[0]
	assert.Equal(t, "1", c.id)
	assert.Equal(t, "t", c.token)
	assert.True(t, strings.HasPrefix(c.params.Content, "```go\nboom"))
	assert.Empty(t, c.params.Files)
}

func TestReportLongErrorIsAttached(t *testing.T) {
	exec := &fakeExecutor{}
	r, err := New(exec, "https://discord.com/api/webhooks/1/t", quiet)
	require.NoError(t, err)

	r.Report(context.Background(), errors.New(strings.Repeat("x", 2100)))

	require.Len(t, exec.calls, 1)
	params := exec.calls[0].params
	assert.Equal(t, "File too large", params.Content)
	require.Len(t, params.Files, 1)
	assert.Equal(t, "large.txt", params.Files[0].Name)
	body, err := io.ReadAll(params.Files[0].Reader)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(body), strings.Repeat("x", 2100)))
}

func TestReportIncludesStack(t *testing.T) {
	exec := &fakeExecutor{}
	r, _ := New(exec, "https://discord.com/api/webhooks/1/t", quiet)

	r.Report(context.Background(), errors.New("with stack"))

	params := exec.calls[0].params
	assert.Contains(t, params.Content, "reporter_test.go")
}

func TestReportWithoutWebhookOnlyLogs(t *testing.T) {
	exec := &fakeExecutor{}
	r, err := New(exec, "", quiet)
	require.NoError(t, err)

	r.Report(context.Background(), errors.New("boom"))
	r.Report(context.Background(), nil)
	assert.Empty(t, exec.calls)
}

func TestReportDetail(t *testing.T) {
	exec := &fakeExecutor{}
	r, _ := New(exec, "https://discord.com/api/webhooks/1/t", quiet)

	r.ReportDetail(context.Background(), "<https://x.com> | abc", "proxy.json", []byte(`{"status":"error"}`))

	require.Len(t, exec.calls, 1)
	params := exec.calls[0].params
	assert.Equal(t, "<https://x.com> | abc", params.Content)
	require.Len(t, params.Files, 1)
	assert.Equal(t, "proxy.json", params.Files[0].Name)
}

func TestSendFailureIsSwallowed(t *testing.T) {
	exec := &fakeExecutor{err: errors.New("discord down")}
	r, _ := New(exec, "https://discord.com/api/webhooks/1/t", quiet)
	r.Report(context.Background(), errors.New("boom"))
	assert.Len(t, exec.calls, 1)
}
