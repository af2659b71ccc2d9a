package grok

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChineseLsh/x-feed-digest/digest"
	"github.com/ChineseLsh/x-feed-digest/feed"
)

func TestFetcherParsesReply(t *testing.T) {
	srv := newCompletionServer(t, func(req ChatRequest) (int, interface{}) {
		// Prompt carries the handle list with profile context
		assert.Contains(t, req.Messages[0].Content, "Handle: elonmusk")
		assert.Contains(t, req.Messages[0].Content, "Name: Elon")
		return http.StatusOK, replyWith("Here you go:\n\n" +
			"username,tweet_id,created_at,text,original_url\n" +
			"elonmusk,123,2026-08-23,Starship flies,https://x.com/elonmusk/status/123\n")
	})

	fetcher := NewFetcher(NewClient(Config{BaseURL: srv.URL, APIKey: "test-key"}))
	csv, err := fetcher.FetchBatch(context.Background(), []feed.HandleRecord{
		{Handle: "elonmusk", DisplayName: "Elon"},
	})
	require.NoError(t, err)

	records, err := feed.ParseTweetReply(csv)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "elonmusk", records[0].Username)
	assert.Equal(t, "Starship flies", records[0].Text)
}

func TestFetcherUnparseableReplyIsRetryable(t *testing.T) {
	srv := newCompletionServer(t, func(req ChatRequest) (int, interface{}) {
		return http.StatusOK, replyWith("Sorry, I cannot access tweets right now.")
	})

	fetcher := NewFetcher(NewClient(Config{BaseURL: srv.URL, APIKey: "test-key"}))
	_, err := fetcher.FetchBatch(context.Background(), []feed.HandleRecord{{Handle: "a"}})
	require.Error(t, err)
	assert.True(t, digest.IsRetryable(err))
}

func TestFetcherClassifiesStatusErrors(t *testing.T) {
	cases := []struct {
		status    int
		retryable bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusUnauthorized, false},
		{http.StatusBadRequest, false},
	}
	for _, tc := range cases {
		srv := newCompletionServer(t, func(req ChatRequest) (int, interface{}) {
			return tc.status, map[string]string{"error": "nope"}
		})
		fetcher := NewFetcher(NewClient(Config{BaseURL: srv.URL, APIKey: "test-key"}))
		_, err := fetcher.FetchBatch(context.Background(), []feed.HandleRecord{{Handle: "a"}})
		require.Error(t, err, "status %d", tc.status)
		assert.Equal(t, tc.retryable, digest.IsRetryable(err), "status %d", tc.status)
	}
}

func TestSummarizer(t *testing.T) {
	srv := newCompletionServer(t, func(req ChatRequest) (int, interface{}) {
		assert.Contains(t, req.Messages[0].Content, "elonmusk,123")
		return http.StatusOK, replyWith("今日摘要：Starship 试飞成功。")
	})

	summarizer := NewSummarizer(NewClient(Config{BaseURL: srv.URL, APIKey: "test-key"}))
	summary, err := summarizer.Summarize(context.Background(),
		"username,tweet_id,created_at,text,original_url\nelonmusk,123,2026-08-23,Starship flies,https://x.com/elonmusk/status/123\n")
	require.NoError(t, err)
	assert.True(t, strings.Contains(summary, "Starship"))
}
