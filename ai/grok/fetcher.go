package grok

import (
	"context"
	"fmt"
	"strings"

	"github.com/ChineseLsh/x-feed-digest/digest"
	"github.com/ChineseLsh/x-feed-digest/errors"
	"github.com/ChineseLsh/x-feed-digest/feed"
)

// fetchPromptTemplate asks Grok for the past day of posts for a handle
// list, in strict CSV so the reply can be parsed mechanically.
const fetchPromptTemplate = `你可以访问X/Twitter的实时数据。请执行以下任务：

任务：获取指定用户列表在过去24小时内的所有发帖记录，并以CSV格式输出。

用户列表（包含用户完整信息）：
%s

输出要求：CSV格式，包含以下字段：username, tweet_id, created_at, text, original_url
筛选条件：过去24小时，包含原创推文、转发、引用推文，排除纯回复
输出格式：直接输出可复制的CSV文本，首行为表头，使用英文逗号分隔，文本字段用双引号包裹
请开始执行
`

// summaryPromptTemplate turns the merged tweet CSV into digest prose.
const summaryPromptTemplate = `以下是关注用户在过去24小时内的推文数据（CSV格式）：

%s

任务：根据以上推文内容，撰写一份当日摘要。

要求：
1. 按主题归纳，突出重要动态和讨论热点
2. 每个主题注明相关的用户和推文要点
3. 使用简洁的中文，条理清晰
4. 只依据给出的数据，不要编造内容
`

// Fetcher adapts the Grok client to the job engine's batch fetch
// operation.
type Fetcher struct {
	client *Client
}

// NewFetcher creates a Grok-backed batch fetcher
func NewFetcher(client *Client) *Fetcher {
	return &Fetcher{client: client}
}

// FetchBatch asks the provider for the batch's recent tweets and returns
// them as canonical tweet CSV.
func (f *Fetcher) FetchBatch(ctx context.Context, handles []feed.HandleRecord) (string, error) {
	prompt := fmt.Sprintf(fetchPromptTemplate, formatHandleList(handles))

	reply, err := f.client.Complete(ctx, "", prompt)
	if err != nil {
		return "", classifyFetchErr(err)
	}

	records, err := feed.ParseTweetReply(reply)
	if err != nil {
		// Malformed replies are often fixed by a retry
		return "", digest.NewFetchError(errors.Wrap(err, "unparseable reply"), true)
	}
	return feed.EncodeTweetCSV(records), nil
}

// classifyFetchErr maps provider/transport errors onto the engine's
// retryability model.
func classifyFetchErr(err error) error {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return digest.NewFetchError(err, statusErr.Retryable())
	}
	if IsTransportRetryable(err) {
		return digest.NewFetchError(err, true)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return digest.NewFetchError(err, true)
	}
	if errors.Is(err, context.Canceled) {
		return digest.NewFetchError(err, false)
	}
	// Misconfiguration (missing key, empty reply) will not heal on retry
	return digest.NewFetchError(err, false)
}

// formatHandleList renders handle records as readable lines for the fetch
// prompt, one user per line with whatever profile fields are present.
func formatHandleList(handles []feed.HandleRecord) string {
	var lines []string
	for _, h := range handles {
		var parts []string
		parts = append(parts, "Handle: "+h.Handle)
		if h.DisplayName != "" {
			parts = append(parts, "Name: "+h.DisplayName)
		}
		if h.Bio != "" {
			parts = append(parts, "Bio: "+h.Bio)
		}
		if h.Followers != "" {
			parts = append(parts, "Followers: "+h.Followers)
		}
		if h.Following != "" {
			parts = append(parts, "Following: "+h.Following)
		}
		lines = append(lines, strings.Join(parts, " | "))
	}
	return strings.Join(lines, "\n")
}

// Summarizer adapts the client to the job engine's summarization
// operation. Usually points at a different (cheaper) model than the
// fetcher.
type Summarizer struct {
	client *Client
}

// NewSummarizer creates a Grok-backed summarizer
func NewSummarizer(client *Client) *Summarizer {
	return &Summarizer{client: client}
}

// Summarize produces digest prose from the merged tweet CSV.
func (s *Summarizer) Summarize(ctx context.Context, tweetCSV string) (string, error) {
	prompt := fmt.Sprintf(summaryPromptTemplate, tweetCSV)
	summary, err := s.client.Complete(ctx, "", prompt)
	if err != nil {
		return "", errors.Wrap(err, "summarize request")
	}
	return summary, nil
}
