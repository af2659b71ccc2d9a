package feed

import (
	"encoding/csv"
	"strings"

	"github.com/ChineseLsh/x-feed-digest/errors"
)

// TweetRecord is one fetched tweet in canonical form.
type TweetRecord struct {
	Username    string `json:"username"`
	TweetID     string `json:"tweet_id"`
	CreatedAt   string `json:"created_at"`
	Text        string `json:"text"`
	OriginalURL string `json:"original_url"`
}

// tweetHeader is the canonical column order for tweet CSV payloads. The
// fetch prompt asks the model for exactly these columns.
var tweetHeader = []string{"username", "tweet_id", "created_at", "text", "original_url"}

// ParseTweetReply extracts tweet records from a model reply. Replies often
// wrap the CSV in prose or a code fence, so parsing starts at the header
// line and ignores everything before it.
func ParseTweetReply(reply string) ([]TweetRecord, error) {
	body := extractCSVBody(reply)
	if body == "" {
		return nil, errors.New("reply contains no tweet CSV header")
	}

	reader := csv.NewReader(strings.NewReader(body))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "parse tweet CSV")
	}
	if len(rows) < 1 {
		return nil, errors.New("tweet CSV is empty")
	}

	cols := make(map[string]int)
	for i, name := range rows[0] {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := cols["username"]; !ok {
		return nil, errors.New("tweet CSV missing username column")
	}

	var records []TweetRecord
	for _, row := range rows[1:] {
		rec := TweetRecord{
			Username:    tweetField(row, cols, "username"),
			TweetID:     tweetField(row, cols, "tweet_id"),
			CreatedAt:   tweetField(row, cols, "created_at"),
			Text:        tweetField(row, cols, "text"),
			OriginalURL: tweetField(row, cols, "original_url"),
		}
		if rec.Username == "" && rec.Text == "" {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// extractCSVBody slices a reply down to the CSV portion, starting at the
// "username," header and stopping at a closing code fence.
func extractCSVBody(reply string) string {
	lines := strings.Split(strings.ReplaceAll(reply, "\r\n", "\n"), "\n")
	start := -1
	for i, line := range lines {
		trimmed := strings.ToLower(strings.TrimSpace(line))
		if strings.HasPrefix(trimmed, "username,") {
			start = i
			break
		}
	}
	if start < 0 {
		return ""
	}
	end := len(lines)
	for i := start + 1; i < len(lines); i++ {
		if strings.HasPrefix(strings.TrimSpace(lines[i]), "```") {
			end = i
			break
		}
	}
	return strings.Join(lines[start:end], "\n")
}

func tweetField(row []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// EncodeTweetCSV renders records in canonical column order with a header
// row.
func EncodeTweetCSV(records []TweetRecord) string {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	w.Write(tweetHeader)
	for _, rec := range records {
		w.Write([]string{rec.Username, rec.TweetID, rec.CreatedAt, rec.Text, rec.OriginalURL})
	}
	w.Flush()
	return sb.String()
}

// MergeTweetCSV concatenates per-batch CSV payloads into one document with
// a single header row. Batches that fail to parse are skipped rather than
// sinking the whole merge.
func MergeTweetCSV(batchCSVs []string) (string, int) {
	var all []TweetRecord
	for _, payload := range batchCSVs {
		if strings.TrimSpace(payload) == "" {
			continue
		}
		records, err := ParseTweetReply(payload)
		if err != nil {
			continue
		}
		all = append(all, records...)
	}
	return EncodeTweetCSV(all), len(all)
}
