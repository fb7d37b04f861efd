package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/keywarden/keywarden/pkg/scan"
	"github.com/keywarden/keywarden/pkg/types"
)

const (
	slackAPIURL = "https://slack.com/api/chat.postMessage"

	// slackMaxFindings bounds the message size; the full list belongs in
	// the JSON or HTML report, not a channel.
	slackMaxFindings = 10
)

// Slack posts a findings digest to a channel through chat.postMessage.
type Slack struct {
	client  *http.Client
	apiURL  string
	token   string
	channel string
}

// NewSlack creates a Slack reporter. The token comes from the
// SLACK_API_TOKEN environment variable at the CLI layer; an empty token
// is rejected there before this is constructed.
func NewSlack(token, channel string) *Slack {
	return &Slack{
		client:  &http.Client{},
		apiURL:  slackAPIURL,
		token:   token,
		channel: channel,
	}
}

type slackBlock struct {
	Type string          `json:"type"`
	Text *slackTextBlock `json:"text,omitempty"`
}

type slackTextBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackMessage struct {
	Channel string       `json:"channel"`
	Text    string       `json:"text"` // fallback for notifications
	Blocks  []slackBlock `json:"blocks"`
}

// Post sends the digest. Findings above the cap are summarized in a
// trailing note.
func (s *Slack) Post(ctx context.Context, report *scan.Report, min types.Confidence) error {
	findings := filtered(report, min)
	summary := Summarize(findings)

	headline := fmt.Sprintf("keywarden found %d leaked key(s)", summary.Total)
	if summary.Live > 0 {
		headline = fmt.Sprintf("keywarden found %d leaked key(s), %d LIVE", summary.Total, summary.Live)
	}

	blocks := []slackBlock{
		{Type: "header", Text: &slackTextBlock{Type: "plain_text", Text: headline}},
		{Type: "divider"},
	}

	shown := findings
	if len(shown) > slackMaxFindings {
		shown = shown[:slackMaxFindings]
	}
	for _, f := range shown {
		line := fmt.Sprintf("*%s* `%s`\n%s:%d — confidence %s",
			f.Provider, f.KeyPreview(), f.Provenance.Path(), f.LineOrOffset(), f.Confidence)
		if f.Validated() {
			line += fmt.Sprintf(", status *%s*", f.Verdict.Status)
		}
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackTextBlock{Type: "mrkdwn", Text: line},
		})
	}
	if len(findings) > slackMaxFindings {
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackTextBlock{
				Type: "mrkdwn",
				Text: fmt.Sprintf("_…and %d more. See the full report._", len(findings)-slackMaxFindings),
			},
		})
	}

	payload, err := json.Marshal(slackMessage{
		Channel: s.channel,
		Text:    headline,
		Blocks:  blocks,
	})
	if err != nil {
		return fmt.Errorf("encoding slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting to slack: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decoding slack response: %w", err)
	}
	if !result.OK {
		return fmt.Errorf("slack rejected the message: %s", result.Error)
	}
	return nil
}
