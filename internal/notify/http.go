package notify

import (
	"context"
	"fmt"

	"github.com/utafrali/HabitGo/pkg/httpclient"
)

type relayMessage struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// HTTPSender posts messages to a JSON mail relay. Retries and the circuit
// breaker come from pkg/httpclient.
type HTTPSender struct {
	client *httpclient.Client
	url    string
	token  string
	from   string
}

// NewHTTPSender creates an HTTPSender.
func NewHTTPSender(client *httpclient.Client, url, token, from string) *HTTPSender {
	return &HTTPSender{client: client, url: url, token: token, from: from}
}

// Name returns the name of this sender.
func (s *HTTPSender) Name() string {
	return "http"
}

// Send posts the message to the relay and expects a 2xx answer.
func (s *HTTPSender) Send(ctx context.Context, to, subject, body string) error {
	var headers map[string]string
	if s.token != "" {
		headers = map[string]string{"Authorization": "Bearer " + s.token}
	}

	resp, err := s.client.PostJSON(ctx, s.url, relayMessage{
		From:    s.from,
		To:      to,
		Subject: subject,
		Text:    body,
	}, headers)
	if err != nil {
		return fmt.Errorf("mail relay: %w", err)
	}
	if err := httpclient.CheckStatus(resp); err != nil {
		return fmt.Errorf("mail relay: %w", err)
	}
	_ = resp.Body.Close()
	return nil
}
