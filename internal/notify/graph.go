package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// GraphMailer sends mail through the Microsoft Graph API using the
// client-credentials flow.
type GraphMailer struct {
	tenantID     string
	clientID     string
	clientSecret string
	sender       string
	httpClient   *http.Client

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

func NewGraphMailer(tenantID, clientID, clientSecret, sender string) *GraphMailer {
	return &GraphMailer{
		tenantID:     tenantID,
		clientID:     clientID,
		clientSecret: clientSecret,
		sender:       sender,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (m *GraphMailer) token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.accessToken != "" && time.Now().Before(m.expiresAt) {
		return m.accessToken, nil
	}

	form := url.Values{}
	form.Set("client_id", m.clientID)
	form.Set("client_secret", m.clientSecret)
	form.Set("scope", "https://graph.microsoft.com/.default")
	form.Set("grant_type", "client_credentials")

	tokenURL := fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", m.tenantID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("graph token error: status=%d body=%s", resp.StatusCode, string(b))
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}

	m.accessToken = payload.AccessToken
	// refresh a minute early
	m.expiresAt = time.Now().Add(time.Duration(payload.ExpiresIn-60) * time.Second)
	return m.accessToken, nil
}

type graphMessage struct {
	Message struct {
		Subject string `json:"subject"`
		Body    struct {
			ContentType string `json:"contentType"`
			Content     string `json:"content"`
		} `json:"body"`
		ToRecipients []struct {
			EmailAddress struct {
				Address string `json:"address"`
			} `json:"emailAddress"`
		} `json:"toRecipients"`
	} `json:"message"`
	SaveToSentItems bool `json:"saveToSentItems"`
}

func (m *GraphMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	token, err := m.token(ctx)
	if err != nil {
		return err
	}

	var msg graphMessage
	msg.Message.Subject = subject
	msg.Message.Body.ContentType = "HTML"
	msg.Message.Body.Content = htmlBody
	msg.Message.ToRecipients = make([]struct {
		EmailAddress struct {
			Address string `json:"address"`
		} `json:"emailAddress"`
	}, 1)
	msg.Message.ToRecipients[0].EmailAddress.Address = to
	msg.SaveToSentItems = true

	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	sendURL := fmt.Sprintf("https://graph.microsoft.com/v1.0/users/%s/sendMail", m.sender)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sendURL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("graph sendMail error: status=%d body=%s", resp.StatusCode, string(b))
	}
	return nil
}

// LogMailer is the development fallback when Azure AD is not configured: it
// logs the email instead of sending it.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, to, subject, _ string) error {
	log.Info().Str("to", to).Str("subject", subject).Msg("email would be sent (mailer not configured)")
	return nil
}
