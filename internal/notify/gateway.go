package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPSMSClient sends texts through an SMS gateway's JSON API.
type HTTPSMSClient struct {
	BaseURL    string
	APIKey     string
	SenderName string
	Client     *http.Client
}

func NewHTTPSMSClient(baseURL, apiKey, senderName string) *HTTPSMSClient {
	return &HTTPSMSClient{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		SenderName: senderName,
		Client:     &http.Client{Timeout: 10 * time.Second},
	}
}

type smsRequest struct {
	Recipient  string `json:"recipient"`
	SenderName string `json:"sender_name"`
	Message    string `json:"message"`
}

type gatewayResponse struct {
	Code   int    `json:"code"`
	Status string `json:"status"`
	Msg    string `json:"msg"`
}

func (c *HTTPSMSClient) SendSMS(ctx context.Context, phone, message string) error {
	payload := smsRequest{
		Recipient:  phone,
		SenderName: c.SenderName,
		Message:    message,
	}
	return c.post(ctx, c.BaseURL+"/sms/send", payload)
}

// HTTPEmailClient sends transactional email through a gateway's JSON API.
type HTTPEmailClient struct {
	BaseURL   string
	APIKey    string
	FromEmail string
	Client    *http.Client
}

func NewHTTPEmailClient(baseURL, apiKey, fromEmail string) *HTTPEmailClient {
	return &HTTPEmailClient{
		BaseURL:   baseURL,
		APIKey:    apiKey,
		FromEmail: fromEmail,
		Client:    &http.Client{Timeout: 10 * time.Second},
	}
}

type emailRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (c *HTTPEmailClient) SendEmail(ctx context.Context, to, subject, body string) error {
	payload := emailRequest{
		From:    c.FromEmail,
		To:      to,
		Subject: subject,
		Body:    body,
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return doGatewayPost(ctx, c.Client, c.BaseURL+"/email/send", c.APIKey, raw)
}

func (c *HTTPSMSClient) post(ctx context.Context, url string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return doGatewayPost(ctx, c.Client, url, c.APIKey, raw)
}

func doGatewayPost(ctx context.Context, client *http.Client, url, apiKey string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return err
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", apiKey))
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, string(raw))
	}

	var gw gatewayResponse
	if err := json.Unmarshal(raw, &gw); err != nil {
		return fmt.Errorf("parse gateway response: %w", err)
	}
	if gw.Code != 0 {
		return fmt.Errorf("gateway rejected message: %s", gw.Msg)
	}

	return nil
}
