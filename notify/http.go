package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// =============================================================================
// HTTP DISPATCHER - JSON POST to the delivery service
// =============================================================================

// HTTPDispatcher posts messages as JSON to an e-mail delivery endpoint.
type HTTPDispatcher struct {
	endpoint   string
	apiKey     string
	senderName string
	httpClient *http.Client
}

func NewHTTPDispatcher(endpoint, apiKey, senderName string, timeout time.Duration) *HTTPDispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPDispatcher{
		endpoint:   endpoint,
		apiKey:     apiKey,
		senderName: senderName,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type benefitBody struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Value string `json:"value"`
}

type dispatchRequest struct {
	SenderName     string      `json:"sender_name,omitempty"`
	ToEmail        string      `json:"to_email"`
	ToName         string      `json:"to_name"`
	VoucherCode    string      `json:"voucher_code"`
	Benefit        benefitBody `json:"benefit"`
	Attachment     string      `json:"attachment,omitempty"`
	AttachmentName string      `json:"attachment_name,omitempty"`
	Justification  string      `json:"justification"`
	Urgent         bool        `json:"urgent"`
}

type dispatchResponse struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
}

func (d *HTTPDispatcher) Dispatch(ctx context.Context, m Message) error {
	body := dispatchRequest{
		SenderName:  d.senderName,
		ToEmail:     m.ToEmail,
		ToName:      m.ToName,
		VoucherCode: m.VoucherCode,
		Benefit: benefitBody{
			ID:    string(m.BenefitID),
			Name:  m.BenefitName,
			Value: m.Value.StringFixed(2),
		},
		Justification: m.Justification,
		Urgent:        m.Urgent,
	}
	if len(m.Attachment.Data) > 0 {
		body.Attachment = base64.StdEncoding.EncodeToString(m.Attachment.Data)
		body.AttachmentName = m.Attachment.FileName
	}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode dispatch request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	if d.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+d.apiKey)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", ErrDispatchFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d: %s", ErrDispatchFailed, resp.StatusCode, bytes.TrimSpace(raw))
	}

	var result dispatchResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if result.Success == nil {
		return fmt.Errorf("%w: missing success field", ErrMalformedResponse)
	}
	if !*result.Success {
		return fmt.Errorf("%w: %s", ErrDispatchFailed, result.Message)
	}
	return nil
}
