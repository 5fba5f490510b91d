package cdn

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/smallbiznis/encore/internal/attachment/domain"
	"github.com/smallbiznis/encore/internal/config"
)

const ProviderName = "cdn"

// Provider uploads attachments to an HTTP object endpoint.
//
// Upload: multipart POST {endpoint} with fields "folder" and "file", answered by {"url": "..."}.
// Delete: DELETE {endpoint}?url=<url>.
type Provider struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

type Factory struct{}

func (Factory) Provider() string { return ProviderName }

func (Factory) New(cfg config.AttachmentConfig) (domain.Provider, error) {
	if strings.TrimSpace(cfg.CDNEndpoint) == "" {
		return nil, domain.ErrProviderDisabled
	}
	return New(cfg.CDNEndpoint, cfg.CDNAPIKey, &http.Client{Timeout: cfg.CDNTimeout}), nil
}

func New(endpoint, apiKey string, client *http.Client) *Provider {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Provider{
		endpoint:   strings.TrimRight(strings.TrimSpace(endpoint), "/"),
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: client,
	}
}

func (p *Provider) Name() string { return ProviderName }

type uploadResponse struct {
	URL string `json:"url"`
}

func (p *Provider) Store(ctx context.Context, file domain.File, folder string) (domain.Stored, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("folder", folder); err != nil {
		return domain.Stored{}, err
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, file.Name))
	if file.ContentType != "" {
		header.Set("Content-Type", file.ContentType)
	}
	part, err := writer.CreatePart(header)
	if err != nil {
		return domain.Stored{}, err
	}
	if _, err := part.Write(file.Data); err != nil {
		return domain.Stored{}, err
	}
	if err := writer.Close(); err != nil {
		return domain.Stored{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, &body)
	if err != nil {
		return domain.Stored{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	p.authorize(req)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return domain.Stored{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return domain.Stored{}, fmt.Errorf("cdn upload returned %s", resp.Status)
	}

	var out uploadResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return domain.Stored{}, fmt.Errorf("decode cdn response: %w", err)
	}
	if strings.TrimSpace(out.URL) == "" {
		return domain.Stored{}, fmt.Errorf("cdn response missing url")
	}
	return domain.Stored{URL: out.URL, Provider: ProviderName}, nil
}

func (p *Provider) Delete(ctx context.Context, objectURL string) error {
	target := p.endpoint + "?url=" + url.QueryEscape(objectURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, target, nil)
	if err != nil {
		return err
	}
	p.authorize(req)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("cdn delete returned %s", resp.Status)
	}
	return nil
}

func (p *Provider) authorize(req *http.Request) {
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
}
