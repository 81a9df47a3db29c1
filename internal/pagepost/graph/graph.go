package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"

	"github.com/blacktop/pagepost/internal/logutil"
	"github.com/blacktop/pagepost/internal/pagepost"
)

const (
	defaultEndpoint = "https://graph.facebook.com"
	requestTimeout  = 30 * time.Second

	// cap on response bodies kept for the publish log
	maxResponseBytes = 1 << 20
)

// Config contains the settings needed to reach the API.
type Config struct {
	Endpoint   string
	Timeout    time.Duration
	UserAgent  string
	HTTPClient *http.Client
}

// Client implements the photo upload and feed calls.
type Client struct {
	endpoint  string
	timeout   time.Duration
	userAgent string
	http      *http.Client
	now       func() time.Time
}

// New constructs a Client.
func New(cfg Config) *Client {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = requestTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = cleanhttp.DefaultPooledClient()
	}
	return &Client{
		endpoint:  endpoint,
		timeout:   timeout,
		userAgent: cfg.UserAgent,
		http:      httpClient,
		now:       time.Now,
	}
}

// UploadPhoto uploads one image, unpublished, to the destination and
// returns the media id on success.
func (c *Client) UploadPhoto(ctx context.Context, dest pagepost.Destination, img pagepost.ImageAsset) pagepost.CallResult {
	path, err := img.LocalPath()
	if err != nil {
		return pagepost.TransportFailure(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return pagepost.TransportFailure(fmt.Errorf("read image: %w", err))
	}

	name := img.UploadName(c.now())
	mimeType := img.ContentType()
	logutil.Debugf("uploading photo: page=%s name=%s type=%s bytes=%d", dest.ID, name, mimeType, len(data))

	body, contentType, err := buildForm(func(w *multipart.Writer) error {
		if err := w.WriteField("published", "false"); err != nil {
			return err
		}
		if err := w.WriteField("access_token", dest.Credential); err != nil {
			return err
		}
		part, err := w.CreatePart(fileHeader("source", name, mimeType))
		if err != nil {
			return err
		}
		_, err = part.Write(data)
		return err
	})
	if err != nil {
		return pagepost.TransportFailure(fmt.Errorf("build upload form: %w", err))
	}

	return c.post(ctx, dest.ID, "photos", body, contentType)
}

// PublishFeed creates a feed entry with caption and the given media ids,
// attached in order.
func (c *Client) PublishFeed(ctx context.Context, dest pagepost.Destination, caption string, media []string) pagepost.CallResult {
	logutil.Debugf("publishing feed entry: page=%s media_count=%d", dest.ID, len(media))

	body, contentType, err := buildForm(func(w *multipart.Writer) error {
		if err := w.WriteField("message", caption); err != nil {
			return err
		}
		if err := w.WriteField("access_token", dest.Credential); err != nil {
			return err
		}
		for i, id := range media {
			ref, err := json.Marshal(struct {
				MediaFBID string `json:"media_fbid"`
			}{id})
			if err != nil {
				return err
			}
			if err := w.WriteField(fmt.Sprintf("attached_media[%d]", i), string(ref)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return pagepost.TransportFailure(fmt.Errorf("build feed form: %w", err))
	}

	return c.post(ctx, dest.ID, "feed", body, contentType)
}

func (c *Client) post(ctx context.Context, pageID, edge string, body *bytes.Buffer, contentType string) pagepost.CallResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	path := url.PathEscape(pageID) + "/" + edge
	endpoint := c.endpoint + "/" + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return pagepost.TransportFailure(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return pagepost.TransportFailure(fmt.Errorf("POST %s: timed out after %s: %w", path, c.timeout, err))
		}
		return pagepost.TransportFailure(fmt.Errorf("POST %s: %w", path, err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return pagepost.TransportFailure(fmt.Errorf("read response: %w", err))
	}
	if !json.Valid(raw) {
		return pagepost.TransportFailure(fmt.Errorf("decode response: status %d: invalid JSON body", resp.StatusCode))
	}

	logutil.Debugf("POST %s: status=%d", path, resp.StatusCode)
	if id := responseID(raw); id != "" {
		return pagepost.Succeeded(id, raw)
	}
	return pagepost.Rejected(raw)
}

// responseID extracts a truthy "id" member from a JSON object.
func responseID(raw []byte) string {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return ""
	}
	switch v := obj["id"].(type) {
	case string:
		return v
	case json.Number:
		if f, err := v.Float64(); err == nil && f == 0 {
			return ""
		}
		return v.String()
	case bool:
		if v {
			return "true"
		}
	}
	return ""
}

func buildForm(fill func(*multipart.Writer) error) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	if err := fill(w); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return body, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func fileHeader(field, filename, contentType string) textproto.MIMEHeader {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(field), quoteEscaper.Replace(filename)))
	h.Set("Content-Type", contentType)
	return h
}
