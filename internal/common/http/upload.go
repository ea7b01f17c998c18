package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	apperrors "fridgetrack-sync/internal/common/errors"
	"fridgetrack-sync/internal/common/observability"
)

// ProgressFunc receives upload progress as a percentage in [0, 100].
// Values are monotonically non-decreasing within one upload.
type ProgressFunc func(percent int)

// UploadRequest describes a multipart upload with a single file part.
type UploadRequest struct {
	Path        string
	Route       string
	Fields      map[string]string
	FileField   string
	FileName    string
	ContentType string
	Content     []byte
	Progress    ProgressFunc
}

// Upload sends req as multipart/form-data under the upload timeout. The
// multipart Content-Type, including its boundary, is always set here.
func (c *Client) Upload(ctx context.Context, req *UploadRequest, out interface{}) error {
	if req == nil || req.FileField == "" {
		return apperrors.NewValidationError("Upload is missing a file field.")
	}

	ctx, cancel := context.WithTimeout(ctx, c.uploadTimeout)
	defer cancel()

	payload, contentType, err := buildMultipart(req)
	if err != nil {
		return apperrors.NewValidationError(fmt.Sprintf("Could not prepare upload: %v", err))
	}

	fullURL, err := c.buildURL(req.Path, nil)
	if err != nil {
		return apperrors.NewValidationError(fmt.Sprintf("Invalid upload path %q.", req.Path))
	}

	route := routeOf(req.Route)
	ctx, span := c.obs.StartSpan(ctx, "POST "+route,
		attribute.String("http.method", http.MethodPost),
		attribute.String("http.route", route),
		attribute.Int("upload.bytes", len(payload)),
	)

	body := newProgressReader(payload, req.Progress)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, body)
	if err != nil {
		observability.EndSpan(span, 0, err)
		return apperrors.NewValidationError(fmt.Sprintf("Could not build upload: %v", err))
	}
	httpReq.ContentLength = int64(len(payload))
	httpReq.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(payload)), nil
	}
	c.decorate(httpReq, nil)
	httpReq.Header.Set("Content-Type", contentType)

	status, err := c.send(ctx, httpReq, route, out)
	observability.EndSpan(span, status, err)
	return err
}

func buildMultipart(req *UploadRequest) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for name, value := range req.Fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, "", err
		}
	}

	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		escapeQuotes(req.FileField), escapeQuotes(req.FileName)))
	h.Set("Content-Type", contentType)

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(req.Content); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// progressReader reports the share of payload consumed by the transport.
type progressReader struct {
	r     *bytes.Reader
	total int64
	fn    ProgressFunc

	mu   sync.Mutex
	sent int64
	last int
}

func newProgressReader(payload []byte, fn ProgressFunc) *progressReader {
	p := &progressReader{
		r:     bytes.NewReader(payload),
		total: int64(len(payload)),
		fn:    fn,
		last:  -1,
	}
	p.report(0)
	return p
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.mu.Lock()
	p.sent += int64(n)
	sent := p.sent
	p.mu.Unlock()

	percent := 100
	if p.total > 0 {
		percent = int(sent * 100 / p.total)
	}
	p.report(percent)
	return n, err
}

// Close lets net/http treat the reader as the request body's closer.
func (p *progressReader) Close() error { return nil }

func (p *progressReader) report(percent int) {
	if p.fn == nil {
		return
	}
	if percent > 100 {
		percent = 100
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if percent <= p.last {
		return
	}
	p.last = percent
	p.fn(percent)
}
