package tenant

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path"
)

// Part is one field of a multipart request.
type Part struct {
	// Name is the form field name.
	Name string

	// Filename marks the part as a file upload.
	Filename string

	// ContentType defaults to application/json for plain fields and
	// application/octet-stream for files.
	ContentType string

	Content io.Reader
}

// Upload sends a multipart/form-data request and decodes the JSON response.
func (c *Client) Upload(ctx context.Context, method, target string, parts []Part) (Object, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		ct := p.ContentType
		if p.Filename != "" {
			h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, p.Name, p.Filename))
			if ct == "" {
				ct = "application/octet-stream"
			}
		} else {
			h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q`, p.Name))
			if ct == "" {
				ct = "application/json"
			}
		}
		h.Set("Content-Type", ct)

		fw, err := w.CreatePart(h)
		if err != nil {
			return nil, fmt.Errorf("failed to create part %s: %w", p.Name, err)
		}
		if _, err := io.Copy(fw, p.Content); err != nil {
			return nil, fmt.Errorf("failed to write part %s: %w", p.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish multipart body: %w", err)
	}

	resp, err := c.Do(ctx, method, target, nil, &buf, w.FormDataContentType())
	if err != nil {
		return nil, err
	}
	return resp.Object()
}

// UploadTempContent stores a file in temporary content storage and returns
// its id, taken from the Location header.
func (c *Client) UploadTempContent(ctx context.Context, filename string, content io.Reader) (string, error) {
	q := url.Values{"filename": {filename}}
	resp, err := c.Do(ctx, http.MethodPost, "/temp-contents", q, content, "application/octet-stream")
	if err != nil {
		return "", err
	}
	loc := resp.Header.Get("Location")
	if loc == "" {
		return "", fmt.Errorf("temp-contents upload returned no Location header")
	}
	if u, err := url.Parse(loc); err == nil {
		loc = u.Path
	}
	return path.Base(loc), nil
}
