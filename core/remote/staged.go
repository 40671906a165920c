package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"inventory-sync/core/staged"
)

const stagedUploadsMutation = `mutation stagedUploadsCreate($input: [StagedUploadInput!]!) {
  stagedUploadsCreate(input: $input) {
    stagedTargets {
      url
      resourceUrl
      parameters { name value }
    }
    userErrors { field message }
  }
}`

// keyParameter is the form field holding the object key of the staged file.
const keyParameter = "key"

var errNoTarget = errors.New("stagedUploadsCreate returned no target")

// CreateStagedUpload requests a write target for one file.
func (c *Client) CreateStagedUpload(ctx context.Context, req staged.Request) (*staged.Target, error) {
	input := []map[string]any{{
		"resource":   req.Resource,
		"filename":   req.Filename,
		"mimeType":   req.MimeType,
		"httpMethod": req.HTTPMethod,
	}}

	var data struct {
		Create struct {
			Targets []struct {
				URL         string             `json:"url"`
				ResourceURL string             `json:"resourceUrl"`
				Parameters  []staged.Parameter `json:"parameters"`
			} `json:"stagedTargets"`
			UserErrors []struct {
				Message string `json:"message"`
			} `json:"userErrors"`
		} `json:"stagedUploadsCreate"`
	}
	if err := c.Do(ctx, stagedUploadsMutation, map[string]any{"input": input}, &data); err != nil {
		return nil, err
	}
	if len(data.Create.UserErrors) > 0 {
		ue := &UserErrors{Operation: "stagedUploadsCreate"}
		for _, e := range data.Create.UserErrors {
			ue.Messages = append(ue.Messages, e.Message)
		}
		return nil, ue
	}
	if len(data.Create.Targets) == 0 {
		return nil, errNoTarget
	}

	t := data.Create.Targets[0]
	target := &staged.Target{URL: t.URL, Parameters: t.Parameters}
	for _, p := range t.Parameters {
		if p.Name == keyParameter {
			target.ResourceKey = p.Value
		}
	}
	return target, nil
}

// Upload posts payload as a multipart form: every target parameter first, then the file.
func (c *Client) Upload(ctx context.Context, target *staged.Target, filename string, payload []byte) error {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	for _, p := range target.Parameters {
		if err := form.WriteField(p.Name, p.Value); err != nil {
			return fmt.Errorf("write form field %s: %w", p.Name, err)
		}
	}
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(payload); err != nil {
		return fmt.Errorf("write file part: %w", err)
	}
	if err := form.Close(); err != nil {
		return fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.URL, &body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.transfer.Do(req)
	if err != nil {
		return fmt.Errorf("upload payload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &HTTPError{StatusCode: resp.StatusCode, Message: string(msg)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

var _ staged.API = (*Client)(nil)
