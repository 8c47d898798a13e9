// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package wenxiaobai

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	preSignPath = "/api/v1.0/file/pre-sign"
	parsePath   = "/api/v1.0/file/parse"

	// parseState value signalling a successfully parsed upload.
	parseStateDone = 2

	parseAttempts = 10
	parseInterval = time.Second
)

// PreSign allocates an upload slot and returns the file id with the
// pre-signed PUT target.
func (c *Client) PreSign(ctx context.Context, fileName string) (fileID, preSignURL string, err error) {
	data, err := c.Post(ctx, preSignPath, map[string]string{"fileName": fileName})
	if err != nil {
		return "", "", err
	}
	var parsed struct {
		FileID     string `json:"fileId"`
		PreSignURL string `json:"preSignUrl"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", "", localError(fmt.Errorf("decode pre-sign: %w", err))
	}
	if parsed.FileID == "" || parsed.PreSignURL == "" {
		return "", "", &APIError{Code: CodeLocal, Message: "pre-sign response incomplete"}
	}
	return parsed.FileID, parsed.PreSignURL, nil
}

// PutFile uploads image bytes directly to a pre-signed URL. The object
// store expects a bare PUT, not the signed header set.
func (c *Client) PutFile(ctx context.Context, preSignURL string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, preSignURL, bytes.NewReader(data))
	if err != nil {
		return localError(fmt.Errorf("build upload request: %w", err))
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return localError(fmt.Errorf("upload: %w", err))
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		return &APIError{Code: resp.StatusCode, Message: "upload rejected"}
	}
	return nil
}

// PollParse waits for the server to finish parsing an uploaded file,
// with bounded retries. Exhaustion is a failure.
func (c *Client) PollParse(ctx context.Context, fileID string) (MediaInfo, error) {
	payload := map[string]any{
		"fileId":               fileID,
		"multimodalCapability": map[string]any{},
	}
	for attempt := 0; attempt < parseAttempts; attempt++ {
		data, err := c.Post(ctx, parsePath, payload)
		if err == nil {
			var parsed struct {
				ParseState  int    `json:"parseState"`
				FileMD5     string `json:"fileMd5"`
				DownloadURL string `json:"downloadUrl"`
			}
			if err := json.Unmarshal(data, &parsed); err == nil && parsed.ParseState == parseStateDone {
				return MediaInfo{
					FileID:      fileID,
					FileMD5:     parsed.FileMD5,
					DownloadURL: parsed.DownloadURL,
				}, nil
			}
		}
		select {
		case <-ctx.Done():
			return MediaInfo{}, localError(ctx.Err())
		case <-time.After(parseInterval):
		}
	}
	return MediaInfo{}, &APIError{Code: CodeLocal, Message: "file parse timed out"}
}

// UploadImage runs the whole pipeline: pre-sign, direct PUT, parse poll.
func (c *Client) UploadImage(ctx context.Context, data []byte) (MediaInfo, error) {
	fileID, preSignURL, err := c.PreSign(ctx, randomImageName())
	if err != nil {
		return MediaInfo{}, err
	}
	if err := c.PutFile(ctx, preSignURL, data); err != nil {
		return MediaInfo{}, err
	}
	return c.PollParse(ctx, fileID)
}

// randomImageName mimics the upload names the web client generates.
func randomImageName() string {
	var raw [8]byte
	_, _ = rand.Read(raw[:])
	return fmt.Sprintf("n_v%016x.jpg", binary.BigEndian.Uint64(raw[:]))
}
