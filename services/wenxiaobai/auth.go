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
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

const (
	codesPath    = "/api/v1.0/user/codes"
	sessionsPath = "/api/v1.0/user/sessions"
)

// SendCode dispatches a login OTP to a phone number. The number itself
// is never logged here.
func (c *Client) SendCode(ctx context.Context, phone string) error {
	_, err := c.Post(ctx, codesPath, map[string]string{
		"phone": phone,
		"type":  "login",
	})
	return err
}

// CreateSession exchanges phone + OTP code for a bearer token and user
// id. The device id is registered with the session and must be reused on
// every subsequent call.
func (c *Client) CreateSession(ctx context.Context, phone, code, deviceID string) (Session, error) {
	data, err := c.Post(ctx, sessionsPath, map[string]any{
		"phone":     phone,
		"code":      code,
		"deviceId":  deviceID,
		"device":    "Chrome",
		"client":    "web",
		"extraInfo": map[string]string{"url": touristURL},
	})
	if err != nil {
		return Session{}, err
	}

	var parsed struct {
		Token string `json:"token"`
		User  struct {
			ID int64 `json:"id"`
		} `json:"user"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return Session{}, localError(fmt.Errorf("decode session: %w", err))
	}
	if parsed.Token == "" || parsed.User.ID == 0 {
		return Session{}, &APIError{Code: CodeLocal, Message: "session response missing user or token"}
	}
	return Session{
		Token:  parsed.Token,
		UserID: strconv.FormatInt(parsed.User.ID, 10),
	}, nil
}

// WebID obtains the analytics web id used by the tracking events. Called
// once before the first OTP dispatch.
func (c *Client) WebID(ctx context.Context) (string, error) {
	payload := map[string]any{
		"app_id":         trackingAppID,
		"url":            touristURL,
		"user_agent":     userAgent,
		"referer":        "",
		"user_unique_id": "",
	}
	var out struct {
		WebID string `json:"web_id"`
	}
	if err := c.plainPost(ctx, c.tracking+"/webid", payload, &out); err != nil {
		return "", err
	}
	if out.WebID == "" {
		return "", &APIError{Code: CodeLocal, Message: "webid response missing web_id"}
	}
	return out.WebID, nil
}
