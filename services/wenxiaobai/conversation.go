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
)

// CreateConversation allocates a new server-side conversation for the
// user and returns its opaque id.
func (c *Client) CreateConversation(ctx context.Context, userID, deviceID string) (string, error) {
	path := fmt.Sprintf("/api/v1.0/core/conversations/users/%s/bots/%s/conversation",
		userID, botIDConversation)
	data, err := c.Post(ctx, path, map[string]string{"visitorId": deviceID})
	if err != nil {
		return "", err
	}

	var conversationID string
	if err := json.Unmarshal(data, &conversationID); err != nil {
		return "", localError(fmt.Errorf("decode conversation id: %w", err))
	}
	if conversationID == "" {
		return "", &APIError{Code: CodeLocal, Message: "empty conversation id"}
	}
	return conversationID, nil
}
