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
	"crypto/md5"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Mode selects the capability profile of a chat call.
type Mode string

const (
	// ModeChat is the default conversational profile with web search.
	ModeChat Mode = "chat"
	// ModeVision answers a question about an uploaded image.
	ModeVision Mode = "vision"
	// ModeImage generates an image from a prompt.
	ModeImage Mode = "image"
)

// Bot identifiers the web client hardcodes.
const (
	botIDConversation = "200006"
	botIDDeepThink    = 200004
	botIDDeepSearch   = 200007
	botIDImageGen     = 100002
)

// APIError is the typed failure value for every provider call. Code is
// the application code or HTTP status; CodeLocal marks network and
// encoding failures that never reached the server.
type APIError struct {
	Code    int
	Message string
}

// CodeLocal is the Code of failures local to this process.
const CodeLocal = -1

func (e *APIError) Error() string {
	return fmt.Sprintf("wenxiaobai: code %d: %s", e.Code, e.Message)
}

// localError wraps a transport or encoding failure.
func localError(err error) *APIError {
	return &APIError{Code: CodeLocal, Message: err.Error()}
}

// envelope is the standard response wrapper {code, msg, data}.
type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// Session is the credential pair captured by a successful login.
type Session struct {
	Token  string
	UserID string
}

// MediaInfo references an uploaded and parsed file.
type MediaInfo struct {
	FileID      string `json:"fileId"`
	FileMD5     string `json:"fileMd5"`
	DownloadURL string `json:"-"`
}

// ImageOptions carry the style and aspect ratio of a generation request.
type ImageOptions struct {
	Style string `json:"style"`
	Size  string `json:"size"`
}

// Defaults applied when the user gives no generation parameters.
const (
	DefaultImageStyle = "电影写真"
	DefaultImageSize  = "16:9"
)

// ChatRequest is the payload of /core/conversation/chat/v1.
type ChatRequest struct {
	UserID            int           `json:"userId"`
	BotID             string        `json:"botId"`
	BotAlias          string        `json:"botAlias"`
	Query             string        `json:"query"`
	PureQuery         string        `json:"pureQuery"`
	IsRetry           bool          `json:"isRetry"`
	BreakingStrategy  int           `json:"breakingStrategy"`
	IsNewConversation bool          `json:"isNewConversation"`
	MediaInfos        []MediaInfo   `json:"mediaInfos"`
	TurnIndex         int           `json:"turnIndex"`
	RewriteQuery      string        `json:"rewriteQuery"`
	ConversationID    string        `json:"conversationId"`
	Capabilities      []Capability  `json:"capabilities"`
	AttachmentInfo    attachment    `json:"attachmentInfo"`
	InputWay          string        `json:"inputWay"`
	ImageGenerate     *ImageOptions `json:"imageGenerate,omitempty"`
}

type attachment struct {
	URL attachmentURL `json:"url"`
}

type attachmentURL struct {
	InfoList []any `json:"infoList"`
}

// NewChatRequest assembles the chat payload for one exchange. The turn
// index comes from the session manager; turn 0 marks a new conversation.
func NewChatRequest(userID, turnIndex int, conversationID, query string, mode Mode) (ChatRequest, error) {
	req := ChatRequest{
		UserID:            userID,
		BotID:             botIDConversation,
		BotAlias:          "custom",
		Query:             query,
		PureQuery:         query,
		IsNewConversation: turnIndex == 0,
		MediaInfos:        []MediaInfo{},
		TurnIndex:         turnIndex,
		ConversationID:    conversationID,
		Capabilities:      capabilitiesFor(mode),
		AttachmentInfo:    attachment{URL: attachmentURL{InfoList: []any{}}},
		InputWay:          "proactive",
	}
	if conversationID == "" {
		return req, fmt.Errorf("chat request without conversation id")
	}
	return req, nil
}

// WithMedia attaches an uploaded image for a vision exchange.
func (r ChatRequest) WithMedia(info MediaInfo) ChatRequest {
	r.MediaInfos = []MediaInfo{{FileID: info.FileID, FileMD5: info.FileMD5}}
	return r
}

// WithImageOptions rewrites the query into the generation template and
// records the style and size parameters.
func (r ChatRequest) WithImageOptions(opts ImageOptions) ChatRequest {
	if opts.Style == "" {
		opts.Style = DefaultImageStyle
	}
	if opts.Size == "" {
		opts.Size = DefaultImageSize
	}
	r.Query = fmt.Sprintf("风格「%s」，%s，尺寸「%s」", opts.Style, r.PureQuery, opts.Size)
	r.ImageGenerate = &opts
	return r
}

// NewDeviceID generates a device identity: md5 of the millisecond
// timestamp, the timestamp itself, and a short random suffix. It is not
// tied to hardware and stays stable for the lifetime of the credentials.
func NewDeviceID() string {
	ts := time.Now().UnixMilli()
	sum := md5.Sum([]byte(strconv.FormatInt(ts, 10)))

	raw := make([]byte, 8)
	_, _ = rand.Read(raw)
	suffix := base64.StdEncoding.EncodeToString(raw)[:6]

	return fmt.Sprintf("%x_%d_%s", sum, ts, suffix)
}
