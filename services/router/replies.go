// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package router

// ReplyKind tags how the host should deliver a reply.
type ReplyKind string

const (
	ReplyText     ReplyKind = "text"
	ReplyImageURL ReplyKind = "image_url"
	ReplyError    ReplyKind = "error"
)

// Reply is one outbound message for the host framework.
type Reply struct {
	Kind    ReplyKind `json:"kind"`
	Content string    `json:"content"`
}

func textReply(content string) Reply  { return Reply{Kind: ReplyText, Content: content} }
func imageReply(url string) Reply     { return Reply{Kind: ReplyImageURL, Content: url} }
func errorReply(content string) Reply { return Reply{Kind: ReplyError, Content: content} }

// User-facing failure and prompt strings.
const (
	replySessionFailed  = "会话创建失败"
	replyVisionNoQuery  = "请在命令后输入问题，例如：小白识图 这个热量有多少"
	replySendImage      = "请发送需要识别的图片"
	replyUploadFailed   = "上传图片失败，请重试"
	replyProcessing     = "正在处理图片，请稍候..."
	replyGenerating     = "正在生成图片，请稍候..."
	replyRequestFailFmt = "请求失败: %s"
)

// HelpText describes the command surface for the host's help listing.
const HelpText = "问小白插件使用说明：\n" +
	"1. 对话功能：以'小白'开头，例如：\n" +
	"   小白 今天天气怎么样？\n" +
	"2. 搜索功能：以'小白搜索'开头，例如：\n" +
	"   小白搜索 广州天气\n" +
	"3. 生图功能：以'小白生图'开头，可选风格与比例，例如：\n" +
	"   小白生图 雨中的猫-水彩-1:1\n" +
	"4. 识图功能：以'小白识图'开头，随后发送图片，例如：\n" +
	"   小白识图 这个热量有多少\n" +
	"5. 首次使用需要登录，会自动提示登录流程\n"
