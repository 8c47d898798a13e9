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

// Capability declares one bot ability inside a chat payload. The server
// expects the web client's full advertisement blocks, including the icon
// asset URLs.
type Capability struct {
	Icon                  string   `json:"icon"`
	Title                 string   `json:"title"`
	DefaultQuery          string   `json:"defaultQuery"`
	Capability            string   `json:"capability"`
	CapabilityRang        int      `json:"capabilityRang"`
	MinAppVersion         string   `json:"minAppVersion"`
	BotID                 int      `json:"botId"`
	BotDesc               string   `json:"botDesc"`
	SelectedIcon          string   `json:"selectedIcon"`
	BotIcon               string   `json:"botIcon"`
	ExclusiveCapabilities []string `json:"exclusiveCapabilities"`
	DefaultSelected       bool     `json:"defaultSelected"`
	DefaultHidden         bool     `json:"defaultHidden"`
	Key                   string   `json:"key"`
	DefaultPlaceholder    string   `json:"defaultPlaceholder"`
	IsPromptMenu          bool     `json:"isPromptMenu"`
	PromptMenu            bool     `json:"promptMenu"`
	ID                    string   `json:"_id"`
}

const capabilityAssets = "https://wy-static.wenxiaobai.com/bot-capability/prod/"

func deepThinkCapability() Capability {
	return Capability{
		Icon:         capabilityAssets + "%E6%B7%B1%E5%BA%A6%E6%80%9D%E8%80%83.png",
		Title:        "深度思考(R1)",
		Capability:   "otherBot",
		BotID:        botIDDeepThink,
		BotDesc:      "深度回答这个问题（DeepSeek R1）",
		SelectedIcon: capabilityAssets + "%E6%B7%B1%E5%BA%A6%E6%80%9D%E8%80%83%E9%80%89%E4%B8%AD.png",
		BotIcon: "https://platform-dev-1319140468.cos.ap-nanjing.myqcloud.com/" +
			"bot/avatar/2025/02/06/612cbff8-51e6-4c6a-8530-cb551bcfda56.webp",
		Key: "deep_think",
		ID:  "deep_think",
	}
}

func deepSearchCapability() Capability {
	return Capability{
		Icon:       capabilityAssets + "%E8%81%94%E7%BD%91%E6%90%9C%E7%B4%A2.png",
		Title:      "联网搜索",
		Capability: "otherBot",
		BotID:      botIDDeepSearch,
		Key:        "deep_search",
	}
}

func imageGenerateCapability() Capability {
	return Capability{
		Icon:                  capabilityAssets + "%E5%9B%BE%E7%89%87%E7%94%9F%E6%88%902.png",
		Title:                 "推理生图",
		Capability:            "otherBot",
		CapabilityRang:        2,
		BotID:                 botIDImageGen,
		ExclusiveCapabilities: []string{"file", "camera", "image", "deep_search"},
		DefaultSelected:       true,
		Key:                   "imageGenerate",
		DefaultPlaceholder: "请输入图片的场景、主体、布局、情绪、氛围、风格等，" +
			"如开启深度思考R1，会帮你智能扩写描述词",
		IsPromptMenu: true,
		PromptMenu:   true,
		ID:           "imageGenerate",
	}
}

// capabilitiesFor returns the ability set for a mode. Deep thought is
// always on; chat adds web search; vision runs with deep thought alone;
// image mode swaps in the generation bot.
func capabilitiesFor(mode Mode) []Capability {
	caps := []Capability{deepThinkCapability()}
	switch mode {
	case ModeChat:
		caps = append(caps, deepSearchCapability())
	case ModeImage:
		caps = append(caps, imageGenerateCapability())
	}
	return caps
}
