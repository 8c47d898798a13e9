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
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"time"
)

// signingSecret is the shared key the web client embeds; the API accepts
// no other credential for the hmac header.
const signingSecret = "TkoWuEN8cpDJubb7Zfwxln16NQDZIc8z"

// emptyBodyDigest is the well-known digest for requests without a body
// (SHA-256 of zero bytes).
const emptyBodyDigest = "SHA-256=47DEQpj8HBSa+/TImW+5JCeuQeRkm5NMpJWZG3hSuFU="

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36"

// Signer builds the authenticated header set every Wenxiaobai request
// carries: a content digest, an RFC-1123 GMT timestamp and an HMAC-SHA1
// signature over the two.
type Signer struct {
	secret []byte
	// now is swappable for deterministic header tests.
	now func() time.Time
}

// NewSigner returns a Signer using the service's shared secret.
func NewSigner() *Signer {
	return &Signer{secret: []byte(signingSecret), now: time.Now}
}

// Digest returns the content digest for a request body. Empty bodies use
// the fixed well-known value.
func (s *Signer) Digest(body []byte) string {
	if len(body) == 0 {
		return emptyBodyDigest
	}
	sum := sha256.Sum256(body)
	return "SHA-256=" + base64.StdEncoding.EncodeToString(sum[:])
}

// Sign computes the base64 HMAC-SHA1 signature over the exact two-line
// string the server verifies.
func (s *Signer) Sign(date, digest string) string {
	mac := hmac.New(sha1.New, s.secret)
	mac.Write([]byte("x-date: " + date + "\ndigest: " + digest))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// headerOptions selects the request profile for Headers.
type headerOptions struct {
	chat     bool
	token    string
	deviceID string
}

// Headers builds the full header set for one request. Chat (streaming)
// requests advertise event-stream acceptance and a different app version
// than buffered ones; bearer token and device id are attached when
// present.
func (s *Signer) Headers(body []byte, opts headerOptions) http.Header {
	date := s.now().UTC().Format(http.TimeFormat)
	digest := s.Digest(body)

	h := http.Header{}
	if opts.chat {
		h.Set("accept", "text/event-stream, text/event-stream")
		h.Set("x-yuanshi-appversioncode", "")
		h.Set("x-yuanshi-appversionname", "3.1.0")
	} else {
		h.Set("accept", "application/json, text/plain, */*")
		h.Set("x-yuanshi-appversioncode", "2.1.5")
		h.Set("x-yuanshi-appversionname", "2.8.0")
	}
	h.Set("accept-language", "zh-CN,zh;q=0.9")
	h.Set("cache-control", "no-cache")
	h.Set("content-type", "application/json")
	h.Set("origin", "https://www.wenxiaobai.com")
	h.Set("pragma", "no-cache")
	h.Set("priority", "u=1, i")
	h.Set("referer", "https://www.wenxiaobai.com/")
	h.Set("sec-ch-ua", `"Google Chrome";v="129", "Not=A?Brand";v="8", "Chromium";v="129"`)
	h.Set("sec-ch-ua-mobile", "?0")
	h.Set("sec-ch-ua-platform", `"Windows"`)
	h.Set("sec-fetch-dest", "empty")
	h.Set("sec-fetch-mode", "cors")
	h.Set("sec-fetch-site", "same-site")
	h.Set("user-agent", userAgent)
	h.Set("x-date", date)
	h.Set("digest", digest)
	h.Set("x-yuanshi-appname", "wenxiaobai")
	h.Set("x-yuanshi-channel", "browser")
	h.Set("x-yuanshi-devicemode", "Chrome")
	h.Set("x-yuanshi-deviceos", "129")
	h.Set("x-yuanshi-locale", "zh")
	h.Set("x-yuanshi-platform", "web")
	h.Set("x-yuanshi-timezone", "Asia/Shanghai")

	h.Set("authorization",
		`hmac username="web.1.0.beta", algorithm="hmac-sha1", headers="x-date digest", signature="`+
			s.Sign(date, digest)+`"`)

	if opts.token != "" {
		h.Set("x-yuanshi-authorization", "Bearer "+opts.token)
	}
	if opts.deviceID != "" {
		h.Set("x-yuanshi-deviceid", opts.deviceID)
	}
	return h
}
