// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package wenxiaobai

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"
)

func fixedSigner() *Signer {
	s := NewSigner()
	s.now = func() time.Time {
		return time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	}
	return s
}

func TestDigestEmptyBodyUsesWellKnownValue(t *testing.T) {
	s := NewSigner()
	if got := s.Digest(nil); got != emptyBodyDigest {
		t.Errorf("empty digest = %q", got)
	}
	if got := s.Digest([]byte{}); got != emptyBodyDigest {
		t.Errorf("empty slice digest = %q", got)
	}
}

func TestDigestFormat(t *testing.T) {
	s := NewSigner()
	d := s.Digest([]byte(`{"a":1}`))
	if !strings.HasPrefix(d, "SHA-256=") {
		t.Fatalf("digest missing prefix: %q", d)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(d, "SHA-256="))
	if err != nil {
		t.Fatalf("digest not base64: %v", err)
	}
	if len(raw) != 32 {
		t.Errorf("digest length = %d, want 32", len(raw))
	}
	if d2 := s.Digest([]byte(`{"a":1}`)); d2 != d {
		t.Error("digest not deterministic")
	}
}

func TestSignIsDeterministicHMACSHA1(t *testing.T) {
	s := NewSigner()
	sig := s.Sign("Sat, 01 Mar 2025 12:00:00 GMT", emptyBodyDigest)
	raw, err := base64.StdEncoding.DecodeString(sig)
	if err != nil {
		t.Fatalf("signature not base64: %v", err)
	}
	if len(raw) != 20 {
		t.Errorf("signature length = %d, want 20 (SHA-1)", len(raw))
	}
	if sig2 := s.Sign("Sat, 01 Mar 2025 12:00:00 GMT", emptyBodyDigest); sig2 != sig {
		t.Error("signature not deterministic for identical inputs")
	}
}

func TestHeadersAuthorizationShape(t *testing.T) {
	s := fixedSigner()
	h := s.Headers(nil, headerOptions{})

	if got := h.Get("x-date"); got != "Sat, 01 Mar 2025 12:00:00 GMT" {
		t.Errorf("x-date = %q", got)
	}
	if got := h.Get("digest"); got != emptyBodyDigest {
		t.Errorf("digest = %q", got)
	}
	auth := h.Get("authorization")
	for _, want := range []string{
		`hmac username="web.1.0.beta"`,
		`algorithm="hmac-sha1"`,
		`headers="x-date digest"`,
		`signature="`,
	} {
		if !strings.Contains(auth, want) {
			t.Errorf("authorization missing %q: %s", want, auth)
		}
	}
	if h.Get("x-yuanshi-authorization") != "" {
		t.Error("bearer header set without a token")
	}
	if h.Get("x-yuanshi-deviceid") != "" {
		t.Error("device header set without a device id")
	}
}

func TestHeadersChatProfile(t *testing.T) {
	s := fixedSigner()

	buffered := s.Headers(nil, headerOptions{token: "tok", deviceID: "dev"})
	if got := buffered.Get("accept"); got != "application/json, text/plain, */*" {
		t.Errorf("buffered accept = %q", got)
	}
	if got := buffered.Get("x-yuanshi-authorization"); got != "Bearer tok" {
		t.Errorf("bearer = %q", got)
	}
	if got := buffered.Get("x-yuanshi-deviceid"); got != "dev" {
		t.Errorf("device id = %q", got)
	}

	chat := s.Headers(nil, headerOptions{chat: true})
	if got := chat.Get("accept"); !strings.Contains(got, "text/event-stream") {
		t.Errorf("chat accept = %q", got)
	}
	if got := chat.Get("x-yuanshi-appversionname"); got != "3.1.0" {
		t.Errorf("chat app version = %q", got)
	}
}

func TestNewDeviceIDShape(t *testing.T) {
	id := NewDeviceID()
	parts := strings.Split(id, "_")
	if len(parts) != 3 {
		t.Fatalf("device id = %q, want 3 parts", id)
	}
	if len(parts[0]) != 32 {
		t.Errorf("md5 part length = %d, want 32", len(parts[0]))
	}
	if len(parts[2]) != 6 {
		t.Errorf("suffix length = %d, want 6", len(parts[2]))
	}
	if NewDeviceID() == id {
		t.Error("device ids should not repeat")
	}
}
