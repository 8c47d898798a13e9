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

import "sync"

// pendingImages tracks users who issued an image-understanding command
// and owe the bridge a follow-up image. Entries are keyed per user id;
// insert and remove are atomic per key, and an entry is consumed by
// exactly one Take.
type pendingImages struct {
	mu      sync.Mutex
	queries map[string]string
}

func newPendingImages() *pendingImages {
	return &pendingImages{queries: make(map[string]string)}
}

// Put registers the free-text query waiting for the user's next image.
// A second command from the same user replaces the first.
func (p *pendingImages) Put(userID, query string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queries[userID] = query
}

// Take removes and returns the pending query for a user. The entry is
// cleared whether the subsequent exchange succeeds or fails; stale
// matches are worse than a dropped query.
func (p *pendingImages) Take(userID string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	query, ok := p.queries[userID]
	if ok {
		delete(p.queries, userID)
	}
	return query, ok
}

// Waiting reports whether a user owes an image.
func (p *pendingImages) Waiting(userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.queries[userID]
	return ok
}
