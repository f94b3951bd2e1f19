// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jeranaias/tutorchat/internal/model"
)

// Provider resolves the identity of the current user.
type Provider interface {
	Identity(ctx context.Context) (model.Identity, error)
}

// =============================================================================
// STATIC PROVIDER
// =============================================================================

// StaticProvider returns a fixed identity, typically from config.
type StaticProvider struct {
	Ident model.Identity
}

// Identity implements Provider.
func (p StaticProvider) Identity(context.Context) (model.Identity, error) {
	id := p.Ident
	id.Role = model.ParseType(string(id.Role))
	if !id.Valid() {
		return model.Identity{}, ErrNoIdentity
	}
	return id, nil
}

// =============================================================================
// HTTP PROVIDER
// =============================================================================

const maxProfileBytes = 64 << 10

// HTTPProvider fetches the profile of UserID from the marketplace API.
type HTTPProvider struct {
	BaseURL string
	UserID  string
	Token   string
	Client  *http.Client
}

type profileResponse struct {
	Username   string `json:"username"`
	RoleMaster bool   `json:"role_master"`
}

// Identity implements Provider. Any failure maps to ErrNoIdentity.
func (p HTTPProvider) Identity(ctx context.Context) (model.Identity, error) {
	if p.BaseURL == "" || p.UserID == "" || p.Token == "" {
		return model.Identity{}, fmt.Errorf("%w: missing profile url, user id or token", ErrNoIdentity)
	}
	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	endpoint := strings.TrimRight(p.BaseURL, "/") + "/profile/" + url.PathEscape(p.UserID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return model.Identity{}, fmt.Errorf("%w: %v", ErrNoIdentity, err)
	}
	req.Header.Set("Authorization", "Bearer "+p.Token)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return model.Identity{}, fmt.Errorf("%w: %v", ErrNoIdentity, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return model.Identity{}, fmt.Errorf("%w: profile status %d", ErrNoIdentity, resp.StatusCode)
	}

	var profile profileResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxProfileBytes)).Decode(&profile); err != nil {
		return model.Identity{}, fmt.Errorf("%w: decode profile: %v", ErrNoIdentity, err)
	}

	id := model.Identity{Username: profile.Username, Role: model.TypeUser, UserID: p.UserID}
	if profile.RoleMaster {
		id.Role = model.TypeTutor
	}
	if !id.Valid() {
		return model.Identity{}, ErrNoIdentity
	}
	return id, nil
}
