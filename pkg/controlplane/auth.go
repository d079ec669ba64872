// Copyright 2025 MindOps Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package controlplane

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// AuthzMode selects the authorization policy.
type AuthzMode string

const (
	AuthzAllowAll AuthzMode = "allow-all"
	AuthzDenyAll  AuthzMode = "deny-all"
	AuthzScoped   AuthzMode = "scoped"
)

// Actor is the authenticated caller context attached to each request.
type Actor struct {
	Name     string   `json:"actor"`
	Scopes   []string `json:"scopes"`
	AuthMode string   `json:"auth_mode"`
}

// Authenticator resolves request credentials into an Actor. When an API key
// is configured, requests must present it via x-api-key or a bearer token;
// otherwise requests pass with auth_mode "none".
type Authenticator struct {
	APIKey    string
	AuthzMode AuthzMode
}

// Authenticate validates credentials and builds the actor context.
func (a Authenticator) Authenticate(r *http.Request) (Actor, error) {
	provided := r.Header.Get("x-api-key")
	if provided == "" {
		if bearer := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer")); bearer != "" {
			provided = bearer
		}
	}

	authMode := "none"
	if a.APIKey != "" {
		if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(a.APIKey)) != 1 {
			return Actor{}, ErrUnauthorized
		}
		authMode = "api_key"
	}

	name := r.Header.Get("x-actor")
	if name == "" {
		name = r.Header.Get("x-user")
	}
	if name == "" {
		name = "anonymous"
	}
	return Actor{Name: name, Scopes: parseScopes(r.Header.Get("x-scopes")), AuthMode: authMode}, nil
}

// Authorize checks the actor may perform action under the configured mode.
// Scoped mode requires the action in the actor's scopes once any scopes are
// declared; an actor without scopes passes.
func (a Authenticator) Authorize(actor Actor, action string) error {
	switch a.AuthzMode {
	case AuthzDenyAll:
		return ErrForbidden
	case AuthzScoped:
		if len(actor.Scopes) == 0 {
			return nil
		}
		for _, scope := range actor.Scopes {
			if scope == action {
				return nil
			}
		}
		return ErrForbidden
	}
	return nil
}

func parseScopes(raw string) []string {
	if raw == "" {
		return nil
	}
	var scopes []string
	for _, part := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(part); s != "" {
			scopes = append(scopes, s)
		}
	}
	return scopes
}
