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

// Package controlplane exposes the policy, SLO, RCA and topology surfaces
// over an authenticated, audited HTTP API.
package controlplane

import (
	"errors"
	"os"

	"github.com/Huzefaaa2/MindOps/internal/fsio"
)

// Error kinds of the control plane. Authenticate returns ErrUnauthorized and
// Authorize returns ErrForbidden; the HTTP handlers build their other error
// responses from apiError values rather than from these sentinels.
var (
	ErrInvalid      = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrUnavailable  = errors.New("integration unavailable")
)

// State is the control-plane's persisted document.
type State struct {
	SamplingPolicy map[string]any `json:"sampling_policy"`
}

// StateStore persists control-plane state in one JSON file under a
// per-path lock.
type StateStore struct {
	path string
}

func NewStateStore(path string) *StateStore {
	return &StateStore{path: path}
}

// Load returns the persisted state, defaulting the sampling policy to
// maintain when the file does not exist yet.
func (st *StateStore) Load() (State, error) {
	lock := fsio.Lock(st.path)
	lock.Lock()
	defer lock.Unlock()
	return st.loadLocked()
}

func (st *StateStore) loadLocked() (State, error) {
	var state State
	if err := fsio.ReadJSON(st.path, &state); err != nil {
		if os.IsNotExist(err) {
			return State{SamplingPolicy: map[string]any{"sampling_action": "maintain_sampling"}}, nil
		}
		return State{}, err
	}
	if state.SamplingPolicy == nil {
		state.SamplingPolicy = map[string]any{}
	}
	return state, nil
}

// Update runs fn over the current state under the store lock and persists
// the result atomically.
func (st *StateStore) Update(fn func(*State) error) (State, error) {
	lock := fsio.Lock(st.path)
	lock.Lock()
	defer lock.Unlock()

	state, err := st.loadLocked()
	if err != nil {
		return State{}, err
	}
	if err := fn(&state); err != nil {
		return State{}, err
	}
	if err := fsio.WriteJSON(st.path, state); err != nil {
		return State{}, err
	}
	return state, nil
}
