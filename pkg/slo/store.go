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

package slo

import (
	"fmt"
	"os"
	"time"

	"github.com/Huzefaaa2/MindOps/internal/fsio"
)

// StoreVersion identifies the on-disk store layout.
const StoreVersion = "slo-store/v1"

// SaveMode selects how Save combines incoming SLOs with the persisted set.
type SaveMode string

const (
	// SaveMerge merges by (service, name) with last-writer-wins.
	SaveMerge SaveMode = "merge"
	// SaveReplace overwrites the persisted set.
	SaveReplace SaveMode = "replace"
)

// Store persists SLOs in a single JSON file. All read-modify-write cycles
// run under a per-path lock; writes are atomic renames.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (st *Store) Path() string { return st.path }

// storeDoc mirrors the JSON layout on disk.
type storeDoc struct {
	SchemaVersion string `json:"schema_version"`
	StoreVersion  string `json:"store_version"`
	GeneratedAt   string `json:"generated_at"`
	UpdatedAt     string `json:"updated_at"`
	SLOs          []SLO  `json:"slos"`
}

// Load returns the persisted SLOs. A missing file is an empty store, not an
// error.
func (st *Store) Load() ([]SLO, error) {
	lock := fsio.Lock(st.path)
	lock.Lock()
	defer lock.Unlock()
	return st.loadLocked()
}

func (st *Store) loadLocked() ([]SLO, error) {
	var doc storeDoc
	if err := fsio.ReadJSON(st.path, &doc); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return doc.SLOs, nil
}

// Save persists slos. In merge mode the incoming set wins per
// (service, name) key over the persisted one; replace mode discards the
// persisted set. The written document is returned.
func (st *Store) Save(slos []SLO, mode SaveMode) (map[string]any, error) {
	if mode != SaveMerge && mode != SaveReplace {
		return nil, fmt.Errorf("save mode must be %q or %q, got %q", SaveMerge, SaveReplace, mode)
	}
	lock := fsio.Lock(st.path)
	lock.Lock()
	defer lock.Unlock()

	merged := slos
	if mode == SaveMerge {
		existing, err := st.loadLocked()
		if err != nil {
			return nil, err
		}
		if len(existing) > 0 {
			type key struct{ service, name string }
			order := make([]key, 0, len(existing)+len(slos))
			byKey := map[key]SLO{}
			add := func(s SLO) {
				k := key{s.Service, s.Name}
				if _, ok := byKey[k]; !ok {
					order = append(order, k)
				}
				byKey[k] = s
			}
			for _, s := range existing {
				add(s)
			}
			for _, s := range slos {
				add(s)
			}
			merged = make([]SLO, 0, len(order))
			for _, k := range order {
				merged = append(merged, byKey[k])
			}
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	payload := ExportJSON(merged, time.Now())
	payload["store_version"] = StoreVersion
	payload["updated_at"] = now
	if err := fsio.WriteJSON(st.path, payload); err != nil {
		return nil, fmt.Errorf("write slo store: %w", err)
	}
	return payload, nil
}
