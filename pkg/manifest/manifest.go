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

// Package manifest loads Kubernetes manifests from YAML or JSON files and
// decodes the kinds the control plane understands into typed objects.
// Documents of other kinds are ignored, not errors.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/serializer"
	"k8s.io/client-go/kubernetes/scheme"
)

// Set holds the typed objects recognized across all loaded documents.
type Set struct {
	Deployments  []appsv1.Deployment
	StatefulSets []appsv1.StatefulSet
	DaemonSets   []appsv1.DaemonSet
	Services     []corev1.Service
	// Skipped counts documents of unrecognized kinds.
	Skipped int
}

// Empty reports whether nothing recognizable was loaded.
func (s Set) Empty() bool {
	return len(s.Deployments) == 0 && len(s.StatefulSets) == 0 &&
		len(s.DaemonSets) == 0 && len(s.Services) == 0
}

var codecs = serializer.NewCodecFactory(scheme.Scheme)

// Load reads manifests from files or directories (recursing into
// .yaml/.yml/.json files), splitting multi-document YAML, unwrapping JSON
// arrays and v1 List objects, and decoding recognized kinds.
func Load(paths []string) (Set, error) {
	var (
		set  Set
		errs []error
	)
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("manifest path %s: %w", path, err))
			continue
		}
		if info.IsDir() {
			walkErr := filepath.WalkDir(path, func(file string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if d.IsDir() || !hasManifestExt(file) {
					return nil
				}
				if err := loadFile(file, &set); err != nil {
					errs = append(errs, err)
				}
				return nil
			})
			if walkErr != nil {
				errs = append(errs, walkErr)
			}
			continue
		}
		if err := loadFile(path, &set); err != nil {
			errs = append(errs, err)
		}
	}
	return set, errors.Join(errs...)
}

func hasManifestExt(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

func loadFile(path string, set *Set) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read manifest %s: %w", path, err)
	}
	docs, err := rawDocuments(b)
	if err != nil {
		return fmt.Errorf("parse manifest %s: %w", path, err)
	}
	for _, doc := range docs {
		if err := decodeInto(doc, set); err != nil {
			return fmt.Errorf("decode manifest %s: %w", path, err)
		}
	}
	return nil
}

// rawDocuments splits the payload into individual object documents: YAML
// streams document by document, JSON arrays and kind: List element by
// element.
func rawDocuments(b []byte) ([]map[string]any, error) {
	var (
		docs []map[string]any
		errs []error
	)
	dec := yaml.NewDecoder(strings.NewReader(string(b)))
	for {
		var doc any
		err := dec.Decode(&doc)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			errs = append(errs, err)
			break
		}
		docs = append(docs, unwrap(doc)...)
	}
	return docs, errors.Join(errs...)
}

func unwrap(doc any) []map[string]any {
	switch d := doc.(type) {
	case nil:
		return nil
	case []any:
		var out []map[string]any
		for _, item := range d {
			if obj, ok := item.(map[string]any); ok {
				out = append(out, obj)
			}
		}
		return out
	case map[string]any:
		if d["kind"] == "List" {
			if items, ok := d["items"].([]any); ok {
				var out []map[string]any
				for _, item := range items {
					if obj, ok := item.(map[string]any); ok {
						out = append(out, obj)
					}
				}
				return out
			}
			return nil
		}
		return []map[string]any{d}
	}
	return nil
}

// decodeInto routes a raw document through the client-go scheme's universal
// deserializer into its typed form.
func decodeInto(doc map[string]any, set *Set) error {
	kind, _ := doc["kind"].(string)
	switch kind {
	case "Deployment", "StatefulSet", "DaemonSet", "Service":
	default:
		set.Skipped++
		return nil
	}
	jsonBytes, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	obj, _, err := codecs.UniversalDeserializer().Decode(jsonBytes, nil, nil)
	if err != nil {
		if runtime.IsNotRegisteredError(err) {
			set.Skipped++
			return nil
		}
		return err
	}
	switch o := obj.(type) {
	case *appsv1.Deployment:
		defaultNamespace(&o.Namespace)
		set.Deployments = append(set.Deployments, *o)
	case *appsv1.StatefulSet:
		defaultNamespace(&o.Namespace)
		set.StatefulSets = append(set.StatefulSets, *o)
	case *appsv1.DaemonSet:
		defaultNamespace(&o.Namespace)
		set.DaemonSets = append(set.DaemonSets, *o)
	case *corev1.Service:
		defaultNamespace(&o.Namespace)
		set.Services = append(set.Services, *o)
	default:
		set.Skipped++
	}
	return nil
}

func defaultNamespace(ns *string) {
	if *ns == "" {
		*ns = "default"
	}
}
