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

package trace

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Ingester parses trace payloads into spans. Both the flat span-array form
// and OTLP-shaped resourceSpans nesting are accepted by every entry point.
// Individual spans that cannot be parsed are logged and skipped; ingest only
// fails when the payload as a whole is not valid JSON or is neither a span
// array nor an object.
type Ingester struct {
	logger log.Logger
}

func NewIngester(logger log.Logger) *Ingester {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Ingester{logger: logger}
}

// ParseFile reads and parses a trace file.
func (ing *Ingester) ParseFile(path string) ([]Span, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read trace %s: %w", path, err)
	}
	return ing.Parse(b)
}

// Parse parses a trace payload.
func (ing *Ingester) Parse(b []byte) ([]Span, error) {
	var root any
	if err := json.Unmarshal(b, &root); err != nil {
		return nil, fmt.Errorf("parse trace payload: %w", err)
	}

	var spans []Span
	switch data := root.(type) {
	case []any:
		for i, raw := range data {
			obj, ok := raw.(map[string]any)
			if !ok {
				level.Warn(ing.logger).Log("msg", "skipping non-object span", "index", i)
				continue
			}
			spans = append(spans, ing.normalize(obj, serviceNameOf(obj, "")))
		}
	case map[string]any:
		for _, rawRes := range asSlice(data["resourceSpans"]) {
			res, ok := rawRes.(map[string]any)
			if !ok {
				continue
			}
			resService := resourceServiceName(res)
			for _, rawScope := range asSlice(res["scopeSpans"]) {
				scope, ok := rawScope.(map[string]any)
				if !ok {
					continue
				}
				for _, rawSpan := range asSlice(scope["spans"]) {
					obj, ok := rawSpan.(map[string]any)
					if !ok {
						level.Warn(ing.logger).Log("msg", "skipping non-object span")
						continue
					}
					spans = append(spans, ing.normalize(obj, serviceNameOf(obj, resService)))
				}
			}
		}
	default:
		return nil, fmt.Errorf("trace payload must be a span array or an OTLP object")
	}

	resolveParentServices(spans)
	return spans, nil
}

func (ing *Ingester) normalize(obj map[string]any, service string) Span {
	if service == "" {
		service = "unknown_service"
	}
	s := Span{
		TraceID:   stringField(obj, "traceId", "trace_id"),
		SpanID:    stringField(obj, "spanId", "span_id"),
		ParentID:  stringField(obj, "parentSpanId", "parentSpanID", "parent_id"),
		Service:   service,
		Operation: stringField(obj, "name", "operationName"),
		Start:     parseTime(firstOf(obj, "startTimeUnixNano", "startTime", "start_time")),
		End:       parseTime(firstOf(obj, "endTimeUnixNano", "endTime", "end_time")),
		Attrs:     attributesOf(obj["attributes"]),
		Status:    statusOf(obj),
	}
	if s.TraceID == "" {
		s.TraceID = "unknown"
	}
	if s.SpanID == "" {
		s.SpanID = "unknown"
	}
	if s.Operation == "" {
		s.Operation = "unknown_operation"
	}
	return s
}

// resolveParentServices builds a span_id index and attaches the owning
// service of each span's parent.
func resolveParentServices(spans []Span) {
	index := make(map[string]string, len(spans))
	for _, s := range spans {
		index[s.SpanID] = s.Service
	}
	for i := range spans {
		if spans[i].ParentID == "" {
			continue
		}
		if svc, ok := index[spans[i].ParentID]; ok {
			spans[i].ParentService = svc
		}
	}
}

// attributesOf converts an OTLP attribute list into a flat map, recursively
// unwrapping typed value containers ({stringValue: v} etc).
func attributesOf(raw any) map[string]any {
	attrs := map[string]any{}
	for _, item := range asSlice(raw) {
		attr, ok := item.(map[string]any)
		if !ok {
			continue
		}
		key, _ := firstOf(attr, "key", "name").(string)
		if key == "" {
			continue
		}
		attrs[key] = unwrapValue(attr["value"])
	}
	return attrs
}

// unwrapValue strips OTLP type containers: {"stringValue": "x"} becomes "x".
// Nested containers unwrap recursively.
func unwrapValue(v any) any {
	obj, ok := v.(map[string]any)
	if !ok || len(obj) == 0 {
		return v
	}
	for _, inner := range obj {
		return unwrapValue(inner)
	}
	return v
}

func statusOf(obj map[string]any) string {
	status, ok := obj["status"].(map[string]any)
	if !ok {
		return "OK"
	}
	if msg, ok := status["message"].(string); ok && msg != "" {
		return msg
	}
	switch code := status["code"].(type) {
	case string:
		if code != "" {
			return code
		}
	case float64:
		return strconv.Itoa(int(code))
	}
	return "OK"
}

func serviceNameOf(obj map[string]any, fallback string) string {
	if s := stringField(obj, "service_name", "service.name"); s != "" {
		return s
	}
	if v := attributesOf(obj["attributes"])["service.name"]; v != nil {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if res, ok := obj["resource"].(map[string]any); ok {
		if v := attributesOf(res["attributes"])["service.name"]; v != nil {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return fallback
}

func resourceServiceName(res map[string]any) string {
	attrs := res["attributes"]
	if inner, ok := res["resource"].(map[string]any); ok {
		attrs = inner["attributes"]
	}
	if v := attributesOf(attrs)["service.name"]; v != nil {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return "unknown"
}

// parseTime accepts epoch numbers (any unit, resolved later), numeric
// strings, and RFC 3339 timestamps which become epoch seconds.
func parseTime(v any) *float64 {
	switch t := v.(type) {
	case nil:
		return nil
	case float64:
		return &t
	case string:
		if t == "" {
			return nil
		}
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return &f
		}
		if ts, err := time.Parse(time.RFC3339Nano, t); err == nil {
			f := float64(ts.UnixNano()) / 1e9
			return &f
		}
	}
	return nil
}

func stringField(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func firstOf(obj map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := obj[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}
