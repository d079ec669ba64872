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

package zerotouch

import "strings"

// LanguageLabel is the workload label that overrides image-based language
// detection.
const LanguageLabel = "telemetry.mindops/language"

// languageHints maps image-name substrings to runtimes, checked in order so
// detection stays deterministic.
var languageHints = []struct {
	token    string
	language string
}{
	{"python", "python"},
	{"django", "python"},
	{"flask", "python"},
	{"fastapi", "python"},
	{"nodejs", "nodejs"},
	{"node", "nodejs"},
	{"npm", "nodejs"},
	{"yarn", "nodejs"},
	{"java", "java"},
	{"jre", "java"},
	{"jvm", "java"},
	{"spring", "java"},
	{"golang", "go"},
	{"go", "go"},
	{"dotnet", "dotnet"},
	{"aspnet", "dotnet"},
	{"ruby", "ruby"},
	{"rails", "ruby"},
	{"py", "python"},
}

// DetectLanguage guesses the runtime of a container image. An explicit
// telemetry.mindops/language label always wins.
func DetectLanguage(image string, labels map[string]string) string {
	if hint := labels[LanguageLabel]; hint != "" {
		return hint
	}
	lowered := strings.ToLower(image)
	for _, hint := range languageHints {
		if strings.Contains(lowered, hint.token) {
			return hint.language
		}
	}
	return "unknown"
}
