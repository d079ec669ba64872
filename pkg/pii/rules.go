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

// Package pii redacts sensitive strings from ingested trace payloads before
// any analysis sees them.
package pii

import (
	"regexp"
	"strconv"
	"strings"
)

// Rule pairs a detection regex with an optional validator that can reject
// false positives before redaction.
type Rule struct {
	Label     string
	Regex     *regexp.Regexp
	Validator func(string) bool
}

var (
	emailRe      = regexp.MustCompile(`(?i)[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}`)
	ssnRe        = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
	phoneRe      = regexp.MustCompile(`\b(?:\+?1[-.\s]?)?(?:\(\d{3}\)|\d{3})[-.\s]?\d{3}[-.\s]?\d{4}\b`)
	ipv4Re       = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
	creditCardRe = regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)
	apiKeyRe     = regexp.MustCompile(`\b(?:AKIA|ASIA)[0-9A-Z]{16}\b`)
)

// DefaultRules returns the built-in rule set: email, US SSN, NANP phone,
// IPv4 (octet-range validated), credit card (Luhn validated) and AWS-style
// access key IDs. Order matters for deterministic match reporting.
func DefaultRules() []Rule {
	return []Rule{
		{Label: "email", Regex: emailRe},
		{Label: "ssn", Regex: ssnRe},
		{Label: "phone", Regex: phoneRe},
		{Label: "ipv4", Regex: ipv4Re, Validator: validIPv4},
		{Label: "credit_card", Regex: creditCardRe, Validator: luhnValid},
		{Label: "api_key", Regex: apiKeyRe},
	}
}

func validIPv4(candidate string) bool {
	parts := strings.Split(candidate, ".")
	if len(parts) != 4 {
		return false
	}
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 255 {
			return false
		}
	}
	return true
}

// luhnValid checks the mod-10 checksum over the digits of candidate,
// tolerating spaces and dashes. Fewer than 13 digits never validates.
func luhnValid(candidate string) bool {
	var digits []int
	for _, r := range candidate {
		if r >= '0' && r <= '9' {
			digits = append(digits, int(r-'0'))
		}
	}
	if len(digits) < 13 {
		return false
	}
	checksum := 0
	parity := len(digits) % 2
	for i, d := range digits {
		if i%2 == parity {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		checksum += d
	}
	return checksum%10 == 0
}
