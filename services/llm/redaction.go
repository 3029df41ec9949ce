// Copyright (C) 2025 Clawdesk (engineering@clawdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import "regexp"

// redactionPattern pairs a compiled regex with a labeled replacement so the
// log reader knows what was redacted without seeing the secret value.
type redactionPattern struct {
	Pattern     *regexp.Regexp
	Replacement string
}

// redactionPatterns is the ordered list of secret patterns to redact from
// anything that might end up in logs or error messages (gateway error
// bodies can echo the Authorization header back).
//
// IMPORTANT: Order matters. More specific patterns (sk-ant-) must appear
// BEFORE less specific patterns (sk-) to prevent partial redaction.
var redactionPatterns = []redactionPattern{
	// Anthropic API key: sk-ant-api03-<base62>
	{
		Pattern:     regexp.MustCompile(`sk-ant-api03-[A-Za-z0-9_-]{20,}`),
		Replacement: "[REDACTED:anthropic_key]",
	},
	// OpenAI API key: sk-<base62, 20+ chars>
	{
		Pattern:     regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`),
		Replacement: "[REDACTED:openai_key]",
	},
	// Bearer tokens in echoed headers
	{
		Pattern:     regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._~+/-]{16,}=*`),
		Replacement: "Bearer [REDACTED:token]",
	},
	// Generic key=value style secrets
	{
		Pattern:     regexp.MustCompile(`(?i)(api[_-]?key|secret|password)["']?\s*[:=]\s*["']?[^\s"',}]{8,}`),
		Replacement: "$1=[REDACTED]",
	},
}

// SafeLogString redacts known secret formats from s so it can be logged or
// embedded in an error message.
//
// Thread Safety: This function is safe for concurrent use.
func SafeLogString(s string) string {
	for _, rp := range redactionPatterns {
		s = rp.Pattern.ReplaceAllString(s, rp.Replacement)
	}
	return s
}
