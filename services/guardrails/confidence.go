// Copyright (C) 2025 Clawdesk (engineering@clawdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package guardrails

// DefaultConfidenceThreshold is applied when a tenant has no threshold
// configured.
const DefaultConfidenceThreshold = 0.8

// MeetsConfidence reports whether an agent result is eligible for fully
// autonomous application. Below the threshold the caller must downgrade
// the action to a suggestion requiring human approval. A non-positive
// threshold falls back to the default.
//
// Thread Safety: Pure function, safe for concurrent use.
func MeetsConfidence(confidence, threshold float64) bool {
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}
	return confidence >= threshold
}
