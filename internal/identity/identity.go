// Package identity resolves participant display names.
package identity

import "encoding/json"

type participantMetadata struct {
	DisplayName string `json:"displayName"`
}

// Resolve picks a display name for a participant. Preference order:
// a displayName field in the participant's metadata, then the name supplied
// by the transport, then the raw identity. Malformed metadata is treated as
// absent.
func Resolve(identity, name, metadata string) string {
	if metadata != "" {
		var md participantMetadata
		if err := json.Unmarshal([]byte(metadata), &md); err == nil && md.DisplayName != "" {
			return md.DisplayName
		}
	}
	if name != "" {
		return name
	}
	return identity
}
