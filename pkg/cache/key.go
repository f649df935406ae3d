package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// KeyPrefix prefixes every cache key.
const KeyPrefix = "yt"

// credentialParams never become part of a key.
var credentialParams = map[string]bool{
	"key":          true,
	"access_token": true,
}

// Key identifies a cached API response.
type Key struct {
	// Endpoint is the API path (e.g. "/youtube/v3/videos")
	Endpoint string

	// Query holds the request parameters. Credential parameters are
	// ignored.
	Query url.Values

	// Principal scopes responses that differ per caller, such as
	// mine=true lookups. Empty for public data.
	Principal string
}

// String generates a deterministic key.
// Format: yt:endpoint:param1=val1:param2=val2:p=principal
//
// Example:
//
//	yt:youtube/v3/videos:id=a,b:part=statistics
func (k Key) String() string {
	parts := []string{KeyPrefix}

	if endpoint := strings.Trim(k.Endpoint, "/"); endpoint != "" {
		parts = append(parts, endpoint)
	}

	names := make([]string, 0, len(k.Query))
	for name := range k.Query {
		if credentialParams[name] {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		values := append([]string(nil), k.Query[name]...)
		sort.Strings(values)
		parts = append(parts, fmt.Sprintf("%s=%s", name, strings.Join(values, ",")))
	}

	if k.Principal != "" {
		parts = append(parts, "p="+k.Principal)
	}

	return strings.Join(parts, ":")
}
