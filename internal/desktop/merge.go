package desktop

import "encoding/json"

// Merge builds the post-rebuild configuration from a prior config and the
// managed server set.
//
// The managed key is replaced outright: the result's registry is exactly
// the managed set, and prior entries under the key are dropped. After a
// rebuild the old entries would point into quarantined directories, so
// carrying them forward preserves breakage, not configuration. Every
// other top-level key is carried over with its raw bytes.
//
// Merge is pure: neither input is mutated, and no I/O happens.
func Merge(prior *Config, managed []*Server) *Config {
	merged := &Config{Servers: make(map[string]*Server, len(managed))}

	if prior != nil && len(prior.unknownFields) > 0 {
		merged.unknownFields = make(map[string]json.RawMessage, len(prior.unknownFields))
		for k, v := range prior.unknownFields {
			merged.unknownFields[k] = v
		}
	}

	for _, s := range managed {
		merged.Servers[s.Name] = s
	}

	return merged
}
