package identifier

import (
	"strings"

	"github.com/artefactual-labs/spaces"
	"github.com/warpfork/go-errcat"
)

// CommonPrefix computes the longest common path-segment prefix of the
// given values. Each value is split on "/", the element-wise common
// prefix of the token lists is taken, and a trailing empty token is
// dropped so the result never ends in "/". An empty result is an
// ErrNoIdentifier error, not an empty identifier.
func CommonPrefix(values []string) (string, error) {
	if len(values) == 0 {
		return "", errcat.Errorf(spaces.ErrNoIdentifier, "No identifier values to reduce")
	}
	prefix := strings.Split(values[0], "/")
	for _, value := range values[1:] {
		tokens := strings.Split(value, "/")
		if len(tokens) < len(prefix) {
			prefix = prefix[:len(tokens)]
		}
		for i := range prefix {
			if prefix[i] != tokens[i] {
				prefix = prefix[:i]
				break
			}
		}
	}
	if len(prefix) > 0 && prefix[len(prefix)-1] == "" {
		prefix = prefix[:len(prefix)-1]
	}
	joined := strings.Join(prefix, "/")
	if joined == "" {
		return "", errcat.Errorf(spaces.ErrNoIdentifier,
			"Values %v share no common prefix", values)
	}
	return joined, nil
}
