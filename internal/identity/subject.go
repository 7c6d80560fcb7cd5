package identity

import (
	"fmt"
	"strings"

	"github.com/danmuck/sideband/internal/protoerr"
)

// MaxSubjectBytes is the largest a Subject's UTF-8 encoding may be.
const MaxSubjectBytes = 256

// reservedPrefixes are the only routing-key namespaces a Subject may open
// with. An empty or unprefixed subject names nothing routable.
var reservedPrefixes = []string{"rpc/", "event/", "stream/", "app/"}

// Subject is a validated routing key. The zero value is not a valid
// Subject; obtain one through ValidateSubject.
type Subject struct {
	value string
}

// ValidateSubject checks text against every structural rule a Subject must
// satisfy: 1-256 UTF-8 bytes, no embedded NUL, and one of the reserved
// namespace prefixes.
func ValidateSubject(text string) (Subject, error) {
	if len(text) == 0 {
		return Subject{}, fmt.Errorf("%w: subject must not be empty", protoerr.ErrProtocolViolation)
	}
	if len(text) > MaxSubjectBytes {
		return Subject{}, fmt.Errorf("%w: subject exceeds %d bytes, got %d", protoerr.ErrProtocolViolation, MaxSubjectBytes, len(text))
	}
	if strings.IndexByte(text, 0) >= 0 {
		return Subject{}, fmt.Errorf("%w: subject contains a null byte", protoerr.ErrProtocolViolation)
	}
	for _, prefix := range reservedPrefixes {
		if strings.HasPrefix(text, prefix) {
			return Subject{value: text}, nil
		}
	}
	return Subject{}, fmt.Errorf("%w: subject %q must start with one of %v", protoerr.ErrProtocolViolation, text, reservedPrefixes)
}

// String returns the validated routing key text.
func (s Subject) String() string {
	return s.value
}

// IsZero reports whether s is the unvalidated zero value.
func (s Subject) IsZero() bool {
	return s.value == ""
}
