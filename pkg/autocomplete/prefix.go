package autocomplete

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Alphabet is the ordered universe prefix boundaries are computed over.
// '`' sorts just before 'a' and '{' just after 'z', so '{' closes any run of
// lowercase members and '`' opens the first one.
const Alphabet = "`abcdefghijklmnopqrstuvwxyz{"

// Terminator is appended to boundaries. Values containing it are never returned.
const Terminator = '{'

var (
	ErrInvalidPrefix = errors.New("invalid prefix")
	ErrInvalidMember = errors.New("invalid member")
)

// ValidatePrefix accepts non-empty prefixes made of lowercase ASCII letters.
func ValidatePrefix(prefix string) error {
	if prefix == "" {
		return fmt.Errorf("%w: empty", ErrInvalidPrefix)
	}
	for i := 0; i < len(prefix); i++ {
		if prefix[i] < 'a' || prefix[i] > 'z' {
			return fmt.Errorf("%w: %q has %q outside a-z", ErrInvalidPrefix, prefix, prefix[i])
		}
	}
	return nil
}

// PrefixRange returns the boundaries enclosing every string that starts with
// prefix: low is the upper bound of the previous prefix bucket (the last
// character stepped back one alphabet position, then '{'), high is prefix+'{'.
func PrefixRange(prefix string) (low, high string, err error) {
	if err := ValidatePrefix(prefix); err != nil {
		return "", "", err
	}

	last := prefix[len(prefix)-1]
	pos := sort.Search(len(Alphabet), func(i int) bool {
		return Alphabet[i] >= last
	})
	if pos == 0 {
		pos = 1
	}

	low = prefix[:len(prefix)-1] + string(Alphabet[pos-1]) + string(Terminator)
	high = prefix + string(Terminator)
	return low, high, nil
}

// isSentinel reports values carrying the terminator, i.e. boundary markers of
// this or a concurrent query.
func isSentinel(value string) bool {
	return strings.IndexByte(value, Terminator) >= 0
}
