package blockfrost

import (
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Blockfrost encodes lovelace quantities as decimal strings and counters as
// plain ints. The helpers below normalize them into the unsigned types of
// the chain package.

// count maps a counter onto uint64. Negative values become 0.
func count[T int | int32 | int64](n T) uint64 {
	if n < 0 {
		return 0
	}
	return uint64(n)
}

// parseLovelace parses a lovelace amount. Malformed amounts become 0.
func parseLovelace(s string) uint64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	amount, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		log.Warnf("malformed lovelace amount %q: %s", s, err.Error())
		return 0
	}
	return amount
}
