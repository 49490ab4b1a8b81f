package plan

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

// poolIDPrefix is the human readable part of bech32 encoded pool ids.
const poolIDPrefix = "pool"

// NormalizePoolID accepts a pool id either in hex or in bech32 format and
// returns it in both formats.
//
// An error wrapping InvalidError will be returned, if the id is in neither
// of both formats.
func NormalizePoolID(poolID string) (hexID string, bech32ID string, err error) {
	poolID = strings.TrimSpace(poolID)
	if strings.HasPrefix(poolID, poolIDPrefix+"1") {
		hrp, data, err := bech32.Decode(poolID)
		if err != nil {
			return "", "", fmt.Errorf("%w: pool id '%s' isn't valid bech32: %v", InvalidError, poolID, err)
		}
		if hrp != poolIDPrefix {
			return "", "", fmt.Errorf("%w: pool id '%s' has the prefix '%s'", InvalidError, poolID, hrp)
		}
		raw, err := bech32.ConvertBits(data, 5, 8, false)
		if err != nil {
			return "", "", fmt.Errorf("%w: pool id '%s' couldn't be converted: %v", InvalidError, poolID, err)
		}
		return hex.EncodeToString(raw), poolID, nil
	}
	raw, err := hex.DecodeString(poolID)
	if err != nil || len(raw) == 0 {
		return "", "", fmt.Errorf("%w: pool id '%s' is neither hex nor bech32", InvalidError, poolID)
	}
	converted, err := bech32.ConvertBits(raw, 8, 5, true)
	if err != nil {
		return "", "", fmt.Errorf("%w: pool id '%s' couldn't be converted: %v", InvalidError, poolID, err)
	}
	encoded, err := bech32.Encode(poolIDPrefix, converted)
	if err != nil {
		return "", "", fmt.Errorf("%w: pool id '%s' couldn't be encoded: %v", InvalidError, poolID, err)
	}
	return strings.ToLower(poolID), encoded, nil
}
