package barcache

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
)

// maxRangeKeyBytes is the threshold past which the range portion of a cache
// key is replaced with its MD5 hash (spec §4.1 keying).
const maxRangeKeyBytes = 100

// cacheKey builds the canonical "bars:v2:{SYMBOL}:{TF}:{SESSION}:{range}" key.
func cacheKey(symbol, timeframe, sessionMode string, startTs, endTs int64) string {
	rangePart := fmt.Sprintf("%d:%d", startTs, endTs)
	if len(rangePart) > maxRangeKeyBytes {
		sum := md5.Sum([]byte(rangePart))
		rangePart = "h" + hex.EncodeToString(sum[:])[:16]
	}
	return fmt.Sprintf("bars:v2:%s:%s:%s:%s", symbol, timeframe, sessionMode, rangePart)
}

func lockKey(key string) string    { return "lock:" + key }
func pendingKey(key string) string { return "pending:" + key }
