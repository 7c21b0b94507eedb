package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// CalculateStringSHA256 computes the SHA-256 hash of a string.
func CalculateStringSHA256(content string) string {
	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}

// HotelID derives a stable identifier from a hotel page URL.
func HotelID(hotelURL string) string {
	return "hotel_" + CalculateStringSHA256(hotelURL)[:12]
}

// ReviewID derives a stable identifier for a review from the fields that
// identify it on the hotel page. Parts are joined with a unit separator so
// that ("ab","c") and ("a","bc") hash differently.
func ReviewID(hotelID string, parts ...string) string {
	return hotelID + "_review_" + CalculateStringSHA256(strings.Join(parts, "\x1f"))[:16]
}
