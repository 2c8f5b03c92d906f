package util

import (
	"crypto/rand"
	"fmt"
	"io"
	"math"
	"math/big"
	"strings"
)

func GenerateUUID() (string, error) {
	b := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", err
	}

	// Version 4, variant 10
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80

	uuid := fmt.Sprintf("%08x-%04x-%04x-%04x-%012x",
		b[0:4],
		b[4:6],
		b[6:8],
		b[8:10],
		b[10:16])

	return uuid, nil
}

// VerificationCode derives the 4-digit code the rider reads out to the
// driver before the ride starts. When the rider's customer ID carries at
// least four trailing digits those are reused so the code is stable across
// booking retries; otherwise a random code in [1000, 9999] is issued.
func VerificationCode(customerID string) string {
	trimmed := strings.TrimSpace(customerID)
	if len(trimmed) >= 4 {
		tail := trimmed[len(trimmed)-4:]
		digits := true
		for _, r := range tail {
			if r < '0' || r > '9' {
				digits = false
				break
			}
		}
		if digits {
			return tail
		}
	}

	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "1000"
	}
	return fmt.Sprintf("%d", 1000+n.Int64())
}

func toRadians(degree float64) float64 {
	return degree * math.Pi / 180
}

// Haversine returns the great-circle distance between two points in km.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKm = 6371

	phi1 := toRadians(lat1)
	phi2 := toRadians(lat2)
	deltaPhi := toRadians(lat2 - lat1)
	deltaLambda := toRadians(lon2 - lon1)

	a := math.Sin(deltaPhi/2)*math.Sin(deltaPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*
			math.Sin(deltaLambda/2)*math.Sin(deltaLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}
