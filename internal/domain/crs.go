package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// CRS is an EPSG coordinate reference system code. The zero value is unknown.
type CRS int

const (
	CRSUnknown CRS = 0
	// WGS84 is geographic longitude/latitude (EPSG:4326).
	WGS84 CRS = 4326
	// UTM14N is NAD83 / UTM zone 14N in meters (EPSG:26914), the working CRS
	// of every exported layer.
	UTM14N CRS = 26914
)

func (c CRS) String() string {
	if c == CRSUnknown {
		return "unknown"
	}
	return "EPSG:" + strconv.Itoa(int(c))
}

// SRID returns the numeric code used by PostGIS and GeoPackage.
func (c CRS) SRID() int { return int(c) }

// ParseCRS accepts "EPSG:26914", "epsg:26914" or a bare "26914".
func ParseCRS(s string) (CRS, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, ':'); i >= 0 {
		if !strings.EqualFold(s[:i], "epsg") {
			return CRSUnknown, fmt.Errorf("parse crs %q: unsupported authority", s)
		}
		s = s[i+1:]
	}
	code, err := strconv.Atoi(s)
	if err != nil || code <= 0 {
		return CRSUnknown, fmt.Errorf("parse crs %q: invalid code", s)
	}
	return CRS(code), nil
}
