package spatial

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/encoding/wkt"

	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/domain"
)

var errGeometryBlob = errors.New("invalid geometry blob")

// gpkgMagic starts every GeoPackage geometry blob.
var gpkgMagic = []byte("GP")

// DecodeGeometry reads a geometry cell as returned by a row source: WKT text,
// WKB bytes, or a GeoPackage blob. NULL cells decode to nil.
func DecodeGeometry(v any) (orb.Geometry, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case orb.Geometry:
		return v, nil
	case string:
		if v == "" {
			return nil, nil
		}
		return wkt.Unmarshal(v)
	case []byte:
		if len(v) == 0 {
			return nil, nil
		}
		if bytes.HasPrefix(v, gpkgMagic) {
			g, _, err := DecodeGPKG(v)
			return g, err
		}
		return wkb.Unmarshal(v)
	default:
		return nil, fmt.Errorf("decode geometry of type %T: %w", v, errGeometryBlob)
	}
}

// EncodeWKB is the little-endian WKB form used by the PostGIS sink.
func EncodeWKB(g orb.Geometry) ([]byte, error) {
	return wkb.Marshal(g, binary.LittleEndian)
}

// EncodeWKT renders g as well-known text. Coordinates are written in plain
// decimal notation so UTM northings never come out as exponents.
func EncodeWKT(g orb.Geometry) string {
	var b strings.Builder
	writeWKT(&b, g)
	return b.String()
}

func writeWKT(b *strings.Builder, g orb.Geometry) {
	switch g := g.(type) {
	case orb.Point:
		b.WriteString("POINT(")
		writeCoord(b, g)
		b.WriteByte(')')
	case orb.MultiPoint:
		if len(g) == 0 {
			b.WriteString("MULTIPOINT EMPTY")
			return
		}
		b.WriteString("MULTIPOINT(")
		for i, p := range g {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteByte('(')
			writeCoord(b, p)
			b.WriteByte(')')
		}
		b.WriteByte(')')
	case orb.LineString:
		writeTagged(b, "LINESTRING", len(g) == 0, func() { writeCoords(b, g) })
	case orb.MultiLineString:
		writeTagged(b, "MULTILINESTRING", len(g) == 0, func() {
			for i, ls := range g {
				if i > 0 {
					b.WriteByte(',')
				}
				writePoints(b, ls)
			}
		})
	case orb.Ring:
		writeWKT(b, orb.Polygon{g})
	case orb.Bound:
		writeWKT(b, g.ToPolygon())
	case orb.Polygon:
		writeTagged(b, "POLYGON", len(g) == 0, func() { writeRings(b, g) })
	case orb.MultiPolygon:
		writeTagged(b, "MULTIPOLYGON", len(g) == 0, func() {
			for i, p := range g {
				if i > 0 {
					b.WriteByte(',')
				}
				b.WriteByte('(')
				writeRings(b, p)
				b.WriteByte(')')
			}
		})
	case orb.Collection:
		writeTagged(b, "GEOMETRYCOLLECTION", len(g) == 0, func() {
			for i, c := range g {
				if i > 0 {
					b.WriteByte(',')
				}
				writeWKT(b, c)
			}
		})
	}
}

// writeTagged writes "TAG(body)" or "TAG EMPTY".
func writeTagged(b *strings.Builder, tag string, empty bool, body func()) {
	b.WriteString(tag)
	if empty {
		b.WriteString(" EMPTY")
		return
	}
	b.WriteByte('(')
	body()
	b.WriteByte(')')
}

func writeRings(b *strings.Builder, p orb.Polygon) {
	for i, r := range p {
		if i > 0 {
			b.WriteByte(',')
		}
		writePoints(b, r)
	}
}

func writePoints(b *strings.Builder, ps []orb.Point) {
	b.WriteByte('(')
	writeCoords(b, ps)
	b.WriteByte(')')
}

func writeCoords(b *strings.Builder, ps []orb.Point) {
	for i, p := range ps {
		if i > 0 {
			b.WriteByte(',')
		}
		writeCoord(b, p)
	}
}

func writeCoord(b *strings.Builder, p orb.Point) {
	b.WriteString(strconv.FormatFloat(p[0], 'f', -1, 64))
	b.WriteByte(' ')
	b.WriteString(strconv.FormatFloat(p[1], 'f', -1, 64))
}

// EncodeGPKG wraps g in a GeoPackage binary header with an XY envelope.
func EncodeGPKG(g orb.Geometry, srsID int) ([]byte, error) {
	body, err := wkb.Marshal(g, binary.LittleEndian)
	if err != nil {
		return nil, fmt.Errorf("encode gpkg geometry: %w", err)
	}
	var buf bytes.Buffer
	buf.Write(gpkgMagic)
	buf.WriteByte(0) // version 1
	empty := len(vertices(g)) == 0
	flags := byte(0x01) // little endian
	if empty {
		flags |= 0x10
	} else {
		flags |= 0x02 // envelope [minx, maxx, miny, maxy]
	}
	buf.WriteByte(flags)
	_ = binary.Write(&buf, binary.LittleEndian, int32(srsID))
	if !empty {
		b := g.Bound()
		for _, f := range []float64{b.Min.X(), b.Max.X(), b.Min.Y(), b.Max.Y()} {
			_ = binary.Write(&buf, binary.LittleEndian, f)
		}
	}
	buf.Write(body)
	return buf.Bytes(), nil
}

// DecodeGPKG strips the GeoPackage header and parses the WKB payload.
func DecodeGPKG(blob []byte) (orb.Geometry, int, error) {
	if len(blob) < 8 || !bytes.HasPrefix(blob, gpkgMagic) {
		return nil, 0, errGeometryBlob
	}
	flags := blob[3]
	var order binary.ByteOrder = binary.BigEndian
	if flags&0x01 == 1 {
		order = binary.LittleEndian
	}
	srsID := int(int32(order.Uint32(blob[4:8])))
	var envelope int
	switch (flags >> 1) & 0x07 {
	case 0:
	case 1:
		envelope = 32
	case 2, 3:
		envelope = 48
	case 4:
		envelope = 64
	default:
		return nil, 0, fmt.Errorf("gpkg envelope code %d: %w", (flags>>1)&0x07, errGeometryBlob)
	}
	start := 8 + envelope
	if len(blob) < start {
		return nil, 0, errGeometryBlob
	}
	g, err := wkb.Unmarshal(blob[start:])
	if err != nil {
		return nil, 0, fmt.Errorf("decode gpkg wkb: %w", err)
	}
	return g, srsID, nil
}

// Record returns row i of t as a column-name map. Spatial rows gain a WKT
// "geometry" entry and the "srid" of the table.
func Record(t *domain.Table, i int) map[string]any {
	rec := t.Record(i)
	if t.Spatial() && t.Geometries[i] != nil {
		rec["geometry"] = EncodeWKT(t.Geometries[i])
		rec["srid"] = t.CRS.SRID()
	}
	return rec
}
