// Package domain models environmental observations around the Shoal Creek
// watershed in Austin, Texas.
//
// # Sources
//
// Water-quality samples come from USGS NWIS, the EPA water-quality portal
// and the City of Austin. Stream discharge comes from the USGS
// instantaneous-value and daily-value services for gauge 08156800. Climate
// observations come from the NOAA LCD station at Camp Mabry (hourly FM-15
// and daily SOD reports).
//
// # Parameter taxonomy
//
// Providers label the same measurement many ways ("Turbidity", "TURBIDITY")
// and report it in many unit spellings ("mg/L", "MG/L", "mg/l as N"). The
// [Taxonomy] maps each raw name to one canonical parameter and accepts only
// the unit labels declared for it; the output unit is fixed per parameter.
// Matching is exact. Anything unmapped is dropped and counted, never guessed.
//
// # Values
//
// Raw values are kept verbatim. [ParseValue] yields nil for anything that is
// not a finite real number; nil values never contribute to statistics and
// are never replaced with zero.
//
// # Coordinates
//
// All exported layers use NAD83 / UTM zone 14N (EPSG:26914), so buffer
// distances are in meters. Provider coordinates arrive as WGS84 (EPSG:4326)
// and are reprojected during normalization.
package domain
