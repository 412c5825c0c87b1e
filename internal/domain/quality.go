package domain

import "strings"

// QualityFlag is the provider-neutral vocabulary for measurement status.
type QualityFlag string

const (
	QualityUnknown       QualityFlag = ""
	QualityProvisional   QualityFlag = "provisional"
	QualityEstimated     QualityFlag = "estimated"
	QualityApproved      QualityFlag = "approved"
	QualityRevised       QualityFlag = "revised"
	QualityLessThan      QualityFlag = "less_than_reported"
	QualityGreaterThan   QualityFlag = "greater_than_reported"
	QualityNotApplicable QualityFlag = "not_applicable"
)

// qualityCodes covers USGS instantaneous-value codes and the free-text
// status labels used by the water-quality portals.
var qualityCodes = map[string]QualityFlag{
	"p":           QualityProvisional,
	"provisional": QualityProvisional,
	"preliminary": QualityProvisional,
	"e":           QualityEstimated,
	"estimated":   QualityEstimated,
	"a":           QualityApproved,
	"a:e":         QualityApproved,
	"approved":    QualityApproved,
	"accepted":    QualityApproved,
	"final":       QualityApproved,
	"historical":  QualityApproved,
	"r":           QualityRevised,
	"revised":     QualityRevised,
	"<":           QualityLessThan,
	">":           QualityGreaterThan,
	"n/a":         QualityNotApplicable,
}

// NormalizeQualityFlag maps a provider code to the shared vocabulary.
// Unrecognized codes map to QualityUnknown.
func NormalizeQualityFlag(code string) QualityFlag {
	return qualityCodes[strings.ToLower(strings.TrimSpace(code))]
}

// Label is the human-readable form used in exported layers.
func (q QualityFlag) Label() string {
	switch q {
	case QualityProvisional:
		return "Provisional"
	case QualityEstimated:
		return "Estimated"
	case QualityApproved:
		return "Approved"
	case QualityRevised:
		return "Revised"
	case QualityLessThan:
		return "Less than reported"
	case QualityGreaterThan:
		return "Greater than reported"
	case QualityNotApplicable:
		return "Not applicable"
	default:
		return ""
	}
}
