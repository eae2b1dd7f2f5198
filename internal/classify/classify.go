// Package classify maps raw device/link state and optical power readings to
// the discrete categories shared by the topology graph and the tabular views.
// Every function here is total: unknown or absent input has a defined result.
package classify

import "strings"

type Category string

const (
	Positive Category = "positive"
	Negative Category = "negative"
	Neutral  Category = "neutral"
)

// Classification is a style category plus its display weight. Weights order
// categories by urgency so renderers can emphasize faults.
type Classification struct {
	Category    Category `json:"category" yaml:"category"`
	ColorWeight int      `json:"colorWeight" yaml:"colorWeight"`
}

const (
	weightNeutral  = 1
	weightPositive = 2
	weightNegative = 3
)

func classification(c Category) Classification {
	switch c {
	case Positive:
		return Classification{Category: Positive, ColorWeight: weightPositive}
	case Negative:
		return Classification{Category: Negative, ColorWeight: weightNegative}
	default:
		return Classification{Category: Neutral, ColorWeight: weightNeutral}
	}
}

// DeviceStatus classifies an OLT or ONU status: online is positive, offline
// negative, anything else (unknown, empty, vendor states like "los") neutral.
func DeviceStatus(status string) Classification {
	switch normalize(status) {
	case "online":
		return classification(Positive)
	case "offline":
		return classification(Negative)
	default:
		return classification(Neutral)
	}
}

// OdpStatus classifies an ODP: active is positive, everything else neutral.
func OdpStatus(status string) Classification {
	if normalize(status) == "active" {
		return classification(Positive)
	}
	return classification(Neutral)
}

// CableStatus classifies a cable route: active positive, damaged negative.
func CableStatus(status string) Classification {
	switch normalize(status) {
	case "active":
		return classification(Positive)
	case "damaged":
		return classification(Negative)
	default:
		return classification(Neutral)
	}
}

// Color is the renderer fill for a category.
func (c Category) Color() string {
	switch c {
	case Positive:
		return "#52c41a"
	case Negative:
		return "#ff4d4f"
	default:
		return "#8c8c8c"
	}
}

// TagColor is the table tag color for a category.
func (c Category) TagColor() string {
	switch c {
	case Positive:
		return "green"
	case Negative:
		return "red"
	default:
		return "default"
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
