package tables

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"pontopology/internal/classify"
	"pontopology/internal/inventory"
)

type DeviceCounts struct {
	Total   int `json:"total" yaml:"total"`
	Online  int `json:"online" yaml:"online"`
	Offline int `json:"offline" yaml:"offline"`
}

type OdpCounts struct {
	Total  int `json:"total" yaml:"total"`
	Active int `json:"active" yaml:"active"`
}

type Stats struct {
	OLTs DeviceCounts `json:"olts" yaml:"olts"`
	ONUs DeviceCounts `json:"onus" yaml:"onus"`
	ODPs OdpCounts    `json:"odps" yaml:"odps"`
	// PortUtilization is sum(used)/sum(total)*100 over all ODPs, two decimals.
	PortUtilization float64 `json:"port_utilization" yaml:"port_utilization"`
}

// HighUtilization is the percentage above which dashboards flag capacity.
const HighUtilization = 80

func DashboardStats(c inventory.Collections) Stats {
	var s Stats
	for _, o := range c.OLTs {
		countDevice(&s.OLTs, o.Status)
	}
	for _, o := range c.ONUs {
		countDevice(&s.ONUs, o.Status)
	}

	used, total := decimal.Zero, decimal.Zero
	for _, o := range c.ODPs {
		s.ODPs.Total++
		if classify.OdpStatus(o.Status).Category == classify.Positive {
			s.ODPs.Active++
		}
		used = used.Add(decimal.NewFromInt(int64(o.UsedPorts)))
		total = total.Add(decimal.NewFromInt(int64(o.TotalPorts)))
	}
	if total.IsPositive() {
		s.PortUtilization = used.Div(total).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
	}
	return s
}

func countDevice(d *DeviceCounts, status string) {
	d.Total++
	switch classify.DeviceStatus(status).Category {
	case classify.Positive:
		d.Online++
	case classify.Negative:
		d.Offline++
	}
}

type AlertType string

const (
	AlertError   AlertType = "error"
	AlertWarning AlertType = "warning"
)

type Alert struct {
	Type    AlertType `json:"type" yaml:"type"`
	Title   string    `json:"title" yaml:"title"`
	Message string    `json:"message" yaml:"message"`
}

// Alerts lists one error per offline OLT, then a warning with the number of
// offline ONUs and one with the number of ONUs in the poor signal band.
func Alerts(c inventory.Collections) []Alert {
	alerts := []Alert{}
	for _, o := range c.OLTs {
		if classify.DeviceStatus(o.Status).Category == classify.Negative {
			alerts = append(alerts, Alert{
				Type:    AlertError,
				Title:   "OLT Offline",
				Message: fmt.Sprintf("OLT %s is offline", o.Name),
			})
		}
	}

	var offline, low int
	for _, o := range c.ONUs {
		if classify.DeviceStatus(o.Status).Category == classify.Negative {
			offline++
		}
		if classify.IsLowSignal(o.RxPower) {
			low++
		}
	}
	if offline > 0 {
		alerts = append(alerts, Alert{
			Type:    AlertWarning,
			Title:   "Offline ONUs",
			Message: fmt.Sprintf("%d ONUs are offline", offline),
		})
	}
	if low > 0 {
		alerts = append(alerts, Alert{
			Type:    AlertWarning,
			Title:   "Low Signal ONUs",
			Message: fmt.Sprintf("%d ONUs have low signal strength", low),
		})
	}
	return alerts
}

// Table kinds accepted by Rows.
const (
	KindOLTs = "olts"
	KindODPs = "odps"
	KindONUs = "onus"
)

// Rows returns the rows of one table kind.
func Rows(kind string, c inventory.Collections) (any, error) {
	switch strings.ToLower(kind) {
	case KindOLTs:
		return OltRows(c.OLTs), nil
	case KindODPs:
		return OdpRows(c.ODPs), nil
	case KindONUs:
		return OnuRows(c.ONUs), nil
	default:
		return nil, fmt.Errorf("unknown table %q (want %s, %s or %s)", kind, KindOLTs, KindODPs, KindONUs)
	}
}
