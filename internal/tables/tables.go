// Package tables derives the tabular and dashboard views from the same
// fetched collections the topology is built from. Status and signal colors
// come from package classify so tables and graph always agree.
package tables

import (
	"math"
	"strconv"

	"github.com/shopspring/decimal"

	"pontopology/internal/classify"
	"pontopology/internal/inventory"
)

const placeholder = "-"

// defaultOltModel is shown when the backend has no model on record.
const defaultOltModel = "C320"

type OnuRow struct {
	ID           int64               `json:"id" yaml:"id"`
	Serial       string              `json:"sn" yaml:"sn"`
	CustomerName string              `json:"customer_name" yaml:"customer_name"`
	Status       string              `json:"status" yaml:"status"`
	StatusTag    string              `json:"status_tag" yaml:"status_tag"`
	RxPower      string              `json:"rx_power" yaml:"rx_power"`
	SignalTier   classify.SignalTier `json:"signal_tier" yaml:"signal_tier"`
	SignalTag    string              `json:"signal_tag" yaml:"signal_tag"`
	TxPower      string              `json:"tx_power" yaml:"tx_power"`
	Distance     string              `json:"distance" yaml:"distance"`
	ServicePlan  string              `json:"service_plan" yaml:"service_plan"`
}

type OdpRow struct {
	ID            int64   `json:"id" yaml:"id"`
	Name          string  `json:"name" yaml:"name"`
	Code          string  `json:"code" yaml:"code"`
	SplitterRatio string  `json:"splitter_ratio" yaml:"splitter_ratio"`
	Ports         string  `json:"ports" yaml:"ports"`
	Utilization   float64 `json:"utilization" yaml:"utilization"`
	Status        string  `json:"status" yaml:"status"`
	StatusTag     string  `json:"status_tag" yaml:"status_tag"`
}

type OltRow struct {
	ID        int64  `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	IPAddress string `json:"ip_address" yaml:"ip_address"`
	Status    string `json:"status" yaml:"status"`
	StatusTag string `json:"status_tag" yaml:"status_tag"`
	Model     string `json:"model" yaml:"model"`
	Location  string `json:"location" yaml:"location"`
}

func OnuRows(onus []inventory.OnuRecord) []OnuRow {
	rows := make([]OnuRow, 0, len(onus))
	for _, o := range onus {
		tier := classify.SignalPower(o.RxPower)
		rows = append(rows, OnuRow{
			ID:           o.ID,
			Serial:       o.Serial,
			CustomerName: orPlaceholder(inventory.Deref(o.CustomerName, "")),
			Status:       o.Status,
			StatusTag:    classify.DeviceStatus(o.Status).Category.TagColor(),
			RxPower:      formatPower(o.RxPower),
			SignalTier:   tier,
			SignalTag:    tier.Color(),
			TxPower:      formatPower(o.TxPower),
			Distance:     formatDistance(o.Distance),
			ServicePlan:  orPlaceholder(inventory.Deref(o.ServicePlan, "")),
		})
	}
	return rows
}

func OdpRows(odps []inventory.OdpRecord) []OdpRow {
	rows := make([]OdpRow, 0, len(odps))
	for _, o := range odps {
		rows = append(rows, OdpRow{
			ID:            o.ID,
			Name:          o.Name,
			Code:          orPlaceholder(inventory.Deref(o.Code, "")),
			SplitterRatio: orPlaceholder(o.SplitterRatio),
			Ports:         strconv.Itoa(o.UsedPorts) + "/" + strconv.Itoa(o.TotalPorts),
			Utilization:   round2(classify.PortUtilization(o.UsedPorts, o.TotalPorts)),
			Status:        o.Status,
			StatusTag:     classify.OdpStatus(o.Status).Category.TagColor(),
		})
	}
	return rows
}

func OltRows(olts []inventory.OltRecord) []OltRow {
	rows := make([]OltRow, 0, len(olts))
	for _, o := range olts {
		rows = append(rows, OltRow{
			ID:        o.ID,
			Name:      o.Name,
			IPAddress: o.IPAddress,
			Status:    o.Status,
			StatusTag: classify.DeviceStatus(o.Status).Category.TagColor(),
			Model:     inventory.Deref(o.Model, defaultOltModel),
			Location:  orPlaceholder(inventory.Deref(o.Location, "")),
		})
	}
	return rows
}

// round2 rounds half away from zero to two decimals.
func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func formatPower(p *float64) string {
	if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) {
		return placeholder
	}
	return decimal.NewFromFloat(*p).StringFixed(2)
}

func formatDistance(d *int) string {
	if d == nil || *d == 0 {
		return placeholder
	}
	return strconv.Itoa(*d)
}

func orPlaceholder(s string) string {
	if s == "" {
		return placeholder
	}
	return s
}
