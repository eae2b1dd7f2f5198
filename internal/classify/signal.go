package classify

type SignalTier string

const (
	SignalUnrated  SignalTier = "unrated"
	SignalGood     SignalTier = "good"
	SignalMarginal SignalTier = "marginal"
	SignalPoor     SignalTier = "poor"
)

// Band boundaries in dBm; each band is inclusive on its lower side.
const (
	GoodSignalFloor     = -23.0
	MarginalSignalFloor = -27.0
)

// SignalPower classifies a received optical power reading.
//
//	absent            -> unrated
//	power >= -23      -> good
//	-27 <= power < -23 -> marginal
//	power < -27       -> poor
func SignalPower(power *float64) SignalTier {
	if power == nil {
		return SignalUnrated
	}
	p := *power
	switch {
	case p >= GoodSignalFloor:
		return SignalGood
	case p >= MarginalSignalFloor:
		return SignalMarginal
	default:
		// NaN lands here too; a reading that is not a number is not good signal.
		return SignalPoor
	}
}

// IsLowSignal reports whether a reading falls in the poor band.
func IsLowSignal(power *float64) bool {
	return SignalPower(power) == SignalPoor
}

// Color is the table tag color of a tier.
func (t SignalTier) Color() string {
	switch t {
	case SignalGood:
		return "green"
	case SignalMarginal:
		return "orange"
	case SignalPoor:
		return "red"
	default:
		return "default"
	}
}

// PortUtilization returns used/total*100, unrounded. A zero total yields 0 and
// over-capacity records yield values above 100.
func PortUtilization(used, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(used) / float64(total) * 100
}
