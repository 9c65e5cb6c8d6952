package metrics

import "strings"

// Status is one of the values apcupsd reports in the STATUS field.
type Status int

const (
	StatusCal Status = iota
	StatusTrim
	StatusBoost
	StatusOnline
	StatusOnBatt
	StatusOverload
	StatusLowBatt
	StatusReplaceBatt
	StatusNoBatt
	StatusSlave
	StatusSlaveDown
	StatusCommLost
	StatusShuttingDown

	numStatuses
)

// statusTokens maps each Status to the exact string apcupsd sends.
// Every Status below numStatuses must have an entry.
var statusTokens = [numStatuses]string{
	StatusCal:          "CAL",
	StatusTrim:         "TRIM",
	StatusBoost:        "BOOST",
	StatusOnline:       "ONLINE",
	StatusOnBatt:       "ONBATT",
	StatusOverload:     "OVERLOAD",
	StatusLowBatt:      "LOWBATT",
	StatusReplaceBatt:  "REPLACEBATT",
	StatusNoBatt:       "NOBATT",
	StatusSlave:        "SLAVE",
	StatusSlaveDown:    "SLAVEDOWN",
	StatusCommLost:     "COMMLOST",
	StatusShuttingDown: "SHUTTING DOWN",
}

// Statuses returns every known Status in label order.
func Statuses() []Status {
	out := make([]Status, numStatuses)
	for i := range out {
		out[i] = Status(i)
	}
	return out
}

// String returns the token as sent by apcupsd.
func (s Status) String() string {
	if s < 0 || s >= numStatuses {
		return "UNKNOWN"
	}
	return statusTokens[s]
}

// Label returns the token with whitespace removed, for use as a label value.
func (s Status) Label() string {
	return strings.Join(strings.Fields(s.String()), "")
}

// ParseStatus returns the Status whose token equals v. Values outside the
// known set report false; callers treat them as "no known status".
func ParseStatus(v string) (Status, bool) {
	for i, tok := range statusTokens {
		if tok == v {
			return Status(i), true
		}
	}
	return 0, false
}
