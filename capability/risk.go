package capability

// RiskLevel represents the safety risk of letting a plugin drive a capability.
type RiskLevel int

const (
	RiskNone RiskLevel = iota
	RiskLow
	RiskMedium
	RiskHigh
	RiskCritical
)

func (l RiskLevel) String() string {
	switch l {
	case RiskNone:
		return "none"
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	case RiskCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// RiskReport contains the overall risk assessment for a set of capability kinds.
type RiskReport struct {
	RiskFactors []RiskFactor
	Level       RiskLevel
}

// RiskFactor describes a single risk element.
type RiskFactor struct {
	Description string
	Kind        Kind
	Level       RiskLevel
}

var kindRisk = map[Kind]RiskFactor{
	KindGamepad:               {Level: RiskNone, Description: "Reads operator input"},
	KindLocalization:          {Level: RiskNone, Description: "Reads the robot pose"},
	KindTransformResolver:     {Level: RiskNone, Description: "Reads frame transforms"},
	KindSpeaker:               {Level: RiskLow, Description: "Makes announcements"},
	KindNavigation:            {Level: RiskMedium, Description: "Sends the robot to goal poses"},
	KindMoveBase:              {Level: RiskHigh, Description: "Drives the mobile base"},
	KindJointTrajectoryClient: {Level: RiskHigh, Description: "Moves robot joints"},
}

// RiskOf returns the risk factor of a single kind. Unknown kinds are critical.
func RiskOf(kind Kind) RiskFactor {
	f, ok := kindRisk[kind]
	if !ok {
		return RiskFactor{Kind: kind, Level: RiskCritical, Description: "Unknown capability kind"}
	}
	f.Kind = kind
	return f
}

// AnalyzeRisk evaluates the risk level of a set of kinds.
func AnalyzeRisk(kinds ...Kind) RiskReport {
	report := RiskReport{Level: RiskNone}
	for _, k := range kinds {
		f := RiskOf(k)
		if f.Level == RiskNone {
			continue
		}
		report.RiskFactors = append(report.RiskFactors, f)
		if f.Level > report.Level {
			report.Level = f.Level
		}
	}
	return report
}
