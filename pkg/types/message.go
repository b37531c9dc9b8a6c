package types

import "fmt"

// Severity grades a polygon message.
type Severity int

// Message severities.
const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// MessageKind is a stable code identifying what a message reports.
type MessageKind string

// Message kinds.
const (
	MsgNoLeadingSpecies       MessageKind = "NO_LEADING_SPECIES"
	MsgNonProductiveNoSpecies MessageKind = "NON_PRODUCTIVE_NO_SPECIES"
	MsgModelFallback          MessageKind = "MODEL_FALLBACK"
	MsgStageFailed            MessageKind = "STAGE_FAILED"
	MsgStratumNotProjected    MessageKind = "STRATUM_NOT_PROJECTED"
	MsgProjectionSkipped      MessageKind = "PROJECTION_SKIPPED"
	MsgLayerNotProjected      MessageKind = "LAYER_NOT_PROJECTED"
	MsgPolygonFailed          MessageKind = "POLYGON_FAILED"
)

// Message is one note recorded against a polygon, optionally scoped to a
// stratum.
type Message struct {
	Severity Severity    `json:"severity" yaml:"severity"`
	Kind     MessageKind `json:"kind" yaml:"kind"`
	Stratum  Stratum     `json:"stratum" yaml:"stratum"`
	Text     string      `json:"text" yaml:"text"`
}

func (m Message) String() string {
	if m.Stratum == StratumUnknown {
		return fmt.Sprintf("%s %s: %s", m.Severity, m.Kind, m.Text)
	}
	return fmt.Sprintf("%s %s [%s]: %s", m.Severity, m.Kind, m.Stratum, m.Text)
}
