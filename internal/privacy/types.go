package privacy

import (
	"errors"
	"fmt"
)

// EntityType identifies the kind of sensitive data a span contains.
type EntityType string

const (
	TypePersonName    EntityType = "PERSON_NAME"
	TypeDate          EntityType = "DATE"
	TypePhone         EntityType = "PHONE"
	TypeEmail         EntityType = "EMAIL"
	TypeAddress       EntityType = "ADDRESS"
	TypeSSN           EntityType = "SSN"
	TypeMRN           EntityType = "MRN"
	TypePassport      EntityType = "PASSPORT"
	TypeCreditCard    EntityType = "CREDIT_CARD"
	TypeIPAddress     EntityType = "IP_ADDRESS"
	TypeLocation      EntityType = "LOCATION"
	TypeMedicalRecord EntityType = "MEDICAL_RECORD"
	TypeInsuranceID   EntityType = "INSURANCE_ID"
	TypeVehicleID     EntityType = "VEHICLE_ID"
	TypeDeviceID      EntityType = "DEVICE_ID"
	TypeBankAccount   EntityType = "BANK_ACCOUNT"
	TypeOrganization  EntityType = "ORGANIZATION"
	TypeUsername      EntityType = "USERNAME"
	TypePassword      EntityType = "PASSWORD"
	TypeAPIKey        EntityType = "API_KEY"
	TypeGenericPII    EntityType = "GENERIC_PII"
)

// Severity ranks how damaging a leaked entity of this kind is.
type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// Rank returns the total order used by the overlap resolver: LOW < MEDIUM < HIGH.
// Unknown severities rank below LOW.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// Action is the transformation applied to a detected span.
type Action string

const (
	ActionRedact   Action = "REDACT"
	ActionMask     Action = "MASK"
	ActionHash     Action = "HASH"
	ActionTokenize Action = "TOKENIZE"
	ActionKeep     Action = "KEEP"
)

// Valid reports whether a is one of the five supported actions.
func (a Action) Valid() bool {
	switch a {
	case ActionRedact, ActionMask, ActionHash, ActionTokenize, ActionKeep:
		return true
	}
	return false
}

// Mode selects the de-identification strategy.
type Mode string

const (
	ModeSafeHarbor Mode = "SAFE_HARBOR"
	ModeRiskBased  Mode = "RISK_BASED"
)

// Valid reports whether m is a supported mode.
func (m Mode) Valid() bool {
	return m == ModeSafeHarbor || m == ModeRiskBased
}

// Policy selects the compliance profile a request runs under.
type Policy string

const (
	PolicyHIPAA      Policy = "HIPAA"
	PolicyGenericPII Policy = "GENERIC_PII"
	PolicyCustom     Policy = "CUSTOM"
)

// Valid reports whether p is a supported policy.
func (p Policy) Valid() bool {
	return p == PolicyHIPAA || p == PolicyGenericPII || p == PolicyCustom
}

// Entity is a detected span. Start and End are rune offsets into the original
// text forming the half-open range [Start, End). IDs are unique within a single
// detection run only.
type Entity struct {
	ID          string     `json:"entity_id"`
	Type        EntityType `json:"type"`
	Start       int        `json:"start"`
	End         int        `json:"end"`
	Confidence  float64    `json:"confidence"`
	Severity    Severity   `json:"severity"`
	Action      Action     `json:"action"`
	Replacement string     `json:"replacement"`
	Provenance  []string   `json:"provenance"`
	Notes       string     `json:"notes"`
}

// Length returns the span length in runes.
func (e Entity) Length() int { return e.End - e.Start }

// Overlaps reports whether two half-open spans intersect.
func (e Entity) Overlaps(other Entity) bool {
	return e.Start < other.End && e.End > other.Start
}

// entityNotes is attached to every reported entity. The raw matched value is
// never recorded anywhere in the output.
const entityNotes = "No raw value recorded."

// Options is the per-call configuration. It is a value: callers hand a copy to
// Deidentify and the pipeline never stores it, so concurrent calls with
// different options are safe on one shared Pipeline.
type Options struct {
	Mode          Mode   `json:"mode"`
	Policy        Policy `json:"policy"`
	DefaultAction Action `json:"default_action"`
	Reversible    bool   `json:"reversible"`
	Locale        string `json:"locale"`
}

// DefaultOptions returns the safe-harbor HIPAA defaults.
func DefaultOptions() Options {
	return Options{
		Mode:          ModeSafeHarbor,
		Policy:        PolicyHIPAA,
		DefaultAction: ActionRedact,
		Reversible:    false,
		Locale:        "en-US",
	}
}

// ErrInvalidConfig is returned when request options fail boundary validation.
var ErrInvalidConfig = errors.New("invalid de-identification options")

// ErrInvalidSpan is returned by the transformer for zero-length or
// out-of-range entity spans.
var ErrInvalidSpan = errors.New("invalid entity span")

// Validate rejects unrecognized mode, policy, or action values before any
// detection runs.
func (o Options) Validate() error {
	if !o.Mode.Valid() {
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, o.Mode)
	}
	if !o.Policy.Valid() {
		return fmt.Errorf("%w: unknown policy %q", ErrInvalidConfig, o.Policy)
	}
	if !o.DefaultAction.Valid() {
		return fmt.Errorf("%w: unknown action %q", ErrInvalidConfig, o.DefaultAction)
	}
	return nil
}
