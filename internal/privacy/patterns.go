package privacy

import (
	"regexp"
	"strings"
)

// Rule is one entry of the pattern library: an entity type, a matcher, and the
// base confidence and severity stamped on every candidate it produces. When the
// matcher defines a capturing group and the last matched group is non-empty,
// the group's span is reported instead of the whole match, so label prefixes
// like "MRN:" trigger detection without landing inside the recorded span.
// Validate, when set, filters matches the regex alone cannot reject (Go's RE2
// engine has no lookahead, so value-shape checks live here instead).
type Rule struct {
	Type       EntityType
	Pattern    *regexp.Regexp
	Confidence float64
	Severity   Severity
	Validate   func(match string) bool
}

var (
	ssnPattern = regexp.MustCompile(`\b\d{3}[-\s]?\d{2}[-\s]?\d{4}\b`)

	phonePattern = regexp.MustCompile(`\b(?:\+?1[-.\s]?)?(?:\(?\d{3}\)?[-.\s]?)?\d{3}[-.\s]?\d{4}\b`)

	emailPattern = regexp.MustCompile(`(?i)\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

	ipAddressPattern = regexp.MustCompile(
		`\b(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}` +
			`(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\b`)

	creditCardPattern = regexp.MustCompile(
		`\b(?:4[0-9]{12}(?:[0-9]{3})?|` +
			`5[1-5][0-9]{14}|` +
			`3[47][0-9]{13}|` +
			`6(?:011|5[0-9]{2})[0-9]{12}|` +
			`(?:2131|1800|35\d{3})\d{11})\b`)

	passportPattern = regexp.MustCompile(`\b[0-9]{9}\b`)

	datePattern = regexp.MustCompile(
		`\b(?:(?:0?[1-9]|1[0-2])[/-](?:0?[1-9]|[12][0-9]|3[01])[/-](?:19|20)?\d{2}|` +
			`(?:19|20)?\d{2}[/-](?:0?[1-9]|1[0-2])[/-](?:0?[1-9]|[12][0-9]|3[01]))\b`)

	dateVerbalPattern = regexp.MustCompile(
		`(?i)\b(?:January|February|March|April|May|June|July|August|September|October|` +
			`November|December)\s+\d{1,2},?\s+\d{4}\b`)

	personNameTitlePattern = regexp.MustCompile(
		`\b(?:Dr\.?|Mr\.?|Mrs\.?|Ms\.?|Doctor)\s+[A-Z][a-z]+(?:\s+[A-Z][a-z]+)+\b`)

	// Fallback for names without a title prefix (First Last form).
	personNameBasicPattern = regexp.MustCompile(`\b[A-Z][a-z]+\s+[A-Z][a-z]+\b`)

	mrnPattern = regexp.MustCompile(`(?i)\b(?:MRN|Medical\s*Record\s*#?\s*)[:#]?\s*([A-Z0-9-]{5,15})\b`)

	insuranceIDPattern = regexp.MustCompile(
		`(?i)\b(?:Policy|Policy\s*#|Member\s*ID|Insurance|Insurance\s*ID)[:#]?\s*` +
			`([A-Z0-9-]{6,12})\b`)

	vinPattern = regexp.MustCompile(`\b[A-HJ-NPR-Z0-9]{17}\b`)

	deviceIDPattern = regexp.MustCompile(`(?i)\b(?:Device|Device\s*ID)[:#]?\s*([A-Fa-f0-9-]{8,36})\b`)

	bankAccountPattern = regexp.MustCompile(
		`(?i)\b(?:Account|Account\s*#|Account\s*Number|Bank|Bank\s*Account)[:#]?\s*` +
			`([0-9]{8,17})\b`)

	apiKeyPattern = regexp.MustCompile(
		`(?i)\b(?:api[_-]?key|apikey|token|auth[_-]?token|access[_-]?key)[=:]\s*` +
			`([A-Za-z0-9_\-]{20,})\b`)

	passwordPattern = regexp.MustCompile(`(?i)\b(?:password|passwd|pwd)[=:]\s*([^\s]{4,})\b`)

	addressPattern = regexp.MustCompile(
		`(?i)\b\d{1,5}\s+(?:[A-Za-z]+\s+){1,4}(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|` +
			`Blvd|Drive|Dr|Lane|Ln|Court|Ct|Way|Place|Pl)\.?\b`)
)

// validSSN rejects number shapes the SSA never issues: area 000, 666, or 9xx,
// group 00, and serial 0000.
func validSSN(match string) bool {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, match)
	if len(digits) != 9 {
		return false
	}
	area, group, serial := digits[0:3], digits[3:5], digits[5:9]
	if area == "000" || area == "666" || area[0] == '9' {
		return false
	}
	if group == "00" || serial == "0000" {
		return false
	}
	return true
}

// defaultRules returns the pattern library in its fixed declaration order.
// Order is significant: it drives candidate numbering and, through the
// resolver's stable sort, tie-breaking among otherwise equal candidates.
func defaultRules() []Rule {
	return []Rule{
		{Type: TypeSSN, Pattern: ssnPattern, Confidence: 0.95, Severity: SeverityHigh, Validate: validSSN},
		{Type: TypePhone, Pattern: phonePattern, Confidence: 0.85, Severity: SeverityMedium},
		{Type: TypeEmail, Pattern: emailPattern, Confidence: 0.90, Severity: SeverityMedium},
		{Type: TypeIPAddress, Pattern: ipAddressPattern, Confidence: 0.85, Severity: SeverityMedium},
		{Type: TypeCreditCard, Pattern: creditCardPattern, Confidence: 0.90, Severity: SeverityHigh},
		{Type: TypePassport, Pattern: passportPattern, Confidence: 0.85, Severity: SeverityHigh},
		{Type: TypeDate, Pattern: datePattern, Confidence: 0.80, Severity: SeverityLow},
		{Type: TypeMRN, Pattern: mrnPattern, Confidence: 0.85, Severity: SeverityHigh},
		{Type: TypeInsuranceID, Pattern: insuranceIDPattern, Confidence: 0.80, Severity: SeverityHigh},
		{Type: TypeVehicleID, Pattern: vinPattern, Confidence: 0.85, Severity: SeverityMedium},
		{Type: TypeDeviceID, Pattern: deviceIDPattern, Confidence: 0.80, Severity: SeverityMedium},
		{Type: TypeBankAccount, Pattern: bankAccountPattern, Confidence: 0.80, Severity: SeverityHigh},
		{Type: TypeAPIKey, Pattern: apiKeyPattern, Confidence: 0.85, Severity: SeverityHigh},
		{Type: TypePassword, Pattern: passwordPattern, Confidence: 0.90, Severity: SeverityHigh},
		{Type: TypeAddress, Pattern: addressPattern, Confidence: 0.75, Severity: SeverityMedium},
	}
}

// dateRules are the two dedicated date matchers that run after the main table.
// The numeric one intentionally duplicates the table's DATE rule; duplicate
// spans are the resolver's problem, not the detector's.
func dateRules() []Rule {
	return []Rule{
		{Type: TypeDate, Pattern: datePattern, Confidence: 0.80, Severity: SeverityLow},
		{Type: TypeDate, Pattern: dateVerbalPattern, Confidence: 0.80, Severity: SeverityLow},
	}
}
