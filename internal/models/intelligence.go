package models

import "sort"

// IntelKind names one category of extracted intelligence.
type IntelKind string

const (
	IntelUPI          IntelKind = "upiIds"
	IntelBankAccount  IntelKind = "bankAccounts"
	IntelPhishingLink IntelKind = "phishingLinks"
	IntelPhone        IntelKind = "phoneNumbers"
	IntelKeyword      IntelKind = "suspiciousKeywords"
)

// IntelKinds lists every kind in a stable order.
var IntelKinds = []IntelKind{IntelUPI, IntelBankAccount, IntelPhishingLink, IntelPhone, IntelKeyword}

// HighValue reports whether items of this kind alone justify ending an engagement.
// Phone numbers are handed out early by scammers and are not conclusive.
func (k IntelKind) HighValue() bool {
	switch k {
	case IntelUPI, IntelBankAccount, IntelPhishingLink:
		return true
	default:
		return false
	}
}

// Intelligence maps each kind to a sorted set of normalized values.
type Intelligence map[IntelKind][]string

// NewIntelligence returns an empty record.
func NewIntelligence() Intelligence {
	return make(Intelligence)
}

// Add inserts normalized values of one kind, returning how many were new.
func (in Intelligence) Add(kind IntelKind, values ...string) int {
	if len(values) == 0 {
		return 0
	}
	existing := in[kind]
	seen := make(map[string]struct{}, len(existing)+len(values))
	for _, v := range existing {
		seen[v] = struct{}{}
	}
	added := 0
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		existing = append(existing, v)
		added++
	}
	if added > 0 {
		sort.Strings(existing)
		in[kind] = existing
	}
	return added
}

// Merge unions other into in and returns the number of values added.
func (in Intelligence) Merge(other Intelligence) int {
	added := 0
	for _, kind := range IntelKinds {
		added += in.Add(kind, other[kind]...)
	}
	return added
}

// Values returns a copy of the values for kind, never nil.
func (in Intelligence) Values(kind IntelKind) []string {
	out := make([]string, len(in[kind]))
	copy(out, in[kind])
	return out
}

// Has reports whether value is already recorded under kind.
func (in Intelligence) Has(kind IntelKind, value string) bool {
	vals := in[kind]
	i := sort.SearchStrings(vals, value)
	return i < len(vals) && vals[i] == value
}

// HasHighValue reports whether any UPI id, bank account or phishing link is present.
func (in Intelligence) HasHighValue() bool {
	for kind, vals := range in {
		if kind.HighValue() && len(vals) > 0 {
			return true
		}
	}
	return false
}

// Empty reports whether no values are recorded.
func (in Intelligence) Empty() bool {
	for _, vals := range in {
		if len(vals) > 0 {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (in Intelligence) Clone() Intelligence {
	out := make(Intelligence, len(in))
	for kind, vals := range in {
		cp := make([]string, len(vals))
		copy(cp, vals)
		out[kind] = cp
	}
	return out
}

// ExtractedIntelligence is the wire form grouped by kind.
type ExtractedIntelligence struct {
	BankAccounts       []string `json:"bankAccounts"`
	UPIIDs             []string `json:"upiIds"`
	PhishingLinks      []string `json:"phishingLinks"`
	PhoneNumbers       []string `json:"phoneNumbers"`
	SuspiciousKeywords []string `json:"suspiciousKeywords"`
}

// Wire converts the record to its grouped wire form.
func (in Intelligence) Wire() ExtractedIntelligence {
	return ExtractedIntelligence{
		BankAccounts:       in.Values(IntelBankAccount),
		UPIIDs:             in.Values(IntelUPI),
		PhishingLinks:      in.Values(IntelPhishingLink),
		PhoneNumbers:       in.Values(IntelPhone),
		SuspiciousKeywords: in.Values(IntelKeyword),
	}
}
