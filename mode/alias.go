package mode

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/vidpipe/video"
)

// Alias is a user rule substituting one resolution for another before mode
// lookup. A capture of From is treated as if the hardware had reported To.
type Alias struct {
	From video.Resolution
	To   video.Resolution
}

// AliasTable is an ordered collection of alias rules. Resolution scans the
// rules in stored order and the first matching From wins; later duplicates
// of the same From are dead entries and are reported as validation warnings
// rather than rejected.
type AliasTable struct {
	aliases []Alias
}

// NewAliasTable creates an empty alias table.
func NewAliasTable() *AliasTable {
	return &AliasTable{}
}

// Resolve returns the effective resolution for the given captured
// resolution: the To of the first alias whose From matches, or the captured
// resolution unmodified if no alias matches. Resolving is idempotent in the
// sense that repeated calls with the same input yield the same output; the
// result is not itself re-resolved.
func (t *AliasTable) Resolve(r video.Resolution) video.Resolution {
	for _, a := range t.aliases {
		if a.From == r {
			return a.To
		}
	}
	return r
}

// Add appends an alias rule. If the From resolution is already covered by an
// earlier rule the new rule can never match; this is logged as a
// configuration warning but the rule is kept, preserving the table exactly
// as the user defined it.
func (t *AliasTable) Add(a Alias) {
	for _, existing := range t.aliases {
		if existing.From == a.From {
			logrus.WithFields(logrus.Fields{
				"function": "AliasTable.Add",
				"from":     a.From.String(),
				"existing": existing.To.String(),
				"shadowed": a.To.String(),
			}).Warn("Duplicate alias source resolution; earlier rule wins")
			break
		}
	}
	t.aliases = append(t.aliases, a)
}

// Replace discards all rules and installs the given ones, logging a warning
// for any duplicate From keys. Used after a fully validated settings load.
func (t *AliasTable) Replace(aliases []Alias) {
	t.aliases = nil
	for _, a := range aliases {
		t.Add(a)
	}

	logrus.WithFields(logrus.Fields{
		"function": "AliasTable.Replace",
		"count":    len(aliases),
	}).Info("Alias table replaced")
}

// Reset removes all rules.
func (t *AliasTable) Reset() {
	t.aliases = nil
}

// Count returns the number of stored rules.
func (t *AliasTable) Count() int {
	return len(t.aliases)
}

// All returns the rules sorted by ascending pixel area of the target
// resolution, the ordering used for display and persistence. The table's
// own matching order is unaffected.
func (t *AliasTable) All() []Alias {
	out := append([]Alias(nil), t.aliases...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].To.Area() < out[j].To.Area()
	})
	return out
}
