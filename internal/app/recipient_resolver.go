package app

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"backoffice_notifier/internal/domain/operator"
)

// TagGeneric is the default audience tag. Empty or unrecognized tags
// normalize to it.
const TagGeneric = "GENERICA"

var canonicalTags = map[string]bool{
	TagGeneric:        true,
	"TECNICO_SW":      true,
	"TECNICO_HW":      true,
	"COMMERCIALE":     true,
	"AMMINISTRAZIONE": true,
	"SUPERVISOR":      true,
	"BILLING":         true,
}

// tagAliases folds historical spellings onto their canonical tag. Separator
// variants ("TECNICO SW", "TECNICO-SW") are already folded by NormalizeTag
// before this map is consulted.
var tagAliases = map[string]string{
	"TECNICOSW":     "TECNICO_SW",
	"TECNICOHW":     "TECNICO_HW",
	"AMMINISTRATIVO": "AMMINISTRAZIONE",
	"FATTURAZIONE":  "BILLING",
	"RESPONSABILE":  "SUPERVISOR",
}

// NormalizeTag maps an audience tag to its canonical form: uppercased,
// separator variants folded to underscores, known synonyms collapsed, and
// anything unrecognized mapped to the generic default tag.
func NormalizeTag(tag string) string {
	t := strings.ToUpper(strings.TrimSpace(tag))
	t = strings.Join(strings.FieldsFunc(t, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_'
	}), "_")
	if alias, ok := tagAliases[strings.ReplaceAll(t, "_", "")]; ok {
		t = alias
	}
	if !canonicalTags[t] {
		return TagGeneric
	}
	return t
}

// RecipientResolver maps an audience tag to the addresses of the active,
// opted-in operators whose normalized role matches it.
type RecipientResolver struct {
	operators operator.Repository
}

func NewRecipientResolver(operators operator.Repository) *RecipientResolver {
	return &RecipientResolver{operators: operators}
}

// Resolve returns the deduplicated, lower-cased, sorted address set for the
// audience tag. Addresses without "@" are dropped.
func (r *RecipientResolver) Resolve(ctx context.Context, target string) ([]string, error) {
	want := NormalizeTag(target)

	ops, err := r.operators.ListActiveOptedIn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list audience members: %w", err)
	}

	set := make(map[string]struct{})
	for _, op := range ops {
		if NormalizeTag(op.Role) != want {
			continue
		}
		addr := strings.ToLower(strings.TrimSpace(op.Email))
		if !strings.Contains(addr, "@") {
			continue
		}
		set[addr] = struct{}{}
	}

	addresses := make([]string, 0, len(set))
	for addr := range set {
		addresses = append(addresses, addr)
	}
	sort.Strings(addresses)
	return addresses, nil
}
