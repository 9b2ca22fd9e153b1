package app

import (
	"context"
	"testing"

	"backoffice_notifier/internal/domain/operator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTag(t *testing.T) {
	cases := map[string]string{
		"TECNICO_SW":      "TECNICO_SW",
		"TECNICO SW":      "TECNICO_SW",
		"tecnico-sw":      "TECNICO_SW",
		" Tecnico  Sw ":   "TECNICO_SW",
		"TECNICO_HW":      "TECNICO_HW",
		"FATTURAZIONE":    "BILLING",
		"fatturazione":    "BILLING",
		"Billing":         "BILLING",
		"AMMINISTRATIVO":  "AMMINISTRAZIONE",
		"amministrazione": "AMMINISTRAZIONE",
		"RESPONSABILE":    "SUPERVISOR",
		"COMMERCIALE":     "COMMERCIALE",
		"":                TagGeneric,
		"   ":             TagGeneric,
		"SOMETHING_ELSE":  TagGeneric,
		"generica":        TagGeneric,
	}
	for input, want := range cases {
		assert.Equal(t, want, NormalizeTag(input), "input %q", input)
	}
}

func TestResolveDeduplicatesLowercasesAndSorts(t *testing.T) {
	ops := []*operator.Operator{
		{ID: 1, Email: "Zoe@Example.com", Role: "TECNICO_SW", Active: true, NotifyOptIn: true},
		{ID: 2, Email: "zoe@example.com", Role: "TECNICO SW", Active: true, NotifyOptIn: true},
		{ID: 3, Email: "adam@example.com", Role: "tecnico-sw", Active: true, NotifyOptIn: true},
		{ID: 4, Email: "not-an-address", Role: "TECNICO_SW", Active: true, NotifyOptIn: true},
	}
	r := NewRecipientResolver(&fakeOperators{ops: ops})

	got, err := r.Resolve(context.Background(), "TECNICO_SW")
	require.NoError(t, err)
	assert.Equal(t, []string{"adam@example.com", "zoe@example.com"}, got)
}

func TestResolveExcludesOptedOutAndInactive(t *testing.T) {
	ops := []*operator.Operator{
		{ID: 1, Email: "in@example.com", Role: "COMMERCIALE", Active: true, NotifyOptIn: true},
		{ID: 2, Email: "optout@example.com", Role: "COMMERCIALE", Active: true, NotifyOptIn: false},
		{ID: 3, Email: "gone@example.com", Role: "COMMERCIALE", Active: false, NotifyOptIn: true},
		{ID: 4, Email: "system@example.com", Role: "COMMERCIALE", Active: true, NotifyOptIn: true, System: true},
	}
	r := NewRecipientResolver(&fakeOperators{ops: ops})

	got, err := r.Resolve(context.Background(), "COMMERCIALE")
	require.NoError(t, err)
	assert.Equal(t, []string{"in@example.com"}, got)
}

func TestResolveExcludesOtherAudiences(t *testing.T) {
	ops := []*operator.Operator{
		{ID: 1, Email: "sw@example.com", Role: "TECNICO_SW", Active: true, NotifyOptIn: true},
		{ID: 2, Email: "hw@example.com", Role: "TECNICO_HW", Active: true, NotifyOptIn: true},
	}
	r := NewRecipientResolver(&fakeOperators{ops: ops})

	got, err := r.Resolve(context.Background(), "TECNICO_HW")
	require.NoError(t, err)
	assert.Equal(t, []string{"hw@example.com"}, got)
}

func TestResolveUnknownTagFallsBackToGenericAudience(t *testing.T) {
	ops := []*operator.Operator{
		{ID: 1, Email: "anyone@example.com", Role: "GENERICA", Active: true, NotifyOptIn: true},
		{ID: 2, Email: "sw@example.com", Role: "TECNICO_SW", Active: true, NotifyOptIn: true},
	}
	r := NewRecipientResolver(&fakeOperators{ops: ops})

	got, err := r.Resolve(context.Background(), "MYSTERY_TEAM")
	require.NoError(t, err)
	assert.Equal(t, []string{"anyone@example.com"}, got)
}

func TestResolveDeterministicAcrossCalls(t *testing.T) {
	ops := []*operator.Operator{
		{ID: 1, Email: "c@example.com", Role: "GENERICA", Active: true, NotifyOptIn: true},
		{ID: 2, Email: "a@example.com", Role: "GENERICA", Active: true, NotifyOptIn: true},
		{ID: 3, Email: "b@example.com", Role: "GENERICA", Active: true, NotifyOptIn: true},
	}
	r := NewRecipientResolver(&fakeOperators{ops: ops})

	first, err := r.Resolve(context.Background(), "GENERICA")
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := r.Resolve(context.Background(), "GENERICA")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, []string{"a@example.com", "b@example.com", "c@example.com"}, first)
}
