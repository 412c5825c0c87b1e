package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaxonomyCanonicalize(t *testing.T) {
	tax := DefaultTaxonomy()

	tests := []struct {
		name    string
		rawName string
		rawUnit string
		want    Resolution
		wantErr error
	}{
		{"usgs turbidity", "Turbidity", "NTU", Resolution{ParamTurbidity, "NTU"}, nil},
		{"coa turbidity", "TURBIDITY", "None", Resolution{ParamTurbidity, "NTU"}, nil},
		{"retired nitrate label", "Inorganic nitrogen (nitrate and nitrite) ***retired***use Nitrate + Nitrite", "mg/l as N", Resolution{ParamNitrates, "mg/l"}, nil},
		{"temperature", "Temperature, water", "deg C", Resolution{ParamTemperature, "deg. C"}, nil},
		{"coliform", "Escherichia coli", "MPN/100ML", Resolution{ParamEcoli, "cfu/100ml"}, nil},
		{"case sensitive name", "turbidity", "NTU", Resolution{}, ErrUnresolvedParameter},
		{"trailing whitespace", "Turbidity ", "NTU", Resolution{}, ErrUnresolvedParameter},
		{"unknown name", "Dissolved oxygen", "mg/L", Resolution{}, ErrUnresolvedParameter},
		{"unknown unit", "Turbidity", "FNU", Resolution{}, ErrUnresolvedUnit},
		{"unit of another parameter", "pH", "mg/L", Resolution{}, ErrUnresolvedUnit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tax.Canonicalize(tt.rawName, tt.rawUnit)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTaxonomyRoundTrip(t *testing.T) {
	tax := DefaultTaxonomy()
	for _, p := range tax.Parameters() {
		names, units, ok := tax.Variants(p)
		require.True(t, ok, p)
		canonical, _ := tax.Unit(p)
		for _, n := range names {
			for _, u := range units {
				res, err := tax.Canonicalize(n, u)
				require.NoError(t, err, "%s / %s", n, u)
				assert.Equal(t, p, res.Parameter)
				assert.Equal(t, canonical, res.Unit)
			}
		}
	}
}

func TestTaxonomyParametersOrder(t *testing.T) {
	tax := DefaultTaxonomy()
	assert.Equal(t, []string{
		ParamTemperature, ParamPhosphorus, ParamNitrates, ParamPH, ParamAmmonia,
		ParamTurbidity, ParamConductivity, ParamTSS, ParamTDS, ParamEcoli,
	}, tax.Parameters())

	names, _, _ := tax.Variants(ParamPhosphorus)
	assert.Len(t, names, 5, "duplicate variants are collapsed")
}

func TestNewTaxonomyRejectsSharedRawName(t *testing.T) {
	_, err := NewTaxonomy([]ParameterSpec{
		{Name: "a", Unit: "u", Names: []string{"X"}, Units: []string{"u"}},
		{Name: "b", Unit: "u", Names: []string{"X"}, Units: []string{"u"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"X"`)
}

func TestResolve(t *testing.T) {
	tax := DefaultTaxonomy()
	obs := []Observation{
		{RawParameter: "Turbidity", RawUnit: "NTU", RawValue: "4.5"},
		{RawParameter: "TURBIDITY", RawUnit: "None", RawValue: "n/a"},
		{RawParameter: "Dissolved oxygen", RawUnit: "mg/L", RawValue: "8"},
		{RawParameter: "pH", RawUnit: "FNU", RawValue: "7"},
		{RawParameter: "pH", RawUnit: "None", Value: Float(7.2)},
	}

	kept, dropped := Resolve(obs, tax)

	require.Len(t, kept, 2)
	assert.Equal(t, ParamTurbidity, kept[0].Parameter)
	assert.Equal(t, 4.5, *kept[0].Value)
	assert.Equal(t, ParamPH, kept[1].Parameter)
	assert.Equal(t, "standard units", kept[1].Unit)
	assert.Equal(t, map[DropReason]int{
		DropUnparsableValue:     1,
		DropUnresolvedParameter: 1,
		DropUnresolvedUnit:      1,
	}, dropped)
}

func TestReasonFor(t *testing.T) {
	assert.Equal(t, DropUnresolvedUnit, ReasonFor(errors.Join(errors.New("ctx"), ErrUnresolvedUnit)))
	assert.Equal(t, DropOther, ReasonFor(errors.New("boom")))
}
