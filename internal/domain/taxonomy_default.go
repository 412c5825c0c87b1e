package domain

// Canonical parameter names of the watershed taxonomy.
const (
	ParamTemperature  = "temperature"
	ParamPhosphorus   = "phosphorus"
	ParamNitrates     = "nitrates"
	ParamPH           = "ph"
	ParamAmmonia      = "ammonia"
	ParamTurbidity    = "turbidity"
	ParamConductivity = "conductivity"
	ParamTSS          = "tss"
	ParamTDS          = "tds"
	ParamEcoli        = "ecoli"
)

// DefaultSpecs lists the water-quality parameters reported by USGS NWIS,
// the EPA portal and the City of Austin, including retired labels still
// present in historical samples.
func DefaultSpecs() []ParameterSpec {
	return []ParameterSpec{
		{
			Name:  ParamTemperature,
			Unit:  "deg. C",
			Names: []string{"Temperature, water", "Temperature, sample", "WATER TEMPERATURE"},
			Units: []string{"deg C", "Deg. Celsius"},
		},
		{
			Name: ParamPhosphorus,
			Unit: "mg/l",
			Names: []string{
				"PHOSPHORUS AS P", "ORTHOPHOSPHORUS AS P", "Orthophosphate",
				"PHOSPHATE AS PO4", "Phosphorus",
			},
			Units: []string{"mg/L", "mg/l as P", "mg/l asPO4", "MG/L", "mg/l", "mg/l PO4"},
		},
		{
			Name: ParamNitrates,
			Unit: "mg/l",
			Names: []string{
				"NITRATE/NITRITE AS N", "NITRATE AS N", "Nitrate",
				"Nitrogen, mixed forms (NH3), (NH4), organic, (NO2) and (NO3)",
				"Organic Nitrogen",
				"Inorganic nitrogen (nitrate and nitrite)",
				"Inorganic nitrogen (nitrate and nitrite) ***retired***use Nitrate + Nitrite",
			},
			Units: []string{"mg/l as N", "mg/L", "mg/l asNO3", "MG/L", "mg/l asNO2", "mg/l NO3", "mg/l"},
		},
		{
			Name:  ParamPH,
			Unit:  "standard units",
			Names: []string{"PH", "pH"},
			Units: []string{"std units", "Standard units", "None"},
		},
		{
			Name:  ParamAmmonia,
			Unit:  "mg/l",
			Names: []string{"Ammonia and ammonium", "AMMONIA AS N", "Ammonia"},
			Units: []string{"mg/L", "MG/L", "mg/l NH4", "mg/l as N"},
		},
		{
			Name:  ParamTurbidity,
			Unit:  "NTU",
			Names: []string{"Turbidity", "TURBIDITY"},
			Units: []string{"NTU", "None"},
		},
		{
			Name:  ParamConductivity,
			Unit:  "uS/cm",
			Names: []string{"Specific conductance", "CONDUCTIVITY"},
			Units: []string{"uS/cm", "uS/cm @25C"},
		},
		{
			Name:  ParamTSS,
			Unit:  "mg/L",
			Names: []string{"Total suspended solids", "TOTAL SUSPENDED SOLIDS"},
			Units: []string{"mg/L", "Parts Per Million (PPM)", "MG/L", "mg/l"},
		},
		{
			Name:  ParamTDS,
			Unit:  "mg/L",
			Names: []string{"TOTAL DISSOLVED SOLIDS", "Total dissolved solids"},
			Units: []string{"MG/L", "Parts Per Million (PPM)", "mg/L", "mg/l"},
		},
		{
			Name: ParamEcoli,
			Unit: "cfu/100ml",
			Names: []string{
				"E COLI BACTERIA", "FECAL COLIFORM BACTERIA", "Fecal Coliform",
				"Escherichia coli", "Total Coliform",
			},
			Units: []string{"MPN/100ML", "Colonies/100mL", "#/100mL", "cfu/100ml"},
		},
	}
}

// DefaultTaxonomy builds the watershed taxonomy. The specs are static, so a
// construction error is a programming mistake.
func DefaultTaxonomy() *Taxonomy {
	t, err := NewTaxonomy(DefaultSpecs())
	if err != nil {
		panic(err)
	}
	return t
}
