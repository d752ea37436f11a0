package routing

import "github.com/smartcity/dispatcher/internal/types"

// Well-known responder entities.
const (
	EntityTrafficPolice         types.EntityID = "traffic-police"
	EntityNationalPolice        types.EntityID = "national-police"
	EntityMunicipalPolice       types.EntityID = "municipal-police"
	EntityFireDepartment        types.EntityID = "fire-department"
	EntityVolunteerFirefighters types.EntityID = "volunteer-firefighters"
	EntityRedCross              types.EntityID = "red-cross"
)

// DefaultRules returns the built-in rule set. Longer, more specific patterns
// come before the patterns they contain so the ordered substring scan
// resolves to the most specific rule.
func DefaultRules() []Rule {
	return []Rule{
		// Traffic
		{Pattern: "EXCESO DE VELOCIDAD PELIGROSO", Entities: []types.EntityID{EntityTrafficPolice, EntityNationalPolice}},
		{Pattern: "EXCESO DE VELOCIDAD", Entities: []types.EntityID{EntityTrafficPolice}},
		{Pattern: "VELOCIDAD EXCESIVA DETECTADA", Entities: []types.EntityID{EntityTrafficPolice}},
		{Pattern: "VELOCIDAD SOBRE LÍMITE", Entities: []types.EntityID{EntityTrafficPolice}},
		{Pattern: "VELOCIDAD PELIGROSA RADAR", Entities: []types.EntityID{EntityTrafficPolice}},
		{Pattern: "ANOMALÍA DE TRÁFICO", Entities: []types.EntityID{EntityTrafficPolice}},

		// Fire and medical
		{Pattern: "INCENDIO REPORTADO POR CIUDADANO", Entities: []types.EntityID{EntityFireDepartment}},
		{Pattern: "INCENDIO REPORTADO", Entities: []types.EntityID{EntityFireDepartment}},
		{Pattern: "ACCIDENTE REPORTADO", Entities: []types.EntityID{EntityVolunteerFirefighters, EntityRedCross}},

		// Violence and public order
		{Pattern: "DISPARO DETECTADO", Entities: []types.EntityID{EntityNationalPolice}},
		{Pattern: "EXPLOSIÓN DETECTADA", Entities: []types.EntityID{EntityNationalPolice, EntityFireDepartment}},
		{Pattern: "VIDRIO ROTO DETECTADO", Entities: []types.EntityID{EntityNationalPolice}},
		{Pattern: "EMERGENCIA PERSONAL", Entities: []types.EntityID{EntityNationalPolice, EntityRedCross}},
		{Pattern: "EMERGENCIA GENERAL", Entities: []types.EntityID{EntityMunicipalPolice}},
		{Pattern: "ALTERCADO REPORTADO", Entities: []types.EntityID{EntityMunicipalPolice}},
		{Pattern: "RUIDO EXCESIVO", Entities: []types.EntityID{EntityMunicipalPolice}},
		{Pattern: "EVENTO CRÍTICO", Entities: []types.EntityID{EntityNationalPolice}},

		// Informative only
		{Pattern: "REGISTRO VEHICULAR", Entities: []types.EntityID{}},
		{Pattern: "CONTAMINACIÓN ACÚSTICA EXTREMA", Entities: []types.EntityID{}},
	}
}

// Default returns a Table built from DefaultRules.
func Default() *Table {
	t, err := NewTable(DefaultRules())
	if err != nil {
		panic("routing: built-in rules are invalid: " + err.Error())
	}
	return t
}
