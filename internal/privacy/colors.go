package privacy

// entityColors maps each entity type to the highlight color used by rendering
// layers. Unknown types fall back to the GENERIC_PII gray.
var entityColors = map[EntityType]string{
	TypePersonName:    "#FFE082",
	TypeDate:          "#4DB6AC",
	TypePhone:         "#CE93D8",
	TypeEmail:         "#CE93D8",
	TypeAddress:       "#81C784",
	TypeSSN:           "#EF5350",
	TypeMRN:           "#EF5350",
	TypePassport:      "#EF5350",
	TypeCreditCard:    "#EF5350",
	TypeIPAddress:     "#EF5350",
	TypeLocation:      "#81C784",
	TypeMedicalRecord: "#EF5350",
	TypeInsuranceID:   "#EF5350",
	TypeVehicleID:     "#FFB74D",
	TypeDeviceID:      "#90CAF9",
	TypeBankAccount:   "#EF5350",
	TypeOrganization:  "#F48FB1",
	TypeUsername:      "#B39DDB",
	TypePassword:      "#FF5722",
	TypeAPIKey:        "#FF5722",
	TypeGenericPII:    "#BDBDBD",
}

const fallbackColor = "#BDBDBD"

// ColorFor returns the legend color for an entity type.
func ColorFor(t EntityType) string {
	if c, ok := entityColors[t]; ok {
		return c
	}
	return fallbackColor
}

// Legend returns a copy of the entity type to color table for rendering layers.
func Legend() map[EntityType]string {
	legend := make(map[EntityType]string, len(entityColors))
	for t, c := range entityColors {
		legend[t] = c
	}
	return legend
}
