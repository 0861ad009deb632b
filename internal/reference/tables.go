package reference

// Tables bundles every enumeration for forms and API consumers.
type Tables struct {
	MatrixTypes      []MatrixType   `json:"matrix_types"`
	ColorCorrections []string       `json:"color_corrections"`
	LightSensors     []LightSensor  `json:"light_sensors"`
	Pins             []Pin          `json:"pins"`
	PinRoles         []PinRole      `json:"pin_roles"`
	ButtonActions    []ActionOption `json:"button_actions"`
}

// ActionOption pairs a button action with its label.
type ActionOption struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// All returns a fresh copy of every reference table.
func All() Tables {
	actions := make([]ActionOption, 0, len(buttonActionNames))
	for _, a := range ButtonActions() {
		actions = append(actions, ActionOption{ID: int(a), Name: a.String()})
	}
	return Tables{
		MatrixTypes:      MatrixTypes(),
		ColorCorrections: ColorCorrections(),
		LightSensors:     LightSensors(),
		Pins:             Pins(),
		PinRoles:         PinRoles(),
		ButtonActions:    actions,
	}
}
