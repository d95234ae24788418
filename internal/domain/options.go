package domain

// Option is a label/value pair offered to the UI for a categorical field.
type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// OptionLists is the fixed set of choices the wizard offers for its categorical fields.
// The remote service remains the authority on which values it accepts.
type OptionLists struct {
	ClientTypes      []Option `json:"clientTypes"`
	CategoryLicenses []Option `json:"categoryLicenses"`
	VehicleUsages    []Option `json:"vehicleUsages"`
	VehicleBodyTypes []Option `json:"vehicleBodyTypes"`
	VehicleFuelTypes []Option `json:"vehicleFuelTypes"`
	VehicleMakes     []Option `json:"vehicleMakes"`
	ContractPeriods  []Option `json:"contractPeriods"`
}

// DefaultOptionLists returns a fresh copy of the built-in option lists.
func DefaultOptionLists() OptionLists {
	return OptionLists{
		ClientTypes: []Option{
			{Label: "Person", Value: string(ClientTypePerson)},
			{Label: "Business", Value: string(ClientTypeBusiness)},
		},
		CategoryLicenses: sameLabel("A1", "B", "C", "D", "EB", "EC", "ED"),
		VehicleUsages:    sameLabel("Tourisme", "Professional"),
		VehicleBodyTypes: sameLabel(
			"Sedan", "Hatchback", "Coupe", "Convertible", "SUV", "Pickup",
			"Van", "Minibus", "Bus", "Truck", "Motorcycle", "Scooter",
		),
		VehicleFuelTypes: sameLabel("Essence", "Diesel", "Electric"),
		VehicleMakes: sameLabel(
			"Toyota", "Mercedes", "Dacia", "Renault", "Volkswagen", "BMW", "Audi", "Tesla",
		),
		ContractPeriods: []Option{
			{Label: "6 Months", Value: string(ContractPeriod6)},
			{Label: "12 Months", Value: string(ContractPeriod12)},
			{Label: "24 Months", Value: string(ContractPeriod24)},
		},
	}
}

func sameLabel(values ...string) []Option {
	out := make([]Option, 0, len(values))
	for _, v := range values {
		out = append(out, Option{Label: v, Value: v})
	}
	return out
}
