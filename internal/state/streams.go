package state

// Stream names recognized by the store. Sales, recycle, and induction are
// virtual: reads aggregate their components and writes distribute across
// them.
const (
	StreamDomestic          = "domestic"
	StreamImport            = "import"
	StreamExport            = "export"
	StreamSales             = "sales"
	StreamRecycle           = "recycle"
	StreamRecycleRecharge   = "recycleRecharge"
	StreamRecycleEol        = "recycleEol"
	StreamInduction         = "induction"
	StreamInductionRecharge = "inductionRecharge"
	StreamInductionEol      = "inductionEol"
	StreamImplicitRecharge  = "implicitRecharge"
	StreamConsumption       = "consumption"
	StreamRechargeEmissions = "rechargeEmissions"
	StreamEolEmissions      = "eolEmissions"
	StreamEquipment         = "equipment"
	StreamPriorEquipment    = "priorEquipment"
	StreamNewEquipment      = "newEquipment"
	StreamRetired           = "retired"
	StreamPriorRetired      = "priorRetired"
	StreamAge               = "age"
)

// streamBaseUnits maps each stream to the unit values are stored in.
var streamBaseUnits = map[string]string{
	StreamDomestic:          "kg",
	StreamImport:            "kg",
	StreamExport:            "kg",
	StreamSales:             "kg",
	StreamRecycle:           "kg",
	StreamRecycleRecharge:   "kg",
	StreamRecycleEol:        "kg",
	StreamInduction:         "kg",
	StreamInductionRecharge: "kg",
	StreamInductionEol:      "kg",
	StreamImplicitRecharge:  "kg",
	StreamConsumption:       "tCO2e",
	StreamRechargeEmissions: "tCO2e",
	StreamEolEmissions:      "tCO2e",
	StreamEquipment:         "units",
	StreamPriorEquipment:    "units",
	StreamNewEquipment:      "units",
	StreamRetired:           "units",
	StreamPriorRetired:      "units",
	StreamAge:               "years",
}

// IsStreamName reports whether name is a recognized stream. Commands use
// this to distinguish a stream target from a substance target.
func IsStreamName(name string) bool {
	_, ok := streamBaseUnits[name]
	return ok
}

// BaseUnits returns the storage unit for a stream, or "" if the stream is
// not recognized.
func BaseUnits(name string) string {
	return streamBaseUnits[name]
}

// IsSalesSubstream reports whether name contributes to the virtual sales
// total.
func IsSalesSubstream(name string) bool {
	switch name {
	case StreamDomestic, StreamImport, StreamExport,
		StreamRecycle, StreamRecycleRecharge, StreamRecycleEol:
		return true
	default:
		return false
	}
}

// IsEquipmentStream reports whether name is a population stream measured
// in units.
func IsEquipmentStream(name string) bool {
	switch name {
	case StreamEquipment, StreamPriorEquipment, StreamNewEquipment,
		StreamRetired, StreamPriorRetired:
		return true
	default:
		return false
	}
}
