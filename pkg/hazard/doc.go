// Package hazard classifies the risk of device operations.
//
// Every route declares a Set of hazards. A hazard belongs to one of three
// categories (safety, financial, privacy) and carries a severity from 0 to
// 10. Controllers evaluate the set against their policy before sending a
// request, so a misclassified hazard is a safety defect.
//
// The package also ships a catalogue of well-known hazards:
//
//	set := hazard.MustOf(hazard.FireHazard, hazard.ElectricEnergyConsumption)
//	sev, _ := set.MaxSeverity(hazard.Safety)
package hazard
