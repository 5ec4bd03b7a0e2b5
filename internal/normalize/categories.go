package normalize

import "strings"

// Canonical category vocabulary used by the baseline dataset.
const (
	CategoryWater       = "Water"
	CategoryEnergy      = "Energy"
	CategoryTribal      = "Tribal"
	CategoryCleanEnergy = "Clean Energy, Buildings, and Manufacturing"
	CategoryLegacy      = "Legacy Pollution"
	CategoryEcosystem   = "Ecosystem Restoration"
	CategoryWildfire    = "Wildland Fire Management"
	CategoryDrought     = "Drought"
	CategoryClimate     = "Climate and Environment"
	CategoryEnvironment = "Environmental Protection"
	CategoryOther       = "Other"
)

type keywordCategory struct {
	keyword  string
	category string
}

func biaCategory(projType string) string {
	switch strings.TrimSpace(projType) {
	case "Irrigation", "Dam", "Safety of Dams", "Water":
		return CategoryWater
	case "Power":
		return CategoryEnergy
	default:
		return CategoryTribal
	}
}

var doeCleanTech = map[string]bool{
	"Hydroelectric": true, "Solar": true, "Wind": true,
	"Nuclear": true, "Geothermal": true, "Battery": true,
}

func doeCategory(category, tech string) string {
	if strings.Contains(category, "Manufacturing") || doeCleanTech[strings.TrimSpace(tech)] {
		return CategoryCleanEnergy
	}
	return CategoryEnergy
}

func doiCategory(programArea string) string {
	switch strings.TrimSpace(programArea) {
	case "Legacy Pollution":
		return CategoryLegacy
	case "Ecosystem Restoration":
		return CategoryEcosystem
	case "Water":
		return CategoryWater
	case "Wildfire":
		return CategoryWildfire
	case "Drought":
		return CategoryDrought
	default:
		return CategoryOther
	}
}

var epaInvestment = []keywordCategory{
	{"water infrastructure", CategoryWater},
	{"clean water", CategoryWater},
	{"drinking water", CategoryWater},
	{"brownfields", CategoryLegacy},
	{"superfund", CategoryLegacy},
	{"air quality", CategoryClimate},
	{"climate", CategoryClimate},
	{"environmental justice", CategoryClimate},
}

func epaCategory(investment, program string) string {
	if strings.TrimSpace(investment) == "" {
		p := strings.ToLower(program)
		switch {
		case containsAny(p, "water", "drinking"):
			return CategoryWater
		case containsAny(p, "air", "pollution", "emissions"):
			return CategoryClimate
		}
		return CategoryEnvironment
	}
	if c, ok := firstKeyword(strings.ToLower(investment), epaInvestment); ok {
		return c
	}
	return CategoryEnvironment
}

var noaaGoals = []keywordCategory{
	{"wildfire", CategoryWildfire},
	{"climate", CategoryClimate},
	{"fisheries", CategoryEcosystem},
	{"ocean", CategoryEcosystem},
	{"weather", CategoryClimate},
	{"multi-hazard", CategoryClimate},
}

func noaaCategory(goal, programTitle string) string {
	if c, ok := firstKeyword(strings.ToLower(goal), noaaGoals); ok {
		return c
	}
	t := strings.ToLower(programTitle)
	switch {
	case containsAny(t, "fish", "marine", "habitat", "coastal"):
		return CategoryEcosystem
	case containsAny(t, "climate", "weather", "forecast"):
		return CategoryClimate
	case strings.Contains(t, "wildfire"):
		return CategoryWildfire
	}
	return CategoryClimate
}

func usbrCategory(subsection, subprogram string) string {
	both := subsection + " " + subprogram
	switch {
	case strings.Contains(both, "Drought") && !strings.Contains(both, "Water"):
		return CategoryDrought
	case strings.Contains(both, "Ecosystem") && !strings.Contains(both, "Water") && !strings.Contains(both, "Dam"):
		return CategoryEcosystem
	default:
		return CategoryWater
	}
}

func firstKeyword(s string, table []keywordCategory) (string, bool) {
	if s == "" {
		return "", false
	}
	for _, kc := range table {
		if strings.Contains(s, kc.keyword) {
			return kc.category, true
		}
	}
	return "", false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
