package model

// Mode groups. Event-group modes feed the event-modes aggregate.
const (
	GroupBase     = "base"
	GroupEvent    = "event"
	GroupPresence = "presence"
	GroupSystem   = "system"
)

// ModeDef is one entry of the built-in mode catalog.
type ModeDef struct {
	Key   string
	Name  string
	Group string
}

// ModeDefs is the full mode catalog. Configuration selects the enabled subset.
var ModeDefs = []ModeDef{
	{"bin_hazmanim", "Bin Hazmanim", GroupBase},
	{"guest_room", "Guest Room", GroupEvent},
	{"bris", "Bris", GroupEvent},
	{"home", "Home", GroupEvent},
	{"no_tachnun", "No Tachnun", GroupBase},
	{"kiddush_mode", "Kiddush Mode", GroupEvent},
	{"bavarfen_mode", "Bavarfen Mode", GroupBase},
	{"rabbi_here", "Rabbi Here", GroupPresence},
	{"zucher_mode", "Zucher Mode", GroupEvent},
	{"chasunah_mode", "Chasunah Mode", GroupEvent},
	{"yahrtzeit_mode", "Yahrtzeit Mode", GroupEvent},
	{"rabbi_away", "Rabbi Away", GroupPresence},
	{"away_mode", "Away Mode", GroupSystem},
	{"small_simcha_mode", "Small Simcha Mode", GroupEvent},
	{"guest_rabbi_mode", "Guest Rabbi Mode", GroupEvent},
	{"cleaning_mode", "Cleaning Mode", GroupSystem},
	{"shabbos_sheva_brachos", "Shabbos Sheva Brachos Mode", GroupEvent},
	{"sheva_brachos", "Sheva Brachos Mode", GroupEvent},
	{"event_mode", "Event Mode", GroupEvent},
	{"no_school", "No School", GroupBase},
	{"day_camp", "Day Camp", GroupBase},
	{"late_school", "Late School", GroupBase},
	{"half_day_school", "Half-Day School", GroupBase},
}

// AllModeKeys returns every catalog key in definition order.
func AllModeKeys() []string {
	keys := make([]string, 0, len(ModeDefs))
	for _, d := range ModeDefs {
		keys = append(keys, d.Key)
	}
	return keys
}

// EventModeKeys returns the keys of event-group modes.
func EventModeKeys() []string {
	var keys []string
	for _, d := range ModeDefs {
		if d.Group == GroupEvent {
			keys = append(keys, d.Key)
		}
	}
	return keys
}

// LookupModeDef returns the catalog entry for key, if any.
func LookupModeDef(key string) (ModeDef, bool) {
	for _, d := range ModeDefs {
		if d.Key == key {
			return d, true
		}
	}
	return ModeDef{}, false
}

// ModeName returns the friendly name for key, falling back to the key itself.
func ModeName(key string) string {
	if d, ok := LookupModeDef(key); ok {
		return d.Name
	}
	return key
}
