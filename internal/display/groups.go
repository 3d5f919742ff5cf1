// Package display selects the best entity for a notification and
// renders fleet-composition summaries from a post-veto match set.
package display

// GroupUnknown buckets any ship group with no entry in groupNames.
const GroupUnknown int64 = 0

// shipGroupPriority orders ship groups for best-entity selection:
// lower index wins, known groups off the list come next, and unknown
// groups sort last. Fixed so rendering is stable across runs.
var shipGroupPriority = []int64{
	30,   // Titan
	659,  // Supercarrier
	4594, // Lancer
	485,  // Dreadnought
	1538, // FAX
	547,  // Carrier
	883,  // Capital Industrial Ship
	902,  // Jump Freighter
	513,  // Freighter
}

// superGroups / capGroups classify the overall fleet-composition line
// into supers / capitals / subcaps categories.
var superGroups = map[int64]bool{30: true, 659: true}

var capGroups = map[int64]bool{
	4594: true, 485: true, 1538: true, 547: true, 883: true, 902: true, 513: true,
}

type groupName struct {
	id       int64
	singular string
	plural   string
}

var groupNames = []groupName{
	{30, "Titan", "Titans"},
	{659, "Super", "Supers"},
	{4594, "Lancer", "Lancers"},
	{485, "Dread", "Dreads"},
	{1538, "FAX", "FAX"},
	{547, "Carrier", "Carriers"},
	{883, "Cap Indy", "Cap Indys"},
	{902, "JF", "JFs"},
	{513, "Freighter", "Freighters"},
	{898, "Blops", "Blops"},
	{900, "Marauder", "Marauders"},
	{27, "BS", "BS"},
	{419, "BC", "BCs"},
	{540, "CS", "CS"},
	{1201, "ABC", "ABCs"},
	{963, "T3C", "T3Cs"},
	{894, "HIC", "HICs"},
	{832, "Logi", "Logi"},
	{358, "HAC", "HACs"},
	{906, "C Recon", "C Recons"},
	{833, "F Recon", "F Recons"},
	{1972, "Flag", "Flags"},
	{26, "Cruiser", "Cruisers"},
	{541, "Dictor", "Dictors"},
	{1305, "T3D", "T3Ds"},
	{1534, "Cmd Dessie", "Cmd Dessies"},
	{420, "Destroyer", "Destroyers"},
	{834, "Bomber", "Bombers"},
	{324, "AF", "AFs"},
	{831, "Ceptor", "Ceptors"},
	{830, "CovOps", "CovOps"},
	{1527, "Logi Frig", "Logi Frigs"},
	{893, "EAS", "EAS"},
	{25, "Frigate", "Frigates"},
	{28, "T1 Indy", "T1 Indys"},
	{380, "T2 Indy", "T2 Indys"},
	{1283, "Mining Barge", "Mining Barges"},
	{463, "Mining Frig", "Mining Frigs"},
	{29, "Pod", "Pods"},
}

func groupPriority(groupID int64) int {
	for i, p := range shipGroupPriority {
		if p == groupID {
			return i
		}
	}
	if groupID == GroupUnknown {
		return len(shipGroupPriority) + 1
	}
	return len(shipGroupPriority)
}

func namePriority(groupID int64) int {
	for i, g := range groupNames {
		if g.id == groupID {
			return i
		}
	}
	return len(groupNames)
}

func isKnownGroup(groupID int64) bool {
	for _, g := range groupNames {
		if g.id == groupID {
			return true
		}
	}
	return false
}

// groupDisplayName returns the singular or plural display name for a group,
// or "" if the group has no table entry.
func groupDisplayName(groupID int64, count int) string {
	for _, g := range groupNames {
		if g.id == groupID {
			if count == 1 {
				return g.singular
			}
			return g.plural
		}
	}
	return ""
}
