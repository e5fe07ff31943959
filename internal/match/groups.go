package match

import (
	"sort"

	"duplifind/internal/models"
	"duplifind/internal/score"
)

// finalizeGroups sorts each group's members by C5's ranking, drops
// groups of size < 2 (no singletons are ever emitted), assigns dense
// IDs in order of smallest-member-path for deterministic output, and
// computes each group's potential_savings_bytes.
func finalizeGroups(kind models.GroupKind, byRoot map[int][]*models.ImageRecord) []*models.DuplicateGroup {
	var groups []*models.DuplicateGroup
	for _, members := range byRoot {
		if len(members) < 2 {
			continue
		}
		sort.Slice(members, func(i, j int) bool { return score.Less(members[i], members[j]) })

		var savings int64
		for _, m := range members[1:] {
			savings += m.SizeBytes
		}

		groups = append(groups, &models.DuplicateGroup{
			Kind:                  kind,
			Members:               members,
			PotentialSavingsBytes: savings,
		})
	}

	sort.Slice(groups, func(i, j int) bool {
		return smallestPath(groups[i]) < smallestPath(groups[j])
	})
	for i, g := range groups {
		g.ID = i + 1
	}
	return groups
}

func smallestPath(g *models.DuplicateGroup) string {
	smallest := g.Members[0].Path
	for _, m := range g.Members[1:] {
		if m.Path < smallest {
			smallest = m.Path
		}
	}
	return smallest
}
