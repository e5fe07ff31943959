package match

import "duplifind/internal/models"

// Exact implements C6: partition records by content_hash and emit one
// group per partition of size >= 2.
//
// Returns the groups and the exact_member_paths exclusion set the
// perceptual grouper needs to skip files already grouped as exact.
func Exact(records []*models.ImageRecord) ([]*models.DuplicateGroup, map[string]struct{}) {
	byHash := make(map[models.ContentHash][]*models.ImageRecord)
	for _, r := range records {
		byHash[r.ContentHash] = append(byHash[r.ContentHash], r)
	}

	byRoot := make(map[int][]*models.ImageRecord)
	root := 0
	exclude := make(map[string]struct{})
	for _, members := range byHash {
		if len(members) < 2 {
			continue
		}
		byRoot[root] = members
		root++
		for _, m := range members {
			exclude[m.Path] = struct{}{}
		}
	}

	return finalizeGroups(models.GroupExact, byRoot), exclude
}
