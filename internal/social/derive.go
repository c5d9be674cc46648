package social

import (
	"slices"
	"strings"
)

// IsLiked reports whether userID is in the liker set.
func IsLiked(likes []string, userID string) bool {
	return slices.Contains(likes, userID)
}

// ToggleLike returns a new liker set with userID's membership flipped.
// The result never contains duplicates, even if likes did.
func ToggleLike(likes []string, userID string) []string {
	if IsLiked(likes, userID) {
		out := make([]string, 0, len(likes))
		for _, id := range likes {
			if id != userID {
				out = append(out, id)
			}
		}
		return dedupe(out)
	}
	return dedupe(append(slices.Clone(likes), userID))
}

// FindSavedRecord returns the bookmark whose post reference equals postID.
func FindSavedRecord(saves []SavedPostRecord, postID string) (SavedPostRecord, bool) {
	for _, s := range saves {
		if s.Post == postID {
			return s, true
		}
	}
	return SavedPostRecord{}, false
}

// IsSaved reports whether one of saves references postID.
func IsSaved(saves []SavedPostRecord, postID string) bool {
	_, ok := FindSavedRecord(saves, postID)
	return ok
}

// ParseTags splits the free-text tag field on commas and trims every token.
// Empty tokens are dropped, so "" yields an empty slice.
func ParseTags(raw string) []string {
	tags := []string{}
	for _, tok := range strings.Split(raw, ",") {
		if tok = strings.TrimSpace(tok); tok != "" {
			tags = append(tags, tok)
		}
	}
	return tags
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
