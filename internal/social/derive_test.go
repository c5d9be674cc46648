package social

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTags(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"comma separated with spaces", "a,b, c", []string{"a", "b", "c"}},
		{"empty input", "", []string{}},
		{"only separators", " , ,", []string{}},
		{"duplicates kept", "go, go", []string{"go", "go"}},
		{"inner spaces kept", "new york, rome", []string{"new york", "rome"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseTags(tt.raw))
		})
	}
}

func TestToggleLike_FlipsMembershipOnce(t *testing.T) {
	likes := []string{"u1", "u2"}

	added := ToggleLike(likes, "u3")
	assert.True(t, IsLiked(added, "u3"))
	assert.Equal(t, []string{"u1", "u2", "u3"}, added)
	assert.Equal(t, []string{"u1", "u2"}, likes, "input must not be modified")

	removed := ToggleLike(added, "u3")
	assert.False(t, IsLiked(removed, "u3"))
	assert.Equal(t, []string{"u1", "u2"}, removed)
}

func TestToggleLike_RemovesDuplicates(t *testing.T) {
	assert.Equal(t, []string{"u1"}, ToggleLike([]string{"u1", "u2", "u1", "u2"}, "u2"))
	assert.Equal(t, []string{"u1", "u2"}, ToggleLike([]string{"u1", "u1"}, "u2"))
}

func TestFindSavedRecord_MatchesPostReference(t *testing.T) {
	saves := []SavedPostRecord{
		{ID: "p2", User: "u1", Post: "p9"},
		{ID: "s2", User: "u1", Post: "p2"},
	}

	rec, ok := FindSavedRecord(saves, "p2")
	assert.True(t, ok)
	assert.Equal(t, "s2", rec.ID, "lookup must use the post reference, not the record id")

	_, ok = FindSavedRecord(saves, "p3")
	assert.False(t, ok)
	assert.True(t, IsSaved(saves, "p9"))
}

func TestInitials(t *testing.T) {
	assert.Equal(t, "AL", Initials("ada lovelace"))
	assert.Equal(t, "GH", Initials("Grace  Hopper Brewster"))
	assert.Equal(t, "É", Initials("élodie"))
	assert.Equal(t, "", Initials("   "))
}

func TestAvatar(t *testing.T) {
	assert.Equal(t, "http://localhost:8080/avatars/initials?name=Ada+Lovelace", AvatarURL("http://localhost:8080/", "Ada Lovelace"))

	svg := InitialsSVG("Ada Lovelace")
	assert.Contains(t, svg, ">AL</text>")
	assert.Equal(t, svg, InitialsSVG("Ada Lovelace"), "rendering is deterministic")
	assert.Contains(t, InitialsSVG("<b>"), "&lt;")
}
