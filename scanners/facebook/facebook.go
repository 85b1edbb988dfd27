// Searches for facebook html and json tags.
package facebook

import (
	"github.com/aarsakian/ArtifactExtractor/scanner"
)

const window = 4096

var facebookSearches = [][]byte{
	[]byte("hovercard/page"),
	[]byte("profile_owner"),
	[]byte("actorDescription actorNames"),
	[]byte("navAccountName"),
	[]byte("renderedAuthorList"),
	[]byte("pokesText"),
	[]byte("id=\"facebook.com\""),
	[]byte("OrderedFriendsListInitialData"),
	[]byte("mobileFriends"),
	[]byte("ShortProfiles"),
	[]byte("bigPipe.onPageletArrive"),
	[]byte("TimelineContentLoader"),
	[]byte("Facebook is a social utility that connects"),
	[]byte("facebook.com/profile.php"),
	[]byte("timelineUnitContainer"),
}

// usedOffsets suppresses hits within half a window of an already recorded
// hit. State is per page and never shared.
type usedOffsets struct {
	offsets []int
}

func (used *usedOffsets) valueUsed(value int) bool {
	for _, offset := range used.offsets {
		if offset-window/2 < value && value < offset+window/2 {
			return true
		}
	}
	used.offsets = append(used.offsets, value)
	return false
}

func Scan(sp *scanner.Params) {
	if sp.Phase == scanner.PhaseInit {
		sp.CheckVersion()
		sp.Info.Name = "facebook"
		sp.Info.Author = ""
		sp.Info.Description = "Searches for facebook html and json tags"
		sp.Info.Version = "2.0"
		sp.Info.FeatureDefs = append(sp.Info.FeatureDefs, scanner.FeatureDef{Name: "facebook"})
		return
	}
	if sp.Phase == scanner.PhaseScan {
		facebookRecorder := sp.NamedFeatureRecorder("facebook")
		var used usedOffsets

		for _, textSearch := range facebookSearches {
			for i := 0; i+50 < sp.SBuf.BufSize(); i++ {
				location := sp.SBuf.Find(textSearch, i)
				if location < 1 {
					break
				}
				if used.valueUsed(location) {
					i = location + window
					continue
				}

				begin := 0
				if location > window/2 {
					begin = location - window/2
				}
				end := begin + window
				if end+10 > sp.SBuf.BufSize() {
					end = sp.SBuf.BufSize() - 10
				}
				length := end - begin
				if length > 0 {
					facebookRecorder.WriteBuf(sp.SBuf, begin, length)
				}
				i = location + window
			}
		}
	}
}
