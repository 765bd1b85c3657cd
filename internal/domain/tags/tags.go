// Package tags maps free-form item tags onto the category leaderboards they
// are ranked in. The table is static and owned by this package; ranking code
// only ever sees category keys.
package tags

import (
	"sort"
	"strings"
	"unicode"
)

// categoryByTag maps normalized tags (and their common aliases) to category keys.
var categoryByTag = map[string]string{ //nolint:gochecknoglobals // static lookup table
	// genres
	"action":          "action",
	"adventure":       "adventure",
	"comedy":          "comedy",
	"contemporary":    "contemporary",
	"drama":           "drama",
	"fantasy":         "fantasy",
	"historical":      "historical",
	"horror":          "horror",
	"mystery":         "mystery",
	"psychological":   "psychological",
	"romance":         "romance",
	"satire":          "satire",
	"sci_fi":          "sci_fi",
	"scifi":           "sci_fi",
	"science_fiction": "sci_fi",
	"short_story":     "one_shot",
	"one_shot":        "one_shot",
	"oneshot":         "one_shot",
	"tragedy":         "tragedy",

	// tags
	"anti_hero_lead":             "anti_hero_lead",
	"antihero_lead":              "anti_hero_lead",
	"artificial_intelligence":    "artificial_intelligence",
	"ai":                         "artificial_intelligence",
	"attractive_lead":            "attractive_lead",
	"cyberpunk":                  "cyberpunk",
	"dungeon":                    "dungeon",
	"dungeon_core":               "dungeon",
	"dystopia":                   "dystopia",
	"female_lead":                "female_lead",
	"first_contact":              "first_contact",
	"gamelit":                    "gamelit",
	"gender_bender":              "gender_bender",
	"genetically_engineered":     "genetically_engineered",
	"grimdark":                   "grimdark",
	"hard_sci_fi":                "hard_sci_fi",
	"harem":                      "harem",
	"high_fantasy":               "high_fantasy",
	"litrpg":                     "litrpg",
	"lit_rpg":                    "litrpg",
	"low_fantasy":                "low_fantasy",
	"magic":                      "magic",
	"male_lead":                  "male_lead",
	"martial_arts":               "martial_arts",
	"multiple_lead_characters":   "multiple_lead",
	"multiple_lead":              "multiple_lead",
	"mythos":                     "mythos",
	"non_human_lead":             "non_human_lead",
	"nonhuman_lead":              "non_human_lead",
	"portal_fantasy_isekai":      "summoned_hero",
	"portal_fantasy":             "summoned_hero",
	"isekai":                     "summoned_hero",
	"summoned_hero":              "summoned_hero",
	"post_apocalyptic":           "post_apocalyptic",
	"progression":                "progression",
	"reader_interactive":         "reader_interactive",
	"reincarnation":              "reincarnation",
	"ruling_class":               "ruling_class",
	"school_life":                "school_life",
	"secret_identity":            "secret_identity",
	"slice_of_life":              "slice_of_life",
	"soft_sci_fi":                "soft_sci_fi",
	"space_opera":                "space_opera",
	"sports":                     "sports",
	"steampunk":                  "steampunk",
	"strategy":                   "strategy",
	"strong_lead":                "strong_lead",
	"super_heroes":               "super_heroes",
	"superheroes":                "super_heroes",
	"supernatural":               "supernatural",
	"technologically_engineered": "technologically_engineered",
	"time_loop":                  "loop",
	"loop":                       "loop",
	"time_travel":                "time_travel",
	"urban_fantasy":              "urban_fantasy",
	"villainous_lead":            "villainous_lead",
	"virtual_reality":            "virtual_reality",
	"war_and_military":           "war_and_military",
	"military":                   "war_and_military",
	"wuxia":                      "wuxia",
	"xianxia":                    "xianxia",
	"cultivation":                "xianxia",
}

// Normalize lowercases tag and collapses every run of non-alphanumeric
// characters into a single underscore, trimming underscores at both ends.
// "Sci-fi", "sci fi" and " SCI__FI " all normalize to "sci_fi".
func Normalize(tag string) string {
	var b strings.Builder
	b.Grow(len(tag))
	pending := false
	for _, r := range strings.ToLower(tag) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	return b.String()
}

// Category returns the category key for a raw tag.
func Category(tag string) (string, bool) {
	c, ok := categoryByTag[Normalize(tag)]
	return c, ok
}

// Categories returns the sorted, de-duplicated categories an item with the
// given tags is relevant to. Unknown or empty tags are skipped, so malformed
// tag data degrades to an empty set instead of failing.
func Categories(itemTags []string) []string {
	if len(itemTags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(itemTags))
	out := make([]string, 0, len(itemTags))
	for _, t := range itemTags {
		c, ok := Category(t)
		if !ok {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Known returns every category key the table can produce, sorted.
func Known() []string {
	seen := make(map[string]struct{}, len(categoryByTag))
	for _, c := range categoryByTag {
		seen[c] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
