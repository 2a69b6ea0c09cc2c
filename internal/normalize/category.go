package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cesargomez89/flixetl/internal/constants"
)

// CategoryRule maps raw genre tags onto one canonical category.
type CategoryRule struct {
	Category string   `json:"category"`
	Keywords []string `json:"keywords"`
}

// DefaultCategoryRules is the controlled vocabulary. Order decides the order
// categories are reported in.
var DefaultCategoryRules = []CategoryRule{
	{"Drama", []string{"Drama", "Dramas"}},
	{"Comedy", []string{"Comedy", "Stand-up Comedy", "Stand-up", "Standup"}},
	{"Action", []string{"Action"}},
	{"Romance", []string{"Romance", "Romantic"}},
	{"Sci-Fi/Fantasy", []string{"Sci-Fi", "Sci-fi", "Fantasy"}},
	{"Thriller", []string{"Thriller", "Thrillers"}},
	{"Horror", []string{"Horror"}},
	{"Mystery", []string{"Mystery"}},
	{"Crime", []string{"Crime", "True Crime", "True-crime", "Con-Artist"}},
	{"Documentary", []string{"Documentary", "Docuseries", "Docudrama", "Behind the Scenes", "Making-of", "Making-Of"}},
	{"Biographical", []string{"Biography"}},
	{"Historical", []string{"History", "Historical"}},
	{"Family/Children", []string{"Family", "Kids", "Children"}},
	{"Animation", []string{"Animation", "Animated", "Cartoon", "Anime"}},
	{"Adventure", []string{"Adventure"}},
	{"Teen", []string{"Teen"}},
	{"Medical", []string{"Medical"}},
	{"LGBTQ", []string{"LGBTQ"}},
	{"Stand-up Comedy", []string{"Stand-up", "Standup", "Stand-up Special"}},
	{"Sports", []string{"Sport", "Boxing", "Sports"}},
	{"Reality TV", []string{"Reality-TV", "Reality TV", "Reality"}},
	{"Game Show", []string{"Game-Show"}},
	{"Talk Show", []string{"Talk Show", "Talk Shows"}},
	{"Variety", []string{"Variety"}},
	{"Political", []string{"Political"}},
	{"Music", []string{"Music"}},
	{"Specials", []string{"Special", "Making-of", "Behind-the-scenes"}},
	{"Regional", []string{"Bollywood", "Nollywood", "Spanish", "French", "Latin American TV"}},
	{"Food/Travel", []string{"Food", "Travel"}},
	{"Courtroom", []string{"Courtroom"}},
	{"Movies/TV", []string{"Movies", "TV"}},
	{"Stories/BLM", []string{"Stories", "BLM"}},
	{"Zombie", []string{"Zombie"}},
	{"Korean", []string{"Korean", "K-Drama"}},
}

// Vocabulary resolves raw genre lists to canonical categories.
type Vocabulary struct {
	rules []CategoryRule
	index map[string][]int
}

func NewVocabulary(rules []CategoryRule) *Vocabulary {
	v := &Vocabulary{
		rules: rules,
		index: make(map[string][]int),
	}
	for i, rule := range rules {
		for _, kw := range rule.Keywords {
			key := strings.ToLower(strings.TrimSpace(kw))
			if key == "" || containsInt(v.index[key], i) {
				continue
			}
			v.index[key] = append(v.index[key], i)
		}
	}
	return v
}

func DefaultVocabulary() *Vocabulary {
	return NewVocabulary(DefaultCategoryRules)
}

// ParseVocabulary reads a JSON array of rules, as stored in the settings table.
func ParseVocabulary(data []byte) (*Vocabulary, error) {
	var rules []CategoryRule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("invalid category map: %w", err)
	}
	if len(rules) == 0 {
		return nil, errors.New("invalid category map: no rules")
	}
	for i, r := range rules {
		if strings.TrimSpace(r.Category) == "" {
			return nil, fmt.Errorf("invalid category map: rule %d has no category", i)
		}
		if strings.Contains(r.Category, ",") {
			return nil, fmt.Errorf("invalid category map: category %q contains a comma", r.Category)
		}
	}
	return NewVocabulary(rules), nil
}

func (v *Vocabulary) Rules() []CategoryRule {
	out := make([]CategoryRule, len(v.rules))
	copy(out, v.rules)
	return out
}

// Categorize maps a comma-separated genre list to canonical categories. Tokens
// match keywords case-insensitively. The result is never empty: unmatched or
// empty input yields "Other".
func (v *Vocabulary) Categorize(raw string) []string {
	hit := make([]bool, len(v.rules))
	found := false
	for _, token := range SplitList(raw) {
		for _, i := range v.index[strings.ToLower(token)] {
			hit[i] = true
			found = true
		}
	}
	if !found {
		return []string{constants.CategoryOther}
	}

	var out []string
	for i, ok := range hit {
		if ok {
			out = append(out, v.rules[i].Category)
		}
	}
	return out
}

// CategorizeJoined is Categorize joined back into the artifact column format.
func (v *Vocabulary) CategorizeJoined(raw string) string {
	return strings.Join(v.Categorize(raw), ",")
}

// SplitList splits a comma-separated field, dropping blanks and the \N sentinel.
func SplitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" || part == constants.NullSentinel {
			continue
		}
		out = append(out, part)
	}
	return out
}

func containsInt(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

var excludedGenres = []string{"talk-show", "short", "news", "sport"}

// ExcludedGenre reports whether a raw genre field names a genre the pipeline
// drops entirely. Matching is a case-insensitive substring test.
func ExcludedGenre(raw string) bool {
	lower := strings.ToLower(raw)
	for _, g := range excludedGenres {
		if strings.Contains(lower, g) {
			return true
		}
	}
	return false
}
