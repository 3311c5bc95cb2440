package extractor

// WayFilter decides whether a way should be retained, and which of its
// tags should be captured into the database, given the way's raw tags.
// Represented as an interface with two implementations (a tagged variant)
// rather than a class hierarchy.
type WayFilter interface {
	// Filter reports whether a way carrying tags should be retained, and
	// if so, which subset of tags to capture into its tag range.
	Filter(tags []Tag) (retained bool, captured []Tag)
}

// defaultHighwayValues is the fixed set of `highway` tag values the
// default predicate retains.
var defaultHighwayValues = map[string]bool{
	"motorway":       true,
	"motorway_link":  true,
	"trunk":          true,
	"trunk_link":     true,
	"primary":        true,
	"primary_link":   true,
	"secondary":      true,
	"secondary_link": true,
	"tertiary":       true,
	"tertiary_link":  true,
	"residential":    true,
	"living_street":  true,
	"unclassified":   true,
	"service":        true,
	"ferry":          true,
	"movable":        true,
	"shuttle_train":  true,
	"default":        true,
}

// DefaultHighwayFilter retains a way iff it carries a `highway` tag whose
// value is one of the fixed road-class values above. When retained, every
// tag on the way is captured, not just the matching one.
type DefaultHighwayFilter struct{}

func (DefaultHighwayFilter) Filter(tags []Tag) (bool, []Tag) {
	for _, t := range tags {
		if t.Key == "highway" && defaultHighwayValues[t.Value] {
			return true, tags
		}
	}
	return false, nil
}

// Rule matches a tag by key, or by key=value when Value is non-empty.
type Rule struct {
	Key   string
	Value string
}

func (r Rule) matches(t Tag) bool {
	if t.Key != r.Key {
		return false
	}
	return r.Value == "" || t.Value == r.Value
}

// RuleFilter retains a way iff any of its tags satisfies any rule. Unlike
// DefaultHighwayFilter, it captures only the tags that matched some rule —
// this asymmetry is intentional, per the core specification.
type RuleFilter struct {
	Rules []Rule
}

func (f RuleFilter) Filter(tags []Tag) (bool, []Tag) {
	var captured []Tag
	for _, t := range tags {
		for _, r := range f.Rules {
			if r.matches(t) {
				captured = append(captured, t)
				break
			}
		}
	}
	return len(captured) > 0, captured
}
