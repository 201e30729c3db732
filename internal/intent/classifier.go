// Package intent classifies free-form utterances into oracle intents.
//
// Classification is an ordered decision list of keyword and pattern rules.
// The first rule that matches wins, so financial keywords take precedence
// over weather keywords, which take precedence over space keywords.
package intent

import (
	"regexp"
	"strings"
	"time"

	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/domain"
)

// Default parameter values used when an utterance names a kind but not its subject.
const (
	DefaultSymbol = "ETH/USD"
	DefaultCity   = "London"
	dateLayout    = "2006-01-02"
)

var (
	cityAfterPattern  = regexp.MustCompile(`weather.*in\s+(\w+)`)
	cityBeforePattern = regexp.MustCompile(`(\w+)\s+weather`)
	datePattern       = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
)

// Rule is one entry of the decision list.
type Rule struct {
	Name  string
	Match func(lower string, now time.Time) (domain.ParsedIntent, bool)
}

// Rules returns the decision list in evaluation order.
func Rules() []Rule {
	return []Rule{
		{Name: "ethereum", Match: keywordPrice(DefaultSymbol, "eth", "ethereum")},
		{Name: "bitcoin", Match: keywordPrice("BTC/USD", "btc", "bitcoin")},
		{Name: "price", Match: keywordPrice(DefaultSymbol, "price")},
		{Name: "weather", Match: matchWeather},
		{Name: "space", Match: matchSpace},
	}
}

// Classifier evaluates the decision list against utterances.
type Classifier struct {
	rules []Rule
	now   func() time.Time
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithClock overrides the clock used for the space date default.
func WithClock(now func() time.Time) Option {
	return func(c *Classifier) {
		c.now = now
	}
}

// New creates a classifier with the standard decision list.
func New(opts ...Option) *Classifier {
	c := &Classifier{
		rules: Rules(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify returns the intent for the utterance, or false when nothing matches.
func (c *Classifier) Classify(utterance string) (domain.ParsedIntent, bool) {
	lower := strings.ToLower(utterance)
	now := c.now()
	for _, rule := range c.rules {
		if parsed, ok := rule.Match(lower, now); ok {
			return parsed, true
		}
	}
	return domain.ParsedIntent{}, false
}

// Classify runs the standard decision list with the wall clock.
func Classify(utterance string) (domain.ParsedIntent, bool) {
	return New().Classify(utterance)
}

// Defaults returns the parameters used when kind is selected explicitly
// without an utterance that names its subject.
func Defaults(kind domain.OracleKind, now time.Time) map[string]string {
	switch kind {
	case domain.OracleKindPriceFeed:
		return map[string]string{domain.ParamSymbol: DefaultSymbol}
	case domain.OracleKindWeather:
		return map[string]string{domain.ParamCity: DefaultCity}
	case domain.OracleKindSpace:
		return map[string]string{domain.ParamDate: Today(now)}
	default:
		return map[string]string{}
	}
}

// Today formats now as a UTC calendar date.
func Today(now time.Time) string {
	return now.UTC().Format(dateLayout)
}

func keywordPrice(symbol string, keywords ...string) func(string, time.Time) (domain.ParsedIntent, bool) {
	return func(lower string, _ time.Time) (domain.ParsedIntent, bool) {
		if !containsAny(lower, keywords...) {
			return domain.ParsedIntent{}, false
		}
		return domain.ParsedIntent{
			Kind:       domain.OracleKindPriceFeed,
			Parameters: map[string]string{domain.ParamSymbol: symbol},
		}, true
	}
}

func matchWeather(lower string, _ time.Time) (domain.ParsedIntent, bool) {
	city, found := extractCity(lower)
	if !found && !containsAny(lower, "weather", "temperature") {
		return domain.ParsedIntent{}, false
	}
	if city == "" {
		city = DefaultCity
	}
	return domain.ParsedIntent{
		Kind:       domain.OracleKindWeather,
		Parameters: map[string]string{domain.ParamCity: capitalize(city)},
	}, true
}

// extractCity prefers "weather ... in <city>" over "<city> weather".
// The captured word is taken as is, so "show weather" yields "show".
func extractCity(lower string) (city string, found bool) {
	if m := cityAfterPattern.FindStringSubmatch(lower); m != nil {
		return m[1], true
	}
	if m := cityBeforePattern.FindStringSubmatch(lower); m != nil {
		return m[1], true
	}
	return "", false
}

func matchSpace(lower string, now time.Time) (domain.ParsedIntent, bool) {
	if !containsAny(lower, "asteroid", "space", "nasa") {
		return domain.ParsedIntent{}, false
	}
	date := datePattern.FindString(lower)
	if date == "" {
		date = Today(now)
	}
	return domain.ParsedIntent{
		Kind:       domain.OracleKindSpace,
		Parameters: map[string]string{domain.ParamDate: date},
	}, true
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// capitalize upper-cases the first letter and leaves the rest unchanged.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
