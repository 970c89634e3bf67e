package core

import (
	"regexp"
	"strings"
)

// patternRule is one weighted spam indicator.
type patternRule struct {
	category string
	re       *regexp.Regexp
	weight   float64
}

// The rule vocabulary targets the traffic this bot actually moderates:
// Russian-language channel comments with the occasional link drop.
var spamRules = []patternRule{
	{"links", regexp.MustCompile(`(https?://|t\.me/|@\w+)`), 2},
	{"commerce", regexp.MustCompile(`(купи|прода[мжю]|заказать|цена|стоимость|товар в наличии)`), 2},
	{"gambling", regexp.MustCompile(`(казино|ставк|покер|рулетк|выигрыш)`), 3},
	{"finance", regexp.MustCompile(`(кредит|за[её]м|деньги в долг|инвестиц|заработок)`), 2},
	{"promotion", regexp.MustCompile(`(подписывайся|подпишись|переходи по|наш канал|наша групп)`), 2},
	{"discount", regexp.MustCompile(`(бесплатно|даром|акция|скидк|промокод|дешев)`), 1},
	{"symbols", regexp.MustCompile(`[💵💰🤑📈👇]`), 1},
	{"shouting", regexp.MustCompile(`!{3,}`), 1},
}

// hardSpamPhrases are near-certain spam regardless of the weighted rules.
// Matched literally against the folded body.
var hardSpamPhrases = []string{
	"заработок без вложений",
	"пассивный доход",
	"деньги в долг",
	"казино онлайн",
	"пиши в личку",
	"работа на дому без опыта",
}

const hardPhraseWeight = 5.0

// benignPhrases offset ordinary conversational messages that would
// otherwise pick up incidental rule hits.
var benignPhrases = []string{
	"спасибо",
	"полезно",
	"интересно",
	"согласен",
	"согласна",
	"отличный пост",
	"хорошая статья",
	"добрый день",
	"здравствуйте",
}

const benignPhraseWeight = 2.0

// PatternScorer evaluates the static rule tables against a message body.
type PatternScorer struct {
	rules  []patternRule
	hard   []string
	benign []string
}

// NewPatternScorer creates a scorer over the built-in rule tables.
func NewPatternScorer() *PatternScorer {
	return &PatternScorer{rules: spamRules, hard: hardSpamPhrases, benign: benignPhrases}
}

// Score returns max(0, matched rule weights + hard hits - whitelist offsets).
func (p *PatternScorer) Score(body string) float64 {
	folded := strings.ToLower(body)

	var score float64
	for _, rule := range p.rules {
		if rule.re.MatchString(folded) {
			score += rule.weight
		}
	}
	for _, phrase := range p.hard {
		if strings.Contains(folded, phrase) {
			score += hardPhraseWeight
		}
	}
	for _, phrase := range p.benign {
		if strings.Contains(folded, phrase) {
			score -= benignPhraseWeight
		}
	}

	if score < 0 {
		return 0
	}
	return score
}

// Categories reports which rule categories match, for verdict explanations.
func (p *PatternScorer) Categories(body string) []string {
	folded := strings.ToLower(body)
	var hits []string
	for _, rule := range p.rules {
		if rule.re.MatchString(folded) {
			hits = append(hits, rule.category)
		}
	}
	return hits
}
