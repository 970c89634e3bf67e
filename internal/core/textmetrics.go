package core

import (
	"strings"
	"unicode"
)

// TextMetrics holds lexical and statistical features of a message body.
type TextMetrics struct {
	Length          int
	WordCount       int
	AvgWordLen      float64
	UppercaseRatio  float64
	SpecialRatio    float64
	DigitRatio      float64
	EmojiCount      int
	RepetitionScore float64
}

// emphasisEmoji is the fixed set of promo symbols counted by EmojiCount.
var emphasisEmoji = []rune{'💵', '💰', '🤑', '📈', '👇', '❤', '🔥', '🎁'}

// ComputeTextMetrics derives the metrics of a message body. Empty input
// yields the zero value.
func ComputeTextMetrics(body string) TextMetrics {
	if body == "" {
		return TextMetrics{}
	}

	var m TextMetrics
	var letters, upper, special, digits int
	for _, r := range body {
		m.Length++
		switch {
		case unicode.IsLetter(r):
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		case unicode.IsDigit(r):
			digits++
		case unicode.IsSpace(r):
		default:
			special++
		}
		for _, e := range emphasisEmoji {
			if r == e {
				m.EmojiCount++
				break
			}
		}
	}

	if letters > 0 {
		m.UppercaseRatio = float64(upper) / float64(letters)
	}
	m.SpecialRatio = float64(special) / float64(m.Length)
	m.DigitRatio = float64(digits) / float64(m.Length)

	words := strings.Fields(body)
	m.WordCount = len(words)
	if len(words) > 0 {
		total := 0
		for _, w := range words {
			total += len([]rune(w))
		}
		m.AvgWordLen = float64(total) / float64(len(words))
	}
	m.RepetitionScore = repetitionScore(words)

	return m
}

// repetitionScore is min(1, maxWordFrequency/wordCount*3) over case-folded
// tokens; fewer than 3 tokens score 0.
func repetitionScore(words []string) float64 {
	if len(words) < 3 {
		return 0
	}
	freq := make(map[string]int, len(words))
	max := 0
	for _, w := range words {
		folded := strings.ToLower(w)
		freq[folded]++
		if freq[folded] > max {
			max = freq[folded]
		}
	}
	score := float64(max) / float64(len(words)) * 3
	if score > 1 {
		return 1
	}
	return score
}
