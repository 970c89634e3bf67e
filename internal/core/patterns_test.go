package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPatternScorerSpamRules(t *testing.T) {
	p := NewPatternScorer()

	tests := []struct {
		name string
		body string
		want float64
	}{
		{"clean", "Отличная погода сегодня", 0},
		{"link", "посмотрите https://example.com", 2},
		{"telegram link", "пишите t.me/somechannel", 2},
		{"commerce and discount", "Купите со скидкой", 3},
		{"gambling", "лучшее казино города", 3},
		{"promo sales pitch", "Купите дешево!!! http://x.co", 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Score(tt.body))
		})
	}
}

func TestPatternScorerHardPhrases(t *testing.T) {
	p := NewPatternScorer()

	// "заработок" also matches the finance rule.
	assert.Equal(t, 7.0, p.Score("Заработок без вложений"))
}

func TestPatternScorerBenignOffset(t *testing.T) {
	p := NewPatternScorer()

	assert.Equal(t, 0.0, p.Score("Спасибо, очень полезно!"))

	// The offset cannot push the score below zero.
	assert.Equal(t, 0.0, p.Score("спасибо"))
}

func TestPatternScorerCaseInsensitive(t *testing.T) {
	p := NewPatternScorer()

	assert.Equal(t, p.Score("казино"), p.Score("КАЗИНО"))
}

func TestPatternScorerCategories(t *testing.T) {
	p := NewPatternScorer()

	hits := p.Categories("Купите дешево!!! http://x.co")
	assert.ElementsMatch(t, []string{"links", "commerce", "discount", "shouting"}, hits)

	assert.Empty(t, p.Categories("добрый вечер"))
}
