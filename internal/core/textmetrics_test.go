package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeTextMetricsEmpty(t *testing.T) {
	assert.Equal(t, TextMetrics{}, ComputeTextMetrics(""))
}

func TestComputeTextMetricsLength(t *testing.T) {
	// Rune count, not byte count.
	m := ComputeTextMetrics("привет")
	assert.Equal(t, 6, m.Length)
}

func TestComputeTextMetricsUppercaseRatio(t *testing.T) {
	m := ComputeTextMetrics("ВНИМАНИЕ всем")
	// 8 of 12 letters are uppercase; digits and punctuation do not count.
	assert.InDelta(t, 8.0/12.0, m.UppercaseRatio, 1e-9)

	m = ComputeTextMetrics("12345 !!!")
	assert.Equal(t, 0.0, m.UppercaseRatio)
}

func TestComputeTextMetricsDigitAndSpecialRatio(t *testing.T) {
	m := ComputeTextMetrics("ab12!?")
	assert.InDelta(t, 2.0/6.0, m.DigitRatio, 1e-9)
	assert.InDelta(t, 2.0/6.0, m.SpecialRatio, 1e-9)
}

func TestComputeTextMetricsEmojiCount(t *testing.T) {
	m := ComputeTextMetrics("заработок 💰💰🔥 пиши 👇")
	assert.Equal(t, 4, m.EmojiCount)

	// Only the promo set counts.
	m = ComputeTextMetrics("привет 😀😀😀")
	assert.Equal(t, 0, m.EmojiCount)
}

func TestRepetitionScore(t *testing.T) {
	// Fewer than three tokens never score.
	assert.Equal(t, 0.0, ComputeTextMetrics("купи купи").RepetitionScore)

	// Case-folded repeats saturate at 1.
	m := ComputeTextMetrics("Купи купи КУПИ купи")
	assert.Equal(t, 1.0, m.RepetitionScore)

	m = ComputeTextMetrics("а б в г д е")
	assert.InDelta(t, 0.5, m.RepetitionScore, 1e-9)
}

func TestComputeTextMetricsWords(t *testing.T) {
	m := ComputeTextMetrics("добрый день всем")
	assert.Equal(t, 3, m.WordCount)
	assert.InDelta(t, (6.0+4.0+4.0)/3.0, m.AvgWordLen, 1e-9)
}
