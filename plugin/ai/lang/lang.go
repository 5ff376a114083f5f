// Package lang detects the language of incoming chat messages.
//
// Detection is a pure Unicode script test: Urdu is written in Arabic
// script, English in Latin script. Digits, spaces and punctuation are
// ignored so "buy milk at 5" and "۵ بجے دودھ" both classify cleanly.
package lang

import (
	"unicode"
)

// Language is a detected input language tag.
type Language string

const (
	English Language = "en"
	Urdu    Language = "ur"
	Mixed   Language = "mixed"
)

// DetectionResult carries the detected language with script ratios.
type DetectionResult struct {
	Language     Language
	Confidence   float64
	UrduRatio    float64
	EnglishRatio float64
}

func isUrduRune(r rune) bool {
	return unicode.Is(unicode.Arabic, r)
}

func isEnglishRune(r rune) bool {
	return r < 128 && unicode.IsLetter(r)
}

// Detect classifies the text as English, Urdu or Mixed. Empty or
// symbol-only input defaults to English.
func Detect(text string) DetectionResult {
	urduCount, englishCount, totalCount := 0, 0, 0

	for _, r := range text {
		if unicode.IsSpace(r) || unicode.IsDigit(r) || unicode.IsPunct(r) {
			continue
		}
		totalCount++
		if isUrduRune(r) {
			urduCount++
		} else if isEnglishRune(r) {
			englishCount++
		}
	}

	if totalCount == 0 {
		return DetectionResult{Language: English, Confidence: 0.5}
	}

	urduRatio := float64(urduCount) / float64(totalCount)
	englishRatio := float64(englishCount) / float64(totalCount)

	result := DetectionResult{UrduRatio: urduRatio, EnglishRatio: englishRatio}
	switch {
	case urduRatio > 0.7:
		result.Language, result.Confidence = Urdu, urduRatio
	case englishRatio > 0.7:
		result.Language, result.Confidence = English, englishRatio
	case urduRatio > englishRatio:
		result.Confidence = urduRatio
		if urduRatio > 0.3 {
			result.Language = Urdu
		} else {
			result.Language = Mixed
		}
	default:
		result.Confidence = englishRatio
		if englishRatio > 0.3 {
			result.Language = English
		} else {
			result.Language = Mixed
		}
	}

	return result
}
