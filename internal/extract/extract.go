// Package extract scans conversation transcripts for cultural signals:
// named entities from self-report phrasings, topical keywords, and the
// coarse categories those keywords belong to.
package extract

import (
	"regexp"
	"strings"
)

// Extraction is the structured result of scanning one transcript.
// Always produced fresh; never mutated in place.
type Extraction struct {
	Entities   []string `json:"entities"`
	Keywords   []string `json:"keywords"`
	Categories []string `json:"categories"`
	Confidence float64  `json:"confidence"`
}

// Empty reports whether the scan found no entities and no keywords.
func (e Extraction) Empty() bool {
	return len(e.Entities) == 0 && len(e.Keywords) == 0
}

// Segment is one timestamped utterance of a segmented transcript.
type Segment struct {
	Text      string  `json:"text"`
	Timestamp float64 `json:"timestamp,omitempty"`
	Speaker   string  `json:"speaker,omitempty"`
}

// keyword table ordered by category so output order is reproducible.
var culturalKeywords = []struct {
	category string
	words    []string
}{
	{"entertainment", []string{
		// movies & tv
		"movie", "film", "netflix", "disney", "marvel", "cinema", "director", "actor", "series", "show",
		"streaming", "hulu", "amazon prime", "hbo", "documentary", "comedy", "drama", "thriller",
		// music
		"music", "song", "album", "artist", "band", "spotify", "apple music", "concert", "festival",
		"jazz", "rock", "pop", "classical", "hip hop", "country", "electronic", "indie",
		// books & literature
		"book", "author", "novel", "reading", "kindle", "audiobook", "bestseller", "fiction",
		"non-fiction", "biography", "poetry", "magazine", "newspaper",
		// gaming
		"game", "gaming", "xbox", "playstation", "nintendo", "steam", "mobile game", "esports",
		"twitch", "multiplayer", "rpg", "strategy",
	}},
	{"lifestyle", []string{
		// food & dining
		"restaurant", "cuisine", "cooking", "chef", "food", "dining", "coffee", "wine",
		"italian", "chinese", "mexican", "sushi", "pizza", "burger", "vegan", "organic",
		// travel & culture
		"travel", "vacation", "culture", "museum", "art gallery", "theater", "opera",
		"architecture", "history", "photography", "painting", "sculpture",
		// sports & activities
		"sports", "fitness", "yoga", "running", "cycling", "swimming", "hiking",
		"basketball", "football", "soccer", "tennis", "golf", "gym", "workout",
		// technology
		"technology", "tech", "startup", "innovation", "ai", "machine learning",
		"coding", "programming", "software", "app", "digital", "internet",
	}},
}

// Self-report phrasings people use when talking about their tastes.
var entityPatterns = []*regexp.Regexp{
	// movies & tv
	regexp.MustCompile(`(?i)\b(?:watched|love|favorite|enjoyed|binge)\s+([a-z][a-z\s&]+)(?:\s+(?:movie|film|show|series))`),
	// music
	regexp.MustCompile(`(?i)\b(?:listen to|love|favorite)\s+([a-z][a-z\s&]+)(?:\s+(?:music|band|artist))`),
	// books
	regexp.MustCompile(`(?i)\b(?:read|reading|loved)\s+([a-z][a-z\s&'"]+)(?:\s+(?:book|novel))`),
	// general enthusiasm
	regexp.MustCompile(`(?i)\b(?:big fan of|really into|passionate about)\s+([a-z][a-z\s&]+)`),
}

const minEntityLen = 3

// FromText extracts cultural entities, keywords, and categories from a
// raw transcript. Output lists are deduplicated in first-occurrence
// order; Confidence counts raw mentions, before dedup, so repeating a
// preference still reads as a stronger signal.
func FromText(text string) Extraction {
	normalized := strings.ToLower(text)

	rawEntities := matchEntities(normalized)
	rawKeywords := matchKeywords(normalized)

	keywords := dedupe(rawKeywords)
	return Extraction{
		Entities:   dedupe(rawEntities),
		Keywords:   keywords,
		Categories: categorize(keywords),
		Confidence: Confidence(len(rawEntities), len(rawKeywords)),
	}
}

// FromSegments joins segment texts with single spaces in order and
// extracts from the combined transcript.
func FromSegments(segments []Segment) Extraction {
	parts := make([]string, len(segments))
	for i, seg := range segments {
		parts[i] = seg.Text
	}
	return FromText(strings.Join(parts, " "))
}

// Confidence maps combined entity+keyword mention counts onto [0,1].
// Monotonically non-decreasing step function.
func Confidence(entityCount, keywordCount int) float64 {
	total := entityCount + keywordCount
	switch {
	case total == 0:
		return 0
	case total >= 10:
		return 1.0
	case total >= 5:
		return 0.8
	case total >= 3:
		return 0.6
	default:
		return 0.4
	}
}

func matchEntities(text string) []string {
	var entities []string
	for _, pattern := range entityPatterns {
		for _, m := range pattern.FindAllStringSubmatch(text, -1) {
			phrase := strings.TrimSpace(m[1])
			if len(phrase) >= minEntityLen {
				entities = append(entities, phrase)
			}
		}
	}
	return entities
}

func matchKeywords(text string) []string {
	var found []string
	for _, group := range culturalKeywords {
		for _, word := range group.words {
			if strings.Contains(text, word) {
				found = append(found, word)
			}
		}
	}
	return found
}

func categorize(keywords []string) []string {
	keywordSet := make(map[string]bool, len(keywords))
	for _, k := range keywords {
		keywordSet[k] = true
	}

	var categories []string
	for _, group := range culturalKeywords {
		for _, word := range group.words {
			if keywordSet[word] {
				categories = append(categories, group.category)
				break
			}
		}
	}
	return categories
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}
