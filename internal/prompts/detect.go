package prompts

import "unicode"

// script is a writing system that identifies a locale on its own.
type script struct {
	locale string
	table  *unicode.RangeTable
}

var scripts = []script{
	{"ko", unicode.Hangul},
	{"ja", unicode.Hiragana},
	{"ja", unicode.Katakana},
	{"zh", unicode.Han},
}

const syllableWeight = 3

// Detection is the outcome of LocaleDetector.Detect.
type Detection struct {
	Locale     string
	Confidence float64
	Scores     map[string]int
	Reasoning  string
}

// LocaleDetector guesses a question's locale by counting letters per script.
// Latin text, or text with no letters at all, is reported as "en".
type LocaleDetector struct{}

func NewLocaleDetector() *LocaleDetector {
	return &LocaleDetector{}
}

func (d *LocaleDetector) Detect(text string) Detection {
	scores := map[string]int{}
	latin := 0
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		if unicode.Is(unicode.Latin, r) {
			latin++
			continue
		}
		for _, s := range scripts {
			if unicode.Is(s.table, r) {
				// one syllabic character carries about as much as a short Latin word
				scores[s.locale] += syllableWeight
				break
			}
		}
	}
	scores["en"] = latin

	total := 0
	best, bestScore := "en", 0
	for loc, n := range scores {
		total += n
		if n > bestScore || (n == bestScore && loc < best) {
			best, bestScore = loc, n
		}
	}

	if total == 0 {
		return Detection{
			Locale:     "en",
			Confidence: 0.5,
			Scores:     scores,
			Reasoning:  "no letters, defaulting to en",
		}
	}
	// Han characters are shared with Japanese; kana decides.
	if best == "zh" && scores["ja"] > 0 {
		best = "ja"
	}
	return Detection{
		Locale:     best,
		Confidence: float64(bestScore) / float64(total),
		Scores:     scores,
		Reasoning:  "most letters belong to the " + best + " script",
	}
}
