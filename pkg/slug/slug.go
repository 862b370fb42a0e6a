package slug

import (
	"regexp"
	"strings"
)

var slugRegexp = regexp.MustCompile(`[^a-z0-9]+`)

// cyrillic transliterates the Russian and Kazakh alphabets to ASCII.
var cyrillic = strings.NewReplacer(
	"а", "a", "б", "b", "в", "v", "г", "g", "д", "d", "е", "e", "ё", "e",
	"ж", "zh", "з", "z", "и", "i", "й", "i", "к", "k", "л", "l", "м", "m",
	"н", "n", "о", "o", "п", "p", "р", "r", "с", "s", "т", "t", "у", "u",
	"ф", "f", "х", "kh", "ц", "ts", "ч", "ch", "ш", "sh", "щ", "shch",
	"ъ", "", "ы", "y", "ь", "", "э", "e", "ю", "iu", "я", "ia",
	"ә", "a", "ғ", "g", "қ", "q", "ң", "n", "ө", "o", "ұ", "u", "ү", "u",
	"һ", "h", "і", "i",
)

// Generate creates a URL-friendly slug from the given name, cut to at most
// maxLen bytes when maxLen is positive.
//
// Examples:
//   - "Мой аватар.png" → "moi-avatar-png"
//   - "Қазақ тілі" → "qazaq-tili"
//   - "Hello   World!" → "hello-world"
func Generate(name string, maxLen int) string {
	slug := cyrillic.Replace(strings.ToLower(strings.TrimSpace(name)))

	// Replace any non-alphanumeric characters with hyphens
	slug = slugRegexp.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")

	if maxLen > 0 && len(slug) > maxLen {
		slug = strings.TrimRight(slug[:maxLen], "-")
	}
	return slug
}
