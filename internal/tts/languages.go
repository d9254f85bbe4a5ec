package tts

import (
	"sort"
	"strings"

	"github.com/hegedustibor/htgo-tts/voices"
)

// DefaultLanguage is used for guilds that never picked one.
const DefaultLanguage = "ko"

// Language is a synthesis language the provider accepts.
type Language struct {
	Code string
	Name string
}

var languages = map[string]string{
	"af":              "Afrikaans",
	"ar":              "Arabic",
	"bg":              "Bulgarian",
	"bn":              "Bengali",
	"ca":              "Catalan",
	"cs":              "Czech",
	"da":              "Danish",
	voices.German:     "German",
	"el":              "Greek",
	voices.English:    "English",
	voices.EnglishUK:  "English (UK)",
	voices.Spanish:    "Spanish",
	"et":              "Estonian",
	"fi":              "Finnish",
	voices.French:     "French",
	"gu":              "Gujarati",
	"hi":              "Hindi",
	"hr":              "Croatian",
	"hu":              "Hungarian",
	"id":              "Indonesian",
	"is":              "Icelandic",
	voices.Italian:    "Italian",
	"iw":              "Hebrew",
	voices.Japanese:   "Japanese",
	"jw":              "Javanese",
	"km":              "Khmer",
	"kn":              "Kannada",
	voices.Korean:     "Korean",
	"la":              "Latin",
	"lv":              "Latvian",
	"ml":              "Malayalam",
	"mr":              "Marathi",
	"ms":              "Malay",
	"my":              "Myanmar (Burmese)",
	"ne":              "Nepali",
	"nl":              "Dutch",
	"no":              "Norwegian",
	"pl":              "Polish",
	voices.Portuguese: "Portuguese",
	"ro":              "Romanian",
	voices.Russian:    "Russian",
	"si":              "Sinhala",
	"sk":              "Slovak",
	"sq":              "Albanian",
	"sr":              "Serbian",
	"su":              "Sundanese",
	"sv":              "Swedish",
	"sw":              "Swahili",
	"ta":              "Tamil",
	"te":              "Telugu",
	"th":              "Thai",
	"tl":              "Filipino",
	"tr":              "Turkish",
	"uk":              "Ukrainian",
	"ur":              "Urdu",
	"vi":              "Vietnamese",
	"zh-CN":           "Chinese (Simplified)",
	"zh-TW":           "Chinese (Traditional)",
}

// Lookup reports whether code is a supported language and its display name.
// Codes are matched exactly, as the provider does.
func Lookup(code string) (Language, bool) {
	name, ok := languages[strings.TrimSpace(code)]
	if !ok {
		return Language{}, false
	}
	return Language{Code: strings.TrimSpace(code), Name: name}, true
}

// Languages returns every supported language ordered by code.
func Languages() []Language {
	out := make([]Language, 0, len(languages))
	for code, name := range languages {
		out = append(out, Language{Code: code, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// FormatLanguages renders the table as "code (name), ..." for chat replies.
func FormatLanguages() string {
	langs := Languages()
	parts := make([]string, len(langs))
	for i, l := range langs {
		parts[i] = l.Code + " (" + l.Name + ")"
	}
	return strings.Join(parts, ", ")
}
