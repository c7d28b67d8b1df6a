// Package language stores and resolves the interface language of each user.
package language

import (
	"sort"
	"strings"
)

// Language is one selectable interface language.
type Language struct {
	// Name is shown on the picker button and doubles as its callback payload.
	Name string
	// Code is the locale code, e.g. "es_ES".
	Code string
}

// DefaultCode is used when neither the store nor the platform locale yields a language.
const DefaultCode = "en_GB"

var all = []Language{
	{"🇬🇧 English (UK)", "en_GB"},
	{"🇺🇸 English (US)", "en_US"},
	{"🇭🇰 廣東話", "zh_HK"},
	{"🇹🇼 繁體中文", "zh_TW"},
	{"🇨🇳 简体中文", "zh_CN"},
	{"🇮🇹 Italiano", "it_IT"},
	{"🇦🇪 اَلْعَرَبِيَّةُ", "ar_SA"},
	{"🇳🇱 Nederlands", "nl_NL"},
	{"🇧🇷 Português do Brasil", "pt_BR"},
	{"🇪🇸 español", "es_ES"},
	{"🇹🇷 Türkçe", "tr_TR"},
	{"🇮🇱 עברית", "he_IL"},
	{"🇷🇺 русский язык", "ru_RU"},
	{"🇫🇷 français", "fr_FR"},
	{"🇱🇰 සිංහල", "si_LK"},
	{"🇿🇦 Afrikaans", "af_ZA"},
	{"català", "ca_ES"},
	{"🇨🇿 čeština", "cs_CZ"},
	{"🇩🇰 dansk", "da_DK"},
	{"🇫🇮 suomen kieli", "fi_FI"},
	{"🇩🇪 Deutsch", "de_DE"},
	{"🇬🇷 ελληνικά", "el_GR"},
	{"🇭🇺 magyar nyelv", "hu_HU"},
	{"🇯🇵 日本語", "ja_JP"},
	{"🇰🇷 한국어", "ko_KR"},
	{"🇳🇴 norsk", "no_NO"},
	{"🇵🇱 polski", "pl_PL"},
	{"🇵🇹 português", "pt_PT"},
	{"🇷🇴 Daco-Romanian", "ro_RO"},
	{"🇸🇪 svenska", "sv_SE"},
	{"🇺🇦 українська мова", "uk_UA"},
	{"🇻🇳 Tiếng Việt", "vi_VN"},
	{"🇮🇳 हिन्दी", "hi_IN"},
	{"🇮🇩 bahasa Indonesia", "id_ID"},
	{"🇺🇿 O'zbekcha", "uz_UZ"},
	{"🇲🇾 Bahasa Melayu", "ms_MY"},
	{"🇮🇳 தமிழ்", "ta_IN"},
	{"🇪🇹 አማርኛ", "am_ET"},
	{"🇰🇬 Кыргызча", "ky_KG"},
}

var (
	byName  = make(map[string]string, len(all))
	byCode  = make(map[string]string, len(all))
	byShort = make(map[string]string, len(all))
)

func init() {
	for _, l := range all {
		byName[l.Name] = l.Code
		byCode[l.Code] = l.Name
		// Later entries win, so "en" resolves to en_US and "pt" to pt_PT.
		byShort[ShortCode(l.Code)] = l.Code
	}
}

// All returns every language sorted by code.
func All() []Language {
	out := append([]Language(nil), all...)
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// IsDisplayName reports whether name is a picker label.
func IsDisplayName(name string) bool {
	_, ok := byName[name]
	return ok
}

// CodeFor returns the code behind a display name.
func CodeFor(name string) (string, bool) {
	code, ok := byName[name]
	return code, ok
}

// NameFor returns the display name of code.
func NameFor(code string) (string, bool) {
	name, ok := byCode[code]
	return name, ok
}

// IsCode reports whether code is one of the supported locale codes.
func IsCode(code string) bool {
	_, ok := byCode[code]
	return ok
}

// ShortCode strips the region: "es_ES" becomes "es".
func ShortCode(code string) string {
	code = strings.ReplaceAll(code, "-", "_")
	if i := strings.IndexByte(code, '_'); i >= 0 {
		code = code[:i]
	}
	return strings.ToLower(code)
}

// FromShortCode maps a platform locale such as "es" or "pt-BR" to a supported code.
func FromShortCode(platform string) (string, bool) {
	platform = strings.TrimSpace(platform)
	if platform == "" {
		return "", false
	}
	if full := strings.ReplaceAll(platform, "-", "_"); IsCode(full) {
		return full, true
	}
	code, ok := byShort[ShortCode(platform)]
	return code, ok
}
