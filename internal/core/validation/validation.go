package validation

import (
	"regexp"
	"strings"
)

// Lang selects the language of validation messages.
type Lang string

const (
	LangNo Lang = "no"
	LangEn Lang = "en"
)

// Result is the outcome of a username validation.
type Result struct {
	Valid bool
	Error string
}

// PhoneResult is the outcome of a phone validation. Normalized is only set
// when Valid is true.
type PhoneResult struct {
	Valid      bool
	Error      string
	Normalized string
}

var (
	usernameCharset = regexp.MustCompile(`^[a-z][a-z0-9._-]*$`)
	phoneStrip      = regexp.MustCompile(`[\s\-+]`)
	digitsOnly      = regexp.MustCompile(`^\d+$`)
)

var reservedUsernames = map[string]struct{}{
	"admin": {}, "crew": {}, "guest": {}, "root": {}, "system": {}, "support": {},
	"kiosk": {}, "test": {}, "null": {}, "staff": {}, "event": {}, "security": {},
}

type messageKey int

const (
	msgUsernameRequired messageKey = iota
	msgUsernameLength
	msgUsernameStart
	msgUsernameCharset
	msgUsernameDoubleSep
	msgUsernameTrailingSep
	msgUsernameReserved
	msgPhoneRequired
	msgPhoneDigits
	msgPhoneLength
)

var messages = map[Lang]map[messageKey]string{
	LangNo: {
		msgUsernameRequired:    "SpicyMatch brukernavn er påkrevd",
		msgUsernameLength:      "SpicyMatch brukernavn må være 3–32 tegn",
		msgUsernameStart:       "SpicyMatch brukernavn må starte med en bokstav (a–z)",
		msgUsernameCharset:     "Bruk kun bokstaver (a–z), tall, punktum, bindestrek eller underscore. Ingen mellomrom.",
		msgUsernameDoubleSep:   "Ingen doble separatorer (.., --, __) tillatt",
		msgUsernameTrailingSep: "SpicyMatch brukernavn kan ikke slutte med punktum, bindestrek eller underscore",
		msgUsernameReserved:    "Dette SpicyMatch brukernavnet er reservert",
		msgPhoneRequired:       "Mobilnummer er påkrevd",
		msgPhoneDigits:         "Mobilnummer kan kun inneholde tall",
		msgPhoneLength:         "Mobilnummer må være 8–15 siffer (inkl. landskode)",
	},
	LangEn: {
		msgUsernameRequired:    "SpicyMatch username is required",
		msgUsernameLength:      "SpicyMatch username must be 3–32 characters",
		msgUsernameStart:       "SpicyMatch username must start with a letter (a–z)",
		msgUsernameCharset:     "Use only letters (a–z), digits, dot, dash or underscore. No spaces.",
		msgUsernameDoubleSep:   "Double separators (.., --, __) are not allowed",
		msgUsernameTrailingSep: "SpicyMatch username cannot end with a dot, dash or underscore",
		msgUsernameReserved:    "This SpicyMatch username is reserved",
		msgPhoneRequired:       "Phone number is required",
		msgPhoneDigits:         "Phone number may only contain digits",
		msgPhoneLength:         "Phone number must be 8–15 digits (including country code)",
	},
}

func message(lang Lang, key messageKey) string {
	if m, ok := messages[lang]; ok {
		return m[key]
	}
	return messages[LangNo][key]
}

// ValidateUsername validates a platform username with Norwegian messages.
func ValidateUsername(input string) Result {
	return ValidateUsernameLang(input, LangNo)
}

// ValidateUsernameLang checks the username rules in order and reports the
// first one that fails.
func ValidateUsernameLang(input string, lang Lang) Result {
	if input == "" {
		return Result{Error: message(lang, msgUsernameRequired)}
	}

	normalized := NormalizeUsername(input)

	if n := len(normalized); n < 3 || n > 32 {
		return Result{Error: message(lang, msgUsernameLength)}
	}
	if c := normalized[0]; c < 'a' || c > 'z' {
		return Result{Error: message(lang, msgUsernameStart)}
	}
	if !usernameCharset.MatchString(normalized) {
		return Result{Error: message(lang, msgUsernameCharset)}
	}
	if strings.Contains(normalized, "..") || strings.Contains(normalized, "--") || strings.Contains(normalized, "__") {
		return Result{Error: message(lang, msgUsernameDoubleSep)}
	}
	switch normalized[len(normalized)-1] {
	case '.', '_', '-':
		return Result{Error: message(lang, msgUsernameTrailingSep)}
	}
	if _, reserved := reservedUsernames[normalized]; reserved {
		return Result{Error: message(lang, msgUsernameReserved)}
	}

	return Result{Valid: true}
}

// NormalizeUsername trims and lowercases. It does not validate.
func NormalizeUsername(input string) string {
	return strings.ToLower(strings.TrimSpace(input))
}

// ValidatePhone validates a phone number with Norwegian messages.
func ValidatePhone(input string) PhoneResult {
	return ValidatePhoneLang(input, LangNo)
}

// ValidatePhoneLang strips spaces, dashes and '+' and requires 8–15 digits.
func ValidatePhoneLang(input string, lang Lang) PhoneResult {
	if input == "" {
		return PhoneResult{Error: message(lang, msgPhoneRequired)}
	}

	normalized := NormalizePhone(input)

	if !digitsOnly.MatchString(normalized) {
		return PhoneResult{Error: message(lang, msgPhoneDigits)}
	}
	if n := len(normalized); n < 8 || n > 15 {
		return PhoneResult{Error: message(lang, msgPhoneLength)}
	}

	return PhoneResult{Valid: true, Normalized: normalized}
}

// NormalizePhone strips spaces, dashes and '+' only.
func NormalizePhone(input string) string {
	return phoneStrip.ReplaceAllString(input, "")
}

// MaskPhone keeps the last four digits, for logging.
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
