package validation

import (
	"net/mail"
	"os"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_]{3,32}$`)

// MaxBatchFiles bounds a single publish batch; it doubles as the upload
// concurrency bound since all files in a batch upload at once.
const MaxBatchFiles = 10

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func ValidateEmail(email string) bool {
	email = strings.TrimSpace(email)
	if email == "" {
		return false
	}
	_, err := mail.ParseAddress(email)
	return err == nil
}

func NormalizeUsername(username string) string {
	return strings.TrimSpace(username)
}

func ValidateUsername(username string) bool {
	username = NormalizeUsername(username)
	return usernameRe.MatchString(username)
}

func PasswordMinLength() int {
	minStr := os.Getenv("PASSWORD_MIN_LENGTH")
	if minStr == "" {
		return 10
	}
	min, err := strconv.Atoi(minStr)
	if err != nil || min < 8 {
		return 10
	}
	return min
}

func ValidatePassword(password string) bool {
	return len(password) >= PasswordMinLength()
}

func MaxCaptionLength() int {
	maxStr := os.Getenv("MAX_CAPTION_LENGTH")
	if maxStr == "" {
		return 2200
	}
	max, err := strconv.Atoi(maxStr)
	if err != nil || max < 1 {
		return 2200
	}
	return max
}

func MaxReplyLength() int {
	maxStr := os.Getenv("MAX_REPLY_LENGTH")
	if maxStr == "" {
		return 1000
	}
	max, err := strconv.Atoi(maxStr)
	if err != nil || max < 1 {
		return 1000
	}
	return max
}

func ValidVisibility(v string) bool {
	switch v {
	case "public", "followers", "campus":
		return true
	}
	return false
}

func ValidMediaKind(k string) bool {
	switch k {
	case "image", "video", "text":
		return true
	}
	return false
}

// MediaKindForContentType maps an upload's content type onto a story media
// kind. Anything that is neither image nor video is treated as text.
func MediaKindForContentType(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return "image"
	case strings.HasPrefix(contentType, "video/"):
		return "video"
	default:
		return "text"
	}
}

// TrimAndLimit trims surrounding whitespace and caps the string at max
// bytes. The cut never splits a multi-byte rune: it backs off to the nearest
// rune boundary so the stored text stays valid UTF-8.
func TrimAndLimit(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
