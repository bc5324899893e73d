package validator

import (
	"fmt"
	"mime"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	minUsernameLength  = 3
	maxUsernameLength  = 32
	minPasswordLength  = 8
	maxPasswordLength  = 72
	maxBlockNameLen    = 255
	maxSearchQueryLen  = 255
	maxContentTypeLen  = 255
	defaultContentType = "application/octet-stream"
	pathSeparators     = `/\`

	errUsernameLengthFmt       = "username must be between %d and %d characters"
	errUsernameInvalidFmt      = "username may only contain letters, digits, '.', '_' and '-'"
	errPasswordMinLengthFmt    = "password must be at least %d characters"
	errPasswordMaxLengthFmt    = "password must not exceed %d characters"
	errNameEmptyFmt            = "name cannot be empty"
	errNameMaxLengthFmt        = "name must not exceed %d characters"
	errNameInvalidUTF8Fmt      = "name must be valid UTF-8"
	errNameControlCharsFmt     = "name cannot contain control characters"
	errNameSeparatorFmt        = "name cannot contain path separators"
	errSearchQueryMaxLengthFmt = "search query must not exceed %d characters"
	errContentTypeMaxLengthFmt = "content type must not exceed %d characters"
	errContentTypeInvalidFmt   = "invalid content type"
	errFileSizeNegativeFmt     = "file size cannot be negative"
	errFileSizeMaxFmt          = "file size exceeds maximum of %d bytes"
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// Username checks length and character set; callers lower-case before storing.
func Username(username string) error {
	if n := utf8.RuneCountInString(username); n < minUsernameLength || n > maxUsernameLength {
		return fmt.Errorf(errUsernameLengthFmt, minUsernameLength, maxUsernameLength)
	}

	if !usernameRegex.MatchString(username) {
		return fmt.Errorf(errUsernameInvalidFmt)
	}

	return nil
}

// Password bounds match what bcrypt will actually hash.
func Password(password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf(errPasswordMinLengthFmt, minPasswordLength)
	}

	if len(password) > maxPasswordLength {
		return fmt.Errorf(errPasswordMaxLengthFmt, maxPasswordLength)
	}

	return nil
}

// BlockName trims surrounding whitespace and returns the name to store.
// Valid names have 1 to 255 characters and no control characters or path
// separators.
func BlockName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf(errNameEmptyFmt)
	}

	if !utf8.ValidString(name) {
		return "", fmt.Errorf(errNameInvalidUTF8Fmt)
	}

	if utf8.RuneCountInString(name) > maxBlockNameLen {
		return "", fmt.Errorf(errNameMaxLengthFmt, maxBlockNameLen)
	}

	for _, char := range name {
		if unicode.IsControl(char) {
			return "", fmt.Errorf(errNameControlCharsFmt)
		}
	}

	if strings.ContainsAny(name, pathSeparators) {
		return "", fmt.Errorf(errNameSeparatorFmt)
	}

	return name, nil
}

// SearchQuery trims the query. An empty result is valid and matches nothing.
func SearchQuery(query string) (string, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) > maxSearchQueryLen {
		return "", fmt.Errorf(errSearchQueryMaxLengthFmt, maxSearchQueryLen)
	}
	return query, nil
}

func FileSize(size, maxBytes int64) error {
	if size < 0 {
		return fmt.Errorf(errFileSizeNegativeFmt)
	}

	if maxBytes > 0 && size > maxBytes {
		return fmt.Errorf(errFileSizeMaxFmt, maxBytes)
	}

	return nil
}

// ContentType validates and normalizes a media type, defaulting to
// application/octet-stream when empty.
func ContentType(contentType string) (string, error) {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return defaultContentType, nil
	}

	if len(contentType) > maxContentTypeLen {
		return "", fmt.Errorf(errContentTypeMaxLengthFmt, maxContentTypeLen)
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf(errContentTypeInvalidFmt)
	}

	return mime.FormatMediaType(mediaType, params), nil
}
