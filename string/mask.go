package string

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// Mask replaces the second half of a string with asterisks. Single
// characters are fully masked so short secrets never leak whole.
func Mask(s string) string {
	switch len(s) {
	case 0:
		return s
	case 1:
		return "*"
	}
	keep := len(s) / 2
	return s[:keep] + strings.Repeat("*", len(s)-keep)
}

// MaskURL renders a connection URL with credentials, path and query values
// masked. Hosts and query keys stay readable so an operator can still tell
// which endpoint a config points at.
func MaskURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("failed to parse URL: %w", err)
	}
	var b strings.Builder
	b.WriteString(u.Scheme)
	b.WriteString("://")
	writeMaskedUser(&b, u.User)
	b.WriteString(u.Host)
	if p := u.Path; len(p) > 1 && p[0] == '/' {
		b.WriteString("/")
		b.WriteString(Mask(p[1:]))
	}
	if params := maskedQuery(u.Query()); len(params) > 0 {
		b.WriteString("?")
		b.WriteString(strings.Join(params, "&"))
	}
	return b.String(), nil
}

func writeMaskedUser(b *strings.Builder, user *url.Userinfo) {
	if user == nil {
		return
	}
	b.WriteString(Mask(user.Username()))
	if pass, ok := user.Password(); ok {
		b.WriteString(":")
		b.WriteString(Mask(pass))
	}
	b.WriteString("@")
}

func maskedQuery(values url.Values) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	params := make([]string, 0, len(keys))
	for _, k := range keys {
		params = append(params, k+"="+Mask(strings.Join(values[k], ",")))
	}
	return params
}

// MaskEmail hides the local part and the registered name of an email
// address, leaving the top level domain readable.
func MaskEmail(val string) string {
	at := strings.IndexByte(val, '@')
	if at < 0 {
		return Mask(val)
	}
	domain := val[at+1:]
	dot := strings.IndexByte(domain, '.')
	if dot < 0 {
		return Mask(val[:at]) + "@" + Mask(domain)
	}
	return Mask(val[:at]) + "@" + Mask(domain[:dot]) + domain[dot:]
}

var (
	urlLike   = regexp.MustCompile(`^(\w+)://`)
	emailLike = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	tokenLike = regexp.MustCompile(`^[a-zA-Z0-9-_]+\.[a-zA-Z0-9-_]+\.[a-zA-Z0-9-_]+$`)
)

// MaskValue masks arg when it looks like something sensitive: a URL, an
// email address or a dotted bearer token. Anything else passes through.
func MaskValue(arg string) string {
	switch {
	case urlLike.MatchString(arg):
		if u, err := MaskURL(arg); err == nil {
			return u
		}
		return Mask(arg)
	case emailLike.MatchString(arg):
		return MaskEmail(arg)
	case tokenLike.MatchString(arg):
		return Mask(arg)
	}
	return arg
}

// MaskArguments applies MaskValue to every element, for logging a command
// line or config dump without leaking credentials.
func MaskArguments(args []string) []string {
	masked := make([]string, len(args))
	for i, arg := range args {
		masked[i] = MaskValue(arg)
	}
	return masked
}

// MaskedString holds a secret that masks itself when printed but survives
// serialization intact. Config structs use it for API keys and shared
// secrets so a rendered config never shows the real value while the file
// on disk keeps it.
type MaskedString string

func NewMaskedString(s string) MaskedString {
	return MaskedString(s)
}

// Text returns the real value.
func (ms MaskedString) Text() string {
	return string(ms)
}

// Bytes returns the real value as a byte slice.
func (ms MaskedString) Bytes() []byte {
	return []byte(ms)
}

// String implements fmt.Stringer and returns the masked form.
func (ms MaskedString) String() string {
	if len(ms) == 0 {
		return ""
	}
	return Mask(string(ms))
}

// MarshalText masks, so %v, %s and text encoders never leak.
func (ms MaskedString) MarshalText() ([]byte, error) {
	return []byte(ms.String()), nil
}

// MarshalJSON emits the real value. JSON is the persistence format.
func (ms MaskedString) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(ms))
}

// MarshalYAML emits the real value. YAML is the persistence format.
func (ms MaskedString) MarshalYAML() (any, error) {
	return string(ms), nil
}

// GoString implements fmt.GoStringer so %#v also prints masked.
func (ms MaskedString) GoString() string {
	return ms.String()
}
