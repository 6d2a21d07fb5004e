package sanitize

import (
	"fmt"
	"regexp"
	"strings"
)

// Redacted replaces every secret value.
const Redacted = "[REDACTED]"

// Rule is a single redaction: every match of Pattern is replaced by
// Replacement (regexp template syntax, e.g. ${1}).
//
// Every rule must be a fixpoint on its own output so that sanitizing twice
// changes nothing.
type Rule struct {
	Name        string
	Pattern     *regexp.Regexp
	Replacement string
	// Accept, when set, must also approve a match before it is replaced.
	Accept func(match string) bool
}

// credentialKeys are the assignment keys whose values are always secret.
// Keys may carry a snake_case prefix (db_password, github_token).
const credentialKeys = `password|passwd|api[_-]?key|apikey|(?:access_|auth_|refresh_)?token|secret(?:_access)?(?:_key)?|client_secret`

// DefaultRules is the ordered rule table. Structured formats come first,
// the generic long-token rule last.
var DefaultRules = []Rule{
	{
		Name:        "pem_private_key",
		Pattern:     regexp.MustCompile(`-----BEGIN ([A-Z0-9 ]*)PRIVATE KEY-----[\s\S]*?-----END ([A-Z0-9 ]*)PRIVATE KEY-----`),
		Replacement: "-----BEGIN ${1}PRIVATE KEY-----\n" + Redacted + "\n-----END ${2}PRIVATE KEY-----",
	},
	{
		Name:        "ssh_public_key",
		Pattern:     regexp.MustCompile(`\b(ssh-(?:rsa|ed25519|dss)|ecdsa-sha2-nistp[0-9]+|sk-ssh-ed25519@openssh\.com)[ \t]+[A-Za-z0-9+/]{20,}={0,3}`),
		Replacement: "${1} " + Redacted,
	},
	{
		Name:        "bearer_token",
		Pattern:     regexp.MustCompile(`(?i)\b(bearer[ \t]+)[A-Za-z0-9\-._~+/]{16,}=*`),
		Replacement: "${1}" + Redacted,
	},
	{
		Name:        "jwt",
		Pattern:     regexp.MustCompile(`\beyJ[A-Za-z0-9_-]+\.eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`),
		Replacement: Redacted,
	},
	{
		Name:        "connection_string",
		Pattern:     regexp.MustCompile(`(?i)\b(mongodb(?:\+srv)?|postgres(?:ql)?|mysql|rediss?)://[^\s"'<>]+`),
		Replacement: "${1}://" + Redacted,
	},
	{
		Name:        "aws_access_key",
		Pattern:     regexp.MustCompile(`\b(?:AKIA|ASIA)[0-9A-Z]{16}\b`),
		Replacement: Redacted,
	},
	{
		Name:        "gcp_api_key",
		Pattern:     regexp.MustCompile(`\bAIza[0-9A-Za-z_\-]{35}`),
		Replacement: Redacted,
	},
	{
		Name:        "github_token",
		Pattern:     regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{36,}\b`),
		Replacement: Redacted,
	},
	{
		Name:        "slack_token",
		Pattern:     regexp.MustCompile(`\bxox[abprs]-[A-Za-z0-9-]{10,}`),
		Replacement: Redacted,
	},
	{
		Name:        "llm_api_key",
		Pattern:     regexp.MustCompile(`\bsk-(?:ant-|proj-)?[A-Za-z0-9_-]{20,}`),
		Replacement: Redacted,
	},
	{
		// password="x", 'api_key': 'x', "token": "x"
		Name:        "quoted_credential",
		Pattern:     regexp.MustCompile(fmt.Sprintf(`(?i)\b((?:[a-z0-9]+_)*(?:%s)["']?[ \t]*[=:][ \t]*)(?:(")[^"\n]*"|(')[^'\n]*')`, credentialKeys)),
		Replacement: "${1}${2}${3}" + Redacted + "${2}${3}",
	},
	{
		// PASSWORD=x in env files, ?token=x in URLs, --secret=x flags,
		// token = x assignments and secret: x in YAML. A value may not start
		// with '=' so Go's token := f() stays intact.
		Name:        "bare_credential",
		Pattern:     regexp.MustCompile(fmt.Sprintf(`(?i)\b((?:[a-z0-9]+_)*(?:%s)[ \t]*[=:][ \t]*)([^\s"'\[&,;()=][^\s"'\[&,;()]*)`, credentialKeys)),
		Replacement: "${1}" + Redacted,
	},
	{
		Name:        "long_base64",
		Pattern:     regexp.MustCompile(`[A-Za-z0-9+/]{40,}={0,2}`),
		Replacement: Redacted,
		Accept:      looksRandom,
	},
}

// looksRandom tells encoded key material from long identifiers and slash
// paths. Random base64 switches between lowercase, uppercase, digits and
// symbols on most characters; camelCase names and paths switch only at word
// boundaries. Padding is ignored.
func looksRandom(s string) bool {
	s = strings.TrimRight(s, "=")
	if len(s) < 2 {
		return false
	}
	switches := 0
	for i := 1; i < len(s); i++ {
		if charClass(s[i]) != charClass(s[i-1]) {
			switches++
		}
	}
	return switches*3 >= len(s)
}

func charClass(c byte) int {
	switch {
	case c >= 'a' && c <= 'z':
		return 0
	case c >= 'A' && c <= 'Z':
		return 1
	case c >= '0' && c <= '9':
		return 2
	}
	return 3
}
