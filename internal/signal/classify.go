// Package signal classifies string literals found in method bodies and
// builds the graph of methods that hold or reach them.
package signal

import (
	"math"
	"regexp"
	"strings"
)

// Categories a string literal can fall into.
const (
	CatURL        = "url"
	CatHost       = "host"
	CatEncryption = "encryption"
	CatAuth       = "auth"
	CatNet        = "net"
	CatFileExt    = "file"
	CatBase64Key  = "base64"
	CatRegistry   = "registry"
	CatProcess    = "process"
)

// Severity levels, highest first.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
	SeverityLow    = "low"
)

var severities = map[string]string{
	CatEncryption: SeverityHigh,
	CatAuth:       SeverityHigh,
	CatBase64Key:  SeverityHigh,
	CatProcess:    SeverityHigh,
	CatURL:        SeverityMedium,
	CatHost:       SeverityMedium,
	CatRegistry:   SeverityMedium,
}

var (
	reURL       = regexp.MustCompile(`(?i)(https?|wss?|ftp)://`)
	reIPLiteral = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)
	reBase64    = regexp.MustCompile(`^[A-Za-z0-9+/=]{16,}$`)

	// Short crypto words need word boundaries ("rsa" in "Traversal", "iv"
	// in "Invalid").
	reCryptoShort = regexp.MustCompile(`(?i)(^|[^a-zA-Z])(aes|rsa|dsa|ecdsa|ecdh|hmac|sha1|sha256|sha384|sha512|md5|cbc|ecb|gcm|pkcs|xor|rc2|rc4|des|3des|salt|iv)([^a-zA-Z]|$)`)

	reAuth     = regexp.MustCompile(`(?i)(^|[^a-zA-Z])(oauth|jwt|bearer|credential|passwd|apikey|api_key|api-key|authorization|authenticate|connectionstring)([^a-zA-Z]|$)`)
	reAuthWord = regexp.MustCompile(`(?i)(^|[^a-z])(password|pwd|token|secret|login)([^a-z]|$)`)

	reRegistry = regexp.MustCompile(`(?i)^(HKEY_[A-Z_]+|HKLM|HKCU|HKCR)(\\|$)|software\\(microsoft|wow6432node|classes)\\`)
	reProcess  = regexp.MustCompile(`(?i)(^|[\\/\s"])(cmd|powershell|pwsh|rundll32|regsvr32|schtasks|mshta|wscript|cscript|certutil)(\.exe)?(\s|"|$)`)
)

// Matched against the lowercased literal with _ - . and spaces removed.
var cryptoKeywords = []string{
	"encrypt", "decrypt", "cipher", "rijndael", "tripledes", "pbkdf", "rfc2898",
	"argon2", "bcrypt", "scrypt", "signature", "digest", "privatekey", "publickey",
	"hmacsha", "chacha", "blowfish", "twofish", "nonce", "saltvalue", "x509",
}

var netKeywords = []string{
	"socket", "connect", "dns", "proxy", "redirect", "tcpclient", "webclient", "httpclient",
}

var httpMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true, "PATCH": true, "HEAD": true, "OPTIONS": true,
}

var fileExtensions = []string{
	".dll", ".exe", ".so", ".dylib",
	".config", ".json", ".xml", ".yaml", ".yml", ".ini",
	".db", ".sqlite", ".mdb",
	".key", ".pem", ".cer", ".crt", ".pfx", ".p12", ".snk",
	".ps1", ".bat", ".cmd", ".vbs", ".js",
	".zip", ".gz",
}

// literal is a string prepared once for every classifier.
type literal struct {
	raw     string
	lower   string
	squash  string // lower without separators
	trimmed string
}

type classifier struct {
	cat   string
	match func(l *literal) bool
}

// classifiers run in order; the order fixes the order of the result.
var classifiers = []classifier{
	{CatURL, func(l *literal) bool { return reURL.MatchString(l.raw) }},
	{CatHost, func(l *literal) bool { return reIPLiteral.MatchString(l.raw) }},
	{CatEncryption, func(l *literal) bool {
		return containsAny(l.squash, cryptoKeywords) || reCryptoShort.MatchString(l.raw)
	}},
	{CatAuth, func(l *literal) bool { return reAuth.MatchString(l.raw) || reAuthWord.MatchString(l.raw) }},
	{CatNet, func(l *literal) bool { return httpMethods[l.raw] || containsAny(l.lower, netKeywords) }},
	{CatFileExt, hasFileExtension},
	{CatRegistry, func(l *literal) bool { return reRegistry.MatchString(l.raw) }},
	{CatProcess, func(l *literal) bool { return reProcess.MatchString(l.raw) }},
	{CatBase64Key, func(l *literal) bool {
		// Identifiers match the base64 alphabet too.
		return reBase64.MatchString(l.trimmed) && Entropy(l.raw) > 3.5 && !isIdentifier(l.trimmed)
	}},
}

// ClassifyString returns the signal categories matching value, or nil when
// the string carries no signal.
func ClassifyString(value string) []string {
	if len(value) < 2 {
		return nil
	}
	l := &literal{
		raw:     value,
		lower:   strings.ToLower(value),
		squash:  squash(value),
		trimmed: strings.TrimSpace(value),
	}
	var cats []string
	for _, c := range classifiers {
		if c.match(l) {
			cats = append(cats, c.cat)
		}
	}
	return cats
}

// CategorySeverity returns the severity level for a category.
func CategorySeverity(cat string) string {
	if s, ok := severities[cat]; ok {
		return s
	}
	return SeverityLow
}

// MaxSeverity returns the highest severity from a list of categories.
func MaxSeverity(categories []string) string {
	best := SeverityLow
	for _, c := range categories {
		switch CategorySeverity(c) {
		case SeverityHigh:
			return SeverityHigh
		case SeverityMedium:
			best = SeverityMedium
		}
	}
	return best
}

func hasFileExtension(l *literal) bool {
	for _, ext := range fileExtensions {
		if strings.HasSuffix(l.lower, ext) || strings.Contains(l.lower, ext+" ") || strings.Contains(l.lower, ext+",") {
			return true
		}
	}
	return false
}

// isIdentifier reports a camelCase word made of letters only, such as a
// method name.
func isIdentifier(s string) bool {
	if strings.ContainsAny(s, "+/=0123456789") {
		return false
	}
	for i := 1; i < len(s); i++ {
		if s[i-1] >= 'a' && s[i-1] <= 'z' && s[i] >= 'A' && s[i] <= 'Z' {
			return true
		}
	}
	return false
}

// squash lowercases s and drops _ - . and spaces, so "Private_Key" and
// "private key" both become "privatekey".
func squash(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '_', '-', '.', ' ':
			return -1
		}
		return r
	}, strings.ToLower(s))
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// Entropy is the Shannon entropy of s in bits per byte.
func Entropy(s string) float64 {
	if len(s) == 0 {
		return 0
	}
	var freq [256]int
	for i := 0; i < len(s); i++ {
		freq[s[i]]++
	}
	n := float64(len(s))
	var ent float64
	for _, count := range freq {
		if count == 0 {
			continue
		}
		p := float64(count) / n
		ent -= p * math.Log2(p)
	}
	return ent
}
