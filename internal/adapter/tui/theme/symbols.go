package theme

import (
	"os"
	"strings"
)

// SymbolSet holds all UI symbols, allowing runtime switching between
// Unicode and ASCII fallback sets.
type SymbolSet struct {
	Success  string
	Error    string
	Warning  string
	Info     string
	Pending  string
	ArrowR   string
	Bullet   string
	Ellipsis string
}

var unicodeSymbols = SymbolSet{
	Success:  "\u2713", // ✓
	Error:    "\u2717", // ✗
	Warning:  "\u26A0", // ⚠
	Info:     "\u25CF", // ●
	Pending:  "\u25CB", // ○
	ArrowR:   "\u2192", // →
	Bullet:   "\u2022", // •
	Ellipsis: "\u2026", // …
}

var asciiSymbols = SymbolSet{
	Success:  "[OK]",
	Error:    "[ERR]",
	Warning:  "[!]",
	Info:     "[*]",
	Pending:  "[ ]",
	ArrowR:   "->",
	Bullet:   "*",
	Ellipsis: "...",
}

// DetectUnicodeSupport checks whether the terminal likely supports Unicode.
// SLIDECOFFEE_ASCII_SYMBOLS overrides locale detection.
func DetectUnicodeSupport() bool {
	if v := os.Getenv("SLIDECOFFEE_ASCII_SYMBOLS"); v == "1" || strings.EqualFold(v, "true") {
		return false
	}

	for _, key := range []string{"LC_ALL", "LC_CTYPE", "LANG"} {
		val := strings.ToLower(os.Getenv(key))
		if strings.Contains(val, "utf-8") || strings.Contains(val, "utf8") {
			return true
		}
	}

	// Most modern terminals support Unicode.
	return true
}

// InitSymbols sets the package-level Symbol* variables based on terminal
// capabilities. Called by init(); tests may call it again after changing
// the environment.
func InitSymbols() {
	set := unicodeSymbols
	if !DetectUnicodeSupport() {
		set = asciiSymbols
	}

	SymbolSuccess = set.Success
	SymbolError = set.Error
	SymbolWarning = set.Warning
	SymbolInfo = set.Info
	SymbolPending = set.Pending
	SymbolArrowR = set.ArrowR
	SymbolBullet = set.Bullet
	SymbolEllipsis = set.Ellipsis
}

func init() {
	InitSymbols()
}
