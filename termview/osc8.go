package termview

import (
	"os"
	"strconv"
	"strings"
)

const (
	osc8Start = "\x1b]8;;"
	osc8Close = "\x1b\\"
	osc8End   = "\x1b]8;;\x1b\\"
)

// DetectOSC8Support returns true if the current environment likely supports
// OSC 8 hyperlinks. OSC8=0 turns detection off, OSC8=1 forces it on.
func DetectOSC8Support() bool {
	return detectOSC8(os.Getenv)
}

func detectOSC8(getenv func(string) string) bool {
	switch getenv("OSC8") {
	case "0":
		return false
	case "1":
		return true
	}
	if getenv("DOMTERM") != "" || getenv("WT_SESSION") != "" {
		return true
	}
	switch getenv("TERM_PROGRAM") {
	case "iTerm.app", "WezTerm", "vscode", "ghostty":
		return true
	}
	term := strings.ToLower(getenv("TERM"))
	if strings.Contains(term, "kitty") || strings.Contains(term, "foot") {
		return true
	}
	if vte := getenv("VTE_VERSION"); vte != "" {
		if n, err := strconv.Atoi(vte); err == nil && n >= 5000 {
			return true
		}
	}
	return false
}

func hyperlink(url, text string) string {
	return osc8Start + url + osc8Close + text + osc8End
}
