package process

import "strings"

var sensitiveHeaders = map[string]bool{
	"authorization": true,
	"x-api-key":     true,
	"api-key":       true,
}

// ShellQuote quotes s for a POSIX shell using single quotes.
func ShellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.IndexFunc(s, needsQuoting) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func needsQuoting(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	case strings.ContainsRune("-_./:=@%+,", r):
		return false
	}
	return true
}

// CommandLine renders command and args as a shell-safe string with
// credential headers redacted. Used for logging only.
func CommandLine(command string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, ShellQuote(command))

	for i, arg := range args {
		if i > 0 && args[i-1] == "--header" {
			arg = redactHeader(arg)
		}
		parts = append(parts, ShellQuote(arg))
	}
	return strings.Join(parts, " ")
}

func redactHeader(h string) string {
	name, _, ok := strings.Cut(h, ":")
	if !ok || !sensitiveHeaders[strings.ToLower(strings.TrimSpace(name))] {
		return h
	}
	return name + ": [REDACTED]"
}
