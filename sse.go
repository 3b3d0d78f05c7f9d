package llmstream

import "strings"

const (
	eventDataPrefix = "data: "
	eventDone       = "[DONE]"
)

// EventData returns the payload of a server-sent "data: " line.
// Lines without the prefix and the terminal [DONE] sentinel report false.
func EventData(line string) (string, bool) {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, eventDataPrefix) {
		return "", false
	}

	data := strings.TrimPrefix(line, eventDataPrefix)
	if strings.TrimSpace(data) == eventDone {
		return "", false
	}
	return data, true
}
