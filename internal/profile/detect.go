package profile

import (
	"os"
	"strings"
)

// dmiBoardPath exposes the mainboard model, e.g. "MS-16S3".
const dmiBoardPath = "/sys/class/dmi/id/board_name"

// DetectProfile matches the machine's DMI board name against the given
// profile names and returns the first whose name starts with the board
// ID (the board name with its "MS-" prefix dropped). Returns false
// when the board cannot be read or nothing matches; detection is a
// convenience, never an error.
func DetectProfile(names []string) (string, bool) {
	return detectProfile(dmiBoardPath, names)
}

func detectProfile(boardPath string, names []string) (string, bool) {
	raw, err := os.ReadFile(boardPath)
	if err != nil {
		return "", false
	}
	board := strings.TrimSpace(string(raw))
	if board == "" {
		return "", false
	}
	id := strings.ReplaceAll(board, "MS-", "")
	for _, name := range names {
		if strings.HasPrefix(name, id) {
			return name, true
		}
	}
	return "", false
}
