package sandbox

import "strings"

var executableIndicators = []string{"def ", "import ", "print(", "class ", "if __name__ =="}

// IsExecutable reports whether delivery content looks like python source worth executing
func IsExecutable(content string) bool {
	for _, ind := range executableIndicators {
		if strings.Contains(content, ind) {
			return true
		}
	}
	return false
}
