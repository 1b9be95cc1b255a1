package filtering

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spigell/profile-fusion/internal/profile"
)

// ReadExcludeFile reads a skill blocklist: one skill per line, blank lines and
// lines starting with # are ignored. The returned set is keyed by
// profile.SkillKey. A missing file yields an empty set.
func ReadExcludeFile(path string) (map[string]struct{}, error) {
	excluded := make(map[string]struct{})

	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return excluded, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening exclude file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		excluded[profile.SkillKey(line)] = struct{}{}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading exclude file: %w", err)
	}

	return excluded, nil
}
