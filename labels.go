package surgtile

import (
	"bufio"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// LoadClasses reads the class labels to keep from the given text file.  It
// should contain one label per line, blank lines and lines starting with #
// are ignored.
func LoadClasses(file string) ([]string, error) {

	f, err := os.Open(file)

	if err != nil {
		return nil, errors.Wrap(err, "error opening file")
	}

	defer f.Close()

	scanner := bufio.NewScanner(f)

	var classes []string

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		classes = append(classes, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "error reading file")
	}

	return classes, nil
}
