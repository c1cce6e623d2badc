package evaluation

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"livesub/internal/services"
)

// LoadLines reads one sentence per line. A trailing newline does not produce
// an empty final sentence.
func LoadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return lines, nil
}

// LoadCorpus reads aligned source and reference files.
func LoadCorpus(sourcePath, referencePath string) (sources, references []string, err error) {
	sources, err = LoadLines(sourcePath)
	if err != nil {
		return nil, nil, err
	}
	references, err = LoadLines(referencePath)
	if err != nil {
		return nil, nil, err
	}
	if len(sources) != len(references) {
		return nil, nil, services.Wrap(services.ErrValidation, "evaluation", "load corpus",
			fmt.Sprintf("source has %d lines but reference has %d", len(sources), len(references)), nil)
	}
	return sources, references, nil
}
