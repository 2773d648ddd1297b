package file

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"quiz-arena/internal/domain"
)

const filePrefix = "questions_"

// DirLoader reads questions_<topic>.json and questions_<topic>.yaml files from
// a directory. A file that cannot be parsed is skipped, not fatal.
type DirLoader struct {
	dir string
	log *slog.Logger
}

func NewDirLoader(dir string, log *slog.Logger) *DirLoader {
	if log == nil {
		log = slog.Default()
	}
	return &DirLoader{dir: dir, log: log}
}

// LoadBank implements memory.BankLoader.
func (l *DirLoader) LoadBank(ctx context.Context) (map[string][]domain.Question, error) {
	files, err := l.Files()
	if err != nil {
		return nil, err
	}

	bank := make(map[string][]domain.Question, len(files)+1)
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		topic := TopicName(filepath.Base(path))
		raw, err := readQuestions(path)
		if err != nil {
			l.log.Warn("questions: skipping file", "file", path, "error", err)
			continue
		}
		valid, rejected := domain.ValidQuestions(raw)
		for _, err := range rejected {
			l.log.Warn("questions: rejected record", "file", path, "error", err)
		}
		if len(valid) == 0 {
			l.log.Warn("questions: no valid questions", "file", path)
			continue
		}
		bank[topic] = append(bank[topic], valid...)
		l.log.Info("questions: loaded", "file", path, "topic", topic, "count", len(valid))
	}

	if _, ok := bank[domain.DefaultTopic]; !ok {
		l.log.Info("questions: adding default topic", "topic", domain.DefaultTopic)
	}
	return domain.WithDefaultTopic(bank), nil
}

// Files lists the question files in the directory, sorted by name.
func (l *DirLoader) Files() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("read question dir %s: %w", l.dir, err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !isQuestionFile(entry.Name()) {
			continue
		}
		files = append(files, filepath.Join(l.dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func isQuestionFile(name string) bool {
	if !strings.HasPrefix(name, filePrefix) {
		return false
	}
	switch filepath.Ext(name) {
	case ".json", ".yaml", ".yml":
		return len(strings.TrimSuffix(name, filepath.Ext(name))) > len(filePrefix)
	}
	return false
}

// TopicName derives the topic from a file name: questions_network_basics.json
// becomes Network_Basics.
func TopicName(name string) string {
	stem := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), filepath.Ext(name))
	var b strings.Builder
	upper := true
	for _, r := range stem {
		if unicode.IsLetter(r) {
			if upper {
				b.WriteRune(unicode.ToUpper(r))
			} else {
				b.WriteRune(unicode.ToLower(r))
			}
			upper = false
			continue
		}
		b.WriteRune(r)
		upper = true
	}
	return b.String()
}

func readQuestions(path string) ([]domain.Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var questions []domain.Question
	if filepath.Ext(path) == ".json" {
		err = json.Unmarshal(data, &questions)
	} else {
		err = yaml.Unmarshal(data, &questions)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return questions, nil
}
