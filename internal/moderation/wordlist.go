package moderation

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// WordFilterSet is a compiled deny alternation plus the allow patterns that
// exempt whole words. The zero value denies nothing.
type WordFilterSet struct {
	deny  *regexp.Regexp
	allow []*regexp.Regexp
	terms int
}

// NewWordFilterSet compiles deny and allow patterns. Blank lines are
// ignored; invalid patterns are skipped and reported in the returned error
// while the rest of the set stays usable.
func NewWordFilterSet(deny, allow []string) (*WordFilterSet, error) {
	var errs []error
	set := &WordFilterSet{}

	var parts []string
	for _, d := range deny {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		if _, err := regexp.Compile(d); err != nil {
			errs = append(errs, fmt.Errorf("moderation: deny pattern %q: %w", d, err))
			continue
		}
		parts = append(parts, "(?:"+d+")")
	}
	if len(parts) > 0 {
		set.deny = regexp.MustCompile("(?i)" + strings.Join(parts, "|"))
		set.terms = len(parts)
	}

	for _, a := range allow {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		re, err := regexp.Compile("(?i)^(?:" + strings.ToLower(a) + ")$")
		if err != nil {
			errs = append(errs, fmt.Errorf("moderation: allow pattern %q: %w", a, err))
			continue
		}
		set.allow = append(set.allow, re)
	}
	return set, errors.Join(errs...)
}

// Len returns the number of deny patterns.
func (s *WordFilterSet) Len() int { return s.terms }

func (s *WordFilterSet) allowed(word string) bool {
	for _, re := range s.allow {
		if re.MatchString(word) {
			return true
		}
	}
	return false
}

// LoadWordFilterSet reads the deny and allow lists, one pattern per line. A
// missing or unreadable file contributes no patterns and is reported in the
// error; the returned set is always non-nil.
func LoadWordFilterSet(denyPath, allowPath string) (*WordFilterSet, error) {
	deny, derr := readLines(denyPath)
	allow, aerr := readLines(allowPath)
	set, cerr := NewWordFilterSet(deny, allow)
	return set, errors.Join(derr, aerr, cerr)
}

func readLines(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("moderation: open %s: %w", path, err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("moderation: read %s: %w", path, err)
	}
	return lines, nil
}

// Watch reloads the profanity lists whenever either file changes. The
// parent directories are watched so editors that replace files on save are
// picked up. It blocks until ctx is cancelled.
func Watch(ctx context.Context, p *Profanity, denyPath, allowPath string, logger *zap.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("moderation: watcher: %w", err)
	}
	defer w.Close()

	dirs := map[string]struct{}{}
	for _, path := range []string{denyPath, allowPath} {
		if path != "" {
			dirs[filepath.Dir(path)] = struct{}{}
		}
	}
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			return fmt.Errorf("moderation: watch %s: %w", dir, err)
		}
	}

	targets := map[string]struct{}{}
	for _, path := range []string{denyPath, allowPath} {
		if path != "" {
			targets[filepath.Clean(path)] = struct{}{}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if _, hit := targets[filepath.Clean(ev.Name)]; !hit {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			set, err := LoadWordFilterSet(denyPath, allowPath)
			if err != nil {
				logger.Warn("word list reload incomplete", zap.Error(err))
			}
			p.SetWords(set)
			logger.Info("word lists reloaded", zap.Int("deny", set.Len()), zap.String("file", ev.Name))
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("word list watcher error", zap.Error(err))
		}
	}
}
