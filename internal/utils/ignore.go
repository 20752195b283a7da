package utils

import (
	"bufio"
	"os"
	"strings"
)

// IgnoreList holds show ids and title terms that must never be auto-added
// from the activity feed.
type IgnoreList struct {
	ids   map[string]bool
	terms []string
}

// LoadIgnoreList loads entries from a file. Lines of the form "id:<tvdb id>"
// match a show id exactly, every other line is a case-insensitive title term.
func LoadIgnoreList(path string) (*IgnoreList, error) {
	list := &IgnoreList{ids: map[string]bool{}}

	// If file doesn't exist, return empty list
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return list, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		list.add(scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return list, nil
}

// NewIgnoreList builds a list from in-memory entries
func NewIgnoreList(entries ...string) *IgnoreList {
	list := &IgnoreList{ids: map[string]bool{}}
	for _, entry := range entries {
		list.add(entry)
	}
	return list
}

func (l *IgnoreList) add(line string) {
	entry := strings.TrimSpace(line)
	if entry == "" || strings.HasPrefix(entry, "#") {
		return
	}
	if id, ok := strings.CutPrefix(entry, "id:"); ok {
		l.ids[strings.TrimSpace(id)] = true
		return
	}
	l.terms = append(l.terms, NormalizeTitle(entry))
}

// IsIgnored checks a show against the list.
// Returns (isIgnored, matchedEntry)
func (l *IgnoreList) IsIgnored(showID, title string) (bool, string) {
	if l == nil {
		return false, ""
	}
	if l.ids[showID] {
		return true, "id:" + showID
	}

	normalized := NormalizeTitle(title)
	for _, term := range l.terms {
		if strings.Contains(normalized, term) {
			return true, term
		}
	}

	return false, ""
}
