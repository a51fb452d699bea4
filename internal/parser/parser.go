// Package parser turns WhatsApp group-chat export text into membership
// events. Classification is an ordered list of (regexp, event type) rules
// evaluated top to bottom; the first match wins. Spanish rules come first,
// then their English equivalents.
package parser

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"example.com/jodi/services/whatsapp/internal/identity"
	"example.com/jodi/services/whatsapp/internal/models"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Event is a membership event with the identifier still in clear text.
// Hashing happens in the loader, not here.
type Event struct {
	Timestamp      time.Time
	GroupName      string
	UserIdentifier string
	EventType      string
}

// Result is the outcome of parsing one export buffer.
type Result struct {
	Events            []Event
	SkippedTimestamps int
}

// Every export line starts with a locale-formatted timestamp followed by
// " - " and the message body. Two- and four-digit years both occur.
var lineRE = regexp.MustCompile(`^(\d{1,2}/\d{1,2}/\d{2,4}, \d{1,2}:\d{2})\s*-\s*(.+)$`)

// Spanish exports identify users as a phone number (+52 55 1234 5678) or a
// nickname (~ Currio); WhatsApp puts a narrow no-break space after the tilde.
const userES = `(?:\+[\d\s]+?|~[\s\x{202f}].+?)`

// rule classifies a message body. subject is capture group 1; when multi is
// set the capture lists one or more added users ("A y B", "A, B").
type rule struct {
	re        *regexp.Regexp
	eventType string
	multi     bool
}

var rules = []rule{
	// Spanish (the original export locale), in the order they were first
	// supported.
	{regexp.MustCompile(`^\x{200e}?(` + userES + `)\s+se unió con el enlace del grupo`), models.EventJoined, false},
	{regexp.MustCompile(`^\x{200e}?(` + userES + `)\s+salió del grupo`), models.EventLeft, false},
	{regexp.MustCompile(`^Se añadió a (` + userES + `)\s*\.?\s*$`), models.EventAdded, false},
	{regexp.MustCompile(`^\x{200e}?` + userES + `\s+añadió a (.+)$`), models.EventAdded, true},

	// English. Display names appear without any prefix here, so the subject
	// is any colon-free run; the colon exclusion keeps ordinary chat lines
	// ("Juan: I left") from classifying as system messages.
	{regexp.MustCompile(`^\x{200e}?([^:]+?) joined using this group's invite link`), models.EventJoined, false},
	{regexp.MustCompile(`^\x{200e}?([^:]+?) left$`), models.EventLeft, false},
	{regexp.MustCompile(`^\x{200e}?([^:]+?) was added$`), models.EventAdded, false},
	{regexp.MustCompile(`^\x{200e}?[^:]+? added ([^:]+)$`), models.EventAdded, true},
}

var timestampLayouts = []string{
	"2/1/2006, 15:04",
	"2/1/06, 15:04",
}

// ParseFile parses a single export file. The group name is derived from the
// filename. Each call is a single pass over the file and independent of any
// other file.
func ParseFile(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open export file")
	}
	defer f.Close()

	return Parse(f, GroupNameFromPath(path))
}

// Parse reads export lines from r and extracts membership events for the
// named group. Lines matching no rule are skipped silently; lines with an
// unparseable timestamp are skipped and counted.
func Parse(r io.Reader, groupName string) (*Result, error) {
	res := &Result{}
	sc := bufio.NewScanner(r)

	for sc.Scan() {
		line := sc.Text()

		m := lineRE.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		ts, ok := parseTimestamp(m[1])
		if !ok {
			res.SkippedTimestamps++
			log.Debug().Str("group", groupName).Str("line", m[1]).Msg("Skipping line with unparseable timestamp")
			continue
		}

		message := m[2]
		for _, rl := range rules {
			sub := rl.re.FindStringSubmatch(message)
			if sub == nil {
				continue
			}

			if rl.multi {
				for _, user := range SplitAddedUsers(sub[1]) {
					res.Events = append(res.Events, Event{
						Timestamp:      ts,
						GroupName:      groupName,
						UserIdentifier: identity.Normalize(user),
						EventType:      rl.eventType,
					})
				}
			} else {
				res.Events = append(res.Events, Event{
					Timestamp:      ts,
					GroupName:      groupName,
					UserIdentifier: identity.Normalize(sub[1]),
					EventType:      rl.eventType,
				})
			}
			break
		}
	}

	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read export")
	}

	return res, nil
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

var (
	addedSplitRE = regexp.MustCompile(`\s+y\s+|,\s*`)
	phoneRE      = regexp.MustCompile(`\+[\d\s]+`)
)

// SplitAddedUsers parses the target list of an "añadió a" / "added" message,
// which may name several users joined by "y" or commas.
func SplitAddedUsers(text string) []string {
	var users []string
	for _, part := range addedSplitRE.Split(strings.TrimRight(text, "."), -1) {
		part = strings.TrimSpace(part)
		if phone := phoneRE.FindString(part); phone != "" {
			users = append(users, strings.TrimSpace(phone))
		} else if part != "" {
			users = append(users, part)
		}
	}
	return users
}

var exportPrefixes = []string{
	"Chat de WhatsApp con ",
	"WhatsApp Chat with ",
}

// GroupNameFromPath derives the group name from an export filename,
// stripping the locale-specific export prefix when present.
func GroupNameFromPath(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	for _, prefix := range exportPrefixes {
		if strings.HasPrefix(name, prefix) {
			return strings.TrimPrefix(name, prefix)
		}
	}
	return name
}
