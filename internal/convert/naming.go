// internal/convert/naming.go
package convert

import (
	"strconv"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"

	"github.com/user/logscribe/internal/config"
)

var unsafeNameChars = strings.NewReplacer("/", "_", "\\", "_")

// Namer renders output file names from a template with {conversation_id},
// {index} and {timestamp} placeholders.
type Namer struct {
	template        string
	timestampFormat string
	extension       string
	now             func() time.Time
}

// NewNamer creates a Namer. timestampFormat uses strftime directives.
func NewNamer(template, timestampFormat, extension string) *Namer {
	if extension == "" {
		extension = ".json"
	}
	return &Namer{
		template:        template,
		timestampFormat: timestampFormat,
		extension:       extension,
		now:             time.Now,
	}
}

// Name renders the name for the index-th conversation of a table. The
// extension is appended when the rendered name lacks it.
func (n *Namer) Name(conversationID string, index int) string {
	stamp := strftime.Format(n.timestampFormat, n.now())
	name := config.PlaceholderPattern.ReplaceAllStringFunc(n.template, func(m string) string {
		switch m[1 : len(m)-1] {
		case "conversation_id":
			return unsafeNameChars.Replace(conversationID)
		case "index":
			return strconv.Itoa(index)
		case "timestamp":
			return stamp
		}
		return m
	})
	name = unsafeNameChars.Replace(name)
	if !strings.HasSuffix(name, n.extension) {
		name += n.extension
	}
	return name
}

// NameSet hands out output names that are unique within the set. A name
// already taken gets _<n> inserted before the extension.
type NameSet struct {
	ext  string
	used map[string]bool
}

// NewNameSet creates an empty NameSet for names ending in ext.
func NewNameSet(ext string) *NameSet {
	if ext == "" {
		ext = ".json"
	}
	return &NameSet{ext: ext, used: make(map[string]bool)}
}

// Claim returns name, or the first free _<n> variant of it, and marks the
// result as taken.
func (s *NameSet) Claim(name string) string {
	name = uniqueName(name, s.ext, s.used)
	s.used[name] = true
	return name
}

// uniqueName appends _<n> before the extension until name is not in used.
func uniqueName(name, ext string, used map[string]bool) string {
	if !used[name] {
		return name
	}
	base := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		candidate := base + "_" + strconv.Itoa(i) + ext
		if !used[candidate] {
			return candidate
		}
	}
}
