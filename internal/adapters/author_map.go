package adapters

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	errbuilder "github.com/ZanzyTHEbar/errbuilder-go"
	"gopkg.in/yaml.v3"
)

var fullAuthorPattern = regexp.MustCompile(`<[a-zA-Z0-9.+-]+@[a-zA-Z0-9.-]+>`)
var bareIDPattern = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

// AuthorEntry maps a source-system committer id to a real identity.
type AuthorEntry struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

// AuthorMapAdapter formats commit author strings from a YAML map of
// committer ids. Unknown bare ids fall back to id@DefaultDomain.
type AuthorMapAdapter struct {
	Entries       map[string]AuthorEntry
	DefaultDomain string
}

func NewAuthorMapAdapter(defaultDomain string) AuthorMapAdapter {
	return AuthorMapAdapter{
		Entries:       map[string]AuthorEntry{},
		DefaultDomain: defaultDomain,
	}
}

// LoadAuthorMap reads a YAML author map. A missing path yields an empty map:
// author resolution is best-effort.
func LoadAuthorMap(path string, defaultDomain string) (AuthorMapAdapter, error) {
	adapter := NewAuthorMapAdapter(defaultDomain)
	if path == "" {
		return adapter, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return adapter, nil
		}
		return adapter, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("cannot read author map %s", path)).
			WithCause(err)
	}
	if err := yaml.Unmarshal(data, &adapter.Entries); err != nil {
		return adapter, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("cannot parse author map %s", path)).
			WithCause(err)
	}
	return adapter, nil
}

func (a AuthorMapAdapter) Resolve(author string) string {
	author = strings.TrimSpace(author)
	if entry, ok := a.Entries[author]; ok && entry.Name != "" && entry.Email != "" {
		return fmt.Sprintf("%s <%s>", entry.Name, entry.Email)
	}
	if fullAuthorPattern.MatchString(author) {
		return author
	}
	if bareIDPattern.MatchString(author) && a.DefaultDomain != "" {
		return fmt.Sprintf("%s <%s@%s>", author, author, a.DefaultDomain)
	}
	return author
}
