package app

import (
	"time"

	"tagmigrate/internal/adapters"
	"tagmigrate/internal/ports"
)

// Service is the application facade the CLI talks to. Source and destination
// adapters are built per request since each request names its own
// repositories; the factories are swappable for tests.
type Service struct {
	Store      ports.SnapshotStorePort
	NewSource  func(root string) ports.SourcePort
	NewDest    func(dir string) ports.DestinationPort
	NewAuthors func(path string, domain string) (ports.AuthorMapPort, error)
	Clock      func() time.Time
}

func NewService() Service {
	return Service{
		Store: adapters.NewSnapshotFileAdapter(),
		NewSource: func(root string) ports.SourcePort {
			return adapters.NewSvnSourceAdapter(root)
		},
		NewDest: func(dir string) ports.DestinationPort {
			return adapters.NewGitDestAdapter(dir)
		},
		NewAuthors: func(path string, domain string) (ports.AuthorMapPort, error) {
			return adapters.LoadAuthorMap(path, domain)
		},
		Clock: time.Now,
	}
}
