package cityatlas

import (
	"net/http"
	"os"

	nested "github.com/antonfisher/nested-logrus-formatter"
	"github.com/shiena/ansicolor"
	"github.com/sirupsen/logrus"
)

// Options configures engine behavior.
type Options struct {
	// Logger receives every load warning and error. When nil, a default
	// colorized stdout logger is built.
	Logger *logrus.Logger

	// Client performs all HTTP fetches. Defaults to http.DefaultClient.
	Client *http.Client

	// Load controls fan-out behavior for sharded and raster loads.
	Load LoadOptions
}

// LoadOptions controls concurrent loading behavior.
type LoadOptions struct {
	// Workers caps the number of fetches in flight for one load
	// operation. If 0, defaults to 4.
	Workers int

	// Progress is an optional callback invoked after each fetch settles
	// (successfully or not). Parameters: (done, total).
	Progress func(done, total int)
}

// DefaultLoadOptions returns load options with sensible defaults.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{
		Workers:  4,
		Progress: nil,
	}
}

// DefaultOptions returns engine options with defaults.
func DefaultOptions() Options {
	return Options{
		Logger: newDefaultLogger(),
		Client: http.DefaultClient,
		Load:   DefaultLoadOptions(),
	}
}

// newDefaultLogger builds the stdout logger used when the caller supplies
// none.
func newDefaultLogger() *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&nested.Formatter{
		HideKeys:        true,
		ShowFullLevel:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
	log.SetOutput(ansicolor.NewAnsiColorWriter(os.Stdout))
	log.SetLevel(logrus.InfoLevel)
	return log
}
