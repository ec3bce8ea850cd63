package config

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/Faultbox/modelkit/internal/logger"
	"github.com/Faultbox/modelkit/pkg/encoding"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var err error
	invalid := func(format string, args ...any) {
		err = multierr.Append(err, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.Shaders.Vertex == "" {
		invalid("shaders.vertex is empty")
	}
	if c.Shaders.Fragment == "" {
		invalid("shaders.fragment is empty")
	}
	if _, lerr := encoding.Lookup(c.Import.PathEncoding); lerr != nil {
		invalid("import.path_encoding: %v", lerr)
	}
	if !c.Import.Triangulate {
		invalid("import.triangulate is required to build polygon meshes")
	}
	if c.Textures.MaxSize < 0 {
		invalid("textures.max_size must not be negative, got %d", c.Textures.MaxSize)
	}
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		invalid("window size must be positive, got %dx%d", c.Window.Width, c.Window.Height)
	}
	if !logger.ValidLevel(c.Logging.Level) {
		invalid("logging.level %q is unknown", c.Logging.Level)
	}
	return err
}
