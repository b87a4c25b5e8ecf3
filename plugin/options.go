package plugin

import (
	"log/slog"
	"time"

	"github.com/reglet-dev/robohost/capability"
	"github.com/reglet-dev/robohost/export"
	"github.com/reglet-dev/robohost/host"
	"github.com/reglet-dev/robohost/plugin/repository"
	"github.com/reglet-dev/robohost/plugin/values"
)

// DefaultPollInterval bounds each gamepad read and future wait on the implementation
// side, so calls to a single-threaded module interleave.
const DefaultPollInterval = 50 * time.Millisecond

type settings struct {
	logger       *slog.Logger
	pool         *BlockingPool
	pollInterval time.Duration
	authorizer   capability.Authorizer

	builtins    map[string]*export.Module
	repo        *repository.FSPluginRepository
	digests     map[string]values.Digest
	hostOptions []host.Option
}

func newSettings(opts []Option) settings {
	s := settings{
		builtins: make(map[string]*export.Module),
		digests:  make(map[string]values.Digest),
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.pool == nil {
		s.pool = defaultPool
	}
	if s.pollInterval <= 0 {
		s.pollInterval = DefaultPollInterval
	}
	return s
}

// Option configures a Loader or a proxy.
type Option func(*settings)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithPool sets the pool gamepad reads run on.
func WithPool(pool *BlockingPool) Option {
	return func(s *settings) { s.pool = pool }
}

// WithPollInterval sets how long a single gamepad read or future wait may block on the
// implementation side.
func WithPollInterval(d time.Duration) Option {
	return func(s *settings) { s.pollInterval = d }
}

// WithAuthorizer makes plugin proxies ask a before constructing a capability.
func WithAuthorizer(a capability.Authorizer) Option {
	return func(s *settings) { s.authorizer = a }
}

// WithBuiltin registers m under "builtin:<name>".
func WithBuiltin(name string, m *export.Module) Option {
	return func(s *settings) { s.builtins[name] = m }
}

// WithRepository resolves relative module paths that do not exist through repo.
func WithRepository(repo *repository.FSPluginRepository) Option {
	return func(s *settings) { s.repo = repo }
}

// WithDigest pins the content of the module loaded from path.
func WithDigest(path string, d values.Digest) Option {
	return func(s *settings) { s.digests[path] = d }
}

// WithHostOptions configures the wasm executor.
func WithHostOptions(opts ...host.Option) Option {
	return func(s *settings) { s.hostOptions = append(s.hostOptions, opts...) }
}
