package store

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/teranos/skytrace/config"
	"github.com/teranos/skytrace/errors"
)

// Opener connects to a backend described by cfg
type Opener func(ctx context.Context, cfg config.StoreConfig, logger *zap.SugaredLogger) (Client, error)

var (
	openersMu sync.RWMutex
	openers   = make(map[string]Opener)
)

// Register makes a backend available for URIs with the given scheme.
// Registering the same scheme twice is an error.
func Register(scheme string, open Opener) error {
	openersMu.Lock()
	defer openersMu.Unlock()

	scheme = strings.ToLower(scheme)
	if open == nil {
		return errors.Newf("store: nil opener for scheme %q", scheme)
	}
	if _, exists := openers[scheme]; exists {
		return errors.Newf("store: backend already registered for scheme %q", scheme)
	}
	openers[scheme] = open
	return nil
}

// MustRegister is Register for init functions
func MustRegister(scheme string, open Opener) {
	if err := Register(scheme, open); err != nil {
		panic(err)
	}
}

// Schemes returns registered URI schemes in sorted order
func Schemes() []string {
	openersMu.RLock()
	defer openersMu.RUnlock()

	schemes := make([]string, 0, len(openers))
	for scheme := range openers {
		schemes = append(schemes, scheme)
	}
	sort.Strings(schemes)
	return schemes
}

// Open selects a backend by the scheme of cfg.URI and connects to it.
// The connect timeout bounds the whole call.
func Open(ctx context.Context, cfg config.StoreConfig, logger *zap.SugaredLogger) (Client, error) {
	scheme, err := Scheme(cfg.URI)
	if err != nil {
		return nil, err
	}

	openersMu.RLock()
	open, ok := openers[scheme]
	openersMu.RUnlock()
	if !ok {
		return nil, errors.WithHintf(
			errors.NewInvalidArgumentf("no store backend for scheme %q", scheme),
			"registered schemes: %s", strings.Join(Schemes(), ", "),
		)
	}

	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if timeout := cfg.ConnectTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return open(ctx, cfg, logger)
}

// Scheme extracts the lower-cased scheme of a store URI ("mongodb" for
// mongodb://host/db, "sqlite" for sqlite:///var/lib/skytrace.db)
func Scheme(uri string) (string, error) {
	if uri == "" {
		return "", errors.NewInvalidArgumentf("store uri is empty")
	}
	scheme, _, ok := strings.Cut(uri, "://")
	if !ok || scheme == "" {
		return "", errors.NewInvalidArgumentf("store uri %q has no scheme", Redact(uri))
	}
	return strings.ToLower(scheme), nil
}

// Location returns the part of a store URI after "scheme://"
func Location(uri string) string {
	_, rest, _ := strings.Cut(uri, "://")
	return rest
}

// Redact masks the password of a URI so it can be logged
func Redact(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		// Unparseable URIs may still hold credentials
		scheme, _, _ := strings.Cut(uri, "://")
		return scheme + "://<redacted>"
	}
	return u.Redacted()
}
