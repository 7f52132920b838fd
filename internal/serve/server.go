// Package serve is the development HTTP server: it serves the build output,
// injects a live-reload client into HTML pages and tells connected browsers
// to reload when the output changes.
package serve

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/madfront-labs/madfront/internal/watch"
)

const (
	reloadPath   = "/__livereload"
	reloadScript = "/__livereload.js"
)

const clientJS = `(function () {
  var source = new EventSource("` + reloadPath + `");
  source.addEventListener("reload", function () { window.location.reload(); });
})();
`

var snippet = []byte(`<script src="` + reloadScript + `"></script>`)

// Options configure a Server.
type Options struct {
	// Root is the directory served at "/".
	Root string
	// Mounts maps URL prefixes such as "/bower_components" to directories.
	Mounts map[string]string
	Host   string
	Port   int
	Logger log.FieldLogger
	// Debounce delays reloads after a burst of output changes.
	Debounce time.Duration
	// Heartbeat is the interval between keep-alive comments on the event
	// stream.
	Heartbeat time.Duration
}

// Server is a live-reloading static file server.
type Server struct {
	opts   Options
	e      *echo.Echo
	broker *broker
	log    log.FieldLogger
}

// New builds the server and its routes. Nothing listens until Run.
func New(opts Options) *Server {
	if opts.Host == "" {
		opts.Host = "localhost"
	}
	if opts.Logger == nil {
		opts.Logger = log.StandardLogger()
	}
	if opts.Debounce == 0 {
		opts.Debounce = 150 * time.Millisecond
	}
	if opts.Heartbeat == 0 {
		opts.Heartbeat = 30 * time.Second
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		opts:   opts,
		e:      e,
		broker: newBroker(),
		log:    opts.Logger.WithField("component", "serve"),
	}

	e.GET(reloadPath, s.stream)
	e.GET(reloadScript, func(c echo.Context) error {
		c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
		return c.Blob(http.StatusOK, "application/javascript; charset=utf-8", []byte(clientJS))
	})

	prefixes := make([]string, 0, len(opts.Mounts))
	for prefix := range opts.Mounts {
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)
	for _, prefix := range prefixes {
		route := "/" + strings.Trim(prefix, "/") + "/*"
		e.GET(route, s.files(opts.Mounts[prefix]))
	}
	e.GET("/*", s.files(opts.Root))
	return s
}

// Handler exposes the routes, mainly for tests.
func (s *Server) Handler() http.Handler { return s.e }

// Addr returns the listening address once Run has started, or nil.
func (s *Server) Addr() net.Addr { return s.e.ListenerAddr() }

// Reload tells every connected client to reload.
func (s *Server) Reload() {
	s.log.WithField("clients", s.broker.count()).Debug("reload")
	s.broker.notify()
}

// Run serves until ctx is done, reloading clients whenever files under Root
// change.
func (s *Server) Run(ctx context.Context) error {
	if err := os.MkdirAll(s.opts.Root, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", s.opts.Root, err)
	}
	w, err := watch.New(s.opts.Root, watch.WithLogger(s.log))
	if err != nil {
		return err
	}
	defer w.Close()

	wctx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		for range watch.Debounce(wctx, w.Events(wctx), s.opts.Debounce) {
			s.Reload()
		}
	}()

	addr := net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))
	errc := make(chan error, 1)
	go func() { errc <- s.e.Start(addr) }()
	s.log.Infof("serving %s at http://%s", s.opts.Root, addr)

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listening on %s: %w", addr, err)
	case <-ctx.Done():
	}

	s.broker.close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) stream(c echo.Context) error {
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.WriteHeader(http.StatusOK)
	if _, err := res.Write([]byte(":ok\n\n")); err != nil {
		return nil
	}
	res.Flush()

	ch := s.broker.subscribe()
	defer s.broker.unsubscribe(ch)

	ticker := time.NewTicker(s.opts.Heartbeat)
	defer ticker.Stop()
	ctx := c.Request().Context()
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return nil
			}
			if _, err := res.Write([]byte("event: reload\ndata: {}\n\n")); err != nil {
				return nil
			}
			res.Flush()
		case <-ticker.C:
			if _, err := res.Write([]byte(":keepalive\n\n")); err != nil {
				return nil
			}
			res.Flush()
		case <-ctx.Done():
			return nil
		}
	}
}

// files serves root, resolving directories to index.html and injecting the
// reload client into HTML.
func (s *Server) files(root string) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw, err := url.PathUnescape(c.Param("*"))
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest)
		}
		rel := path.Clean("/" + raw)
		target := filepath.Join(root, filepath.FromSlash(rel))

		info, err := os.Stat(target)
		if err == nil && info.IsDir() {
			target = filepath.Join(target, "index.html")
			info, err = os.Stat(target)
		}
		if err != nil || info.IsDir() {
			return echo.NewHTTPError(http.StatusNotFound)
		}

		if !strings.EqualFold(filepath.Ext(target), ".html") {
			return c.File(target)
		}
		data, err := os.ReadFile(target)
		if err != nil {
			return err
		}
		c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
		return c.HTMLBlob(http.StatusOK, InjectScript(data))
	}
}

// InjectScript inserts the live-reload client before the last </body>, or
// appends it when the page has none.
func InjectScript(page []byte) []byte {
	i := bytes.LastIndex(bytes.ToLower(page), []byte("</body>"))
	out := make([]byte, 0, len(page)+len(snippet))
	if i < 0 {
		out = append(out, page...)
		return append(out, snippet...)
	}
	out = append(out, page[:i]...)
	out = append(out, snippet...)
	return append(out, page[i:]...)
}
