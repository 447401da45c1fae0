// Package preview serves a live editing page for a diagram session: the
// source can be typed in the page or edited in a watched file, every
// render is pushed to connected pages over a websocket, and the current
// diagram can be exported or replaced from the clipboard.
package preview

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	stdlog "log"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/kovetskiy/mermaidmono/editor"
	"github.com/kovetskiy/mermaidmono/export"
	"github.com/kovetskiy/mermaidmono/metadata"
	"github.com/pkg/browser"
	"github.com/reconquest/karma-go"
	"github.com/reconquest/pkg/log"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
	"oss.terrastruct.com/util-go/xhttp"
)

//go:embed static
var staticFS embed.FS

const maxEditSize = 1 << 20

// Loader reads a watched file and returns the diagram name and source
// found in it.
type Loader func(path string) (name string, source string, err error)

type Options struct {
	Host string
	Port string

	// InputPath is watched for changes when set.
	InputPath string
	Load      Loader

	// Open opens the page in the default browser once the server listens.
	Open bool
}

// Update is what pages receive after every state change.
type Update struct {
	Source     string `json:"source"`
	Status     string `json:"status"`
	SVG        string `json:"svg"`
	Err        string `json:"err"`
	Empty      bool   `json:"empty"`
	CanExport  bool   `json:"canExport"`
	Name       string `json:"name"`
	Generation uint64 `json:"generation"`
}

// Edit is what pages send when the source is edited in place.
type Edit struct {
	Source string `json:"source"`
}

type Server struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	session *editor.Session
	options Options

	compileCh chan struct{}

	pendingMu sync.Mutex
	pending   *string

	fw *fsnotify.Watcher
	l  net.Listener

	clientsMu sync.Mutex
	closing   bool
	clientsWG sync.WaitGroup
	clients   map[*client]struct{}

	errMu sync.Mutex
	err   error

	updateMu sync.Mutex
	update   *Update
}

func NewServer(ctx context.Context, session *editor.Session, options Options) (*Server, error) {
	ctx, cancel := context.WithCancel(ctx)

	if options.Load == nil {
		options.Load = ReadFile
	}

	server := &Server{
		ctx:    ctx,
		cancel: cancel,

		session: session,
		options: options,

		compileCh: make(chan struct{}, 1),
		clients:   make(map[*client]struct{}),
	}

	server.setUpdate(newUpdate(session.State()))

	session.Subscribe(func(state editor.State) {
		server.broadcast(newUpdate(state))
	})

	if options.InputPath != "" {
		fw, err := fsnotify.NewWatcher()
		if err != nil {
			cancel()
			return nil, karma.Format(err, "unable to create file watcher")
		}

		server.fw = fw
	}

	return server, nil
}

// ReadFile loads the whole file as diagram source named after the file.
func ReadFile(path string) (string, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", karma.Format(err, "unable to read %s", path)
	}

	return metadata.TitleFromFilename(path), strings.ReplaceAll(string(data), "\r\n", "\n"), nil
}

// Listen binds the server address. It is called by Run when it was not
// called before.
func (server *Server) Listen() error {
	if server.l != nil {
		return nil
	}

	l, err := net.Listen("tcp", net.JoinHostPort(server.options.Host, server.options.Port))
	if err != nil {
		return karma.Format(err, "unable to listen")
	}

	server.l = l

	log.Infof(nil, "listening on %s", server.URL())

	return nil
}

func (server *Server) URL() string {
	if server.l == nil {
		return ""
	}

	return fmt.Sprintf("http://%s", server.l.Addr())
}

// Run serves until ctx is canceled or a loop fails.
func (server *Server) Run() error {
	defer server.Close()

	err := server.Listen()
	if err != nil {
		return err
	}

	if server.fw != nil {
		server.goFunc(server.watchLoop)
	}

	server.goFunc(server.compileLoop)

	httpServer := xhttp.NewServer(
		stdlog.New(logWriter{}, "", 0),
		server.Handler(),
	)
	server.goFunc(func(ctx context.Context) error {
		return xhttp.Serve(ctx, time.Second*30, httpServer, server.l)
	})

	if server.options.Open {
		err := browser.OpenURL(server.URL())
		if err != nil {
			log.Warningf(err, "unable to open browser at %s", server.URL())
		}
	}

	server.wg.Wait()

	server.errMu.Lock()
	defer server.errMu.Unlock()

	if errors.Is(server.err, context.Canceled) {
		return nil
	}

	return server.err
}

func (server *Server) Close() {
	server.clientsMu.Lock()
	if server.closing {
		server.clientsMu.Unlock()
		return
	}
	server.closing = true
	server.clientsMu.Unlock()

	server.cancel()

	if server.fw != nil {
		server.setErr(server.fw.Close())
	}

	if server.l != nil {
		err := server.l.Close()
		if err != nil && !errors.Is(err, net.ErrClosed) {
			server.setErr(err)
		}
	}

	server.clientsWG.Wait()
}

func (server *Server) setErr(err error) {
	server.errMu.Lock()
	defer server.errMu.Unlock()

	if server.err == nil {
		server.err = err
	}
}

func (server *Server) goFunc(fn func(context.Context) error) {
	server.wg.Add(1)
	go func() {
		defer server.wg.Done()
		defer server.cancel()

		server.setErr(fn(server.ctx))
	}()
}

// Submit queues source for rendering. Only the latest queued source is
// rendered when several arrive while a render is running.
func (server *Server) Submit(source string) {
	server.pendingMu.Lock()
	server.pending = &source
	server.pendingMu.Unlock()

	select {
	case server.compileCh <- struct{}{}:
	default:
	}
}

func (server *Server) takePending() (string, bool) {
	server.pendingMu.Lock()
	defer server.pendingMu.Unlock()

	if server.pending == nil {
		return "", false
	}

	source := *server.pending
	server.pending = nil

	return source, true
}

func (server *Server) compileLoop(ctx context.Context) error {
	for {
		select {
		case <-server.compileCh:
		case <-ctx.Done():
			return ctx.Err()
		}

		source, ok := server.takePending()
		if !ok {
			continue
		}

		state := server.session.SetSource(ctx, source)

		log.Debugf(nil, "generation %d: %s", state.Generation, state.Status)
	}
}

func (server *Server) load() {
	name, source, err := server.options.Load(server.options.InputPath)
	if err != nil {
		log.Errorf(err, "unable to load %s", server.options.InputPath)
		return
	}

	if name != "" {
		server.session.SetName(name)
	}

	server.Submit(source)
}

func (server *Server) watchLoop(ctx context.Context) error {
	path := server.options.InputPath

	lastModified, err := server.ensureAddWatch(ctx, path)
	if err != nil {
		return err
	}

	log.Infof(nil, "watching %s", path)
	server.load()

	eatBurstTimer := time.NewTimer(0)
	<-eatBurstTimer.C

	pollTicker := time.NewTicker(time.Second * 10)
	defer pollTicker.Stop()

	for {
		select {
		case <-pollTicker.C:
			// events may be lost when the file is replaced
			modified, err := server.ensureAddWatch(ctx, path)
			if err != nil {
				return err
			}

			if !modified.Equal(lastModified) {
				lastModified = modified
				server.load()
			}

		case event, ok := <-server.fw.Events:
			if !ok {
				return errors.New("file watcher closed")
			}

			log.Tracef(nil, "file system event: %v", event)

			modified, err := server.ensureAddWatch(ctx, path)
			if err != nil {
				return err
			}

			if event.Op == fsnotify.Chmod && modified.Equal(lastModified) {
				continue
			}

			lastModified = modified

			// editors write one change as several events
			eatBurstTimer.Reset(time.Millisecond * 16)

		case <-eatBurstTimer.C:
			log.Infof(nil, "detected change in %s", path)
			server.load()

		case err, ok := <-server.fw.Errors:
			if !ok {
				return errors.New("file watcher closed")
			}

			log.Errorf(err, "file watcher error")

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (server *Server) ensureAddWatch(ctx context.Context, path string) (time.Time, error) {
	interval := time.Millisecond * 16

	timer := time.NewTimer(0)
	<-timer.C

	for {
		err := server.fw.Add(path)
		if err == nil {
			var info os.FileInfo
			info, err = os.Stat(path)
			if err == nil {
				return info.ModTime(), nil
			}
		}

		if interval >= time.Second {
			log.Errorf(err, "unable to watch %s, retrying in %v", path, interval)
		}

		timer.Reset(interval)

		select {
		case <-timer.C:
			if interval < time.Second {
				interval = time.Second
			}

			if interval < time.Second*16 {
				interval *= 2
			}

		case <-ctx.Done():
			return time.Time{}, ctx.Err()
		}
	}
}

func newUpdate(state editor.State) *Update {
	update := &Update{
		Source:     state.Source,
		Status:     string(state.Status),
		Err:        state.Error,
		Empty:      state.Status == editor.StatusEmpty,
		CanExport:  state.CanExport(),
		Name:       state.Name,
		Generation: state.Generation,
	}

	if state.Graphic != nil {
		markup, err := state.Graphic.Bytes()
		if err != nil {
			log.Errorf(err, "unable to serialize graphic %q", state.Graphic.ID())
		} else {
			update.SVG = string(markup)
		}
	}

	return update
}

func (server *Server) setUpdate(update *Update) {
	server.updateMu.Lock()
	defer server.updateMu.Unlock()

	server.update = update
}

func (server *Server) getUpdate() *Update {
	server.updateMu.Lock()
	defer server.updateMu.Unlock()

	return server.update
}

// broadcast is called under the session lock and must not block.
func (server *Server) broadcast(update *Update) {
	server.setUpdate(update)

	server.clientsMu.Lock()
	defer server.clientsMu.Unlock()

	log.Tracef(nil, "broadcasting %s to %d client(s)", update.Status, len(server.clients))

	for client := range server.clients {
		select {
		case client.updatesCh <- struct{}{}:
		default:
		}
	}
}

func (server *Server) Handler() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(requestLogger)

	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}

	router.Get("/", server.handleRoot(static))
	router.Get("/state", server.handleState)
	router.Put("/source", server.handleSource)
	router.Post("/paste", server.handlePaste)
	router.Get("/export/{format}", server.handleExport)
	router.Get("/watch", server.handleWatch)

	return router
}

func (server *Server) handleRoot(static fs.FS) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		http.ServeFileFS(writer, request, static, "index.html")
	}
}

func (server *Server) handleState(writer http.ResponseWriter, request *http.Request) {
	writeJSON(writer, http.StatusOK, server.getUpdate())
}

// handleSource renders the request body synchronously and responds with
// the resulting state.
func (server *Server) handleSource(writer http.ResponseWriter, request *http.Request) {
	body, err := readBody(request)
	if err != nil {
		writeError(writer, http.StatusBadRequest, err)
		return
	}

	state := server.session.SetSource(request.Context(), body)

	writeJSON(writer, http.StatusOK, newUpdate(state))
}

func (server *Server) handlePaste(writer http.ResponseWriter, request *http.Request) {
	state, err := server.session.Paste(request.Context())
	if err != nil {
		writeError(writer, http.StatusBadGateway, err)
		return
	}

	writeJSON(writer, http.StatusOK, newUpdate(state))
}

func (server *Server) handleExport(writer http.ResponseWriter, request *http.Request) {
	format, err := export.ParseFormat(chi.URLParam(request, "format"))
	if err != nil {
		writeError(writer, http.StatusBadRequest, err)
		return
	}

	result, err := server.session.Export(request.Context(), format)
	switch {
	case errors.Is(err, editor.ErrExportDisabled):
		writeError(writer, http.StatusConflict, err)
		return

	case err != nil:
		writeError(writer, http.StatusInternalServerError, err)
		return

	case result == nil:
		writer.WriteHeader(http.StatusNoContent)
		return
	}

	defer result.Release()

	writer.Header().Set("Content-Type", result.MIMEType)
	writer.Header().Set(
		"Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", result.Filename),
	)
	writer.Header().Set("Content-Length", fmt.Sprint(len(result.Data)))
	writer.WriteHeader(http.StatusOK)

	_, err = writer.Write(result.Data)
	if err != nil {
		log.Errorf(err, "unable to send %s", result.Filename)
	}
}

func (server *Server) handleWatch(writer http.ResponseWriter, request *http.Request) {
	server.clientsMu.Lock()
	if server.closing {
		server.clientsMu.Unlock()
		writeError(writer, http.StatusServiceUnavailable, errors.New("server shutting down"))
		return
	}
	// registered before the upgrade so Close waits for this client
	server.clientsWG.Add(1)
	server.clientsMu.Unlock()

	conn, err := websocket.Accept(writer, request, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		server.clientsWG.Done()
		log.Errorf(err, "unable to accept websocket")
		return
	}

	conn.SetReadLimit(maxEditSize)

	go func() {
		defer server.clientsWG.Done()
		defer conn.Close(websocket.StatusInternalError, "connection lost")

		ctx, cancel := context.WithTimeout(server.ctx, time.Hour)
		defer cancel()

		client := &client{
			server:    server,
			conn:      conn,
			updatesCh: make(chan struct{}, 1),
		}

		server.clientsMu.Lock()
		server.clients[client] = struct{}{}
		server.clientsMu.Unlock()

		defer func() {
			server.clientsMu.Lock()
			delete(server.clients, client)
			server.clientsMu.Unlock()
		}()

		go func() {
			defer cancel()
			client.readLoop(ctx)
		}()

		go heartbeat(ctx, conn)

		_ = client.writeLoop(ctx)
	}()
}

type client struct {
	server    *Server
	conn      *websocket.Conn
	updatesCh chan struct{}
}

func (client *client) readLoop(ctx context.Context) {
	for {
		var edit Edit

		err := wsjson.Read(ctx, client.conn, &edit)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				log.Debugf(nil, "websocket client gone: %s", err)
			}
			return
		}

		client.server.Submit(edit.Source)
	}
}

func (client *client) writeLoop(ctx context.Context) error {
	for {
		update := client.server.getUpdate()
		if update != nil {
			err := client.write(ctx, update)
			if err != nil {
				return err
			}
		}

		select {
		case <-client.updatesCh:
		case <-ctx.Done():
			client.conn.Close(websocket.StatusGoingAway, "server shutting down")
			return ctx.Err()
		}
	}
}

func (client *client) write(ctx context.Context, update *Update) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*30)
	defer cancel()

	return wsjson.Write(ctx, client.conn, update)
}

func heartbeat(ctx context.Context, conn *websocket.Conn) {
	timer := time.NewTimer(0)
	<-timer.C

	for {
		err := conn.Ping(ctx)
		if err != nil {
			return
		}

		timer.Reset(time.Second * 30)

		select {
		case <-timer.C:
		case <-ctx.Done():
			return
		}
	}
}
