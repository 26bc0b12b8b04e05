// Package web serves the chat page and its JSON API.
package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yuin/goldmark"

	"github.com/stupiduntilnot/csast/internal/logging"
	"github.com/stupiduntilnot/csast/internal/session"
)

//go:embed templates/*.html
var templates embed.FS

const (
	cookieName = "csast_session"
	sessionKey = "session"

	DefaultTitle = "CSAST"
)

// Chatter runs turns for a session. *chat.Orchestrator implements it.
type Chatter interface {
	Submit(ctx context.Context, st *session.State, input string) (string, error)
	Reset(st *session.State)
}

type Config struct {
	Chat  Chatter
	Store *session.Store
	Log   logrus.FieldLogger
	Title string
}

type Server struct {
	chat   Chatter
	store  *session.Store
	log    logrus.FieldLogger
	title  string
	md     goldmark.Markdown
	engine *gin.Engine
}

func New(cfg Config) (*Server, error) {
	tmpl, err := template.ParseFS(templates, "templates/*.html")
	if err != nil {
		return nil, err
	}
	s := &Server{
		chat:  cfg.Chat,
		store: cfg.Store,
		log:   cfg.Log,
		title: cfg.Title,
		md:    goldmark.New(),
	}
	if s.title == "" {
		s.title = DefaultTitle
	}
	if s.log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		s.log = l
	}

	r := gin.New()
	r.Use(gin.Recovery(), logging.GinLogger(s.log))
	r.SetHTMLTemplate(tmpl)

	r.GET("/health", s.health)

	page := r.Group("/", s.withSession)
	{
		page.GET("/", s.index)
		page.POST("/chat", s.submitForm)
		page.POST("/reset", s.resetForm)
	}

	api := r.Group("/api", s.withSession)
	{
		api.GET("/messages", s.messages)
		api.POST("/chat", s.submitJSON)
		api.POST("/reset", s.resetJSON)
	}

	s.engine = r
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
// There is no write timeout: a turn lasts as long as the model call.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("web server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.log.Info("web server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// withSession attaches the browser's session, issuing a cookie for new ones.
func (s *Server) withSession(c *gin.Context) {
	id, _ := c.Cookie(cookieName)
	st, created := s.store.GetOrCreate(id)
	if created {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(cookieName, st.ID(), 0, "/", "", false, true)
		s.log.WithField("session", st.ID()).Debug("session created")
	}
	c.Set(sessionKey, st)
	c.Next()
}

func sessionFrom(c *gin.Context) *session.State {
	return c.MustGet(sessionKey).(*session.State)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"sessions":  s.store.Len(),
		"timestamp": time.Now().UTC(),
	})
}

// render converts message content to HTML. Raw HTML in the source is
// dropped by goldmark's default renderer.
func (s *Server) render(content string) template.HTML {
	var buf bytes.Buffer
	if err := s.md.Convert([]byte(content), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(content))
	}
	return template.HTML(buf.String())
}
