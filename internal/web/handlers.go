package web

import (
	"context"
	"errors"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stupiduntilnot/csast/internal/chat"
	"github.com/stupiduntilnot/csast/internal/model"
	"github.com/stupiduntilnot/csast/internal/session"
)

const (
	busyMessage      = "Still answering your previous question. Please wait."
	discardedMessage = "The conversation was cleared before the reply arrived."
)

type messageView struct {
	Role string
	HTML template.HTML
}

type pageData struct {
	Title    string
	Messages []messageView
	Error    string
	Input    string
}

func (s *Server) page(st *session.State, errMsg, input string) pageData {
	msgs := st.Snapshot()
	views := make([]messageView, len(msgs))
	for i, m := range msgs {
		views[i] = messageView{Role: string(m.Role), HTML: s.render(m.Content)}
	}
	return pageData{Title: s.title, Messages: views, Error: errMsg, Input: input}
}

func (s *Server) index(c *gin.Context) {
	c.HTML(http.StatusOK, "page.html", s.page(sessionFrom(c), "", ""))
}

// submit runs a turn that outlives the request: a client disconnect does not
// cancel the model call.
func (s *Server) submit(c *gin.Context, st *session.State, input string) (string, error) {
	return s.chat.Submit(context.WithoutCancel(c.Request.Context()), st, input)
}

func (s *Server) submitForm(c *gin.Context) {
	st := sessionFrom(c)
	input := c.PostForm("message")

	_, err := s.submit(c, st, input)
	switch {
	case err == nil, errors.Is(err, chat.ErrEmptyInput):
		c.Redirect(http.StatusSeeOther, "/")
	case errors.Is(err, chat.ErrBusy):
		c.HTML(http.StatusConflict, "page.html", s.page(st, busyMessage, input))
	case errors.Is(err, chat.ErrDiscarded):
		c.HTML(http.StatusOK, "page.html", s.page(st, discardedMessage, ""))
	default:
		_ = c.Error(err)
		c.HTML(http.StatusOK, "page.html", s.page(st, userFacing(err), ""))
	}
}

func (s *Server) resetForm(c *gin.Context) {
	s.chat.Reset(sessionFrom(c))
	c.Redirect(http.StatusSeeOther, "/")
}

type chatRequest struct {
	Message string `json:"message"`
}

type messagesResponse struct {
	Session  string            `json:"session"`
	Busy     bool              `json:"busy"`
	Messages []session.Message `json:"messages"`
}

func transcript(st *session.State) messagesResponse {
	msgs := st.Snapshot()
	if msgs == nil {
		msgs = []session.Message{}
	}
	return messagesResponse{Session: st.ID(), Busy: st.Busy(), Messages: msgs}
}

func (s *Server) messages(c *gin.Context) {
	c.JSON(http.StatusOK, transcript(sessionFrom(c)))
}

func (s *Server) submitJSON(c *gin.Context) {
	st := sessionFrom(c)
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reply, err := s.submit(c, st, req.Message)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"reply": reply, "messages": transcript(st).Messages})
	case errors.Is(err, chat.ErrEmptyInput):
		c.Status(http.StatusNoContent)
	case errors.Is(err, chat.ErrBusy):
		c.JSON(http.StatusConflict, gin.H{"error": busyMessage})
	case errors.Is(err, chat.ErrDiscarded):
		c.JSON(http.StatusConflict, gin.H{"error": discardedMessage})
	default:
		_ = c.Error(err)
		body := gin.H{"error": userFacing(err)}
		var up *model.UpstreamError
		if errors.As(err, &up) {
			body["class"] = up.Class
		}
		c.JSON(http.StatusBadGateway, body)
	}
}

func (s *Server) resetJSON(c *gin.Context) {
	st := sessionFrom(c)
	s.chat.Reset(st)
	c.JSON(http.StatusOK, transcript(st))
}

// userFacing is the inline text shown in place of an assistant reply.
func userFacing(err error) string {
	var up *model.UpstreamError
	if errors.As(err, &up) {
		if errors.Is(err, model.ErrPromptTooLarge) {
			return "The conversation is too long for the model. Clear the conversation history and ask again."
		}
		return "The model could not answer (" + up.Class + "). Please try again."
	}
	return "Something went wrong. Please try again."
}
