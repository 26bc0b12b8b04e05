// Package dummy provides a scripted model provider for offline runs and tests.
//
// A script is a comma separated list of actions consumed one per call; the
// last action repeats once the script is exhausted:
//
//	ok            reply "dummy-ok"
//	err:<class>   fail with an upstream error of that class
//	sleep:<ms>    wait, then reply "dummy-after-sleep"
//	msg:<text>    reply text
//	msgb64:<b64>  reply base64-decoded text
//	echo          reply with the prompt itself
package dummy

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/stupiduntilnot/csast/internal/model"
)

const providerName = "dummy"

type action struct {
	kind string
	arg  string
}

func parseScript(script string) ([]action, error) {
	if strings.TrimSpace(script) == "" {
		return []action{{kind: "ok"}}, nil
	}
	parts := strings.Split(script, ",")
	actions := make([]action, 0, len(parts))
	for _, p := range parts {
		token := strings.TrimSpace(p)
		if token == "" {
			continue
		}
		switch {
		case token == "ok":
			actions = append(actions, action{kind: "ok"})
		case token == "echo":
			actions = append(actions, action{kind: "echo"})
		case strings.HasPrefix(token, "err:"):
			actions = append(actions, action{kind: "err", arg: strings.TrimPrefix(token, "err:")})
		case strings.HasPrefix(token, "sleep:"):
			actions = append(actions, action{kind: "sleep", arg: strings.TrimPrefix(token, "sleep:")})
		case strings.HasPrefix(token, "msg:"):
			actions = append(actions, action{kind: "msg", arg: strings.TrimPrefix(token, "msg:")})
		case strings.HasPrefix(token, "msgb64:"):
			actions = append(actions, action{kind: "msgb64", arg: strings.TrimPrefix(token, "msgb64:")})
		default:
			return nil, fmt.Errorf("invalid dummy action: %s", token)
		}
	}
	if len(actions) == 0 {
		actions = append(actions, action{kind: "ok"})
	}
	return actions, nil
}

type scriptRunner struct {
	actions []action
	index   int
}

func newRunner(script string) (*scriptRunner, error) {
	actions, err := parseScript(script)
	if err != nil {
		return nil, err
	}
	return &scriptRunner{actions: actions}, nil
}

func (r *scriptRunner) next() action {
	if len(r.actions) == 0 {
		return action{kind: "ok"}
	}
	if r.index >= len(r.actions) {
		return r.actions[len(r.actions)-1]
	}
	a := r.actions[r.index]
	r.index++
	return a
}

// Provider replays a script. It also records the requests it receives.
type Provider struct {
	mu       sync.Mutex
	script   *scriptRunner
	requests []model.Request
}

func NewProvider(script string) (*Provider, error) {
	runner, err := newRunner(script)
	if err != nil {
		return nil, err
	}
	return &Provider{script: runner}, nil
}

// Requests returns the requests seen so far, oldest first.
func (p *Provider) Requests() []model.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.Request, len(p.requests))
	copy(out, p.requests)
	return out
}

func (p *Provider) Complete(ctx context.Context, req model.Request) (model.Response, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	a := p.script.next()
	p.mu.Unlock()

	if err := model.CheckInputBudget(req); err != nil {
		return model.Response{}, &model.UpstreamError{Provider: providerName, Class: "prompt_too_large", Err: err}
	}

	reply := func(content string) (model.Response, error) {
		return model.Response{
			Content:      content,
			InputTokens:  model.EstimateTokens(req.Prompt),
			OutputTokens: model.EstimateTokens(content),
		}, nil
	}

	switch a.kind {
	case "ok":
		return reply("dummy-ok")
	case "echo":
		return reply(req.Prompt)
	case "err":
		class := emptyAs(a.arg, "provider_api")
		return model.Response{}, &model.UpstreamError{
			Provider: providerName,
			Class:    class,
			Err:      errors.New("scripted failure"),
		}
	case "sleep":
		ms, _ := strconv.Atoi(a.arg)
		if ms > 0 {
			select {
			case <-time.After(time.Duration(ms) * time.Millisecond):
			case <-ctx.Done():
				return model.Response{}, &model.UpstreamError{Provider: providerName, Class: "canceled", Err: ctx.Err()}
			}
		}
		return reply("dummy-after-sleep")
	case "msg":
		return reply(a.arg)
	case "msgb64":
		raw, err := base64.StdEncoding.DecodeString(a.arg)
		if err != nil {
			return model.Response{}, &model.UpstreamError{
				Provider: providerName,
				Class:    "decode",
				Err:      fmt.Errorf("dummy provider msgb64 decode failed: %w", err),
			}
		}
		return reply(string(raw))
	default:
		return reply("dummy-ok")
	}
}

func emptyAs(v string, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
