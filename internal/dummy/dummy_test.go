package dummy

import (
	"context"
	"errors"
	"testing"

	"github.com/stupiduntilnot/csast/internal/model"
)

func TestNewProvider_InvalidScript(t *testing.T) {
	_, err := NewProvider("boom")
	if err == nil {
		t.Fatal("expected parse error for invalid script")
	}
}

func TestProvider_ScriptedResponses(t *testing.T) {
	p, err := NewProvider("err:quota,msg:hello")
	if err != nil {
		t.Fatal(err)
	}

	_, err = p.Complete(context.Background(), model.NewRequest("x", "hi"))
	var up *model.UpstreamError
	if !errors.As(err, &up) {
		t.Fatalf("expected first call to fail with UpstreamError, got %v", err)
	}
	if up.Class != "quota" {
		t.Fatalf("expected class quota, got %q", up.Class)
	}

	resp, err := p.Complete(context.Background(), model.NewRequest("x", "hi"))
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "hello" {
		t.Fatalf("expected hello, got %q", resp.Content)
	}

	// The last action repeats.
	resp, err = p.Complete(context.Background(), model.NewRequest("x", "again"))
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "hello" {
		t.Fatalf("expected repeated hello, got %q", resp.Content)
	}

	reqs := p.Requests()
	if len(reqs) != 3 || reqs[2].Prompt != "again" {
		t.Fatalf("unexpected recorded requests: %+v", reqs)
	}
}

func TestProvider_MsgB64Action(t *testing.T) {
	p, err := NewProvider("msgb64:aGVsbG8=") // "hello"
	if err != nil {
		t.Fatal(err)
	}
	resp, err := p.Complete(context.Background(), model.NewRequest("x", "hi"))
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "hello" {
		t.Fatalf("expected hello, got %q", resp.Content)
	}
}

func TestProvider_Echo(t *testing.T) {
	p, err := NewProvider("echo")
	if err != nil {
		t.Fatal(err)
	}
	resp, err := p.Complete(context.Background(), model.NewRequest("x", "prompt body"))
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "prompt body" {
		t.Fatalf("expected echoed prompt, got %q", resp.Content)
	}
}

func TestProvider_SleepHonorsContext(t *testing.T) {
	p, err := NewProvider("sleep:5000")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Complete(ctx, model.NewRequest("x", "hi"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
