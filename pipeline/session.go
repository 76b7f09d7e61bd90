package pipeline

import (
	"bytes"
	"context"

	"github.com/cockroachdb/errors"
	"github.com/letmevibethatforyou/contentx"
	"github.com/letmevibethatforyou/contentx/fetch"
	"github.com/letmevibethatforyou/contentx/preview"
	"github.com/letmevibethatforyou/contentx/render"
)

// ErrNotLive is returned by OpenSession when a request is neither a preview
// nor rendered inside the editor, so no save event could ever refresh it.
var ErrNotLive = errors.New("page does not take part in live preview")

// Session keeps one previewed page in sync with saves made in the editor.
// Every refetch re-renders the content area and pushes it to the page.
type Session struct {
	mode     contentx.QueryMode
	obs      *fetch.Observable
	listener *preview.Listener
	unsub    func()
}

// OpenSession starts a live session for req. Save events arrive on ch and
// re-rendered content is delivered through send. opts configure the
// session's listener. The caller must Close the session.
func (p *Pipeline) OpenSession(ctx context.Context, req Request, ch preview.Channel, send func(preview.Update) error, opts ...preview.Option) (*Session, error) {
	sel := p.Select(ctx, req)
	if !preview.Active(sel.Mode, req.InEditor) {
		return nil, ErrNotLive
	}

	s := &Session{mode: sel.Mode}
	s.obs = p.fetcher.Fetch(ctx, sel.Query, sel.Variables)
	s.unsub = s.obs.Subscribe(func(state fetch.State) {
		html, err := p.renderState(sel.Mode, state)
		if err != nil {
			p.logger.ErrorContext(ctx, "failed to render preview update", "error", err)
			return
		}
		if err := send(preview.Update{HTML: html, Version: state.Variables.Version}); err != nil {
			p.logger.DebugContext(ctx, "preview update not delivered", "error", err)
		}
	})

	opts = append([]preview.Option{preview.InEditor(req.InEditor), preview.WithLogger(p.logger)}, opts...)
	s.listener = preview.NewListener(s.obs, sel.Mode, opts...)
	if !s.listener.Start(ctx, ch) {
		s.Close()
		return nil, errors.New("preview listener did not start")
	}
	return s, nil
}

// Mode returns the query mode the session runs.
func (s *Session) Mode() contentx.QueryMode {
	return s.mode
}

// Variables returns the variables of the session's latest request.
func (s *Session) Variables() contentx.Variables {
	return s.obs.Variables()
}

// State returns the listener state.
func (s *Session) State() preview.State {
	return s.listener.State()
}

// Close stops listening and discards any result still in flight.
func (s *Session) Close() {
	if s.listener != nil {
		s.listener.Stop()
	}
	s.unsub()
	s.obs.Close()
}

func (p *Pipeline) renderState(mode contentx.QueryMode, state fetch.State) (string, error) {
	res := Result{Mode: mode, Variables: state.Variables, Err: state.Err}
	if state.Status == fetch.StatusReady {
		res.Normalized = contentx.Normalize(mode, state.Data)
		res.Plan = render.Walk(res.Normalized)
	}

	var buf bytes.Buffer
	if err := render.Content(&buf, p.PageData(res, state.Status == fetch.StatusPending)); err != nil {
		return "", err
	}
	return buf.String(), nil
}
