package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"

	"github.com/NicolasHaas/gotalk/pkg/auth"
	"github.com/NicolasHaas/gotalk/pkg/protocol"
)

// Start begins accepting client connections on cfg.Addr.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}
	s.ln = ln
	slog.Info("chat server listening", "addr", s.cfg.Addr)

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
					slog.Error("accept error", "err", err)
					continue
				}
			}
			s.NewSession(conn)
		}
	}()

	return nil
}

// NewSession creates the server-side session for one accepted connection and
// starts its protocol loop. The acceptor owns only the accept loop; all
// session logic lives here.
func (s *Server) NewSession(conn net.Conn) *Session {
	sess := newSession(conn, s.registry, s.metrics)
	s.metrics.TotalConnections.Add(1)
	s.metrics.ActiveConnections.Add(1)

	go s.serveSession(sess)
	return sess
}

// serveSession drives one connection through handshake and the command loop.
// It is the only goroutine that reads from the transport; termination by
// another goroutine surfaces as the next blocked read failing.
func (s *Server) serveSession(sess *Session) {
	defer sess.Terminate()

	remote := sess.conn.RemoteAddr().String()
	slog.Debug("client connected", "remote", remote)

	sess.state.Store(int32(StateAuthenticating))
	authenticator := auth.New(s.provider)

	for sess.State() == StateAuthenticating {
		sess.Send(auth.Prompt)

		line, err := protocol.ReadFrame(sess.conn)
		if err != nil {
			logReadError(err, "", remote)
			return
		}

		ok, stop := authenticator.Authenticate(sess, line)
		if stop {
			slog.Info("client exited before login", "remote", remote)
			return
		}
		if ok {
			s.metrics.SuccessfulAuths.Add(1)
			if strings.HasPrefix(line, "/reg") {
				s.metrics.UsersRegistered.Add(1)
			}
			break
		}
		if strings.HasPrefix(line, "/auth") || strings.HasPrefix(line, "/reg") {
			s.metrics.FailedAuths.Add(1)
		}
	}

	slog.Info("client authenticated", "user", sess.Name(), "remote", remote)
	sess.Send("You can find out the list of commands for working with chat using the command /help")

	dispatcher := newDispatcher(s)
	for {
		line, err := protocol.ReadFrame(sess.conn)
		if err != nil {
			logReadError(err, sess.Name(), remote)
			return
		}

		dispatcher.Dispatch(sess, line)

		if sess.State() == StateTerminated {
			return
		}
	}
}

// logReadError classifies a failed read: clean disconnects and closes by
// another trigger are routine, anything else is a transport error local to
// this session.
func logReadError(err error, user, remote string) {
	if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		slog.Debug("client disconnected", "user", user, "remote", remote)
		return
	}
	slog.Error("read error", "user", user, "remote", remote, "err", err)
}
