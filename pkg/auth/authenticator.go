package auth

import (
	"strings"

	"github.com/NicolasHaas/gotalk/pkg/model"
	"github.com/NicolasHaas/gotalk/pkg/protocol"
)

// Prompt is resent before every handshake attempt until the session
// authenticates or exits.
const Prompt = "Before working, you must authenticate using the command\n" +
	"/auth <login> <password> or register using the command\n" +
	"/reg <login> <password> <name>"

// Authenticator runs the per-line handshake state machine for one session.
type Authenticator struct {
	provider Provider
}

// New creates an Authenticator backed by the given provider.
func New(provider Provider) *Authenticator {
	return &Authenticator{provider: provider}
}

// Authenticate processes one inbound line from an unauthenticated session.
// ok reports that the session is now authenticated and the handshake loop
// should stop. stop reports that the client asked to exit before logging in;
// the acknowledgment has already been sent and the caller should terminate
// the session.
func (a *Authenticator) Authenticate(sess Session, line string) (ok, stop bool) {
	if !strings.HasPrefix(line, "/") {
		return false, false
	}

	if line == "/exit" || strings.HasPrefix(line, "/exit ") {
		sess.Send(protocol.TokenExitOK)
		return false, true
	}

	switch {
	case strings.HasPrefix(line, "/auth"):
		return a.auth(sess, line), false
	case strings.HasPrefix(line, "/reg"):
		return a.reg(sess, line), false
	}
	return false, false
}

func (a *Authenticator) auth(sess Session, line string) bool {
	elements := strings.Fields(line)
	if len(elements) != 3 {
		sess.Send("Invalid command format: /auth <login> <password>")
		return false
	}
	return a.provider.Authenticate(sess, elements[1], elements[2])
}

func (a *Authenticator) reg(sess Session, line string) bool {
	elements := strings.Fields(line)
	if len(elements) != 4 {
		sess.Send("Invalid command format: /reg <login> <password> <name>")
		return false
	}
	// Self-registration always yields a regular user; admins are promoted
	// later via /changeRole.
	return a.provider.Register(sess, elements[1], elements[2], elements[3], model.RoleUser)
}
