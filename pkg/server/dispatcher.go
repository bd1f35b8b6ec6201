package server

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/NicolasHaas/gotalk/pkg/datastore"
	"github.com/NicolasHaas/gotalk/pkg/model"
	"github.com/NicolasHaas/gotalk/pkg/protocol"
)

const helpText = "You can use the following commands:\n" +
	"/auth <login> <password> - authenticate\n" +
	"/reg <login> <password> <name> - register\n" +
	"/changeName <name> - change name\n" +
	"/getName - find out your name\n" +
	"/changeRole <name> <ADMIN|USER> - change role (administrators only)\n" +
	"/getRole - find out your role/roles\n" +
	"/getActiveClients - get the list of active clients\n" +
	"/w <name> <message> - send a private message to <name>\n" +
	"<message> - send a message to all users\n" +
	"/kick <name> - remove a user from the chat (administrators only)\n" +
	"/exit - leave the chat\n" +
	"/help - this list of commands"

// Dispatcher handles lines from authenticated sessions: plain text becomes a
// broadcast, slash commands mutate session or user state, query the registry
// or delegate to the message service.
type Dispatcher struct {
	registry *Registry
	messages *MessageService
	store    datastore.UserStore
	metrics  *Metrics
}

func newDispatcher(s *Server) *Dispatcher {
	return &Dispatcher{
		registry: s.registry,
		messages: s.messages,
		store:    s.store,
		metrics:  s.metrics,
	}
}

// Dispatch processes one inbound line. Activity is recorded first so the
// idle reaper sees every kind of traffic, well-formed or not.
func (d *Dispatcher) Dispatch(sess *Session, line string) {
	sess.Touch()

	if !strings.HasPrefix(line, "/") {
		d.messages.Broadcast(sess.Name() + " : " + line)
		return
	}

	args := strings.Fields(line)
	switch args[0] {
	case "/changeName":
		d.changeName(sess, args)
	case "/getName":
		sess.Send("Your nickname: " + sess.Name())
	case "/changeRole":
		d.changeRole(sess, args)
	case "/getRole":
		sess.Send("Your role/roles: " + sess.User().Roles().String())
	case "/getActiveClients":
		d.messages.BroadcastActiveNames()
	case "/w":
		d.direct(sess, args)
	case "/kick":
		d.kick(sess, args)
	case "/help":
		sess.Send(helpText)
	case "/exit":
		sess.Send(protocol.TokenExitOK)
		sess.Terminate()
	default:
		sess.Send("Unknown command " + args[0] + ", use /help for the list of commands")
	}
}

func (d *Dispatcher) changeName(sess *Session, args []string) {
	if len(args) != 2 {
		sess.Send("Invalid command format: /changeName <name>")
		return
	}
	newName := args[1]
	user := sess.User()

	err := d.registry.Rename(sess, newName, func() error {
		return d.store.RenameUser(user.ID, newName)
	})
	if errors.Is(err, model.ErrNameAlreadyBusy) {
		sess.Send("The specified name is already taken")
		return
	}
	if err != nil {
		slog.Error("rename failed", "user", user.Login, "err", err)
		sess.Send("Failed to change name, try again")
		return
	}

	sess.Send("Your new nickname: " + newName)
}

func (d *Dispatcher) changeRole(sess *Session, args []string) {
	if len(args) != 3 {
		sess.Send("Invalid command format: /changeRole <name> <ADMIN|USER>")
		return
	}
	if !sess.User().IsAdmin() {
		sess.Send("You are not an administrator and cannot change user roles.")
		return
	}

	targetName := args[1]
	target := d.registry.LookupByName(targetName)
	if target == nil {
		sess.Send("User with nickname " + targetName + " not registered in chat")
		return
	}

	role, ok := model.ParseRole(args[2])
	if !ok {
		sess.Send("The role you specified \"" + args[2] + "\" does not exist")
		return
	}

	// Persist first, mutate the live session's user only on success, so
	// the cache never diverges from the store.
	targetUser := target.User()
	var err error
	switch role {
	case model.RoleAdmin:
		if err = d.store.AddRole(targetUser.ID, model.RoleAdmin); err == nil {
			targetUser.AddRole(model.RoleAdmin)
		}
	case model.RoleUser:
		if err = d.store.RemoveRole(targetUser.ID, model.RoleAdmin); err == nil {
			targetUser.RemoveRole(model.RoleAdmin)
		}
	}
	if err != nil {
		slog.Error("role change failed", "target", targetName, "role", role, "err", err)
		sess.Send("Failed to change role, try again")
		return
	}

	slog.Info("user role changed", "target", targetName, "role", role, "by", sess.Name())
	sess.Send("Now " + targetName + " has role/roles " + targetUser.Roles().String())
}

func (d *Dispatcher) direct(sess *Session, args []string) {
	if len(args) < 3 {
		sess.Send("Invalid command format: /w <name> <message>")
		return
	}
	toName := args[1]
	body := strings.Join(args[2:], " ")
	d.messages.Direct(sess.Name()+" : "+body, toName, sess.Name())
}

func (d *Dispatcher) kick(sess *Session, args []string) {
	if len(args) != 2 {
		sess.Send("Invalid command format: /kick <name>")
		return
	}
	if !sess.User().IsAdmin() {
		sess.Send("You are not an administrator and cannot remove users from the chat.")
		return
	}

	targetName := args[1]
	if err := d.registry.Kick(targetName); err != nil {
		sess.Send("User with nickname " + targetName + " not registered in chat")
		return
	}

	d.metrics.KickCount.Add(1)
	slog.Info("user kicked", "target", targetName, "by", sess.Name())
	sess.Send("Client with nickname " + targetName + " disconnected from chat")
}
