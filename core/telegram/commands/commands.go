// Package commands describes slash commands for the registry and the menu.
package commands

import tele "gopkg.in/telebot.v4"

// Command is one slash command. AdminOnly commands are guarded by the
// command router; Hidden and AdminOnly ones stay out of the public menu.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	AdminOnly   bool
	Hidden      bool
}
