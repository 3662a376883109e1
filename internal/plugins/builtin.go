// Package plugins lists the plugins compiled into the host binary.
package plugins

import (
	"github.com/OrbisWeb3/orbisdb-sub001/internal/plugin"
	blocklistplugin "github.com/OrbisWeb3/orbisdb-sub001/internal/plugins/blocklist"
	helloplugin "github.com/OrbisWeb3/orbisdb-sub001/internal/plugins/hello"
	moderationplugin "github.com/OrbisWeb3/orbisdb-sub001/internal/plugins/moderation"
	notifierplugin "github.com/OrbisWeb3/orbisdb-sub001/internal/plugins/notifier"
)

// Builtin returns fresh instances of every built-in plugin in registration
// order. Registration order is dispatch order within a hook kind.
func Builtin() []plugin.Plugin {
	return []plugin.Plugin{
		blocklistplugin.New(),
		moderationplugin.New(),
		helloplugin.New(),
		notifierplugin.New(),
	}
}
