package cli

import (
	"context"

	"github.com/iudanet/boardkeeper/internal/client/transport"
	"github.com/iudanet/boardkeeper/internal/models"
)

// RunWatch держит live-соединение с workspace: локальная сессия
// получает чужие дельты, а изменения других команд этого процесса
// рассылаются участникам. Завершается по отмене контекста (Ctrl+C).
func (c *Cli) RunWatch(ctx context.Context, args []string) error {
	t := transport.New(transport.Config{
		URL:   c.syncURL(),
		Token: c.cfg.Token,
	}, c.store, c.logger)

	c.store.SetBroadcaster(t)
	defer c.store.SetBroadcaster(nil)

	t.OnStateChange(func(state transport.State) {
		switch state {
		case transport.StateSynced:
			c.io.Println("Connected. Live updates will appear below.")
		case transport.StateReconnecting:
			c.io.Println("Connection lost, reconnecting... (local changes are kept)")
		case transport.StateDisconnected:
			c.io.Println("Disconnected.")
		}
	})

	unsubscribe := c.store.Subscribe(func(snap *models.Snapshot) {
		c.io.Printf("[update] %d node(s), %d connection(s), checkpoint %d\n",
			len(snap.Nodes), len(snap.Connections), c.store.Checkpoint())
	})
	defer unsubscribe()

	c.io.Printf("Watching workspace %s (press Ctrl+C to stop)\n", c.cfg.WorkspaceID)

	t.Run(ctx)
	t.Close()

	return nil
}
