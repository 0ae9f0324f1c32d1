package controller

import (
	"github.com/iudanet/boardkeeper/internal/geometry"
)

// Chord нормализованное сочетание клавиш. Key — нижний регистр
// ("z", "l", "arrowleft" и т.п. в нотации хостового UI).
type Chord struct {
	Key   string
	Ctrl  bool
	Shift bool
	Alt   bool
}

// Command именованное действие командной таблицы.
type Command struct {
	Name string

	// Guard опциональное условие применимости; nil — всегда доступна
	Guard func(c *Controller) bool

	Run func(c *Controller)
}

func needsSelection(c *Controller) bool {
	return len(c.store.Selection()) > 0
}

// defaultCommands таблица биндингов по умолчанию. Хостовый UI может
// переопределить ее через Bind.
func defaultCommands() map[Chord]*Command {
	return map[Chord]*Command{
		{Key: "z", Ctrl: true}: {
			Name:  "undo",
			Guard: func(c *Controller) bool { return c.store.CanUndo() },
			Run:   func(c *Controller) { c.store.Undo() },
		},
		{Key: "z", Ctrl: true, Shift: true}: {
			Name:  "redo",
			Guard: func(c *Controller) bool { return c.store.CanRedo() },
			Run:   func(c *Controller) { c.store.Redo() },
		},
		{Key: "y", Ctrl: true}: {
			Name:  "redo",
			Guard: func(c *Controller) bool { return c.store.CanRedo() },
			Run:   func(c *Controller) { c.store.Redo() },
		},
		{Key: "delete"}: {
			Name:  "delete-selection",
			Guard: needsSelection,
			Run:   func(c *Controller) { c.DeleteSelection() },
		},
		{Key: "backspace"}: {
			Name:  "delete-selection",
			Guard: needsSelection,
			Run:   func(c *Controller) { c.DeleteSelection() },
		},
		{Key: "l", Ctrl: true, Shift: true}: {
			Name:  "toggle-lock",
			Guard: needsSelection,
			Run: func(c *Controller) {
				for _, id := range c.store.Selection() {
					c.ToggleLock(id)
				}
			},
		},
		{Key: "k", Ctrl: true}: {
			Name: "link-mode",
			Run:  func(c *Controller) { c.BeginLink() },
		},
		{Key: "arrowleft", Alt: true}: alignCommand("align-left", geometry.AlignLeft),
		{Key: "arrowright", Alt: true}: alignCommand("align-right", geometry.AlignRight),
		{Key: "arrowup", Alt: true}:   alignCommand("align-top", geometry.AlignTop),
		{Key: "arrowdown", Alt: true}: alignCommand("align-bottom", geometry.AlignBottom),
		{Key: "h", Alt: true}:         alignCommand("align-center-horizontal", geometry.AlignCenterH),
		{Key: "v", Alt: true}:         alignCommand("align-center-vertical", geometry.AlignCenterV),
		{Key: "h", Alt: true, Shift: true}: {
			Name:  "distribute-horizontal",
			Guard: needsSelection,
			Run:   func(c *Controller) { c.DistributeSelection(geometry.AxisHorizontal) },
		},
		{Key: "v", Alt: true, Shift: true}: {
			Name:  "distribute-vertical",
			Guard: needsSelection,
			Run:   func(c *Controller) { c.DistributeSelection(geometry.AxisVertical) },
		},
		{Key: "e", Ctrl: true, Shift: true}: {
			Name: "export",
			Run: func(c *Controller) {
				if err := c.ExportSelection(); err != nil {
					c.logger.Warn("Export failed", "error", err)
				}
			},
		},
		{Key: "i", Ctrl: true, Shift: true}: {
			Name: "import",
			Run: func(c *Controller) {
				if err := c.ImportFile(); err != nil {
					c.logger.Warn("Import failed", "error", err)
				}
			},
		},
		{Key: "a", Ctrl: true}: {
			Name: "select-all",
			Run: func(c *Controller) {
				var ids []string
				for id := range c.store.Snapshot().Nodes {
					ids = append(ids, id)
				}
				c.store.SetSelection(ids)
			},
		},
		{Key: "escape"}: {
			Name: "clear-selection",
			Run: func(c *Controller) {
				c.mode = ModeIdle
				c.linkSourceID = ""
				c.store.SetSelection(nil)
			},
		},
	}
}

func alignCommand(name string, mode geometry.AlignMode) *Command {
	return &Command{
		Name:  name,
		Guard: needsSelection,
		Run:   func(c *Controller) { c.AlignSelection(mode) },
	}
}

// Bind добавляет или заменяет биндинг. Command с nil Run снимает биндинг.
func (c *Controller) Bind(chord Chord, cmd *Command) {
	if cmd == nil || cmd.Run == nil {
		delete(c.commands, chord)
		return
	}
	c.commands[chord] = cmd
}

// HandleKey исполняет команду по сочетанию клавиш. Возвращает true,
// если сочетание было обработано (хостовый UI гасит событие).
// Пока каретка находится в текстовом контенте узла, вся командная
// поверхность выключена: ввод принадлежит тексту.
func (c *Controller) HandleKey(chord Chord) bool {
	if c.textEditing {
		return false
	}

	cmd, ok := c.commands[chord]
	if !ok {
		return false
	}
	if cmd.Guard != nil && !cmd.Guard(c) {
		return false
	}

	cmd.Run(c)
	return true
}

// DeleteSelection удаляет все выделенные узлы; каскадное удаление
// соединений выполняет store.
func (c *Controller) DeleteSelection() {
	ids := c.store.Selection()
	for _, id := range ids {
		c.store.DeleteNode(id)
	}
	c.store.SetSelection(nil)
}
